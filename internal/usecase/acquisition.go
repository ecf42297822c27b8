package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/pause"
	"StandardsCrawler/internal/ports"
)

const (
	msgCaptchaFetch    = "captcha image fetch failed"
	msgRecognition     = "captcha recognition failed"
	msgValidation      = "captcha validation failed: "
	msgValidateRequest = "captcha validation request failed"
	msgTokenMissing    = "download token missing"
	msgDownload        = "document download failed"
	msgEmptyFile       = "download produced empty file"
)

var unsafeFileChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// DocumentFileName derives the stored file name from a standard code.
// A blank code falls back to the pk.
func DocumentFileName(code, pk string) string {
	name := strings.TrimSpace(code)
	if name == "" {
		name = pk
	}
	return unsafeFileChars.Replace(name) + ".pdf"
}

// AcquirerDeps wires the portal and persistence into the acquisition state machine.
type AcquirerDeps struct {
	Portal    ports.DocumentPortal
	Solver    ports.CaptchaSolver
	Downloads ports.DownloadRepository
	Pause     pause.Func
	Now       func() time.Time
	Logger    *slog.Logger
}

// Acquirer runs the captcha, validation and download sequence for one standard.
type Acquirer struct {
	portal      ports.DocumentPortal
	solver      ports.CaptchaSolver
	downloads   ports.DownloadRepository
	dir         string
	backoffStep time.Duration
	pause       pause.Func
	now         func() time.Time
	logger      *slog.Logger
}

// NewAcquirer constructs the state machine.
func NewAcquirer(deps AcquirerDeps, cfg config.DownloadConfig) *Acquirer {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	step := cfg.BackoffStep
	if step <= 0 {
		step = 30 * time.Second
	}
	return &Acquirer{
		portal:      deps.Portal,
		solver:      deps.Solver,
		downloads:   deps.Downloads,
		dir:         cfg.Dir,
		backoffStep: step,
		pause:       pause.OrSleep(deps.Pause),
		now:         now,
		logger:      loggerOrDiscard(deps.Logger),
	}
}

// Backoff is the delay after the given failed attempt: attempt × step.
func (a *Acquirer) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * a.backoffStep
}

// Acquire performs a single attempt. The record is saved PENDING first and
// then with its terminal status; the returned error explains a FAILED outcome.
func (a *Acquirer) Acquire(ctx context.Context, std domain.Standard) (domain.DownloadRecord, error) {
	record := domain.DownloadRecord{
		PK:           std.PK,
		StandardCode: std.Code,
		Status:       domain.DownloadPending,
	}

	saved, err := a.downloads.SaveAttempt(ctx, record)
	if err != nil {
		return record, fmt.Errorf("record attempt %s: %w", std.PK, err)
	}
	record.RetryCount = saved.RetryCount

	image, err := a.portal.CaptchaImage(ctx, std.PK)
	if err != nil {
		return a.fail(ctx, record, msgCaptchaFetch, err)
	}
	if len(image) == 0 {
		return a.fail(ctx, record, msgCaptchaFetch, domain.ErrFetch)
	}

	text, err := a.solver.Recognize(ctx, image)
	if err != nil {
		return a.fail(ctx, record, msgRecognition, errors.Join(domain.ErrRecognition, err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return a.fail(ctx, record, msgRecognition, domain.ErrRecognition)
	}
	record.CaptchaText = text

	verdict, err := a.portal.ValidateCaptcha(ctx, std.PK, text)
	if err != nil {
		return a.fail(ctx, record, msgValidateRequest, err)
	}
	if !verdict.Accepted() {
		return a.fail(ctx, record, msgValidation+verdict.Message, domain.ErrValidationRejected)
	}
	token := strings.TrimSpace(verdict.Message)
	if token == "" {
		return a.fail(ctx, record, msgTokenMissing, domain.ErrValidationRejected)
	}
	record.DownloadToken = token

	path, size, err := a.fetchDocument(ctx, token, DocumentFileName(std.Code, std.PK))
	if err != nil {
		msg := msgDownload
		if errors.Is(err, domain.ErrEmptyArtifact) {
			msg = msgEmptyFile
		}
		return a.fail(ctx, record, msg, err)
	}

	downloadedAt := a.now()
	record.FilePath = path
	record.FileSize = size
	record.Status = domain.DownloadSuccess
	record.DownloadTime = &downloadedAt
	record.ErrorMessage = ""

	saved, err = a.downloads.SaveAttempt(context.WithoutCancel(ctx), record)
	if err != nil {
		return record, fmt.Errorf("record success %s: %w", std.PK, err)
	}
	record.RetryCount = saved.RetryCount

	a.logger.Info("document downloaded", "pk", std.PK, "path", path, "bytes", size)
	return record, nil
}

// fetchDocument streams the document into a temporary file and moves it into
// place only when it is non-empty.
func (a *Acquirer) fetchDocument(ctx context.Context, token, name string) (string, int64, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(a.dir, name)
	part := path + ".part"

	f, err := os.Create(part)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", part, err)
	}

	n, err := a.portal.DownloadDocument(ctx, token, f)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return "", 0, err
	}
	if n == 0 {
		_ = os.Remove(part)
		return "", 0, domain.ErrEmptyArtifact
	}

	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return "", 0, fmt.Errorf("move %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", 0, domain.ErrEmptyArtifact
	}
	return path, info.Size(), nil
}

func (a *Acquirer) fail(ctx context.Context, record domain.DownloadRecord, msg string, cause error) (domain.DownloadRecord, error) {
	record.Status = domain.DownloadFailed
	record.ErrorMessage = msg

	saved, err := a.downloads.SaveAttempt(context.WithoutCancel(ctx), record)
	if err != nil {
		a.logger.Error("record failed attempt", "pk", record.PK, "error", err)
	} else {
		record.RetryCount = saved.RetryCount
	}

	a.logger.Warn("download attempt failed", "pk", record.PK, "reason", msg, "error", cause)
	return record, fmt.Errorf("%s: %w", msg, cause)
}

// AcquireWithRetry repeats Acquire up to maxAttempts times. Between attempts
// the persisted retry counter is incremented (never past maxAttempts) and the
// loop backs off linearly. A cancelled backoff ends the loop at once, leaving
// the last FAILED record in place.
func (a *Acquirer) AcquireWithRetry(ctx context.Context, std domain.Standard, maxAttempts int) (domain.DownloadRecord, error) {
	maxAttempts = max(maxAttempts, 1)

	var (
		record domain.DownloadRecord
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record, err = a.Acquire(ctx, std)
		if err == nil {
			return record, nil
		}
		if attempt == maxAttempts {
			break
		}

		if incErr := a.downloads.IncrementRetry(context.WithoutCancel(ctx), std.PK, maxAttempts); incErr != nil {
			a.logger.Error("increment retry", "pk", std.PK, "error", incErr)
		} else if record.RetryCount < maxAttempts {
			record.RetryCount++
		}

		delay := a.Backoff(attempt)
		a.logger.Info("retrying download", "pk", std.PK, "attempt", attempt, "backoff", delay)
		if pauseErr := a.pause(ctx, delay); pauseErr != nil {
			return record, fmt.Errorf("retry %s interrupted: %w", std.PK, pauseErr)
		}
	}

	return record, fmt.Errorf("%s: %w after %d attempts: %w", std.PK, domain.ErrExhausted, maxAttempts, err)
}

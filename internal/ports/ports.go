package ports

import (
	"context"
	"io"

	"StandardsCrawler/internal/domain"
)

// CategorySource fetches the registry's category taxonomy.
type CategorySource interface {
	HarvestCategories(ctx context.Context) ([]domain.Category, error)
}

// RecordSource pages through the listing endpoint for one category.
type RecordSource interface {
	HarvestByCategory(ctx context.Context, industry string) ([]domain.Standard, error)
}

// DetailSource fetches and extracts a standard's detail page.
type DetailSource interface {
	FetchDetail(ctx context.Context, pk string) (domain.DetailInfo, error)
}

// DocumentPortal covers the CAPTCHA-gated download endpoints.
type DocumentPortal interface {
	CaptchaImage(ctx context.Context, pk string) ([]byte, error)
	ValidateCaptcha(ctx context.Context, pk, captcha string) (domain.CaptchaVerdict, error)
	DownloadDocument(ctx context.Context, token string, dst io.Writer) (int64, error)
}

// CaptchaSolver turns a captcha image into text. An empty result means no answer.
type CaptchaSolver interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// CategoryRepository persists categories keyed by code and title.
type CategoryRepository interface {
	UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// StandardRepository persists record summaries keyed by pk.
type StandardRepository interface {
	UpsertStandards(ctx context.Context, standards []domain.Standard) (int, error)
	GetStandard(ctx context.Context, pk string) (domain.Standard, error)
}

// DetailInfoRepository persists detail-page fields keyed by pk.
type DetailInfoRepository interface {
	UpsertDetailInfos(ctx context.Context, infos []domain.DetailInfo) (int, error)
	GetDetailInfo(ctx context.Context, pk string) (domain.DetailInfo, error)
}

// DownloadRepository persists acquisition history keyed by pk.
type DownloadRepository interface {
	GetDownload(ctx context.Context, pk string) (domain.DownloadRecord, error)
	// SaveAttempt upserts the outcome of one attempt without touching the retry counter.
	SaveAttempt(ctx context.Context, record domain.DownloadRecord) (domain.DownloadRecord, error)
	// IncrementRetry bumps the retry counter unless it already reached limit.
	IncrementRetry(ctx context.Context, pk string, limit int) error
}

// WorklistRepository answers "which pks still need work" from persisted state.
type WorklistRepository interface {
	PendingPKs(ctx context.Context, query domain.WorklistQuery, offset, limit int) ([]string, error)
	CountPending(ctx context.Context, query domain.WorklistQuery) (int64, error)
}

// Store bundles every repository a run needs.
type Store interface {
	CategoryRepository
	StandardRepository
	DetailInfoRepository
	DownloadRepository
	WorklistRepository
}

// Notifier delivers run summaries to an outbound channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// Scheduler controls when stage jobs execute.
type Scheduler interface {
	Schedule(name, spec string, job func(ctx context.Context)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

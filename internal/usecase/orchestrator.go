package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/pause"
	"StandardsCrawler/internal/ports"
)

// OrchestratorStore is the persistence the download batches read.
type OrchestratorStore interface {
	ports.StandardRepository
	ports.WorklistRepository
}

// DocumentAcquirer runs the acquisition state machine for one standard.
type DocumentAcquirer interface {
	AcquireWithRetry(ctx context.Context, std domain.Standard, maxAttempts int) (domain.DownloadRecord, error)
}

// Orchestrator drives document acquisition over a persisted worklist.
type Orchestrator struct {
	store      OrchestratorStore
	acquirer   DocumentAcquirer
	batchSize  int
	maxRetries int
	itemDelay  time.Duration
	batchDelay time.Duration
	pause      pause.Func
	logger     *slog.Logger
}

// NewOrchestrator constructs the download batch driver.
func NewOrchestrator(store OrchestratorStore, acquirer DocumentAcquirer, cfg config.DownloadConfig, p pause.Func, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		acquirer:   acquirer,
		batchSize:  positiveOr(cfg.BatchSize, 50),
		maxRetries: positiveOr(cfg.MaxRetries, 3),
		itemDelay:  cfg.ItemDelay,
		batchDelay: cfg.BatchDelay,
		pause:      pause.OrSleep(p),
		logger:     loggerOrDiscard(logger),
	}
}

// DownloadAll acquires every standard that has no download record yet.
func (o *Orchestrator) DownloadAll(ctx context.Context) (domain.RunStats, error) {
	return o.run(ctx, "download", domain.WorklistQuery{Kind: domain.WorklistDownload})
}

// RetryFailed acquires every unfinished download still under the retry limit.
func (o *Orchestrator) RetryFailed(ctx context.Context) (domain.RunStats, error) {
	return o.run(ctx, "retry", domain.WorklistQuery{Kind: domain.WorklistRetry, MaxRetries: o.maxRetries})
}

// run returns an error only when the worklist cannot be queried at all.
func (o *Orchestrator) run(ctx context.Context, name string, query domain.WorklistQuery) (domain.RunStats, error) {
	logger := o.logger.With("run", name)

	total, err := o.store.CountPending(ctx, query)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("count %s worklist: %w", name, err)
	}

	stats := domain.RunStats{Total: total}
	logger.Info("batch run started", "pending", total)

	for page := 0; ; page++ {
		pks, err := o.store.PendingPKs(ctx, query, 0, o.batchSize)
		if err != nil {
			if page == 0 {
				return stats, fmt.Errorf("query %s worklist: %w", name, err)
			}
			logger.Error("worklist query failed", "page", page, "error", err)
			break
		}
		if len(pks) == 0 {
			break
		}

		if page > 0 {
			if err := o.pause(ctx, o.batchDelay); err != nil {
				stats.Interrupted = true
				break
			}
		}

		if o.runPage(ctx, logger, pks, &stats) {
			stats.Interrupted = true
			break
		}

		logger.Info("batch done", "page", page+1, "stats", stats.String())
		query = query.Resume(pks[len(pks)-1])
	}

	logger.Info("batch run finished", "stats", stats.String())
	return stats, nil
}

// runPage processes one page and reports whether the run was interrupted.
func (o *Orchestrator) runPage(ctx context.Context, logger *slog.Logger, pks []string, stats *domain.RunStats) bool {
	for i, pk := range pks {
		if i > 0 {
			if err := o.pause(ctx, o.itemDelay); err != nil {
				return true
			}
		}

		err := o.acquireOne(ctx, pk)
		stats.Processed++
		if err == nil {
			stats.Succeeded++
			continue
		}

		stats.Failed++
		if IsInterrupted(err) && ctx.Err() != nil {
			return true
		}
		logger.Warn("document not acquired", "pk", pk, "error", err)
	}
	return false
}

func (o *Orchestrator) acquireOne(ctx context.Context, pk string) error {
	std, err := o.store.GetStandard(ctx, pk)
	if err != nil {
		return fmt.Errorf("resolve standard %s: %w", pk, err)
	}

	_, err = o.acquirer.AcquireWithRetry(ctx, std, o.maxRetries)
	return err
}

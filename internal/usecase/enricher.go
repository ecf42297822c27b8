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

// EnrichStore is the persistence the enrichment stage reads and writes.
type EnrichStore interface {
	ports.DetailInfoRepository
	ports.WorklistRepository
}

// Enricher fills DetailInfo for every standard that lacks one.
type Enricher struct {
	source     ports.DetailSource
	store      EnrichStore
	pageSize   int
	batchSize  int
	itemDelay  time.Duration
	batchDelay time.Duration
	pause      pause.Func
	logger     *slog.Logger
}

// NewEnricher constructs the enrichment stage; a nil pause uses a real sleep.
func NewEnricher(source ports.DetailSource, store EnrichStore, cfg config.EnrichConfig, p pause.Func, logger *slog.Logger) *Enricher {
	return &Enricher{
		source:     source,
		store:      store,
		pageSize:   positiveOr(cfg.PageSize, 1000),
		batchSize:  positiveOr(cfg.BatchSize, 10),
		itemDelay:  cfg.ItemDelay,
		batchDelay: cfg.BatchDelay,
		pause:      pause.OrSleep(p),
		logger:     loggerOrDiscard(logger),
	}
}

var detailWorklist = domain.WorklistQuery{Kind: domain.WorklistDetail}

// PKsNeedingEnrichment pages through standards without a DetailInfo row.
func (e *Enricher) PKsNeedingEnrichment(ctx context.Context, offset, limit int) ([]string, error) {
	return e.store.PendingPKs(ctx, detailWorklist, offset, limit)
}

// PKsNeedingEnrichmentCount counts standards without a DetailInfo row.
func (e *Enricher) PKsNeedingEnrichmentCount(ctx context.Context) (int64, error) {
	return e.store.CountPending(ctx, detailWorklist)
}

// EnrichOne fetches and extracts the detail page for pk. Failures are logged
// and reported as nil.
func (e *Enricher) EnrichOne(ctx context.Context, pk string) *domain.DetailInfo {
	info, err := e.source.FetchDetail(ctx, pk)
	if err != nil {
		e.logger.Warn("detail fetch failed", "pk", pk, "error", err)
		return nil
	}
	return &info
}

// EnrichBatch enriches pks one by one with the item delay and upserts the
// successful results in one call. It returns the number persisted; a
// cancelled delay stops the batch after persisting what was collected.
func (e *Enricher) EnrichBatch(ctx context.Context, pks []string) (int, error) {
	_, persisted, err := e.enrichBatch(ctx, pks)
	return persisted, err
}

func (e *Enricher) enrichBatch(ctx context.Context, pks []string) (attempted, persisted int, err error) {
	collected := make([]domain.DetailInfo, 0, len(pks))

	var interrupted error
	for i, pk := range pks {
		if i > 0 {
			if interrupted = e.pause(ctx, e.itemDelay); interrupted != nil {
				break
			}
		}
		attempted++

		if info := e.EnrichOne(ctx, pk); info != nil {
			collected = append(collected, *info)
		}
	}

	if len(collected) > 0 {
		persisted, err = e.store.UpsertDetailInfos(context.WithoutCancel(ctx), collected)
		if err != nil {
			return attempted, 0, fmt.Errorf("persist detail batch: %w", err)
		}
	}
	return attempted, persisted, interrupted
}

// EnrichAll drives the whole worklist in pages split into batches.
// Pages are re-queried from the store after a pk cursor, so pks that failed
// are not revisited within the run.
func (e *Enricher) EnrichAll(ctx context.Context) (domain.RunStats, error) {
	total, err := e.PKsNeedingEnrichmentCount(ctx)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("count enrichment worklist: %w", err)
	}

	stats := domain.RunStats{Total: total}
	e.logger.Info("enrichment started", "pending", total)

	query := detailWorklist
	first := true
	for {
		pks, err := e.store.PendingPKs(ctx, query, 0, e.pageSize)
		if err != nil {
			if first {
				return stats, fmt.Errorf("query enrichment worklist: %w", err)
			}
			e.logger.Error("enrichment worklist query failed", "error", err)
			break
		}
		if len(pks) == 0 {
			break
		}

		for start := 0; start < len(pks); start += e.batchSize {
			if !first {
				if err := e.pause(ctx, e.batchDelay); err != nil {
					stats.Interrupted = true
					return e.finish(stats), nil
				}
			}
			first = false

			batch := pks[start:min(start+e.batchSize, len(pks))]
			attempted, persisted, err := e.enrichBatch(ctx, batch)
			stats.Processed += attempted
			stats.Succeeded += persisted
			stats.Failed += attempted - persisted

			if IsInterrupted(err) {
				stats.Interrupted = true
				return e.finish(stats), nil
			}
			if err != nil {
				e.logger.Error("enrichment batch failed", "size", len(batch), "error", err)
			}
		}

		query = query.Resume(pks[len(pks)-1])
	}

	return e.finish(stats), nil
}

func (e *Enricher) finish(stats domain.RunStats) domain.RunStats {
	e.logger.Info("enrichment finished", "stats", stats.String())
	return stats
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

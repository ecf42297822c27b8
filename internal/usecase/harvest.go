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

// HarvestStore is the persistence the harvest stage writes to.
type HarvestStore interface {
	ports.CategoryRepository
	ports.StandardRepository
}

// HarvestDeps wires the listing adapters into the harvest stage.
type HarvestDeps struct {
	Categories ports.CategorySource
	Records    ports.RecordSource
	Store      HarvestStore
	Pause      pause.Func
	Logger     *slog.Logger
}

// Harvester crawls the category taxonomy and every category's listing.
type Harvester struct {
	categories    ports.CategorySource
	records       ports.RecordSource
	store         HarvestStore
	categoryDelay time.Duration
	pause         pause.Func
	logger        *slog.Logger
}

// NewHarvester constructs the harvest stage.
func NewHarvester(deps HarvestDeps, cfg config.HarvestConfig) *Harvester {
	return &Harvester{
		categories:    deps.Categories,
		records:       deps.Records,
		store:         deps.Store,
		categoryDelay: cfg.CategoryDelay,
		pause:         pause.OrSleep(deps.Pause),
		logger:        loggerOrDiscard(deps.Logger),
	}
}

// CrawlCategories harvests and upserts the taxonomy. It fails only when the
// listing page cannot be fetched or the store rejects the batch.
func (h *Harvester) CrawlCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := h.categories.HarvestCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("harvest categories: %w", err)
	}

	saved, err := h.store.UpsertCategories(ctx, categories)
	if err != nil {
		return nil, fmt.Errorf("persist categories: %w", err)
	}

	h.logger.Info("categories stored", "count", len(saved))
	return saved, nil
}

// CrawlRecords harvests the listing of every stored category, crawling the
// taxonomy first when none is stored yet. A category whose harvest fails is
// counted as failed; partial harvests are persisted.
func (h *Harvester) CrawlRecords(ctx context.Context) (domain.RunStats, error) {
	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("list categories: %w", err)
	}
	if len(categories) == 0 {
		if categories, err = h.CrawlCategories(ctx); err != nil {
			return domain.RunStats{}, err
		}
	}

	stats := domain.RunStats{Total: int64(len(categories))}
	stored := 0

	for i, category := range categories {
		if i > 0 {
			if err := h.pause(ctx, h.categoryDelay); err != nil {
				stats.Interrupted = true
				break
			}
		}

		standards, harvestErr := h.records.HarvestByCategory(ctx, category.Name)
		interrupted := IsInterrupted(harvestErr) && ctx.Err() != nil
		stats.Processed++

		if harvestErr != nil && len(standards) == 0 {
			stats.Failed++
			if interrupted {
				stats.Interrupted = true
				break
			}
			h.logger.Error("category harvest failed", "industry", category.Name, "error", harvestErr)
			continue
		}

		for j := range standards {
			standards[j].CategoryID = &category.ID
		}

		n, err := h.store.UpsertStandards(context.WithoutCancel(ctx), standards)
		if err != nil {
			stats.Failed++
			h.logger.Error("persist standards failed", "industry", category.Name, "error", err)
		} else {
			stats.Succeeded++
			stored += n
		}

		if interrupted {
			stats.Interrupted = true
			break
		}
	}

	h.logger.Info("records harvested", "stats", stats.String(), "stored", stored)
	return stats, nil
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

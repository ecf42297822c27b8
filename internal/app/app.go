package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/infrastructure/ocr"
	"StandardsCrawler/internal/infrastructure/registry"
	"StandardsCrawler/internal/infrastructure/scheduler"
	"StandardsCrawler/internal/infrastructure/storage"
	"StandardsCrawler/internal/infrastructure/telegram"
	"StandardsCrawler/internal/logging"
	"StandardsCrawler/internal/ports"
	"StandardsCrawler/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	harvester    *usecase.Harvester
	enricher     *usecase.Enricher
	orchestrator *usecase.Orchestrator
	notifier     ports.Notifier
	close        func() error
}

// New opens the configured store and builds the application on top of it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store   ports.Store
		closeFn = func() error { return nil }
	)
	switch cfg.Database.Driver {
	case "memory":
		store = storage.NewMemoryStore()
	default:
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		store = storage.NewPostgresRepository(db)
		closeFn = db.Close
	}

	application := NewWithStore(cfg, store, baseLogger)
	application.close = closeFn
	return application, nil
}

// NewWithStore builds the application around an existing store.
func NewWithStore(cfg config.Config, store ports.Store, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	client := registry.NewClient(cfg.Registry, nil, baseLogger.With("component", "registry"))
	records := registry.NewRecordHarvester(client, cfg.Harvest, nil, baseLogger.With("component", "listing"))

	harvester := usecase.NewHarvester(usecase.HarvestDeps{
		Categories: client,
		Records:    records,
		Store:      store,
		Logger:     baseLogger.With("component", "harvest"),
	}, cfg.Harvest)

	enricher := usecase.NewEnricher(client, store, cfg.Enrich, nil, baseLogger.With("component", "enrich"))

	acquirer := usecase.NewAcquirer(usecase.AcquirerDeps{
		Portal:    client,
		Solver:    ocr.NewClient(cfg.OCR),
		Downloads: store,
		Logger:    baseLogger.With("component", "acquire"),
	}, cfg.Download)

	orchestrator := usecase.NewOrchestrator(store, acquirer, cfg.Download, nil, baseLogger.With("component", "download"))

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Enabled() {
		notifier = tg
	}

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		harvester:    harvester,
		enricher:     enricher,
		orchestrator: orchestrator,
		notifier:     notifier,
		close:        func() error { return nil },
	}
}

// CrawlAllCategories harvests and stores the category taxonomy.
func (a *Application) CrawlAllCategories(ctx context.Context) string {
	categories, err := a.harvester.CrawlCategories(ctx)
	if err != nil {
		return a.report(ctx, "categories", "failed: "+err.Error())
	}
	return a.report(ctx, "categories", fmt.Sprintf("completed: stored %d categories", len(categories)))
}

// CrawlAllRecords harvests every category's listing.
func (a *Application) CrawlAllRecords(ctx context.Context) string {
	return a.reportStats(ctx, "records", a.harvester.CrawlRecords)
}

// EnrichAllDetails fills detail info for every standard lacking it.
func (a *Application) EnrichAllDetails(ctx context.Context) string {
	return a.reportStats(ctx, "details", a.enricher.EnrichAll)
}

// DownloadAllDocuments acquires documents never attempted before.
func (a *Application) DownloadAllDocuments(ctx context.Context) string {
	return a.reportStats(ctx, "download", a.orchestrator.DownloadAll)
}

// RetryFailedDownloads re-attempts unfinished downloads under the retry limit.
func (a *Application) RetryFailedDownloads(ctx context.Context) string {
	return a.reportStats(ctx, "retry", a.orchestrator.RetryFailed)
}

// Serve runs the configured stages on their cron schedules until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	cfg := a.cfg.Scheduler
	driver := scheduler.NewCronScheduler(cfg.Location(), a.logger.With("component", "cron"))

	sched := usecase.NewScheduler(driver, a.logger.With("component", "scheduler"),
		usecase.Job{Name: "crawl", Spec: cfg.Crawl, Run: func(ctx context.Context) string {
			if summary := a.CrawlAllCategories(ctx); ctx.Err() != nil {
				return summary
			}
			return a.CrawlAllRecords(ctx)
		}},
		usecase.Job{Name: "enrich", Spec: cfg.Enrich, Run: a.EnrichAllDetails},
		usecase.Job{Name: "download", Spec: cfg.Download, Run: a.DownloadAllDocuments},
		usecase.Job{Name: "retry", Spec: cfg.Retry, Run: a.RetryFailedDownloads},
	)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("serving schedules", "timezone", cfg.Location().String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases the store connection.
func (a *Application) Close() error {
	return a.close()
}

func (a *Application) reportStats(ctx context.Context, stage string, run func(context.Context) (domain.RunStats, error)) string {
	stats, err := run(ctx)
	if err != nil {
		return a.report(ctx, stage, "failed: "+err.Error())
	}
	return a.report(ctx, stage, stats.String())
}

// report logs the summary and forwards it to the notifier when one is configured.
func (a *Application) report(ctx context.Context, stage, outcome string) string {
	summary := stage + " " + outcome
	a.logger.Info("stage finished", "stage", stage, "summary", summary)

	if a.notifier != nil {
		if err := a.notifier.PublishSummary(context.WithoutCancel(ctx), summary); err != nil {
			a.logger.Warn("summary notification failed", "stage", stage, "error", err)
		}
	}
	return summary
}

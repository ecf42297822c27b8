package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"StandardsCrawler/internal/ports"
)

// CronScheduler runs named jobs on cron expressions. Jobs receive a context
// that is cancelled when the scheduler stops.
type CronScheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
// Expressions take five fields, an optional leading seconds field, or a descriptor such as @daily.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	adapter := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		parser:  parser,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers job under name, replacing an earlier job with the same name.
func (c *CronScheduler) Schedule(name, spec string, job func(ctx context.Context)) error {
	if job == nil {
		return fmt.Errorf("job %s: nil func", name)
	}
	if _, err := c.parser.Parse(spec); err != nil {
		return fmt.Errorf("job %s: invalid cron expression %q: %w", name, spec, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.entries[name]; ok {
		c.cron.Remove(id)
	}

	id, err := c.cron.AddFunc(spec, func() {
		c.logger.Info("job triggered", "job", name)
		job(c.runContext())
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	c.entries[name] = id
	return nil
}

// Start begins evaluating schedules. Cancelling ctx cancels running jobs
// but does not stop the scheduler; call Stop for that.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(ctx)
	jobs := len(c.entries)
	c.mu.Unlock()

	c.cron.Start()
	c.logger.Info("scheduler started", "jobs", jobs)
	return nil
}

// Stop halts scheduling, cancels running jobs and waits for them or ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

func (c *CronScheduler) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

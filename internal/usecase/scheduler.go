package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"StandardsCrawler/internal/ports"
)

// Job is one schedulable stage. Run returns the stage's summary line.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) string
}

// Scheduler wires the cron driver with the stage jobs. Only one stage runs at
// a time; a trigger that fires while another stage is busy is skipped.
type Scheduler struct {
	driver ports.Scheduler
	jobs   []Job
	logger *slog.Logger
	busy   sync.Mutex
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{driver: driver, jobs: jobs, logger: loggerOrDiscard(logger)}
}

// Start registers every job with a cron expression and starts the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	registered := 0
	for _, job := range s.jobs {
		if job.Spec == "" || job.Run == nil {
			continue
		}
		if err := s.driver.Schedule(job.Name, job.Spec, s.guard(job)); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		registered++
		s.logger.Info("job scheduled", "job", job.Name, "spec", job.Spec)
	}
	if registered == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) guard(job Job) func(context.Context) {
	return func(ctx context.Context) {
		if !s.busy.TryLock() {
			s.logger.Warn("job skipped, another stage is running", "job", job.Name)
			return
		}
		defer s.busy.Unlock()

		summary := job.Run(ctx)
		s.logger.Info("job finished", "job", job.Name, "summary", summary)
	}
}

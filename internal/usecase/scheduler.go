package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kakmul/ufcserver/internal/ports"
)

// Scheduler repeats pipeline runs on a scheduling driver.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     RunOptions
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts RunOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts, logger: logger.With("component", "scheduler")}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run started", "trigger", trigger.Format(time.RFC3339))
		stats, err := s.pipeline.Run(ctx, s.opts)
		if err != nil {
			s.logger.Warn("scheduled run stopped", "error", err, "items", stats.Items)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

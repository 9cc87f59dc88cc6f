package usecase

import (
	"context"
	"log/slog"
	"time"

	"ThreatScanner/internal/ports"
)

// Scheduler connects the daily trigger to the pipeline. Each trigger
// processes the previous calendar day, the most recent one the feeds have
// fully collected.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring batch run.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the batch job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		day := trigger.AddDate(0, 0, -1)
		if s.logger != nil {
			s.logger.Info("scheduled run starting", "day", day.Format("2006-01-02"))
		}
		if err := s.pipeline.ProcessDay(ctx, day); err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "day", day.Format("2006-01-02"), "error", err)
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

package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// ScheduleConfig holds the cron specs and the subscriber list of the batch job.
type ScheduleConfig struct {
	RefreshSpec   string
	DigestSpec    string
	Subscriptions []domain.DigestRequest
}

// Scheduler wires the cron driver with the refresh and digest batch jobs.
type Scheduler struct {
	driver    ports.Scheduler
	refresher *Refresher
	batch     *Batch
	guard     *JobGuard
	cfg       ScheduleConfig
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, refresher *Refresher, batch *Batch, guard *JobGuard, cfg ScheduleConfig, logger *slog.Logger) *Scheduler {
	if guard == nil {
		guard = NewJobGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:    driver,
		refresher: refresher,
		batch:     batch,
		guard:     guard,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers both jobs with the driver and starts it. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	if s.refresher != nil && s.cfg.RefreshSpec != "" {
		if err := s.driver.Add(s.cfg.RefreshSpec, func() { s.refreshJob(ctx) }); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
	}
	if s.batch != nil && s.cfg.DigestSpec != "" {
		if err := s.driver.Add(s.cfg.DigestSpec, func() { s.digestJob(ctx) }); err != nil {
			return fmt.Errorf("schedule digests: %w", err)
		}
	}

	s.driver.Start()
	s.logger.Info("scheduler started", "refresh", s.cfg.RefreshSpec, "digest", s.cfg.DigestSpec, "subscribers", len(s.cfg.Subscriptions))
	return nil
}

func (s *Scheduler) refreshJob(ctx context.Context) {
	if err := s.RefreshNow(ctx); err != nil {
		s.logger.Warn("scheduled refresh did not complete", "error", err)
	}
}

func (s *Scheduler) digestJob(ctx context.Context) {
	if _, err := s.DigestNow(ctx); err != nil {
		s.logger.Warn("scheduled digest batch did not start", "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// RefreshNow runs the index refresh under the job guard.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	if err := s.guard.Acquire(ctx); err != nil {
		return err
	}
	defer s.guard.Release()

	_, err := s.refresher.Refresh(ctx)
	return err
}

// DigestNow runs the subscriber batch under the job guard.
func (s *Scheduler) DigestNow(ctx context.Context) (BatchReport, error) {
	if len(s.cfg.Subscriptions) == 0 {
		s.logger.Info("no subscriptions configured, skipping digest batch")
		return BatchReport{}, nil
	}
	if err := s.guard.Acquire(ctx); err != nil {
		return BatchReport{}, err
	}
	defer s.guard.Release()

	return s.batch.RunAll(ctx, s.cfg.Subscriptions), nil
}

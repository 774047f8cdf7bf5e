// Package scheduler triggers archive refreshes on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/pipeline"
	"github.com/go-co-op/gocron"
)

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) (pipeline.RefreshResult, error)
}

// Scheduler periodically refreshes the archive. The first run starts as soon
// as the scheduler is started; overlapping runs are skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler that calls refresher every interval.
func New(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels an in-flight refresh and stops future runs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}

	// A run may use the whole interval but no more.
	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	s.logger.Debug("scheduled refresh starting")
	if _, err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", "error", err)
	}
}

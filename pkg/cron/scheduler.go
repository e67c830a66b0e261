// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	batchservice "github.com/FACorreiaa/batchdesk/internal/domain/batch/service"
	"github.com/FACorreiaa/batchdesk/pkg/backend"
)

// DashboardRefresher reloads the dashboard snapshot
type DashboardRefresher interface {
	RefreshDashboard(ctx context.Context) (*batchservice.Dashboard, error)
}

// Config configures the scheduler
type Config struct {
	// Interval between dashboard refreshes; <= 0 disables the job
	Interval time.Duration
	// Token is the bearer token used for scheduled backend calls
	Token   string
	Timeout time.Duration
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	cfg       Config
	refresher DashboardRefresher
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(cfg Config, refresher DashboardRefresher, logger *slog.Logger) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		refresher: refresher,
		logger:    logger,
	}
}

// Start registers the jobs and begins running them.
func (s *Scheduler) Start() error {
	if s.cfg.Interval > 0 {
		spec := fmt.Sprintf("@every %s", s.cfg.Interval)
		if _, err := s.cron.AddFunc(spec, s.refreshDashboard); err != nil {
			return fmt.Errorf("failed to schedule dashboard refresh: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow refreshes the dashboard synchronously, e.g. to warm the snapshot at startup.
func (s *Scheduler) RunNow() {
	s.refreshDashboard()
}

func (s *Scheduler) refreshDashboard() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if s.cfg.Token != "" {
		ctx = backend.WithToken(ctx, s.cfg.Token)
	}

	start := time.Now()
	dashboard, err := s.refresher.RefreshDashboard(ctx)
	if err != nil {
		s.logger.Warn("dashboard refresh failed", slog.Any("error", err))
		return
	}

	batches := 0
	if dashboard != nil && dashboard.Stats != nil {
		batches = dashboard.Stats.TotalBatches
	}
	s.logger.Debug("dashboard refreshed",
		slog.Int("batches", batches),
		slog.Duration("elapsed", time.Since(start)),
	)
}

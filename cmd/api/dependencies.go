package api

import (
	"fmt"
	"log/slog"

	batchhandler "github.com/FACorreiaa/batchdesk/internal/domain/batch/handler"
	batchrepo "github.com/FACorreiaa/batchdesk/internal/domain/batch/repository"
	batchservice "github.com/FACorreiaa/batchdesk/internal/domain/batch/service"
	importhandler "github.com/FACorreiaa/batchdesk/internal/domain/import/handler"
	"github.com/FACorreiaa/batchdesk/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/batchdesk/internal/domain/import/service"

	"github.com/FACorreiaa/batchdesk/pkg/backend"
	"github.com/FACorreiaa/batchdesk/pkg/config"
	"github.com/FACorreiaa/batchdesk/pkg/cron"
	"github.com/FACorreiaa/batchdesk/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Backend *backend.Client

	// Repositories
	BatchRepo batchrepo.BatchRepository

	// Services
	ImportService *importservice.ImportService
	BatchService  *batchservice.Service
	Scheduler     *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
	BatchHandler  *batchhandler.BatchHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	if err := deps.initBackend(); err != nil {
		return nil, fmt.Errorf("failed to init backend client: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initBackend creates the client for the batch API
func (d *Dependencies) initBackend() error {
	client, err := backend.NewClient(backend.Config{
		BaseURL:           d.Config.Backend.BaseURL,
		Timeout:           d.Config.Backend.Timeout,
		RequestsPerSecond: d.Config.Backend.RequestsPerSecond,
		Burst:             d.Config.Backend.Burst,
		RetryAttempts:     uint64(d.Config.Backend.RetryAttempts),
	}, d.Logger)
	if err != nil {
		return err
	}

	d.Backend = client.WithMetrics(d.Metrics)
	d.Logger.Info("backend client configured", slog.String("base_url", d.Config.Backend.BaseURL))
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.BatchRepo = batchrepo.NewHTTPBatchRepository(d.Backend)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	rule := normalizer.CodeRule{MaxLength: d.Config.Import.MaxCodeLength}

	d.ImportService = importservice.NewImportService(importservice.Config{
		MaxFileSize: d.Config.Import.MaxFileSize,
		Rule:        rule,
	}, d.Logger).WithMetrics(d.Metrics)

	// Snapshots only come from the service-token refresher
	maxAge := d.Config.Dashboard.MaxAge
	if d.Config.Backend.ServiceToken == "" {
		maxAge = 0
	}

	// Batch store codes are checked with the same rule as uploaded ones
	d.BatchService = batchservice.NewService(d.BatchRepo, rule, maxAge, d.Logger)

	d.Scheduler = cron.NewScheduler(cron.Config{
		Interval: d.Config.Dashboard.RefreshInterval,
		Token:    d.Config.Backend.ServiceToken,
		Timeout:  d.Config.Backend.Timeout,
	}, d.BatchService, d.Logger)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.BatchHandler = batchhandler.NewBatchHandler(d.BatchService, d.Logger).
		WithImporter(d.ImportService)

	d.Logger.Info("handlers initialized")
}

// Cleanup stops background jobs and waits for running ones
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	d.Logger.Info("cleanup completed")
}

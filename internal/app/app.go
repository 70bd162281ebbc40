package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/ingest"
	"github.com/ternarybob/logalert/internal/ingest/eventlog"
	"github.com/ternarybob/logalert/internal/ingest/macos"
	"github.com/ternarybob/logalert/internal/ingest/syslog"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/services/alerts"
	"github.com/ternarybob/logalert/internal/services/ingestion"
	"github.com/ternarybob/logalert/internal/services/scheduler"
	"github.com/ternarybob/logalert/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Registry         *ingest.Registry
	Source           interfaces.LogSource
	AlertService     interfaces.AlertService
	Coordinator      *ingestion.Coordinator
	SchedulerService interfaces.SchedulerService // nil when retention is disabled
}

// New wires storage, the selected log source, the rule engine and the coordinator
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: NewRegistry(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("backend", app.Source.Name()).
		Bool("retention_enabled", cfg.Retention.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// NewRegistry returns a registry with every built-in backend
func NewRegistry() *ingest.Registry {
	registry := ingest.NewRegistry()
	registry.Register(ingest.BackendWindows, eventlog.NewFromConfig)
	registry.Register(ingest.BackendSyslog, syslog.NewFromConfig)
	registry.Register(ingest.BackendMacOS, macos.NewFromConfig)
	return registry
}

// initDatabase initializes the storage layer (Badger) and seeds alert rules
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	// Rule file problems are not fatal: rules already in storage stay active
	count, err := a.StorageManager.LoadRulesFromFile(context.Background(), a.Config.Rules.File)
	if err != nil {
		a.Logger.Warn().Err(err).Str("file", a.Config.Rules.File).Msg("Failed to load alert rules from file")
	} else if count > 0 {
		a.Logger.Info().Int("count", count).Str("file", a.Config.Rules.File).Msg("Alert rules loaded")
	}

	return nil
}

// initServices creates the source, rule engine, coordinator and optional retention scheduler
func (a *App) initServices() error {
	source, err := a.Registry.Create(a.Config.Ingest.Backend, a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.Source = source

	a.AlertService = alerts.NewService(
		a.StorageManager.AlertRuleStorage(),
		a.StorageManager.AlertStorage(),
		a.Logger,
	)

	a.Coordinator = ingestion.NewCoordinator(
		a.Source,
		a.StorageManager.LogRecordStorage(),
		a.AlertService,
		a.Config.Ingest.PollInterval(),
		a.Logger,
	)

	if a.Config.Retention.Enabled {
		a.SchedulerService = scheduler.NewService(
			a.StorageManager.LogRecordStorage(),
			a.StorageManager.AlertStorage(),
			a.Config.Retention,
			a.Logger,
		)
	}

	return nil
}

// Start launches the coordinator and the retention scheduler. It returns immediately.
func (a *App) Start(ctx context.Context) error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
	}

	if err := a.Coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingestion: %w", err)
	}
	return nil
}

// Close stops background work, then releases the source and storage
func (a *App) Close() error {
	if a.Coordinator != nil {
		a.Coordinator.Stop()
		a.Logger.Info().Msg("Ingestion coordinator stopped")
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop retention scheduler")
		}
	}

	if closer, ok := a.Source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close log source")
		}
	}

	return a.closeStorage()
}

func (a *App) closeStorage() error {
	if a.StorageManager == nil {
		return nil
	}
	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	a.StorageManager = nil
	a.Logger.Info().Msg("Storage closed")
	return nil
}

// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/regharvest/regharvest/internal/checkpoint"
	"github.com/regharvest/regharvest/internal/clock/system"
	"github.com/regharvest/regharvest/internal/config"
	"github.com/regharvest/regharvest/internal/export"
	exportgcs "github.com/regharvest/regharvest/internal/export/gcs"
	exportlocal "github.com/regharvest/regharvest/internal/export/local"
	"github.com/regharvest/regharvest/internal/extraction"
	"github.com/regharvest/regharvest/internal/logging"
	"github.com/regharvest/regharvest/internal/metrics"
	pubsubpublisher "github.com/regharvest/regharvest/internal/publisher/pubsub"
	"github.com/regharvest/regharvest/internal/registry"
	"github.com/regharvest/regharvest/internal/search"
	"github.com/regharvest/regharvest/internal/storage/postgres"
	"github.com/regharvest/regharvest/internal/throttle"
)

// App holds the shared, long-lived services for the harvester. It is built
// once at startup and handed to the subcommands through the command context.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	store     *checkpoint.Store
	records   *postgres.RecordStore
	publisher *pubsubpublisher.Publisher
	gcs       *gcsclient.Client
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger { return a.logger }

// Metrics returns the process metrics registry.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Checkpoint returns the loaded checkpoint store.
func (a *App) Checkpoint() *checkpoint.Store { return a.store }

// RecordStore returns the Postgres sink, or nil when the database is
// disabled.
func (a *App) RecordStore() extraction.RecordStore {
	if a.records == nil {
		return nil
	}
	return a.records
}

// EventPublisher returns the Pub/Sub publisher, or nil when disabled.
func (a *App) EventPublisher() extraction.EventPublisher {
	if a.publisher == nil {
		return nil
	}
	return a.publisher
}

// New builds the App from configuration. It fails fast if any enabled
// service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	store, err := checkpoint.Open(checkpoint.Config{
		Dir:             cfg.Checkpoint.Dir,
		SaveInterval:    cfg.Checkpoint.SaveInterval,
		CombinationMode: cfg.Discovery.Mode == string(search.ModeMultiDimensional),
	}, logger.Named("checkpoint"))
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	a.store = store

	if cfg.DB.Enabled {
		logger.Info("connecting to postgres", zap.String("table", cfg.DB.Table))
		records, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:   cfg.DB.DSN,
			Table: cfg.DB.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("init record store: %w", err)
		}
		a.records = records
	}

	if cfg.PubSub.Enabled {
		logger.Info("connecting to pub/sub", zap.String("topic", cfg.PubSub.Topic))
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.publisher = pub
	}

	return a, nil
}

// ThrottleController builds a pacing controller from the throttle config.
func (a *App) ThrottleController() *throttle.Controller {
	t := a.cfg.Throttle
	return throttle.NewWithClock(throttle.Config{
		BaseDelay:      time.Duration(t.BaseDelaySeconds) * time.Second,
		FailureStep:    time.Duration(t.FailureStepSeconds) * time.Second,
		Jitter:         time.Duration(t.JitterSeconds) * time.Second,
		MinDelay:       time.Duration(t.MinDelaySeconds) * time.Second,
		ShortThreshold: t.ShortThreshold,
		ShortCooldown:  time.Duration(t.ShortCooldownMinutes) * time.Minute,
		LongThreshold:  t.LongThreshold,
		LongCooldown:   time.Duration(t.LongCooldownMinutes) * time.Minute,
	}, system.New(), throttle.SystemSleeper())
}

// Strategy builds the search strategy for the given mode, falling back to
// the configured mode when mode is empty. Zero option fields pick up config
// defaults.
func (a *App) Strategy(mode string, opts search.Options) (search.Strategy, error) {
	if mode == "" {
		mode = a.cfg.Discovery.Mode
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = a.cfg.Discovery.MaxDepth
	}
	if opts.PageLimit == 0 {
		opts.PageLimit = a.cfg.Discovery.PageLimit
	}
	strategy, err := search.New(search.Mode(mode), opts)
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}
	return strategy, nil
}

// SearchDriver builds the headless search driver.
func (a *App) SearchDriver() (*registry.Driver, error) {
	ua := ""
	if len(a.cfg.Registry.UserAgents) > 0 {
		ua = a.cfg.Registry.UserAgents[0]
	}
	driver, err := registry.NewDriver(registry.DriverConfig{
		SearchURL:         a.cfg.Registry.SearchURL,
		UserAgent:         ua,
		NavigationTimeout: time.Duration(a.cfg.Registry.NavTimeoutSeconds) * time.Second,
	}, a.logger.Named("driver"))
	if err != nil {
		return nil, fmt.Errorf("init search driver: %w", err)
	}
	return driver, nil
}

// DetailFetcher builds the detail page fetcher.
func (a *App) DetailFetcher() *registry.Fetcher {
	return registry.NewFetcher(registry.FetcherConfig{
		BaseURL:     a.cfg.Registry.BaseURL,
		DetailPath:  a.cfg.Registry.DetailPath,
		Timeout:     time.Duration(a.cfg.Registry.TimeoutSeconds) * time.Second,
		UserAgents:  a.cfg.Registry.UserAgents,
		RotateEvery: a.cfg.Registry.RotateEvery,
	})
}

// BlobStore builds the export backend selected by config.
func (a *App) BlobStore(ctx context.Context) (export.BlobStore, error) {
	switch a.cfg.Export.Backend {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcs = client
		return exportgcs.New(client, a.cfg.Export.GCSBucket)
	case "local":
		return exportlocal.New(a.cfg.Export.LocalDir)
	default:
		return nil, fmt.Errorf("unknown export backend: %s", a.cfg.Export.Backend)
	}
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("error closing checkpoint store", zap.Error(err))
		}
	}
	if a.records != nil {
		a.records.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	_ = a.logger.Sync() //nolint:errcheck // best-effort flush
}

// Package cmd defines and implements the CLI commands for the regharvest
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regharvest/regharvest/internal/app"
	"github.com/regharvest/regharvest/internal/checkpoint"
	"github.com/regharvest/regharvest/internal/config"
	"github.com/regharvest/regharvest/internal/export"
	"github.com/regharvest/regharvest/internal/extraction"
	"github.com/regharvest/regharvest/internal/metrics"
	"github.com/regharvest/regharvest/internal/registry"
	"github.com/regharvest/regharvest/internal/search"
	"github.com/regharvest/regharvest/internal/throttle"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface the commands use. An interface so
// tests can inject a mock container.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Metrics() *metrics.Metrics
	Checkpoint() *checkpoint.Store
	RecordStore() extraction.RecordStore
	EventPublisher() extraction.EventPublisher
	ThrottleController() *throttle.Controller
	Strategy(mode string, opts search.Options) (search.Strategy, error)
	SearchDriver() (*registry.Driver, error)
	DetailFetcher() *registry.Fetcher
	BlobStore(ctx context.Context) (export.BlobStore, error)
}

// newApp is the application factory. A variable so tests can replace it
// with a mock factory.
var newApp func(ctx context.Context, cfgPath string) (App, error) = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regharvest",
		Short: "Harvests the public practitioner register.",
		Long: `regharvest walks a public practitioner register in two resumable
phases: discovery enumerates registration IDs through the register's search
interface, and extraction fetches each practitioner's detail page. Progress
is checkpointed so an interrupted run picks up where it left off.`,

		// Runs after flag parsing but before the subcommand's RunE; builds
		// and injects the service container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml via env overrides)")

	cmd.AddCommand(
		newDiscoverCmd(),
		newExtractCmd(),
		newStatusCmd(),
		newResetCmd(),
		newExportCmd(),
		newServeCmd(),
	)

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so in-flight phases checkpoint and exit cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "regharvest: %v\n", err)
		os.Exit(1)
	}
}

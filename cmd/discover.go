package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regharvest/regharvest/internal/discovery"
	"github.com/regharvest/regharvest/internal/search"
)

// newDiscoverCmd creates the 'discover' subcommand, which walks the search
// interface to enumerate registration IDs.
func newDiscoverCmd() *cobra.Command {
	var (
		mode           string
		maxDepth       int
		includeSuburbs bool
		testPrefix     string
		resume         bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Enumerate registration IDs through the register's search",
		Long: `Works through search units produced by the configured strategy,
recording every registration ID found. The run is resumable: completed
units and discovered IDs are checkpointed, and a re-run skips them.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !resume {
				// Reset archives the old files rather than deleting them.
				if err := appInstance.Checkpoint().Reset(); err != nil {
					return fmt.Errorf("reset checkpoint for fresh run: %w", err)
				}
			}
			return runDiscover(cmd.Context(), appInstance, mode, search.Options{
				MaxDepth:       maxDepth,
				IncludeSuburbs: includeSuburbs,
				TestPrefix:     testPrefix,
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "search strategy: adaptive, comprehensive, or multi (default from config)")
	cmd.Flags().IntVar(&maxDepth, "depth", 0, "maximum prefix depth (default from config)")
	cmd.Flags().BoolVar(&includeSuburbs, "include-suburbs", false, "add suburb units for high-volume states in multi mode")
	cmd.Flags().StringVar(&testPrefix, "test-prefix", "", "restrict enumeration to a single prefix for a dry run")
	cmd.Flags().BoolVar(&resume, "resume", true, "resume from the existing checkpoint; --resume=false archives it and starts fresh")

	return cmd
}

func runDiscover(ctx context.Context, appInstance App, mode string, opts search.Options) error {
	cfg := appInstance.Config()
	log := appInstance.Logger()

	if !opts.IncludeSuburbs {
		opts.IncludeSuburbs = cfg.Discovery.IncludeSuburbs
	}
	strategy, err := appInstance.Strategy(mode, opts)
	if err != nil {
		return err
	}
	driver, err := appInstance.SearchDriver()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			log.Warn("failed to close search driver", zap.Error(cerr))
		}
	}()

	if mode == "" {
		mode = cfg.Discovery.Mode
	}
	orch := discovery.New(
		discovery.Config{
			PaginationLimit: cfg.Discovery.PaginationLimit,
			MaxRetries:      cfg.Discovery.MaxRetries,
			RetryDelay:      cfg.RetryDelay(),
			SaveEveryUnit:   mode == string(search.ModeMultiDimensional),
		},
		driver,
		appInstance.Checkpoint(),
		strategy,
		appInstance.ThrottleController(),
		appInstance.Metrics(),
		log,
	)

	res, err := orch.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run discovery: %w", err)
	}

	log.Info("discovery finished",
		zap.Int("new_ids", res.NewIDs),
		zap.Int("completed_units", res.CompletedUnits),
		zap.Int("retried_units", res.RetriedUnits),
		zap.Int("abandoned_units", res.AbandonedUnits))
	return discoveryOutcome(res)
}

// discoveryOutcome makes a run with abandoned units exit non-zero so an
// incomplete sweep is visible to whatever scheduled it.
func discoveryOutcome(res discovery.Result) error {
	if res.AbandonedUnits > 0 {
		return fmt.Errorf("discovery incomplete: %d unit(s) abandoned after retries", res.AbandonedUnits)
	}
	return nil
}

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regharvest/regharvest/internal/export"
)

// newExportCmd creates the 'export' subcommand, which uploads run artifacts
// to the configured blob backend.
func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Upload checkpoint and output files to blob storage",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			log := appInstance.Logger()

			store, err := appInstance.BlobStore(cmd.Context())
			if err != nil {
				return err
			}

			// A sorted flat ID list is regenerated each export for easy diffing.
			idsPath := filepath.Join(cfg.Checkpoint.Dir, "reg_ids_sorted.txt")
			if err := export.WriteSortedIDs(idsPath, appInstance.Checkpoint().Discovered()); err != nil {
				return fmt.Errorf("write sorted ids: %w", err)
			}

			prefix := fmt.Sprintf("%s/%s", cfg.Export.Prefix, time.Now().UTC().Format("2006-01-02T150405Z"))
			paths := []string{
				filepath.Join(cfg.Checkpoint.Dir, "checkpoint.json"),
				filepath.Join(cfg.Checkpoint.Dir, "discovered_ids.json"),
				filepath.Join(cfg.Checkpoint.Dir, "discovered_ids.json.journal"),
				idsPath,
				cfg.Extraction.CSVPath,
				cfg.Extraction.BackupPath,
			}

			uris, err := export.New(store, log).Export(cmd.Context(), prefix, paths)
			if err != nil {
				return fmt.Errorf("export artifacts: %w", err)
			}
			log.Info("export finished", zap.Int("uploaded", len(uris)), zap.Strings("uris", uris))
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newResetCmd creates the 'reset' subcommand, which archives the current
// checkpoint files and starts fresh.
func newResetCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Archive checkpoint files and start fresh",
		Long: `Moves the current checkpoint files into a timestamped archive
subdirectory and reinitializes empty state. The archived files are kept, so
a reset is recoverable by hand.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !confirm {
				return fmt.Errorf("reset discards run progress; pass --confirm to proceed")
			}

			if err := appInstance.Checkpoint().Reset(); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
			appInstance.Logger().Info("checkpoint reset",
				zap.String("dir", appInstance.Config().Checkpoint.Dir))
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the reset")

	return cmd
}

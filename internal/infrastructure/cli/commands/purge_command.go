package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/gitscope/internal/app"
)

// NewPurgeCommand creates the purge command
func NewPurgeCommand(container *app.Container) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete stored exploration records older than a cutoff",
		Long:  "Deletes exploration records whose most recent run predates the cutoff. Snapshots are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAgeHours <= 0 {
				return fmt.Errorf("--max-age-hours must be > 0")
			}
			removed, err := container.Store.PurgeOlderThan(time.Duration(maxAgeHours) * time.Hour)
			if err != nil {
				return fmt.Errorf("failed to purge exploration records: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d exploration record(s).\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age-hours", DefaultPurgeMaxAgeHours, "Purge records older than this many hours")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"case-price-watcher/internal/app"
)

var (
	cleanupDays int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete price samples older than the retention horizon",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CleanupOptions{
			Days: cleanupDays,
		}

		return getApp().Cleanup(cmd.Context(), opts)
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention horizon in days (defaults to config)")
}

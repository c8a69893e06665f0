package cli

import (
	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild every item's statistics from stored samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Recompute(cmd.Context())
	},
}

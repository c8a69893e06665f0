package cli

import (
	"github.com/spf13/cobra"

	"case-price-watcher/internal/app"
)

var (
	digestPeriod int
	digestLimit  int
	digestNotify bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the market digest (overview, movers, volatility)",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.DigestOptions{
			Period: digestPeriod,
			Limit:  digestLimit,
			Notify: digestNotify,
		}

		return getApp().Digest(cmd.Context(), opts)
	},
}

func init() {
	digestCmd.Flags().IntVar(&digestPeriod, "period", 1, "Mover lookback period in days (1, 7, or 30)")
	digestCmd.Flags().IntVar(&digestLimit, "limit", 5, "Entries per ranking")
	digestCmd.Flags().BoolVar(&digestNotify, "notify", false, "Also push the digest through alert channels")
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	trendItem   string
	trendWindow int

	correlateItemA  string
	correlateItemB  string
	correlateWindow int
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Classify one item's price trend over a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trendItem == "" {
			return errors.New("--item must be provided")
		}
		if trendWindow <= 0 {
			return errors.New("--window must be greater than zero")
		}

		return getApp().Trend(cmd.Context(), trendItem, trendWindow)
	},
}

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Compute the price correlation of two items",
	RunE: func(cmd *cobra.Command, args []string) error {
		if correlateItemA == "" || correlateItemB == "" {
			return errors.New("--item-a and --item-b must be provided")
		}
		if correlateWindow <= 0 {
			return errors.New("--window must be greater than zero")
		}

		return getApp().Correlate(cmd.Context(), correlateItemA, correlateItemB, correlateWindow)
	},
}

func init() {
	trendCmd.Flags().StringVar(&trendItem, "item", "", "Item name")
	trendCmd.Flags().IntVar(&trendWindow, "window", 7, "Window in days")

	correlateCmd.Flags().StringVar(&correlateItemA, "item-a", "", "First item name")
	correlateCmd.Flags().StringVar(&correlateItemB, "item-b", "", "Second item name")
	correlateCmd.Flags().IntVar(&correlateWindow, "window", 30, "Window in days")
}

package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateItem     string
	simulateCurrent  float64
	simulateChange24 float64
	simulateChange7  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate synthetic price changes and push resulting alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateItem == "" {
			return errors.New("--item must be provided")
		}
		if simulateCurrent <= 0 {
			return errors.New("--current must be greater than 0")
		}

		current := decimal.NewFromFloat(simulateCurrent)
		change24 := decimal.NewFromFloat(simulateChange24)
		change7 := decimal.NewFromFloat(simulateChange7)
		return getApp().SimulateAlert(cmd.Context(), simulateItem, current, change24, change7)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateItem, "item", "", "Item name to report in the alert")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "Current price")
	simulateCmd.Flags().Float64Var(&simulateChange24, "change-24h", 0, "Simulated 24h change in percent")
	simulateCmd.Flags().Float64Var(&simulateChange7, "change-7d", 0, "Simulated 7d change in percent")
}

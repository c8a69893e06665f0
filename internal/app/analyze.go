package app

import (
	"context"
	"fmt"
	"os"

	"case-price-watcher/internal/analytics"
)

// Trend classifies one item's price movement over a window and prints the result.
func (a *App) Trend(ctx context.Context, itemName string, windowDays int) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	item, err := store.GetItemByName(ctx, itemName)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("unknown item %q", itemName)
	}

	engine := analytics.NewEngine(store, store, store, a.Logger)
	trend, err := engine.PriceTrend(ctx, item.ID, windowDays)
	if err != nil {
		return err
	}

	if trend.Direction == analytics.TrendInsufficient {
		fmt.Fprintf(os.Stdout, "%s: insufficient data (%d samples)\n", item.Name, trend.DataPoints)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%s: %s (strength %.2f%%)\n", item.Name, trend.Direction, trend.Strength)
	fmt.Fprintf(os.Stdout, "current %.2f, range %.2f - %.2f, volatility %.2f, samples %d\n",
		trend.Current, trend.MinPrice, trend.MaxPrice, trend.Volatility, trend.DataPoints)
	return nil
}

// Correlate computes the Pearson correlation of two items' daily prices and
// prints the coefficient with its interpretation.
func (a *App) Correlate(ctx context.Context, nameA, nameB string, windowDays int) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	itemA, err := store.GetItemByName(ctx, nameA)
	if err != nil {
		return err
	}
	if itemA == nil {
		return fmt.Errorf("unknown item %q", nameA)
	}

	itemB, err := store.GetItemByName(ctx, nameB)
	if err != nil {
		return err
	}
	if itemB == nil {
		return fmt.Errorf("unknown item %q", nameB)
	}

	engine := analytics.NewEngine(store, store, store, a.Logger)
	result, err := engine.Correlation(ctx, itemA.ID, itemB.ID, windowDays)
	if err != nil {
		return err
	}

	if result.Insufficient {
		fmt.Fprintf(os.Stdout, "%s vs %s: insufficient data (%d common dates)\n", itemA.Name, itemB.Name, result.CommonDates)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%s vs %s: %.4f (%s) over %d common dates\n",
		itemA.Name, itemB.Name, result.Coefficient, result.Interpretation, result.CommonDates)
	return nil
}

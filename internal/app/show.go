package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints current per-item statistics.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := store.ListStatistics(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stdout, "no statistics found")
		return nil
	}

	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Item\tCurrent\tMin30d\tMax30d\tAvg30d\tΔ24h%\tΔ7d%\tΔ30d%\tUpdated (UTC)")

	for _, stats := range list {
		current := "N/A"
		if stats.CurrentPrice != nil {
			current = formatDecimal(*stats.CurrentPrice, 2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			stats.ItemName,
			current,
			formatDecimal(stats.MinPrice30d, 2),
			formatDecimal(stats.MaxPrice30d, 2),
			formatDecimal(stats.AvgPrice30d, 2),
			formatDecimal(stats.PriceChange24h, 2),
			formatDecimal(stats.PriceChange7d, 2),
			formatDecimal(stats.PriceChange30d, 2),
			stats.LastUpdated.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

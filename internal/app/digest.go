package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"case-price-watcher/internal/alerting"
	"case-price-watcher/internal/analytics"
)

// Digest prints the market digest and optionally pushes it through the
// configured notification sinks.
func (a *App) Digest(ctx context.Context, opts DigestOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := analytics.NewEngine(store, store, store, a.Logger)

	overview, err := engine.MarketOverview(ctx)
	if err != nil {
		return err
	}

	gainers, err := engine.TopGainers(ctx, opts.Period, opts.Limit)
	if err != nil {
		return err
	}

	losers, err := engine.TopLosers(ctx, opts.Period, opts.Limit)
	if err != nil {
		return err
	}

	volatile, err := engine.MostVolatile(ctx, analytics.PeriodMonth, opts.Limit)
	if err != nil {
		return err
	}

	printDigest(overview, gainers, losers, volatile, opts.Period)

	if opts.Notify {
		digest := alerting.Digest{
			Overview:    overview,
			Gainers:     gainers,
			Losers:      losers,
			Volatile:    volatile,
			GeneratedAt: time.Now().UTC(),
		}
		delivered := a.newDispatcher().DispatchDigest(ctx, digest)
		a.Logger.Info().Int("delivered", delivered).Msg("digest dispatched")
	}

	return nil
}

func printDigest(overview analytics.Overview, gainers, losers []analytics.Mover, volatile []analytics.VolatileItem, period int) {
	fmt.Fprintf(os.Stdout, "Market: %d items, %d with statistics, sentiment %s\n", overview.TotalItems, overview.ItemsWithStats, overview.Sentiment)
	fmt.Fprintf(os.Stdout, "Average price: %s, 24h movers: %d up / %d down\n", overview.AveragePrice.StringFixed(2), overview.Gainers24h, overview.Losers24h)
	if overview.LastUpdate != nil {
		fmt.Fprintf(os.Stdout, "Last update: %s UTC\n", overview.LastUpdate.UTC().Format(time.RFC3339))
	}

	printMovers(fmt.Sprintf("Top gainers (%dd)", period), gainers)
	printMovers(fmt.Sprintf("Top losers (%dd)", period), losers)

	if len(volatile) > 0 {
		fmt.Fprintln(os.Stdout, "\nMost volatile (30d)")
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Item\tStddev\tAvg\tRange\tSamples")
		for _, item := range volatile {
			fmt.Fprintf(writer, "%s\t%.2f\t%.2f\t%.2f\t%d\n", item.Name, item.Volatility, item.AvgPrice, item.PriceRange, item.Samples)
		}
		writer.Flush()
	}
}

func printMovers(title string, movers []analytics.Mover) {
	if len(movers) == 0 {
		return
	}

	fmt.Fprintf(os.Stdout, "\n%s\n", title)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Item\tCurrent\tChange%")
	for _, mover := range movers {
		current := "N/A"
		if mover.CurrentPrice != nil {
			current = mover.CurrentPrice.StringFixed(2)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", mover.Name, current, mover.PriceChange.StringFixed(2))
	}
	writer.Flush()
}

package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"case-price-watcher/internal/sheet"
	"case-price-watcher/internal/storage"
)

// Export renders historical data as CSV and/or PNG for one item, or the whole
// market as an XLSX workbook.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.XLSXPath == "" {
		return errors.New("at least one of --csv, --png, or --xlsx must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.XLSXPath != "" {
		if err := a.exportMarket(ctx, store, opts.XLSXPath); err != nil {
			return err
		}
	}

	if opts.CSVPath == "" && opts.PNGPath == "" {
		return nil
	}
	if opts.Item == "" {
		return errors.New("--item is required for CSV/PNG export")
	}

	item, err := store.GetItemByName(ctx, opts.Item)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("unknown item %q", opts.Item)
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -30)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesSince(ctx, item.ID, from)
	if err != nil {
		return err
	}
	samples = trimAfter(samples, to)
	if len(samples) == 0 {
		a.Logger.Info().Str("item", item.Name).Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Str("item", item.Name).Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, item.Name, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, item.Name, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) exportMarket(ctx context.Context, store *storage.Store, path string) error {
	items, err := store.ListItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return errors.New("catalog is empty; nothing to export")
	}

	rows := make([]sheet.MarketRow, 0, len(items))
	for _, item := range items {
		stats, err := store.GetStatistics(ctx, item.ID)
		if err != nil {
			return err
		}
		rows = append(rows, sheet.MarketRow{Item: item, Stats: stats})
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := sheet.WriteMarket(path, rows); err != nil {
		return err
	}

	a.Logger.Info().Str("path", path).Int("items", len(rows)).Msg("market workbook written")
	return nil
}

func trimAfter(samples []storage.PriceSample, to time.Time) []storage.PriceSample {
	trimmed := samples[:0]
	for _, sample := range samples {
		if sample.TS.After(to) {
			break
		}
		trimmed = append(trimmed, sample)
	}
	return trimmed
}

func downsampleSamples(samples []storage.PriceSample, max int) []storage.PriceSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.PriceSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path, itemName string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ts", "item", "price", "currency"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.TS.UTC().Format(time.RFC3339),
			itemName,
			sample.Price.String(),
			sample.Currency,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path, itemName string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	prices := make([]float64, len(samples))
	for i, sample := range samples {
		x[i] = sample.TS
		prices[i] = sample.Price.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    itemName,
				XValues: x,
				YValues: prices,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Package analytics computes cross-item rankings, market overview, trend, and
// correlation over stored samples and statistics. All operations are pure
// reads; results reflect the store at call time.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"case-price-watcher/internal/storage"
)

// Supported lookback periods for gainers/losers rankings, in days.
const (
	PeriodDay   = 1
	PeriodWeek  = 7
	PeriodMonth = 30
)

// minVolatilitySamples is the exclusive lower bound on sample count for the
// volatility ranking; items at or below it are excluded, not scored as zero.
const minVolatilitySamples = 5

// Market sentiment labels.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Mover is one entry in a gainers or losers ranking.
type Mover struct {
	ItemID       uuid.UUID
	Name         string
	CurrentPrice *decimal.Decimal
	PriceChange  decimal.Decimal
	LastUpdated  time.Time
}

// VolatileItem is one entry in the volatility ranking.
type VolatileItem struct {
	ItemID     uuid.UUID
	Name       string
	Volatility float64
	AvgPrice   float64
	MinPrice   float64
	MaxPrice   float64
	PriceRange float64
	Samples    int
}

// Overview summarises the whole market.
type Overview struct {
	TotalItems     int64
	ItemsWithStats int
	AveragePrice   decimal.Decimal
	Gainers24h     int
	Losers24h      int
	LastUpdate     *time.Time
	Sentiment      string
}

// Engine evaluates analytics queries against the store.
type Engine struct {
	items   storage.ItemStore
	samples storage.SampleStore
	stats   storage.StatisticsStore
	logger  zerolog.Logger

	now func() time.Time
}

// NewEngine constructs an analytics engine.
func NewEngine(items storage.ItemStore, samples storage.SampleStore, stats storage.StatisticsStore, logger zerolog.Logger) *Engine {
	return &Engine{
		items:   items,
		samples: samples,
		stats:   stats,
		logger:  logger.With().Str("component", "analytics").Logger(),
		now:     time.Now,
	}
}

// TopGainers ranks items by descending percent change over the given period
// (1, 7, or 30 days) and truncates to limit. Ties break by the store's stable
// iteration order.
func (e *Engine) TopGainers(ctx context.Context, periodDays, limit int) ([]Mover, error) {
	return e.topMovers(ctx, periodDays, limit, false)
}

// TopLosers ranks items by ascending percent change over the given period.
func (e *Engine) TopLosers(ctx context.Context, periodDays, limit int) ([]Mover, error) {
	return e.topMovers(ctx, periodDays, limit, true)
}

func (e *Engine) topMovers(ctx context.Context, periodDays, limit int, ascending bool) ([]Mover, error) {
	if err := validatePeriod(periodDays); err != nil {
		return nil, err
	}

	list, err := e.stats.ListStatistics(ctx)
	if err != nil {
		return nil, err
	}

	movers := make([]Mover, 0, len(list))
	for _, stats := range list {
		movers = append(movers, Mover{
			ItemID:       stats.ItemID,
			Name:         stats.ItemName,
			CurrentPrice: stats.CurrentPrice,
			PriceChange:  changeForPeriod(stats, periodDays),
			LastUpdated:  stats.LastUpdated,
		})
	}

	sort.SliceStable(movers, func(i, j int) bool {
		if ascending {
			return movers[i].PriceChange.LessThan(movers[j].PriceChange)
		}
		return movers[i].PriceChange.GreaterThan(movers[j].PriceChange)
	})

	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers, nil
}

// MostVolatile ranks items by population standard deviation of sample prices
// within the window. Items with five or fewer samples are excluded.
func (e *Engine) MostVolatile(ctx context.Context, windowDays, limit int) ([]VolatileItem, error) {
	items, err := e.items.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	since := e.now().UTC().AddDate(0, 0, -windowDays)

	ranked := make([]VolatileItem, 0, len(items))
	for _, item := range items {
		samples, err := e.samples.ListSamplesSince(ctx, item.ID, since)
		if err != nil {
			return nil, fmt.Errorf("samples for %s: %w", item.Name, err)
		}
		if len(samples) <= minVolatilitySamples {
			continue
		}

		values := sampleValues(samples)
		mean, sigma := meanAndStddev(values)
		min, max := minMax(values)

		ranked = append(ranked, VolatileItem{
			ItemID:     item.ID,
			Name:       item.Name,
			Volatility: sigma,
			AvgPrice:   mean,
			MinPrice:   min,
			MaxPrice:   max,
			PriceRange: max - min,
			Samples:    len(samples),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Volatility > ranked[j].Volatility
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// MarketOverview aggregates catalog-wide counters and the sentiment label.
func (e *Engine) MarketOverview(ctx context.Context) (Overview, error) {
	total, err := e.items.CountItems(ctx)
	if err != nil {
		return Overview{}, err
	}

	list, err := e.stats.ListStatistics(ctx)
	if err != nil {
		return Overview{}, err
	}

	overview := Overview{
		TotalItems:     total,
		ItemsWithStats: len(list),
	}

	priced := 0
	sum := decimal.Zero
	for _, stats := range list {
		if stats.CurrentPrice != nil {
			sum = sum.Add(*stats.CurrentPrice)
			priced++
		}
		switch stats.PriceChange24h.Sign() {
		case 1:
			overview.Gainers24h++
		case -1:
			overview.Losers24h++
		}
		if overview.LastUpdate == nil || stats.LastUpdated.After(*overview.LastUpdate) {
			updated := stats.LastUpdated
			overview.LastUpdate = &updated
		}
	}
	if priced > 0 {
		overview.AveragePrice = sum.Div(decimal.NewFromInt(int64(priced)))
	}

	switch {
	case overview.Gainers24h > overview.Losers24h:
		overview.Sentiment = SentimentBullish
	case overview.Losers24h > overview.Gainers24h:
		overview.Sentiment = SentimentBearish
	default:
		overview.Sentiment = SentimentNeutral
	}

	return overview, nil
}

func validatePeriod(periodDays int) error {
	switch periodDays {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return nil
	default:
		return fmt.Errorf("unsupported period %dd: expected 1, 7, or 30", periodDays)
	}
}

func changeForPeriod(stats storage.ItemStatistics, periodDays int) decimal.Decimal {
	switch periodDays {
	case PeriodDay:
		return stats.PriceChange24h
	case PeriodWeek:
		return stats.PriceChange7d
	default:
		return stats.PriceChange30d
	}
}

func sampleValues(samples []storage.PriceSample) []float64 {
	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.Price.InexactFloat64()
	}
	return values
}

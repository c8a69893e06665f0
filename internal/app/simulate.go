package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"case-price-watcher/internal/alerting"
	"case-price-watcher/internal/storage"
)

// SimulateAlert runs one alert evaluation against synthetic statistics and
// pushes any resulting events through the configured sinks.
func (a *App) SimulateAlert(ctx context.Context, itemName string, current, change24h, change7d decimal.Decimal) error {
	notifiers := a.newNotifiers()
	if len(notifiers) == 0 {
		return errors.New("no alert channels configured")
	}

	hundred := decimal.NewFromInt(100)
	if change24h.Equal(hundred.Neg()) || change7d.Equal(hundred.Neg()) {
		return errors.New("change of -100% has no finite previous price")
	}

	now := time.Now().UTC()
	itemID := uuid.New()

	stats := storage.ItemStatistics{
		ItemID:         itemID,
		ItemName:       itemName,
		CurrentPrice:   &current,
		MinPrice30d:    current,
		MaxPrice30d:    current,
		AvgPrice30d:    current,
		PriceChange24h: change24h,
		PriceChange7d:  change7d,
		LastUpdated:    now,
	}

	// previous = current * 100 / (100 + change)
	prev24 := current.Mul(hundred).Div(hundred.Add(change24h))
	prev7 := current.Mul(hundred).Div(hundred.Add(change7d))

	static := &staticStore{
		stats: stats,
		samples: []storage.PriceSample{
			{ItemID: itemID, Price: prev7, Currency: "RUB", TS: now.Add(-6 * 24 * time.Hour)},
			{ItemID: itemID, Price: prev24, Currency: "RUB", TS: now.Add(-23 * time.Hour)},
		},
	}

	evaluator := alerting.NewEvaluator(static, static, a.Logger)
	events, err := evaluator.Evaluate(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		a.Logger.Info().Str("item", itemName).Msg("no threshold breached; nothing to send")
		return nil
	}

	delivered := alerting.NewDispatcher(notifiers, a.Logger).Dispatch(ctx, events)
	a.Logger.Info().Int("events", len(events)).Int("delivered", delivered).Msg("simulated alerts dispatched")
	return nil
}

// staticStore serves a single synthetic statistics row and its reference
// samples from memory.
type staticStore struct {
	stats   storage.ItemStatistics
	samples []storage.PriceSample
}

func (s *staticStore) UpsertStatistics(ctx context.Context, stats storage.ItemStatistics) error {
	return errors.New("static store is read-only")
}

func (s *staticStore) GetStatistics(ctx context.Context, itemID uuid.UUID) (*storage.ItemStatistics, error) {
	if itemID != s.stats.ItemID {
		return nil, nil
	}
	stats := s.stats
	return &stats, nil
}

func (s *staticStore) ListStatistics(ctx context.Context) ([]storage.ItemStatistics, error) {
	return []storage.ItemStatistics{s.stats}, nil
}

func (s *staticStore) InsertSample(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, currency string, ts time.Time) error {
	return errors.New("static store is read-only")
}

func (s *staticStore) ListSamplesSince(ctx context.Context, itemID uuid.UUID, since time.Time) ([]storage.PriceSample, error) {
	matched := make([]storage.PriceSample, 0, len(s.samples))
	for _, sample := range s.samples {
		if sample.ItemID == itemID && !sample.TS.Before(since) {
			matched = append(matched, sample)
		}
	}
	return matched, nil
}

func (s *staticStore) EarliestSampleSince(ctx context.Context, itemID uuid.UUID, since time.Time) (*storage.PriceSample, error) {
	for _, sample := range s.samples {
		if sample.ItemID == itemID && !sample.TS.Before(since) {
			match := sample
			return &match, nil
		}
	}
	return nil, nil
}

func (s *staticStore) LatestSample(ctx context.Context, itemID uuid.UUID) (*storage.PriceSample, error) {
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].ItemID == itemID {
			match := s.samples[i]
			return &match, nil
		}
	}
	return nil, nil
}

func (s *staticStore) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, errors.New("static store is read-only")
}

var (
	_ storage.StatisticsStore = (*staticStore)(nil)
	_ storage.SampleStore     = (*staticStore)(nil)
)

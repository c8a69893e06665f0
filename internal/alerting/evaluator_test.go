package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"case-price-watcher/internal/storage"
)

var evalNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

// fakeStore serves statistics rows and reference samples for evaluation.
type fakeStore struct {
	stats     []storage.ItemStatistics
	samples   map[uuid.UUID][]storage.PriceSample
	sampleErr error
}

func (f *fakeStore) UpsertStatistics(ctx context.Context, stats storage.ItemStatistics) error {
	return nil
}

func (f *fakeStore) GetStatistics(ctx context.Context, itemID uuid.UUID) (*storage.ItemStatistics, error) {
	return nil, nil
}

func (f *fakeStore) ListStatistics(ctx context.Context) ([]storage.ItemStatistics, error) {
	return f.stats, nil
}

func (f *fakeStore) InsertSample(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, currency string, ts time.Time) error {
	return nil
}

func (f *fakeStore) ListSamplesSince(ctx context.Context, itemID uuid.UUID, since time.Time) ([]storage.PriceSample, error) {
	return f.samples[itemID], nil
}

func (f *fakeStore) EarliestSampleSince(ctx context.Context, itemID uuid.UUID, since time.Time) (*storage.PriceSample, error) {
	if f.sampleErr != nil {
		return nil, f.sampleErr
	}
	for _, sample := range f.samples[itemID] {
		if !sample.TS.Before(since) {
			match := sample
			return &match, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) LatestSample(ctx context.Context, itemID uuid.UUID) (*storage.PriceSample, error) {
	return nil, nil
}

func (f *fakeStore) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

var (
	_ storage.StatisticsStore = (*fakeStore)(nil)
	_ storage.SampleStore     = (*fakeStore)(nil)
)

func evalRow(itemID uuid.UUID, name, current, ch24, ch7 string) storage.ItemStatistics {
	price := decimal.RequireFromString(current)
	return storage.ItemStatistics{
		ItemID:         itemID,
		ItemName:       name,
		CurrentPrice:   &price,
		PriceChange24h: decimal.RequireFromString(ch24),
		PriceChange7d:  decimal.RequireFromString(ch7),
		LastUpdated:    evalNow,
	}
}

func withReference(store *fakeStore, itemID uuid.UUID, price string, age time.Duration) {
	if store.samples == nil {
		store.samples = make(map[uuid.UUID][]storage.PriceSample)
	}
	store.samples[itemID] = append(store.samples[itemID], storage.PriceSample{
		ItemID: itemID,
		Price:  decimal.RequireFromString(price),
		TS:     evalNow.Add(-age),
	})
}

func testEvaluator(store *fakeStore) *Evaluator {
	evaluator := NewEvaluator(store, store, zerolog.Nop())
	evaluator.now = func() time.Time { return evalNow }
	return evaluator
}

func TestEvaluateBelowThresholdIsQuiet(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{stats: []storage.ItemStatistics{
		evalRow(itemID, "Case A", "100", "4.99", "9.99"),
	}}
	withReference(store, itemID, "95", 12*time.Hour)

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want none just below both thresholds", len(events))
	}
}

func TestEvaluateFiresAtExactThreshold(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{stats: []storage.ItemStatistics{
		evalRow(itemID, "Case A", "105", "5.00", "0"),
	}}
	withReference(store, itemID, "100", 12*time.Hour)

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly one at the 5%% boundary", len(events))
	}

	event := events[0]
	if event.Period != PeriodDay {
		t.Fatalf("period = %s, want 24h", event.Period)
	}
	if event.Type != TypeIncrease {
		t.Fatalf("type = %s, want price_increase", event.Type)
	}
	if event.PreviousPrice.String() != "100" {
		t.Fatalf("previous = %s, want the reference sample price", event.PreviousPrice)
	}
	if event.CurrentPrice.String() != "105" {
		t.Fatalf("current = %s, want 105", event.CurrentPrice)
	}
}

func TestEvaluateClassifiesDecrease(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{stats: []storage.ItemStatistics{
		evalRow(itemID, "Case A", "88", "-12", "0"),
	}}
	withReference(store, itemID, "100", 12*time.Hour)

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Type != TypeDecrease {
		t.Fatalf("type = %s, want price_decrease", events[0].Type)
	}
}

func TestEvaluateBothPeriodsCanFire(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{stats: []storage.ItemStatistics{
		evalRow(itemID, "Case A", "120", "6", "15"),
	}}
	withReference(store, itemID, "104", 12*time.Hour)

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want one per breaching period", len(events))
	}
	if events[0].Period == events[1].Period {
		t.Fatal("the two events must cover distinct periods")
	}
}

func TestEvaluateSevenDayThresholdIsTen(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{stats: []storage.ItemStatistics{
		// 7d change of 6% would breach the 24h threshold but not the 7d one
		evalRow(itemID, "Case A", "106", "0", "6"),
	}}
	withReference(store, itemID, "100", 3*24*time.Hour)

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want none below the 10%% weekly threshold", len(events))
	}
}

func TestEvaluateSuppressedWithoutReference(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{stats: []storage.ItemStatistics{
		evalRow(itemID, "Case A", "120", "20", "0"),
	}}
	// no samples at all: the breach has no previous price to report

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want suppression without a reference sample", len(events))
	}
}

func TestEvaluateSuppressedOnLookupError(t *testing.T) {
	itemID := uuid.New()
	store := &fakeStore{
		stats: []storage.ItemStatistics{
			evalRow(itemID, "Case A", "120", "20", "0"),
		},
		sampleErr: errors.New("boom"),
	}

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("a reference lookup failure suppresses, not fails: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestEvaluateSkipsItemsWithoutCurrentPrice(t *testing.T) {
	store := &fakeStore{stats: []storage.ItemStatistics{
		{
			ItemID:         uuid.New(),
			ItemName:       "Case A",
			PriceChange24h: decimal.RequireFromString("50"),
			LastUpdated:    evalNow,
		},
	}}

	events, err := testEvaluator(store).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0 without a current price", len(events))
	}
}

package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"case-price-watcher/internal/storage"
)

func seedSeries(store *memStore, itemID uuid.UUID, prices []int64) {
	if store.samples == nil {
		store.samples = make(map[uuid.UUID][]storage.PriceSample)
	}
	for i, price := range prices {
		ts := testNow.Add(-time.Duration(len(prices)-i) * time.Hour)
		store.samples[itemID] = append(store.samples[itemID], storage.PriceSample{
			ItemID: itemID, Price: decimal.NewFromInt(price), TS: ts,
		})
	}
}

func TestPriceTrendUp(t *testing.T) {
	store := &memStore{}
	itemID := uuid.New()
	seedSeries(store, itemID, []int64{10, 10, 20, 20})

	trend, err := testEngine(store).PriceTrend(context.Background(), itemID, 7)
	if err != nil {
		t.Fatalf("PriceTrend: %v", err)
	}

	if trend.Direction != TrendUp {
		t.Fatalf("direction = %s, want up", trend.Direction)
	}
	// halves mean 10 and 20: strength |20-10|/10*100 = 100
	if math.Abs(trend.Strength-100) > 1e-9 {
		t.Fatalf("strength = %f, want 100", trend.Strength)
	}
	if trend.DataPoints != 4 {
		t.Fatalf("data points = %d, want 4", trend.DataPoints)
	}
	if trend.Current != 20 {
		t.Fatalf("current = %f, want 20", trend.Current)
	}
}

func TestPriceTrendDown(t *testing.T) {
	store := &memStore{}
	itemID := uuid.New()
	seedSeries(store, itemID, []int64{30, 30, 15, 15})

	trend, err := testEngine(store).PriceTrend(context.Background(), itemID, 7)
	if err != nil {
		t.Fatalf("PriceTrend: %v", err)
	}
	if trend.Direction != TrendDown {
		t.Fatalf("direction = %s, want down", trend.Direction)
	}
}

func TestPriceTrendSideways(t *testing.T) {
	store := &memStore{}
	itemID := uuid.New()
	seedSeries(store, itemID, []int64{10, 10, 10, 10})

	trend, err := testEngine(store).PriceTrend(context.Background(), itemID, 7)
	if err != nil {
		t.Fatalf("PriceTrend: %v", err)
	}
	if trend.Direction != TrendSideways {
		t.Fatalf("direction = %s, want sideways", trend.Direction)
	}
	if trend.Volatility != 0 {
		t.Fatalf("volatility = %f, want 0 for a flat series", trend.Volatility)
	}
}

func TestPriceTrendInsufficientData(t *testing.T) {
	store := &memStore{}
	itemID := uuid.New()
	seedSeries(store, itemID, []int64{10})

	trend, err := testEngine(store).PriceTrend(context.Background(), itemID, 7)
	if err != nil {
		t.Fatalf("insufficient data is a result, not an error: %v", err)
	}
	if trend.Direction != TrendInsufficient {
		t.Fatalf("direction = %s, want insufficient_data", trend.Direction)
	}
	if trend.DataPoints != 1 {
		t.Fatalf("data points = %d, want 1", trend.DataPoints)
	}
}

func TestPriceTrendVolatilityIsMeanAbsDelta(t *testing.T) {
	store := &memStore{}
	itemID := uuid.New()
	seedSeries(store, itemID, []int64{10, 14, 8, 12})

	trend, err := testEngine(store).PriceTrend(context.Background(), itemID, 7)
	if err != nil {
		t.Fatalf("PriceTrend: %v", err)
	}
	// |14-10| + |8-14| + |12-8| = 14, over 3 gaps
	want := 14.0 / 3.0
	if math.Abs(trend.Volatility-want) > 1e-9 {
		t.Fatalf("volatility = %f, want %f", trend.Volatility, want)
	}
}

// Package stats derives the per-item statistics row from a 30-day window of
// price samples.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"case-price-watcher/internal/storage"
)

// WindowDays is the trailing span statistics are computed over.
const WindowDays = 30

var hundred = decimal.NewFromInt(100)

// Result carries the derived statistics for one item.
type Result struct {
	CurrentPrice   decimal.Decimal
	MinPrice30d    decimal.Decimal
	MaxPrice30d    decimal.Decimal
	AvgPrice30d    decimal.Decimal
	PriceChange24h decimal.Decimal
	PriceChange7d  decimal.Decimal
	PriceChange30d decimal.Decimal
	LastUpdated    time.Time
}

// Compute reduces an item's samples, already restricted to the last 30 days
// and ordered by timestamp ascending, into a statistics result. The second
// return is false when the window holds no samples.
//
// Percent changes over 24h and 7d anchor to the earliest sample at or after
// now minus the period; a period with no samples yields 0, not a null. The
// 30-day change instead anchors to the very first sample of the window when
// more than one exists. The asymmetry is deliberate and kept.
func Compute(samples []storage.PriceSample, now time.Time) (Result, bool) {
	if len(samples) == 0 {
		return Result{}, false
	}

	current := samples[len(samples)-1].Price

	min := samples[0].Price
	max := samples[0].Price
	sum := decimal.Zero
	for _, sample := range samples {
		if sample.Price.LessThan(min) {
			min = sample.Price
		}
		if sample.Price.GreaterThan(max) {
			max = sample.Price
		}
		sum = sum.Add(sample.Price)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(samples))))

	result := Result{
		CurrentPrice:   current,
		MinPrice30d:    min,
		MaxPrice30d:    max,
		AvgPrice30d:    avg,
		PriceChange24h: changeSince(samples, current, now.Add(-24*time.Hour)),
		PriceChange7d:  changeSince(samples, current, now.Add(-7*24*time.Hour)),
		LastUpdated:    now,
	}

	if len(samples) > 1 {
		result.PriceChange30d = percentChange(current, samples[0].Price)
	}

	return result, true
}

// changeSince finds the earliest sample at or after the boundary and returns
// the percent change from it to the current price, 0 when none exists.
func changeSince(samples []storage.PriceSample, current decimal.Decimal, boundary time.Time) decimal.Decimal {
	for _, sample := range samples {
		if !sample.TS.Before(boundary) {
			return percentChange(current, sample.Price)
		}
	}
	return decimal.Zero
}

func percentChange(current, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return current.Sub(reference).Div(reference).Mul(hundred)
}

// Row converts a result into the persistable statistics model for one item.
func Row(item storage.Item, result Result) storage.ItemStatistics {
	current := result.CurrentPrice
	return storage.ItemStatistics{
		ItemID:         item.ID,
		ItemName:       item.Name,
		CurrentPrice:   &current,
		MinPrice30d:    result.MinPrice30d,
		MaxPrice30d:    result.MaxPrice30d,
		AvgPrice30d:    result.AvgPrice30d,
		PriceChange24h: result.PriceChange24h,
		PriceChange7d:  result.PriceChange7d,
		PriceChange30d: result.PriceChange30d,
		LastUpdated:    result.LastUpdated,
	}
}

package analytics

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// Trend directions.
const (
	TrendUp           = "up"
	TrendDown         = "down"
	TrendSideways     = "sideways"
	TrendInsufficient = "insufficient_data"
)

// TrendResult classifies a single item's price movement within a window.
// Volatility here is the mean absolute consecutive-sample delta, a different
// measure than the standard deviation used by MostVolatile.
type TrendResult struct {
	Direction  string
	Strength   float64
	Volatility float64
	MinPrice   float64
	MaxPrice   float64
	Current    float64
	DataPoints int
}

// PriceTrend compares the mean of the first half of the windowed series with
// the mean of the second half. Fewer than two samples yields the
// insufficient-data result, which is a valid outcome, not an error.
func (e *Engine) PriceTrend(ctx context.Context, itemID uuid.UUID, windowDays int) (TrendResult, error) {
	since := e.now().UTC().AddDate(0, 0, -windowDays)
	samples, err := e.samples.ListSamplesSince(ctx, itemID, since)
	if err != nil {
		return TrendResult{}, err
	}

	if len(samples) < 2 {
		return TrendResult{Direction: TrendInsufficient, DataPoints: len(samples)}, nil
	}

	values := sampleValues(samples)
	mid := len(values) / 2
	firstMean := mean(values[:mid])
	secondMean := mean(values[mid:])

	direction := TrendSideways
	if secondMean > firstMean {
		direction = TrendUp
	} else if secondMean < firstMean {
		direction = TrendDown
	}

	deltaSum := 0.0
	for i := 1; i < len(values); i++ {
		deltaSum += math.Abs(values[i] - values[i-1])
	}

	min, max := minMax(values)

	return TrendResult{
		Direction:  direction,
		Strength:   math.Abs(secondMean-firstMean) / firstMean * 100,
		Volatility: deltaSum / float64(len(values)-1),
		MinPrice:   min,
		MaxPrice:   max,
		Current:    values[len(values)-1],
		DataPoints: len(values),
	}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// meanAndStddev returns the mean and population standard deviation.
func meanAndStddev(values []float64) (float64, float64) {
	m := mean(values)
	if len(values) == 0 {
		return 0, 0
	}
	sumSq := 0.0
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return m, math.Sqrt(sumSq / float64(len(values)))
}

func minMax(values []float64) (float64, float64) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Correlation interpretation bands. Boundaries are strict at ±0.7 and ±0.3;
// an exactly-zero coefficient, including the degenerate insufficient-data and
// zero-variance results, is neutral.
const (
	CorrStrongPositive   = "strong_positive"
	CorrModeratePositive = "moderate_positive"
	CorrWeakPositive     = "weak_positive"
	CorrNeutral          = "neutral"
	CorrWeakNegative     = "weak_negative"
	CorrModerateNegative = "moderate_negative"
	CorrStrongNegative   = "strong_negative"
)

const dateLayout = "2006-01-02"

// CorrelationResult is the Pearson coefficient of two items' per-day price
// series over the common calendar dates of a window.
type CorrelationResult struct {
	Coefficient    float64
	CommonDates    int
	Interpretation string
	Insufficient   bool
}

// Correlation aligns the two items' samples by calendar date (the last sample
// of a day wins when several exist) and computes the Pearson coefficient over
// the intersection. Fewer than two common dates yields a zero-correlation
// insufficient-data result. A series without variance correlates as zero.
func (e *Engine) Correlation(ctx context.Context, a, b uuid.UUID, windowDays int) (CorrelationResult, error) {
	since := e.now().UTC().AddDate(0, 0, -windowDays)

	pricesA, err := e.dailyPrices(ctx, a, since)
	if err != nil {
		return CorrelationResult{}, err
	}
	pricesB, err := e.dailyPrices(ctx, b, since)
	if err != nil {
		return CorrelationResult{}, err
	}

	dates := make([]string, 0, len(pricesA))
	for date := range pricesA {
		if _, ok := pricesB[date]; ok {
			dates = append(dates, date)
		}
	}
	if len(dates) < 2 {
		return CorrelationResult{
			CommonDates:    len(dates),
			Interpretation: CorrNeutral,
			Insufficient:   true,
		}, nil
	}
	sort.Strings(dates)

	seriesA := make([]float64, len(dates))
	seriesB := make([]float64, len(dates))
	for i, date := range dates {
		seriesA[i] = pricesA[date]
		seriesB[i] = pricesB[date]
	}

	coefficient := pearson(seriesA, seriesB)

	return CorrelationResult{
		Coefficient:    coefficient,
		CommonDates:    len(dates),
		Interpretation: interpretCorrelation(coefficient),
	}, nil
}

// dailyPrices maps calendar date to that day's last sample price. Samples
// arrive ascending, so a later sample on the same date overwrites an earlier
// one.
func (e *Engine) dailyPrices(ctx context.Context, itemID uuid.UUID, since time.Time) (map[string]float64, error) {
	samples, err := e.samples.ListSamplesSince(ctx, itemID, since)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(samples))
	for _, sample := range samples {
		prices[sample.TS.UTC().Format(dateLayout)] = sample.Price.InexactFloat64()
	}
	return prices, nil
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sumA, sumB, sumAA, sumBB, sumAB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
		sumAA += a[i] * a[i]
		sumBB += b[i] * b[i]
		sumAB += a[i] * b[i]
	}

	numerator := n*sumAB - sumA*sumB
	denominator := math.Sqrt((n*sumAA - sumA*sumA) * (n*sumBB - sumB*sumB))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func interpretCorrelation(c float64) string {
	switch {
	case c > 0.7:
		return CorrStrongPositive
	case c > 0.3:
		return CorrModeratePositive
	case c > 0:
		return CorrWeakPositive
	case c == 0:
		return CorrNeutral
	case c > -0.3:
		return CorrWeakNegative
	case c > -0.7:
		return CorrModerateNegative
	default:
		return CorrStrongNegative
	}
}

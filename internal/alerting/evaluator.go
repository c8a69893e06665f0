package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"case-price-watcher/internal/storage"
)

// Lookback periods an alert can fire on.
const (
	PeriodDay  = "24h"
	PeriodWeek = "7d"
)

// Alert classifications.
const (
	TypeIncrease = "price_increase"
	TypeDecrease = "price_decrease"
)

// Breach thresholds are fixed per period: a 24h change of at least 5% or a 7d
// change of at least 10%, in either direction.
var (
	threshold24h = decimal.NewFromFloat(5.0)
	threshold7d  = decimal.NewFromFloat(10.0)
)

// Event is one threshold breach for one (item, period) pair. Events are
// ephemeral; they exist only for the evaluation cycle that produced them.
type Event struct {
	ItemID        uuid.UUID
	ItemName      string
	CurrentPrice  decimal.Decimal
	PreviousPrice decimal.Decimal
	PriceChange   decimal.Decimal
	Period        string
	Type          string
	Timestamp     time.Time
}

// Evaluator scans current statistics for threshold breaches. It keeps no
// state across cycles; suppression of repeat alerts is a sink concern.
type Evaluator struct {
	stats   storage.StatisticsStore
	samples storage.SampleStore
	logger  zerolog.Logger

	now func() time.Time
}

// NewEvaluator constructs an alert evaluator.
func NewEvaluator(stats storage.StatisticsStore, samples storage.SampleStore, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		stats:   stats,
		samples: samples,
		logger:  logger.With().Str("component", "alert_evaluator").Logger(),
		now:     time.Now,
	}
}

// Evaluate examines the 24h and 7d change of every item holding a current
// price and returns one event per breaching (item, period) pair. A breach
// without a locatable reference price is suppressed: there is no alert
// without a concrete previous price to report.
func (e *Evaluator) Evaluate(ctx context.Context) ([]Event, error) {
	list, err := e.stats.ListStatistics(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	events := make([]Event, 0)

	for _, stats := range list {
		if stats.CurrentPrice == nil {
			continue
		}

		if event, ok := e.checkPeriod(ctx, stats, stats.PriceChange24h, PeriodDay, threshold24h, now.Add(-24*time.Hour), now); ok {
			events = append(events, event)
		}
		if event, ok := e.checkPeriod(ctx, stats, stats.PriceChange7d, PeriodWeek, threshold7d, now.Add(-7*24*time.Hour), now); ok {
			events = append(events, event)
		}
	}

	return events, nil
}

func (e *Evaluator) checkPeriod(ctx context.Context, stats storage.ItemStatistics, change decimal.Decimal, period string, threshold decimal.Decimal, boundary, now time.Time) (Event, bool) {
	if change.Abs().LessThan(threshold) {
		return Event{}, false
	}

	reference, err := e.samples.EarliestSampleSince(ctx, stats.ItemID, boundary)
	if err != nil {
		e.logger.Error().Err(err).Str("item", stats.ItemName).Str("period", period).Msg("reference price lookup failed")
		return Event{}, false
	}
	if reference == nil {
		return Event{}, false
	}

	alertType := TypeDecrease
	if change.Sign() > 0 {
		alertType = TypeIncrease
	}

	return Event{
		ItemID:        stats.ItemID,
		ItemName:      stats.ItemName,
		CurrentPrice:  *stats.CurrentPrice,
		PreviousPrice: reference.Price,
		PriceChange:   change,
		Period:        period,
		Type:          alertType,
		Timestamp:     now,
	}, true
}

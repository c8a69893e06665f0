package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// Dispatcher fans alert events out to every configured sink. Delivery
// failures are isolated per event and per sink; they are logged and never
// escalate into the pipeline that produced the data.
type Dispatcher struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the given sinks.
func NewDispatcher(notifiers []Notifier, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// Dispatch delivers every event to every sink and reports how many
// deliveries succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) int {
	delivered := 0
	for _, event := range events {
		for _, notifier := range d.notifiers {
			if err := notifier.Notify(ctx, event); err != nil {
				d.logger.Error().Err(err).Str("item", event.ItemName).Str("period", event.Period).Msg("alert delivery failed")
				continue
			}
			delivered++
		}
	}
	return delivered
}

// DispatchDigest delivers the digest to every sink, isolating failures.
func (d *Dispatcher) DispatchDigest(ctx context.Context, digest Digest) int {
	delivered := 0
	for _, notifier := range d.notifiers {
		if err := notifier.NotifyDigest(ctx, digest); err != nil {
			d.logger.Error().Err(err).Msg("digest delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}

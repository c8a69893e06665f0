package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OrchestratorOptions tune batch execution.
type OrchestratorOptions struct {
	BatchSize  int
	BatchSleep time.Duration
}

// Orchestrator runs the price client over an ordered catalog in fixed-size
// batches. Batches execute strictly sequentially with a cool-down between
// them; within a batch items fetch concurrently, bounded by the client's own
// semaphore.
type Orchestrator struct {
	opts   OrchestratorOptions
	client PriceFetcher
	logger zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator constructs a batch orchestrator over the given client.
func NewOrchestrator(opts OrchestratorOptions, client PriceFetcher, logger zerolog.Logger) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	return &Orchestrator{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "batch_orchestrator").Logger(),
		sleep:  sleepContext,
	}
}

// FetchCatalog prices every named item and returns outcomes keyed by item
// name. An unavailable item never aborts the run; the only error is context
// cancellation.
func (o *Orchestrator) FetchCatalog(ctx context.Context, names []string) (map[string]Outcome, error) {
	outcomes := make(map[string]Outcome, len(names))

	for start := 0; start < len(names); start += o.opts.BatchSize {
		end := start + o.opts.BatchSize
		if end > len(names) {
			end = len(names)
		}
		batch := names[start:end]

		o.logger.Debug().Int("from", start).Int("to", end).Msg("fetching batch")

		results := make([]Outcome, len(batch))
		var wg sync.WaitGroup
		for i, name := range batch {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				results[i] = o.client.Fetch(ctx, name)
			}(i, name)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		for i, name := range batch {
			outcomes[name] = results[i]
		}

		if end < len(names) && o.opts.BatchSleep > 0 {
			if err := o.sleep(ctx, o.opts.BatchSleep); err != nil {
				return outcomes, err
			}
		}
	}

	return outcomes, nil
}

var _ CatalogFetcher = (*Orchestrator)(nil)

package fetcher

import (
	"context"
)

// Unavailable is the sentinel outcome for an item whose price could not be
// obtained. It is a normal terminal state, not an error.
const Unavailable = "N/A"

// Outcome is the result of one item lookup: either raw price text as returned
// by the upstream, or the unavailable sentinel.
type Outcome struct {
	Raw       string
	Available bool
}

// PriceFetcher retrieves the current market price text for a single item.
type PriceFetcher interface {
	Fetch(ctx context.Context, name string) Outcome
}

// CatalogFetcher retrieves prices for an ordered item catalog in batches.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, names []string) (map[string]Outcome, error)
}

package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// stubFetcher prices every item instantly and tracks peak concurrency.
type stubFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     map[string]bool
}

func (s *stubFetcher) Fetch(ctx context.Context, name string) Outcome {
	current := s.inFlight.Add(1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	defer s.inFlight.Add(-1)

	if s.fail[name] {
		return Outcome{Raw: Unavailable, Available: false}
	}
	return Outcome{Raw: fmt.Sprintf("%s price", name), Available: true}
}

func TestFetchCatalogKeysOutcomesByName(t *testing.T) {
	stub := &stubFetcher{fail: map[string]bool{"Case B": true}}
	orch := NewOrchestrator(OrchestratorOptions{BatchSize: 2}, stub, noopLogger())

	names := []string{"Case A", "Case B", "Case C"}
	outcomes, err := orch.FetchCatalog(context.Background(), names)
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}

	if len(outcomes) != len(names) {
		t.Fatalf("outcomes = %d, want one per item", len(outcomes))
	}
	if !outcomes["Case A"].Available || outcomes["Case A"].Raw != "Case A price" {
		t.Fatalf("Case A outcome wrong: %+v", outcomes["Case A"])
	}
	if outcomes["Case B"].Available {
		t.Fatal("Case B should be unavailable")
	}
	if !outcomes["Case C"].Available {
		t.Fatal("Case C should be available")
	}
}

func TestFetchCatalogSleepsBetweenBatches(t *testing.T) {
	stub := &stubFetcher{}
	orch := NewOrchestrator(OrchestratorOptions{BatchSize: 3, BatchSleep: time.Second}, stub, noopLogger())

	sleeps := 0
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		if d != time.Second {
			t.Fatalf("cool-down = %s, want 1s", d)
		}
		sleeps++
		return nil
	}

	names := make([]string, 7)
	for i := range names {
		names[i] = fmt.Sprintf("Item %d", i)
	}

	if _, err := orch.FetchCatalog(context.Background(), names); err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}

	// ceil(7/3) = 3 batches, cool-down between them only
	if sleeps != 2 {
		t.Fatalf("slept %d times, want 2", sleeps)
	}
}

func TestFetchCatalogNoSleepForSingleBatch(t *testing.T) {
	stub := &stubFetcher{}
	orch := NewOrchestrator(OrchestratorOptions{BatchSize: 10, BatchSleep: time.Second}, stub, noopLogger())

	orch.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("single batch must not cool down")
		return nil
	}

	if _, err := orch.FetchCatalog(context.Background(), []string{"Case A", "Case B"}); err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
}

func TestFetchCatalogStopsOnCancel(t *testing.T) {
	stub := &stubFetcher{}
	orch := NewOrchestrator(OrchestratorOptions{BatchSize: 1, BatchSleep: time.Second}, stub, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	outcomes, err := orch.FetchCatalog(ctx, []string{"Case A", "Case B", "Case C"})
	if err == nil {
		t.Fatal("cancelled run should return the context error")
	}
	// the first batch completed before cancellation
	if _, ok := outcomes["Case A"]; !ok {
		t.Fatal("partial outcomes should be returned")
	}
}

func TestFetchCatalogEmpty(t *testing.T) {
	orch := NewOrchestrator(OrchestratorOptions{BatchSize: 5}, &stubFetcher{}, noopLogger())

	outcomes, err := orch.FetchCatalog(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(outcomes))
	}
}

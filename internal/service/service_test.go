package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"case-price-watcher/internal/config"
	"case-price-watcher/internal/fetcher"
	"case-price-watcher/internal/storage"
)

// memStore is an in-memory stand-in for the repository.
type memStore struct {
	items     []storage.Item
	samples   map[uuid.UUID][]storage.PriceSample
	stats     map[uuid.UUID]storage.ItemStatistics
	listErr   error
	insertErr error
}

func newMemStore(names ...string) *memStore {
	store := &memStore{
		samples: make(map[uuid.UUID][]storage.PriceSample),
		stats:   make(map[uuid.UUID]storage.ItemStatistics),
	}
	for i, name := range names {
		store.items = append(store.items, storage.Item{ID: uuid.New(), Name: name, Position: i})
	}
	return store
}

func (m *memStore) UpsertItem(ctx context.Context, name string, steamURL *string, position int) (storage.Item, error) {
	item := storage.Item{ID: uuid.New(), Name: name, SteamURL: steamURL, Position: position}
	m.items = append(m.items, item)
	return item, nil
}

func (m *memStore) ListItems(ctx context.Context) ([]storage.Item, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.items, nil
}

func (m *memStore) GetItemByName(ctx context.Context, name string) (*storage.Item, error) {
	for _, item := range m.items {
		if item.Name == name {
			match := item
			return &match, nil
		}
	}
	return nil, nil
}

func (m *memStore) CountItems(ctx context.Context) (int64, error) {
	return int64(len(m.items)), nil
}

func (m *memStore) InsertSample(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, currency string, ts time.Time) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.samples[itemID] = append(m.samples[itemID], storage.PriceSample{ItemID: itemID, Price: price, Currency: currency, TS: ts})
	return nil
}

func (m *memStore) ListSamplesSince(ctx context.Context, itemID uuid.UUID, since time.Time) ([]storage.PriceSample, error) {
	matched := make([]storage.PriceSample, 0)
	for _, sample := range m.samples[itemID] {
		if !sample.TS.Before(since) {
			matched = append(matched, sample)
		}
	}
	return matched, nil
}

func (m *memStore) EarliestSampleSince(ctx context.Context, itemID uuid.UUID, since time.Time) (*storage.PriceSample, error) {
	for _, sample := range m.samples[itemID] {
		if !sample.TS.Before(since) {
			match := sample
			return &match, nil
		}
	}
	return nil, nil
}

func (m *memStore) LatestSample(ctx context.Context, itemID uuid.UUID) (*storage.PriceSample, error) {
	list := m.samples[itemID]
	if len(list) == 0 {
		return nil, nil
	}
	match := list[len(list)-1]
	return &match, nil
}

func (m *memStore) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memStore) UpsertStatistics(ctx context.Context, stats storage.ItemStatistics) error {
	m.stats[stats.ItemID] = stats
	return nil
}

func (m *memStore) GetStatistics(ctx context.Context, itemID uuid.UUID) (*storage.ItemStatistics, error) {
	stats, ok := m.stats[itemID]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}

func (m *memStore) ListStatistics(ctx context.Context) ([]storage.ItemStatistics, error) {
	list := make([]storage.ItemStatistics, 0, len(m.stats))
	for _, stats := range m.stats {
		list = append(list, stats)
	}
	return list, nil
}

var (
	_ storage.ItemStore       = (*memStore)(nil)
	_ storage.SampleStore     = (*memStore)(nil)
	_ storage.StatisticsStore = (*memStore)(nil)
)

func testConfig() *config.Config {
	return &config.Config{
		Steam: config.SteamConfig{Currency: 5},
	}
}

func newSteamStub(t *testing.T, prices map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("market_hash_name")
		price, ok := prices[name]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"lowest_price": price,
		})
	}))
}

func newCatalogFetcher(baseURL string) fetcher.CatalogFetcher {
	client := fetcher.NewClient(fetcher.ClientOptions{
		BaseURL:    baseURL,
		Country:    "RU",
		Currency:   5,
		AppID:      730,
		Timeout:    time.Second,
		RetryCount: 1,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())
	return fetcher.NewOrchestrator(fetcher.OrchestratorOptions{BatchSize: 5}, client, zerolog.Nop())
}

func TestRefreshOncePersistsAndSkips(t *testing.T) {
	srv := newSteamStub(t, map[string]string{
		"Case A": "12,50 руб.",
		// Case B is absent: every request for it fails upstream
	})
	defer srv.Close()

	store := newMemStore("Case A", "Case B")
	svc := New(testConfig(), nil, newCatalogFetcher(srv.URL), store, store, store, nil, nil, zerolog.Nop())

	report, err := svc.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}

	if report.Items != 2 || report.Priced != 1 || report.Unavailable != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 2 items, 1 priced, 1 unavailable", report)
	}

	caseA := store.items[0]
	samples := store.samples[caseA.ID]
	if len(samples) != 1 {
		t.Fatalf("Case A samples = %d, want 1", len(samples))
	}
	if samples[0].Price.String() != "12.5" {
		t.Fatalf("persisted price = %s, want 12.5", samples[0].Price)
	}
	if samples[0].Currency != "RUB" {
		t.Fatalf("currency = %s, want RUB", samples[0].Currency)
	}

	stats, ok := store.stats[caseA.ID]
	if !ok {
		t.Fatal("Case A should have a statistics row")
	}
	if stats.CurrentPrice == nil || stats.CurrentPrice.String() != "12.5" {
		t.Fatalf("statistics current price wrong: %+v", stats.CurrentPrice)
	}

	caseB := store.items[1]
	if len(store.samples[caseB.ID]) != 0 {
		t.Fatal("unavailable item must not produce a sample")
	}
	if _, ok := store.stats[caseB.ID]; ok {
		t.Fatal("unavailable item must not produce statistics")
	}
}

func TestRefreshOnceUnparseablePriceIsUnavailable(t *testing.T) {
	srv := newSteamStub(t, map[string]string{"Case A": "coming soon"})
	defer srv.Close()

	store := newMemStore("Case A")
	svc := New(testConfig(), nil, newCatalogFetcher(srv.URL), store, store, store, nil, nil, zerolog.Nop())

	report, err := svc.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if report.Unavailable != 1 || report.Priced != 0 {
		t.Fatalf("report = %+v, want the unparseable price counted unavailable", report)
	}
}

func TestRefreshOnceInsertFailureIsolated(t *testing.T) {
	srv := newSteamStub(t, map[string]string{
		"Case A": "10 руб.",
		"Case B": "20 руб.",
	})
	defer srv.Close()

	store := newMemStore("Case A", "Case B")
	store.insertErr = errors.New("disk full")
	svc := New(testConfig(), nil, newCatalogFetcher(srv.URL), store, store, store, nil, nil, zerolog.Nop())

	report, err := svc.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("per-item persistence failures must not fail the run: %v", err)
	}
	if report.Failed != 2 || report.Priced != 0 {
		t.Fatalf("report = %+v, want both items failed", report)
	}
}

func TestRefreshOnceEmptyCatalogFails(t *testing.T) {
	store := newMemStore()
	svc := New(testConfig(), nil, newCatalogFetcher("http://127.0.0.1:0"), store, store, store, nil, nil, zerolog.Nop())

	if _, err := svc.RefreshOnce(context.Background()); err == nil {
		t.Fatal("an empty catalog is a run-level error")
	}
}

func TestRefreshOnceCatalogReadFailure(t *testing.T) {
	store := newMemStore("Case A")
	store.listErr = errors.New("connection refused")
	svc := New(testConfig(), nil, newCatalogFetcher("http://127.0.0.1:0"), store, store, store, nil, nil, zerolog.Nop())

	if _, err := svc.RefreshOnce(context.Background()); err == nil {
		t.Fatal("an unreadable catalog is a run-level error")
	}
}

func TestRecomputeAllIsIdempotent(t *testing.T) {
	store := newMemStore("Case A")
	item := store.items[0]
	now := time.Now().UTC()
	store.samples[item.ID] = []storage.PriceSample{
		{ItemID: item.ID, Price: decimal.RequireFromString("10"), Currency: "RUB", TS: now.Add(-48 * time.Hour)},
		{ItemID: item.ID, Price: decimal.RequireFromString("12"), Currency: "RUB", TS: now.Add(-time.Hour)},
	}

	svc := New(testConfig(), nil, nil, store, store, store, nil, nil, zerolog.Nop())

	updated, err := svc.RecomputeAll(context.Background())
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	first := store.stats[item.ID]

	if _, err := svc.RecomputeAll(context.Background()); err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	second := store.stats[item.ID]

	if !first.AvgPrice30d.Equal(second.AvgPrice30d) || !first.PriceChange30d.Equal(second.PriceChange30d) {
		t.Fatal("recomputation over unchanged samples must not change the row")
	}
}

func TestProcessBucketRunsWithoutLocker(t *testing.T) {
	srv := newSteamStub(t, map[string]string{"Case A": "10 руб."})
	defer srv.Close()

	store := newMemStore("Case A")
	cfg := testConfig()
	cfg.Scheduler.AdvisoryLockKey = 42 // set, but the store is not a locker

	svc := New(cfg, nil, newCatalogFetcher(srv.URL), store, store, store, nil, nil, zerolog.Nop())

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("ProcessBucket: %v", err)
	}
	if len(store.samples[store.items[0].ID]) != 1 {
		t.Fatal("bucket processing should persist a sample")
	}
}

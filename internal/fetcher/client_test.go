package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestClient(baseURL string, retries int, delay time.Duration) (*Client, *[]time.Duration) {
	client := NewClient(ClientOptions{
		BaseURL:    baseURL,
		Country:    "RU",
		Currency:   5,
		AppID:      730,
		Timeout:    time.Second,
		RetryCount: retries,
		RetryDelay: delay,
	}, noopLogger())

	slept := &[]time.Duration{}
	client.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return client, slept
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("market_hash_name") != "Case A" {
			t.Fatalf("unexpected market_hash_name %q", r.URL.Query().Get("market_hash_name"))
		}
		if r.URL.Query().Get("currency") != "5" {
			t.Fatalf("unexpected currency %q", r.URL.Query().Get("currency"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"lowest_price": "12,50 руб.",
		})
	}))
	defer srv.Close()

	client, slept := newTestClient(srv.URL, 3, 10*time.Millisecond)

	outcome := client.Fetch(context.Background(), "Case A")
	if !outcome.Available {
		t.Fatal("fetch should succeed")
	}
	if outcome.Raw != "12,50 руб." {
		t.Fatalf("raw = %q, want the upstream price text", outcome.Raw)
	}
	if len(*slept) != 0 {
		t.Fatalf("no retries expected, slept %d times", len(*slept))
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"lowest_price": "340 руб.",
		})
	}))
	defer srv.Close()

	client, slept := newTestClient(srv.URL, 3, 10*time.Millisecond)

	outcome := client.Fetch(context.Background(), "Case A")
	if !outcome.Available {
		t.Fatal("third attempt should succeed")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if len(*slept) != 2 {
		t.Fatalf("slept %d times, want 2 (between attempts only)", len(*slept))
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, slept := newTestClient(srv.URL, 4, 10*time.Millisecond)

	outcome := client.Fetch(context.Background(), "Case A")
	if outcome.Available {
		t.Fatal("fetch should fail after exhausting retries")
	}
	if outcome.Raw != Unavailable {
		t.Fatalf("raw = %q, want the unavailable sentinel", outcome.Raw)
	}
	if got := calls.Load(); got != 4 {
		t.Fatalf("attempts = %d, want exactly RetryCount", got)
	}
	if len(*slept) != 3 {
		t.Fatalf("slept %d times, want RetryCount-1", len(*slept))
	}
}

func TestFetchBackoffGrows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := 100 * time.Millisecond
	client, slept := newTestClient(srv.URL, 4, base)

	client.Fetch(context.Background(), "Case A")

	if len(*slept) != 3 {
		t.Fatalf("slept %d times, want 3", len(*slept))
	}
	// each recorded delay is base*2^n plus jitter below the cap
	expected := base
	for i, d := range *slept {
		if d < expected || d >= expected+maxRetryJitter {
			t.Fatalf("delay %d = %s, want within [%s, %s)", i, d, expected, expected+maxRetryJitter)
		}
		expected *= 2
	}
}

func TestFetchMissingPriceIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"volume":  "12",
		})
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 1, time.Millisecond)

	if outcome := client.Fetch(context.Background(), "Case A"); outcome.Available {
		t.Fatal("response without lowest_price should be unavailable")
	}
}

func TestFetchMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL, 1, time.Millisecond)

	if outcome := client.Fetch(context.Background(), "Case A"); outcome.Available {
		t.Fatal("malformed body should be unavailable")
	}
}

package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxRetryJitter = 400 * time.Millisecond

// ClientOptions parameterise the Steam market price client.
type ClientOptions struct {
	BaseURL     string
	Country     string
	Currency    int
	AppID       int
	Timeout     time.Duration
	UserAgent   string
	Concurrency int
	RetryCount  int
	RetryDelay  time.Duration
}

// Client fetches item prices from the Steam community market priceoverview
// endpoint. At most Concurrency requests are in flight at once; every lookup
// is retried with exponential backoff before it is declared unavailable.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	sem     chan struct{}

	// sleep is swapped out in tests to observe backoff behaviour.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Steam market price client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://steamcommunity.com/market/priceoverview"
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 1200 * time.Millisecond
	}
	if opts.AppID <= 0 {
		opts.AppID = 730
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "steam_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		sem:     make(chan struct{}, concurrency),
		sleep:   sleepContext,
	}
}

// Fetch retrieves the current lowest market price text for one item. Upstream
// failure of any kind (transport error, non-200 status, malformed payload,
// missing price field) degrades to the unavailable outcome; no error escapes.
func (c *Client) Fetch(ctx context.Context, name string) Outcome {
	delay := c.opts.RetryDelay

	for attempt := 1; attempt <= c.opts.RetryCount; attempt++ {
		raw, ok := c.oneRequest(ctx, name)
		if ok {
			return Outcome{Raw: raw, Available: true}
		}

		if attempt == c.opts.RetryCount {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(maxRetryJitter)))
		if err := c.sleep(ctx, delay+jitter); err != nil {
			break
		}
		delay *= 2
	}

	c.logger.Debug().Str("item", name).Int("attempts", c.opts.RetryCount).Msg("price unavailable after retries")
	return Outcome{Raw: Unavailable, Available: false}
}

func (c *Client) oneRequest(ctx context.Context, name string) (string, bool) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return "", false
	}
	defer func() { <-c.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(name), nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("item", name).Msg("price request failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("item", name).Msg("price request rejected")
		return "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}

	var overview priceOverview
	if err := json.Unmarshal(body, &overview); err != nil {
		return "", false
	}

	price := strings.TrimSpace(overview.LowestPrice)
	if price == "" || strings.EqualFold(price, Unavailable) {
		return "", false
	}
	return price, true
}

func (c *Client) requestURL(name string) string {
	query := url.Values{}
	query.Set("country", c.opts.Country)
	query.Set("currency", fmt.Sprintf("%d", c.opts.Currency))
	query.Set("appid", fmt.Sprintf("%d", c.opts.AppID))
	query.Set("market_hash_name", name)
	return c.baseURL + "/?" + query.Encode()
}

type priceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ PriceFetcher = (*Client)(nil)

package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"case-price-watcher/internal/analytics"
)

// Digest bundles the market summary pushed to notification sinks.
type Digest struct {
	Overview    analytics.Overview
	Gainers     []analytics.Mover
	Losers      []analytics.Mover
	Volatile    []analytics.VolatileItem
	GeneratedAt time.Time
}

// Notifier delivers alert events and market digests to an external sink.
// Both methods must be independently invokable per event so one failed
// delivery never blocks the rest.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	NotifyDigest(ctx context.Context, digest Digest) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram sink.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify pushes one alert event as a text message.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.sendMessage(ctx, renderEvent(event)); err != nil {
		return err
	}
	n.logger.Info().Str("item", event.ItemName).
		Str("period", event.Period).
		Str("type", event.Type).
		Msg("alert delivered (telegram)")
	return nil
}

// NotifyDigest pushes the market digest as a single message.
func (n *TelegramNotifier) NotifyDigest(ctx context.Context, digest Digest) error {
	if err := n.sendMessage(ctx, renderDigest(digest)); err != nil {
		return err
	}
	n.logger.Info().Time("generated_at", digest.GeneratedAt).Msg("digest delivered (telegram)")
	return nil
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}
	return nil
}

func renderEvent(event Event) string {
	arrow := "▼"
	if event.Type == TypeIncrease {
		arrow = "▲"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s [Price Alert] %s\n", arrow, event.ItemName))
	builder.WriteString(fmt.Sprintf("Change (%s): %s%%\n", event.Period, event.PriceChange.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Price: %s → %s\n", event.PreviousPrice.StringFixed(2), event.CurrentPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("At: %s UTC\n", event.Timestamp.UTC().Format(time.RFC3339)))
	return builder.String()
}

func renderDigest(digest Digest) string {
	builder := strings.Builder{}
	builder.WriteString("[Market Digest]\n")
	builder.WriteString(fmt.Sprintf("Items: %d (%d with statistics)\n", digest.Overview.TotalItems, digest.Overview.ItemsWithStats))
	builder.WriteString(fmt.Sprintf("Average price: %s\n", digest.Overview.AveragePrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("24h movers: %d up / %d down, sentiment %s\n", digest.Overview.Gainers24h, digest.Overview.Losers24h, digest.Overview.Sentiment))

	if len(digest.Gainers) > 0 {
		builder.WriteString("Top gainers:\n")
		for _, mover := range digest.Gainers {
			builder.WriteString(fmt.Sprintf("  %s %s%%\n", mover.Name, mover.PriceChange.StringFixed(2)))
		}
	}
	if len(digest.Losers) > 0 {
		builder.WriteString("Top losers:\n")
		for _, mover := range digest.Losers {
			builder.WriteString(fmt.Sprintf("  %s %s%%\n", mover.Name, mover.PriceChange.StringFixed(2)))
		}
	}
	if len(digest.Volatile) > 0 {
		builder.WriteString("Most volatile:\n")
		for _, item := range digest.Volatile {
			builder.WriteString(fmt.Sprintf("  %s σ=%.2f range=%.2f\n", item.Name, item.Volatility, item.PriceRange))
		}
	}
	builder.WriteString(fmt.Sprintf("Generated: %s UTC\n", digest.GeneratedAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

// LogNotifier reports alerts through the structured log, the always-available
// fallback channel.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log sink.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify writes one alert event to the log.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.logger.Warn().
		Str("item", event.ItemName).
		Str("period", event.Period).
		Str("type", event.Type).
		Str("change_pct", event.PriceChange.StringFixed(2)).
		Str("previous", event.PreviousPrice.StringFixed(2)).
		Str("current", event.CurrentPrice.StringFixed(2)).
		Msg("price alert")
	return nil
}

// NotifyDigest writes the digest summary line to the log.
func (n *LogNotifier) NotifyDigest(ctx context.Context, digest Digest) error {
	n.logger.Info().
		Int64("items", digest.Overview.TotalItems).
		Int("gainers_24h", digest.Overview.Gainers24h).
		Int("losers_24h", digest.Overview.Losers24h).
		Str("sentiment", digest.Overview.Sentiment).
		Msg("market digest")
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)

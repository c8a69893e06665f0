package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"case-price-watcher/internal/alerting"
	"case-price-watcher/internal/config"
	"case-price-watcher/internal/fetcher"
	"case-price-watcher/internal/scheduler"
	"case-price-watcher/internal/service"
	"case-price-watcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newCatalogFetcher() fetcher.CatalogFetcher {
	client := fetcher.NewClient(fetcher.ClientOptions{
		BaseURL:     a.Config.Steam.BaseURL,
		Country:     a.Config.Steam.Country,
		Currency:    a.Config.Steam.Currency,
		AppID:       a.Config.Steam.AppID,
		Timeout:     a.Config.Steam.RequestTimeout,
		UserAgent:   a.Config.Steam.UserAgent,
		Concurrency: a.Config.Fetch.Concurrency,
		RetryCount:  a.Config.Fetch.RetryCount,
		RetryDelay:  a.Config.Fetch.RetryDelay,
	}, a.Logger)

	return fetcher.NewOrchestrator(fetcher.OrchestratorOptions{
		BatchSize:  a.Config.Fetch.BatchSize,
		BatchSleep: a.Config.Fetch.BatchSleep,
	}, client, a.Logger)
}

func (a *App) newNotifiers() []alerting.Notifier {
	notifiers := make([]alerting.Notifier, 0, len(a.Config.Alerting.Channels))
	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case "telegram":
			if !a.Config.Alerting.Telegram.Enabled {
				continue
			}
			cfg := a.Config.Alerting.Telegram
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		case "log":
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	return notifiers
}

func (a *App) newDispatcher() *alerting.Dispatcher {
	return alerting.NewDispatcher(a.newNotifiers(), a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) *service.Service {
	evaluator := alerting.NewEvaluator(store, store, a.Logger)
	return service.New(a.Config, sched, a.newCatalogFetcher(), store, store, store, evaluator, a.newDispatcher(), a.Logger)
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Msg("starting watcher service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher service stopped")
	return nil
}

// Fetch prices the whole catalog exactly once.
func (a *App) Fetch(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store, nil)

	report, err := svc.RefreshOnce(ctx)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("items", report.Items).
		Int("priced", report.Priced).
		Int("unavailable", report.Unavailable).
		Int("failed", report.Failed).
		Int("alerts", report.AlertsFound).
		Msg("one-shot fetch completed")
	return nil
}

// Recompute re-derives every item's statistics from stored samples.
func (a *App) Recompute(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store, nil)

	updated, err := svc.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("updated", updated).Msg("statistics recomputed")
	return nil
}

// Cleanup deletes price samples older than the retention horizon.
func (a *App) Cleanup(ctx context.Context, opts CleanupOptions) error {
	days := opts.Days
	if days <= 0 {
		days = a.Config.Retention.Days
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := store.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	a.Logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("retention sweep completed")
	return nil
}

// ExportOptions hold parameters for exporting historical data.
type ExportOptions struct {
	Item      string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	XLSXPath  string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ImportOptions configure catalog import.
type ImportOptions struct {
	Path   string
	DryRun bool
}

// DigestOptions configure the digest command.
type DigestOptions struct {
	Period int
	Limit  int
	Notify bool
}

// CleanupOptions configure the retention sweep.
type CleanupOptions struct {
	Days int
}

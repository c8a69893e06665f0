package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"case-price-watcher/internal/alerting"
	"case-price-watcher/internal/config"
	"case-price-watcher/internal/fetcher"
	"case-price-watcher/internal/normalize"
	"case-price-watcher/internal/scheduler"
	"case-price-watcher/internal/stats"
	"case-price-watcher/internal/storage"
)

// steamCurrencyTags maps Steam currency codes to the tag recorded on samples.
var steamCurrencyTags = map[int]string{
	1: "USD",
	2: "GBP",
	3: "EUR",
	5: "RUB",
}

// RunReport summarises one refresh run. Partial failures leave the run
// successful; only an unreadable or empty catalog fails it outright.
type RunReport struct {
	Items           int
	Priced          int
	Unavailable     int
	Failed          int
	AlertsFound     int
	AlertsDelivered int
}

// Service orchestrates fetching, normalisation, persistence, statistics
// recomputation, and alerting for one catalog.
type Service struct {
	scheduler  *scheduler.Scheduler
	catalog    fetcher.CatalogFetcher
	items      storage.ItemStore
	samples    storage.SampleStore
	stats      storage.StatisticsStore
	evaluator  *alerting.Evaluator
	dispatcher *alerting.Dispatcher
	logger     zerolog.Logger

	currency string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
	now      func() time.Time
}

// New constructs the refresh service.
func New(cfg *config.Config, sched *scheduler.Scheduler, catalog fetcher.CatalogFetcher, items storage.ItemStore, samples storage.SampleStore, statsStore storage.StatisticsStore, evaluator *alerting.Evaluator, dispatcher *alerting.Dispatcher, logger zerolog.Logger) *Service {
	currency := steamCurrencyTags[cfg.Steam.Currency]
	if currency == "" {
		currency = "RUB"
	}

	var locker storage.AdvisoryLocker
	if l, ok := items.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		catalog:    catalog,
		items:      items,
		samples:    samples,
		stats:      statsStore,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "service").Logger(),
		currency:   currency,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		now:        time.Now,
	}
}

// Run begins the aligned refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket executes one scheduled refresh, skipping when another
// instance holds the advisory lock.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip refresh because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	report, err := s.RefreshOnce(ctx)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("items", report.Items).
		Int("priced", report.Priced).
		Int("unavailable", report.Unavailable).
		Int("failed", report.Failed).
		Int("alerts", report.AlertsFound).
		Msg("refresh completed")
	return nil
}

// RefreshOnce prices the whole catalog once: fetch in batches, normalise,
// persist samples, recompute per-item statistics, then evaluate and dispatch
// alerts. An item that cannot be priced or persisted never aborts its
// siblings.
func (s *Service) RefreshOnce(ctx context.Context) (RunReport, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("read catalog: %w", err)
	}
	if len(items) == 0 {
		return RunReport{}, fmt.Errorf("catalog is empty")
	}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}

	outcomes, err := s.catalog.FetchCatalog(ctx, names)
	if err != nil {
		return RunReport{Items: len(items)}, fmt.Errorf("fetch catalog: %w", err)
	}

	report := RunReport{Items: len(items)}
	now := s.now().UTC()

	for _, item := range items {
		outcome := outcomes[item.Name]
		if !outcome.Available {
			report.Unavailable++
			continue
		}

		price, ok := normalize.Price(outcome.Raw)
		if !ok {
			s.logger.Debug().Str("item", item.Name).Str("raw", outcome.Raw).Msg("unparseable price text")
			report.Unavailable++
			continue
		}

		if err := s.samples.InsertSample(ctx, item.ID, price, s.currency, now); err != nil {
			s.logger.Error().Err(err).Str("item", item.Name).Msg("failed to persist sample")
			report.Failed++
			continue
		}

		if err := s.recomputeStatistics(ctx, item, now); err != nil {
			s.logger.Error().Err(err).Str("item", item.Name).Msg("failed to recompute statistics")
			report.Failed++
			continue
		}

		report.Priced++
	}

	if s.alertsOn && s.evaluator != nil && s.dispatcher != nil {
		events, err := s.evaluator.Evaluate(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("alert evaluation failed")
		} else {
			report.AlertsFound = len(events)
			report.AlertsDelivered = s.dispatcher.Dispatch(ctx, events)
		}
	}

	return report, nil
}

// RecomputeAll re-derives every item's statistics row from its stored
// samples. Recomputation is idempotent: an unchanged series yields an
// identical row.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	now := s.now().UTC()
	updated := 0
	for _, item := range items {
		if err := s.recomputeStatistics(ctx, item, now); err != nil {
			s.logger.Error().Err(err).Str("item", item.Name).Msg("failed to recompute statistics")
			continue
		}
		updated++
	}
	return updated, nil
}

func (s *Service) recomputeStatistics(ctx context.Context, item storage.Item, now time.Time) error {
	windowStart := now.AddDate(0, 0, -stats.WindowDays)
	samples, err := s.samples.ListSamplesSince(ctx, item.ID, windowStart)
	if err != nil {
		return err
	}

	result, ok := stats.Compute(samples, now)
	if !ok {
		return nil
	}

	return s.stats.UpsertStatistics(ctx, stats.Row(item, result))
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

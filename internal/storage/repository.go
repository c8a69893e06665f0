package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertItemSQL = `INSERT INTO items (
        id,
        name,
        steam_url,
        position,
        created_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,NOW(),NOW()
    )
    ON CONFLICT (name) DO UPDATE
    SET
        steam_url  = COALESCE(EXCLUDED.steam_url, items.steam_url),
        position   = EXCLUDED.position,
        updated_at = NOW()
    RETURNING id, name, steam_url, position, created_at, updated_at;`

	listItemsSQL = `SELECT
        id, name, steam_url, position, created_at, updated_at
    FROM items
    ORDER BY position, name;`

	getItemByNameSQL = `SELECT
        id, name, steam_url, position, created_at, updated_at
    FROM items
    WHERE name = $1;`

	countItemsSQL = `SELECT COUNT(*) FROM items;`

	insertSampleSQL = `INSERT INTO price_samples (
        item_id,
        price,
        currency,
        ts
    ) VALUES (
        $1,$2,$3,$4
    );`

	listSamplesSinceSQL = `SELECT
        id, item_id, price, currency, ts
    FROM price_samples
    WHERE item_id = $1
      AND ts >= $2
    ORDER BY ts;`

	earliestSampleSinceSQL = `SELECT
        id, item_id, price, currency, ts
    FROM price_samples
    WHERE item_id = $1
      AND ts >= $2
    ORDER BY ts
    LIMIT 1;`

	latestSampleSQL = `SELECT
        id, item_id, price, currency, ts
    FROM price_samples
    WHERE item_id = $1
    ORDER BY ts DESC
    LIMIT 1;`

	deleteSamplesBeforeSQL = `DELETE FROM price_samples WHERE ts < $1;`

	upsertStatisticsSQL = `INSERT INTO item_statistics (
        item_id,
        current_price,
        min_price_30d,
        max_price_30d,
        avg_price_30d,
        price_change_24h,
        price_change_7d,
        price_change_30d,
        last_updated
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (item_id) DO UPDATE
    SET
        current_price    = EXCLUDED.current_price,
        min_price_30d    = EXCLUDED.min_price_30d,
        max_price_30d    = EXCLUDED.max_price_30d,
        avg_price_30d    = EXCLUDED.avg_price_30d,
        price_change_24h = EXCLUDED.price_change_24h,
        price_change_7d  = EXCLUDED.price_change_7d,
        price_change_30d = EXCLUDED.price_change_30d,
        last_updated     = EXCLUDED.last_updated;`

	getStatisticsSQL = `SELECT
        s.item_id,
        i.name,
        s.current_price,
        s.min_price_30d,
        s.max_price_30d,
        s.avg_price_30d,
        s.price_change_24h,
        s.price_change_7d,
        s.price_change_30d,
        s.last_updated
    FROM item_statistics s
    JOIN items i ON i.id = s.item_id
    WHERE s.item_id = $1;`

	listStatisticsSQL = `SELECT
        s.item_id,
        i.name,
        s.current_price,
        s.min_price_30d,
        s.max_price_30d,
        s.avg_price_30d,
        s.price_change_24h,
        s.price_change_7d,
        s.price_change_30d,
        s.last_updated
    FROM item_statistics s
    JOIN items i ON i.id = s.item_id
    ORDER BY i.position, i.name;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ItemStore defines catalog persistence operations.
type ItemStore interface {
	UpsertItem(ctx context.Context, name string, steamURL *string, position int) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	GetItemByName(ctx context.Context, name string) (*Item, error)
	CountItems(ctx context.Context) (int64, error)
}

// SampleStore defines price sample persistence operations.
type SampleStore interface {
	InsertSample(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, currency string, ts time.Time) error
	ListSamplesSince(ctx context.Context, itemID uuid.UUID, since time.Time) ([]PriceSample, error)
	EarliestSampleSince(ctx context.Context, itemID uuid.UUID, since time.Time) (*PriceSample, error)
	LatestSample(ctx context.Context, itemID uuid.UUID) (*PriceSample, error)
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatisticsStore defines derived statistics persistence operations.
type StatisticsStore interface {
	UpsertStatistics(ctx context.Context, stats ItemStatistics) error
	GetStatistics(ctx context.Context, itemID uuid.UUID) (*ItemStatistics, error)
	ListStatistics(ctx context.Context) ([]ItemStatistics, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to items, samples, and statistics.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertItem creates the item on first sighting or refreshes its reference
// URL and catalog position.
func (s *Store) UpsertItem(ctx context.Context, name string, steamURL *string, position int) (Item, error) {
	pool, err := s.getPool()
	if err != nil {
		return Item{}, err
	}

	row := pool.QueryRow(ctx, upsertItemSQL, uuid.New(), name, steamURL, position)
	item, scanErr := scanItemRow(row)
	if scanErr != nil {
		return Item{}, fmt.Errorf("upsert item: %w", scanErr)
	}
	return item, nil
}

// ListItems returns the full catalog in stable order.
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listItemsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list items: %w", queryErr)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, scanErr := scanItemRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// GetItemByName resolves an item by its stable name, nil when absent.
func (s *Store) GetItemByName(ctx context.Context, name string) (*Item, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getItemByNameSQL, name)
	item, scanErr := scanItemRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item by name: %w", scanErr)
	}
	return &item, nil
}

// CountItems counts catalog entries.
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countItemsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count items: %w", scanErr)
	}
	return count, nil
}

// InsertSample appends one price observation.
func (s *Store) InsertSample(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, currency string, ts time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertSampleSQL, itemID, price.String(), currency, ts); execErr != nil {
		return fmt.Errorf("insert sample: %w", execErr)
	}
	return nil
}

// ListSamplesSince lists an item's samples at or after the given instant,
// ascending by timestamp.
func (s *Store) ListSamplesSince(ctx context.Context, itemID uuid.UUID, since time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesSinceSQL, itemID, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples since: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PriceSample, 0)
	for rows.Next() {
		sample, scanErr := scanSampleRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// EarliestSampleSince returns the first sample at or after the given instant,
// nil when none exists.
func (s *Store) EarliestSampleSince(ctx context.Context, itemID uuid.UUID, since time.Time) (*PriceSample, error) {
	return s.singleSample(ctx, earliestSampleSinceSQL, itemID, &since)
}

// LatestSample returns the most recent sample for an item, nil when none exists.
func (s *Store) LatestSample(ctx context.Context, itemID uuid.UUID) (*PriceSample, error) {
	return s.singleSample(ctx, latestSampleSQL, itemID, nil)
}

func (s *Store) singleSample(ctx context.Context, query string, itemID uuid.UUID, since *time.Time) (*PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	args := []interface{}{itemID}
	if since != nil {
		args = append(args, *since)
	}

	row := pool.QueryRow(ctx, query, args...)
	sample, scanErr := scanSampleRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query sample: %w", scanErr)
	}
	return &sample, nil
}

// DeleteSamplesBefore removes samples older than the cutoff and reports how
// many rows went away. This is the retention sweep; nothing else deletes samples.
func (s *Store) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteSamplesBeforeSQL, cutoff)
	if execErr != nil {
		return 0, fmt.Errorf("delete samples before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// UpsertStatistics creates or fully overwrites an item's statistics row.
func (s *Store) UpsertStatistics(ctx context.Context, stats ItemStatistics) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var current interface{}
	if stats.CurrentPrice != nil {
		current = stats.CurrentPrice.String()
	}

	_, execErr := pool.Exec(ctx, upsertStatisticsSQL,
		stats.ItemID,
		current,
		stats.MinPrice30d.String(),
		stats.MaxPrice30d.String(),
		stats.AvgPrice30d.String(),
		stats.PriceChange24h.String(),
		stats.PriceChange7d.String(),
		stats.PriceChange30d.String(),
		stats.LastUpdated,
	)
	if execErr != nil {
		return fmt.Errorf("upsert statistics: %w", execErr)
	}
	return nil
}

// GetStatistics returns an item's statistics row, nil when none exists yet.
func (s *Store) GetStatistics(ctx context.Context, itemID uuid.UUID) (*ItemStatistics, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getStatisticsSQL, itemID)
	stats, scanErr := scanStatisticsRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get statistics: %w", scanErr)
	}
	return &stats, nil
}

// ListStatistics returns every statistics row joined with its item name.
func (s *Store) ListStatistics(ctx context.Context) ([]ItemStatistics, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listStatisticsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list statistics: %w", queryErr)
	}
	defer rows.Close()

	list := make([]ItemStatistics, 0)
	for rows.Next() {
		stats, scanErr := scanStatisticsRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		list = append(list, stats)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItemRow(row rowScanner) (Item, error) {
	var (
		item     Item
		steamURL sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&steamURL,
		&item.Position,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return Item{}, err
	}
	if steamURL.Valid {
		value := steamURL.String
		item.SteamURL = &value
	}
	return item, nil
}

func scanSampleRow(row rowScanner) (PriceSample, error) {
	var (
		sample   PriceSample
		priceStr string
	)
	if err := row.Scan(
		&sample.ID,
		&sample.ItemID,
		&priceStr,
		&sample.Currency,
		&sample.TS,
	); err != nil {
		return PriceSample{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PriceSample{}, fmt.Errorf("parse sample price: %w", err)
	}
	sample.Price = price
	return sample, nil
}

func scanStatisticsRow(row rowScanner) (ItemStatistics, error) {
	var (
		stats      ItemStatistics
		currentStr sql.NullString
		minStr     string
		maxStr     string
		avgStr     string
		ch24Str    string
		ch7Str     string
		ch30Str    string
	)
	if err := row.Scan(
		&stats.ItemID,
		&stats.ItemName,
		&currentStr,
		&minStr,
		&maxStr,
		&avgStr,
		&ch24Str,
		&ch7Str,
		&ch30Str,
		&stats.LastUpdated,
	); err != nil {
		return ItemStatistics{}, err
	}

	if currentStr.Valid {
		current, err := decimal.NewFromString(currentStr.String)
		if err != nil {
			return ItemStatistics{}, fmt.Errorf("parse current price: %w", err)
		}
		stats.CurrentPrice = &current
	}

	var err error
	if stats.MinPrice30d, err = decimal.NewFromString(minStr); err != nil {
		return ItemStatistics{}, fmt.Errorf("parse min price: %w", err)
	}
	if stats.MaxPrice30d, err = decimal.NewFromString(maxStr); err != nil {
		return ItemStatistics{}, fmt.Errorf("parse max price: %w", err)
	}
	if stats.AvgPrice30d, err = decimal.NewFromString(avgStr); err != nil {
		return ItemStatistics{}, fmt.Errorf("parse avg price: %w", err)
	}
	if stats.PriceChange24h, err = decimal.NewFromString(ch24Str); err != nil {
		return ItemStatistics{}, fmt.Errorf("parse 24h change: %w", err)
	}
	if stats.PriceChange7d, err = decimal.NewFromString(ch7Str); err != nil {
		return ItemStatistics{}, fmt.Errorf("parse 7d change: %w", err)
	}
	if stats.PriceChange30d, err = decimal.NewFromString(ch30Str); err != nil {
		return ItemStatistics{}, fmt.Errorf("parse 30d change: %w", err)
	}

	return stats, nil
}

var (
	_ ItemStore       = (*Store)(nil)
	_ SampleStore     = (*Store)(nil)
	_ StatisticsStore = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)

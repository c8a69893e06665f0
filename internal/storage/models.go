package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one tradable catalog entry. The name is its stable identity; the
// position records catalog order for the spreadsheet boundary.
type Item struct {
	ID        uuid.UUID
	Name      string
	SteamURL  *string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceSample is one timestamped price observation. Samples are append-only
// and ordered by timestamp per item.
type PriceSample struct {
	ID       int64
	ItemID   uuid.UUID
	Price    decimal.Decimal
	Currency string
	TS       time.Time
}

// ItemStatistics is the derived per-item row: a cache fully recomputable from
// the sample series, never a source of truth.
type ItemStatistics struct {
	ItemID         uuid.UUID
	ItemName       string
	CurrentPrice   *decimal.Decimal
	MinPrice30d    decimal.Decimal
	MaxPrice30d    decimal.Decimal
	AvgPrice30d    decimal.Decimal
	PriceChange24h decimal.Decimal
	PriceChange7d  decimal.Decimal
	PriceChange30d decimal.Decimal
	LastUpdated    time.Time
}

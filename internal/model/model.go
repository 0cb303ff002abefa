// Package model defines the core domain types shared across the ledger engine.
// All monetary values and share quantities use shopspring/decimal — never
// float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade kinds.
const (
	KindBuy  = "buy"
	KindSell = "sell"
)

// DefaultCash is the starting balance granted to every new user, and the
// balance restored by a reset.
var DefaultCash = decimal.NewFromInt(1_000_000)

// User holds virtual cash. Cash is mutated only by trade execution or an
// administrative reset.
type User struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Cash      decimal.Decimal `json:"cash" db:"cash"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Asset is the last-known quote for a symbol. Created on first lookup,
// price refreshed on every subsequent lookup or trade. The price is a
// cache of the quote provider, not ledger truth.
type Asset struct {
	ID        string          `json:"id" db:"id"`
	Symbol    string          `json:"symbol" db:"symbol"` // unique, uppercase
	Name      string          `json:"name" db:"name"`
	LastPrice decimal.Decimal `json:"last_price" db:"last_price"`
}

// Holding is a user's current share count in one asset, unique per
// (user, asset). Qty 0 represents a watchlist entry: watching, not owning.
// Qty never goes negative.
type Holding struct {
	UserID  string          `json:"user_id" db:"user_id"`
	AssetID string          `json:"asset_id" db:"asset_id"`
	Qty     decimal.Decimal `json:"qty" db:"qty"`
}

// Trade is an immutable record of an executed order. Once written these
// are never modified or deleted; they are the authoritative history for
// cost-basis and leaderboard derivation.
type Trade struct {
	ID      string          `json:"id" db:"id"`
	Kind    string          `json:"kind" db:"kind"` // "buy" or "sell"
	UserID  string          `json:"user_id" db:"user_id"`
	AssetID string          `json:"asset_id" db:"asset_id"`
	Qty     decimal.Decimal `json:"qty" db:"qty"`
	Price   decimal.Decimal `json:"price" db:"price"`
	At      time.Time       `json:"at" db:"at"`
}

// Skull is one entry of the static achievement catalog. Not user data.
type Skull struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HoldingView is a holding joined with its asset, as shown in the
// portfolio view and consumed by the leaderboard aggregator.
type HoldingView struct {
	AssetID string          `json:"asset_id"`
	Symbol  string          `json:"symbol"`
	Name    string          `json:"name"`
	Qty     decimal.Decimal `json:"qty"`
	Price   decimal.Decimal `json:"price"`
	Value   decimal.Decimal `json:"value"` // qty × price
}

// TradeView is a trade joined with its asset symbol, for history listings.
type TradeView struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	Symbol string          `json:"symbol"`
	Qty    decimal.Decimal `json:"qty"`
	Price  decimal.Decimal `json:"price"`
	At     time.Time       `json:"at"`
}

// Portfolio is the valuation snapshot for one user: cash plus every
// holding marked at the asset's last price.
type Portfolio struct {
	UserID     string          `json:"user_id"`
	Name       string          `json:"name"`
	Cash       decimal.Decimal `json:"cash"`
	Holdings   []HoldingView   `json:"holdings"`
	AssetValue decimal.Decimal `json:"asset_value"` // Σ qty × price
	Total      decimal.Decimal `json:"total"`       // cash + asset value
}

// Package store defines the persistence interface for the ledger engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// ErrInsufficientCash is returned by ApplyTrade when the cash delta would
// take the balance below zero. The ledger is left untouched.
var ErrInsufficientCash = errors.New("store: insufficient cash")

// TradeMutation is the atomic unit of an executed order: the signed cash
// delta, the new holding quantity, the refreshed asset price, and the
// immutable trade record. Implementations must apply all four together or
// not at all.
//
// Cash is a delta, not an absolute, because cash is per-user state shared
// by concurrent orders on different assets: the store applies it against
// the current balance inside the atomic unit, so no order can overwrite
// another's debit. Quantity is absolute; the engine serializes per
// (user, asset), so no other writer touches the same holding.
type TradeMutation struct {
	UserID    string
	AssetID   string
	Symbol    string // for cache invalidation
	CashDelta decimal.Decimal // negative for a buy, positive for a sell
	NewQty    decimal.Decimal
	Price     decimal.Decimal
	Trade     *model.Trade
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer on top of it.
type Store interface {
	// --- Users ---

	// CreateUser persists a new user.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]model.User, error)

	// --- Asset catalog ---

	// GetAssetBySymbol retrieves an asset by its uppercase symbol.
	GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error)

	// UpsertAsset creates the asset for a symbol or refreshes its name and
	// last price, returning the stored row (with its ID).
	UpsertAsset(ctx context.Context, a *model.Asset) (*model.Asset, error)

	// SearchAsset returns the first asset matching an exact symbol or a
	// name substring, or ErrNotFound.
	SearchAsset(ctx context.Context, q string) (*model.Asset, error)

	// --- Holdings ---

	// GetHolding retrieves one (user, asset) holding row.
	GetHolding(ctx context.Context, userID, assetID string) (*model.Holding, error)

	// UpsertHolding creates or replaces a holding row.
	UpsertHolding(ctx context.Context, h *model.Holding) error

	// CreateHoldingIfAbsent inserts a holding row only when the (user,
	// asset) pair has none; an existing row is never modified.
	CreateHoldingIfAbsent(ctx context.Context, h *model.Holding) error

	// DeleteHolding removes a holding row (unwatch).
	DeleteHolding(ctx context.Context, userID, assetID string) error

	// GetUserHoldings returns a user's holdings joined with their assets,
	// ordered by asset name.
	GetUserHoldings(ctx context.Context, userID string) ([]model.HoldingView, error)

	// --- Trade ledger ---

	// ApplyTrade applies an executed order atomically: user cash, holding
	// qty, trade insert, and asset price commit together or not at all.
	// Returns the post-trade cash balance, or ErrInsufficientCash when the
	// delta would overdraw it.
	ApplyTrade(ctx context.Context, m *TradeMutation) (decimal.Decimal, error)

	// GetTradesByUserAsset returns one user's trades in one asset in
	// chronological order.
	GetTradesByUserAsset(ctx context.Context, userID, assetID string) ([]model.Trade, error)

	// GetTradeHistory returns a user's trades joined with symbols,
	// newest first.
	GetTradeHistory(ctx context.Context, userID string) ([]model.TradeView, error)

	// --- Badges ---

	// BadgeIDs returns the set of skull IDs already earned by a user.
	BadgeIDs(ctx context.Context, userID string) (map[int]bool, error)

	// AwardBadge records an earned badge. Returns false when the user
	// already owns it; a duplicate award is a no-op, never an error.
	AwardBadge(ctx context.Context, userID string, skullID int) (bool, error)

	// --- Administrative reset ---

	// ResetUser clears one user's trades, holdings, and badges and
	// restores the default cash balance.
	ResetUser(ctx context.Context, userID string) error

	// ResetAll does the same for every user.
	ResetAll(ctx context.Context) error
}

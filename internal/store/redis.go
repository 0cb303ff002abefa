package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot paths: asset-by-symbol lookups and per-user holdings.
// Writes go to the primary store and invalidate the cache; reads check
// Redis first then fall back to the primary. The asset price is a quote
// cache, so last-writer-wins staleness is acceptable here.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	data, err := s.rdb.Get(ctx, assetKey(symbol)).Bytes()
	if err == nil {
		var a model.Asset
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cacheAsset(ctx, a)
	return a, nil
}

func (s *CachedStore) GetUserHoldings(ctx context.Context, userID string) ([]model.HoldingView, error) {
	data, err := s.rdb.Get(ctx, holdingsKey(userID)).Bytes()
	if err == nil {
		var views []model.HoldingView
		if json.Unmarshal(data, &views) == nil {
			return views, nil
		}
	}

	views, err := s.primary.GetUserHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(views); err == nil {
		s.rdb.Set(ctx, holdingsKey(userID), data, s.ttl)
	}
	return views, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertAsset(ctx context.Context, a *model.Asset) (*model.Asset, error) {
	stored, err := s.primary.UpsertAsset(ctx, a)
	if err != nil {
		return nil, err
	}
	s.cacheAsset(ctx, stored)
	return stored, nil
}

func (s *CachedStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	if err := s.primary.UpsertHolding(ctx, h); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(h.UserID))
	return nil
}

func (s *CachedStore) CreateHoldingIfAbsent(ctx context.Context, h *model.Holding) error {
	if err := s.primary.CreateHoldingIfAbsent(ctx, h); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(h.UserID))
	return nil
}

func (s *CachedStore) DeleteHolding(ctx context.Context, userID, assetID string) error {
	if err := s.primary.DeleteHolding(ctx, userID, assetID); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(userID))
	return nil
}

func (s *CachedStore) ApplyTrade(ctx context.Context, m *TradeMutation) (decimal.Decimal, error) {
	newCash, err := s.primary.ApplyTrade(ctx, m)
	if err != nil {
		return decimal.Zero, err
	}
	// Invalidate the holdings snapshot and the asset entry; the next read
	// re-populates both with the refreshed price.
	s.rdb.Del(ctx, holdingsKey(m.UserID), assetKey(m.Symbol))
	return newCash, nil
}

func (s *CachedStore) ResetUser(ctx context.Context, userID string) error {
	if err := s.primary.ResetUser(ctx, userID); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(userID))
	return nil
}

func (s *CachedStore) ResetAll(ctx context.Context) error {
	if err := s.primary.ResetAll(ctx); err != nil {
		return err
	}
	// Holdings snapshots are TTL-bounded; expire rather than enumerate.
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.primary.GetUser(ctx, id)
}

func (s *CachedStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.primary.ListUsers(ctx)
}

func (s *CachedStore) SearchAsset(ctx context.Context, q string) (*model.Asset, error) {
	return s.primary.SearchAsset(ctx, q)
}

func (s *CachedStore) GetHolding(ctx context.Context, userID, assetID string) (*model.Holding, error) {
	return s.primary.GetHolding(ctx, userID, assetID)
}

func (s *CachedStore) GetTradesByUserAsset(ctx context.Context, userID, assetID string) ([]model.Trade, error) {
	return s.primary.GetTradesByUserAsset(ctx, userID, assetID)
}

func (s *CachedStore) GetTradeHistory(ctx context.Context, userID string) ([]model.TradeView, error) {
	return s.primary.GetTradeHistory(ctx, userID)
}

func (s *CachedStore) BadgeIDs(ctx context.Context, userID string) (map[int]bool, error) {
	return s.primary.BadgeIDs(ctx, userID)
}

func (s *CachedStore) AwardBadge(ctx context.Context, userID string, skullID int) (bool, error) {
	return s.primary.AwardBadge(ctx, userID, skullID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAsset(ctx context.Context, a *model.Asset) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, assetKey(a.Symbol), data, s.ttl)
	}
}

func assetKey(symbol string) string { return fmt.Sprintf("asset:%s", symbol) }
func holdingsKey(uid string) string { return fmt.Sprintf("holdings:%s", uid) }

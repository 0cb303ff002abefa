package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	assets   map[string]*model.Asset            // by asset ID
	holdings map[string]map[string]*model.Holding // userID → assetID → holding
	trades   []model.Trade
	badges   map[string]map[int]bool // userID → skullID set
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.User),
		assets:   make(map[string]*model.Asset),
		holdings: make(map[string]map[string]*model.Holding),
		badges:   make(map[string]map[int]bool),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *MemoryStore) GetAssetBySymbol(_ context.Context, symbol string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := s.assetBySymbol(symbol)
	if a == nil {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

// assetBySymbol must be called with the lock held.
func (s *MemoryStore) assetBySymbol(symbol string) *model.Asset {
	for _, a := range s.assets {
		if a.Symbol == symbol {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) UpsertAsset(_ context.Context, a *model.Asset) (*model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.assetBySymbol(a.Symbol); existing != nil {
		existing.Name = a.Name
		existing.LastPrice = a.LastPrice
		out := *existing
		return &out, nil
	}

	c := *a
	s.assets[a.ID] = &c
	out := c
	return &out, nil
}

func (s *MemoryStore) SearchAsset(_ context.Context, q string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a := s.assetBySymbol(q); a != nil {
		c := *a
		return &c, nil
	}
	needle := strings.ToUpper(q)
	for _, a := range s.assets {
		if strings.Contains(strings.ToUpper(a.Name), needle) {
			c := *a
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetHolding(_ context.Context, userID, assetID string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[userID][assetID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *h
	return &c, nil
}

func (s *MemoryStore) UpsertHolding(_ context.Context, h *model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putHolding(h)
	return nil
}

// putHolding must be called with the lock held.
func (s *MemoryStore) putHolding(h *model.Holding) {
	byAsset, ok := s.holdings[h.UserID]
	if !ok {
		byAsset = make(map[string]*model.Holding)
		s.holdings[h.UserID] = byAsset
	}
	c := *h
	byAsset[h.AssetID] = &c
}

func (s *MemoryStore) CreateHoldingIfAbsent(_ context.Context, h *model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holdings[h.UserID][h.AssetID]; ok {
		return nil
	}
	s.putHolding(h)
	return nil
}

func (s *MemoryStore) DeleteHolding(_ context.Context, userID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holdings[userID], assetID)
	return nil
}

func (s *MemoryStore) GetUserHoldings(_ context.Context, userID string) ([]model.HoldingView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []model.HoldingView
	for assetID, h := range s.holdings[userID] {
		a := s.assets[assetID] // direct access, already under RLock
		if a == nil {
			continue
		}
		views = append(views, model.HoldingView{
			AssetID: assetID,
			Symbol:  a.Symbol,
			Name:    a.Name,
			Qty:     h.Qty,
			Price:   a.LastPrice,
			Value:   h.Qty.Mul(a.LastPrice),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views, nil
}

func (s *MemoryStore) ApplyTrade(_ context.Context, m *TradeMutation) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[m.UserID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	a, ok := s.assets[m.AssetID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}

	// The delta lands on whatever the balance is now, not on the snapshot
	// the engine validated against.
	newCash := u.Cash.Add(m.CashDelta)
	if newCash.IsNegative() {
		return decimal.Zero, ErrInsufficientCash
	}

	// Single lock: all four mutations are visible together or not at all.
	u.Cash = newCash
	s.putHolding(&model.Holding{UserID: m.UserID, AssetID: m.AssetID, Qty: m.NewQty})
	s.trades = append(s.trades, *m.Trade)
	a.LastPrice = m.Price
	return newCash, nil
}

func (s *MemoryStore) GetTradesByUserAsset(_ context.Context, userID, assetID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.trades {
		if t.UserID == userID && t.AssetID == assetID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTradeHistory(_ context.Context, userID string) ([]model.TradeView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeView
	for _, t := range s.trades {
		if t.UserID != userID {
			continue
		}
		symbol := ""
		if a := s.assets[t.AssetID]; a != nil {
			symbol = a.Symbol
		}
		result = append(result, model.TradeView{
			ID:     t.ID,
			Kind:   t.Kind,
			Symbol: symbol,
			Qty:    t.Qty,
			Price:  t.Price,
			At:     t.At,
		})
	}
	// Ledger order is chronological; history is served newest first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func (s *MemoryStore) BadgeIDs(_ context.Context, userID string) (map[int]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[int]bool, len(s.badges[userID]))
	for id := range s.badges[userID] {
		ids[id] = true
	}
	return ids, nil
}

func (s *MemoryStore) AwardBadge(_ context.Context, userID string, skullID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.badges[userID]
	if !ok {
		owned = make(map[int]bool)
		s.badges[userID] = owned
	}
	if owned[skullID] {
		return false, nil
	}
	owned[skullID] = true
	return true, nil
}

func (s *MemoryStore) ResetUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	s.resetLocked(u)
	return nil
}

func (s *MemoryStore) ResetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		s.resetLocked(u)
	}
	return nil
}

// resetLocked must be called with the lock held.
func (s *MemoryStore) resetLocked(u *model.User) {
	u.Cash = model.DefaultCash
	delete(s.holdings, u.ID)
	delete(s.badges, u.ID)

	kept := s.trades[:0]
	for _, t := range s.trades {
		if t.UserID != u.ID {
			kept = append(kept, t)
		}
	}
	s.trades = kept
}

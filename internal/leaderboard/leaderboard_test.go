package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/leaderboard"
	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// seed creates a user and optional holdings directly in the store.
func seed(t *testing.T, ms *store.MemoryStore, userID, name string, holdings map[string]float64) {
	t.Helper()
	ctx := context.Background()

	err := ms.CreateUser(ctx, &model.User{
		ID: userID, Name: name, Cash: model.DefaultCash, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	for symbol, qty := range holdings {
		assetID := "asset-" + symbol
		if _, err := ms.UpsertAsset(ctx, &model.Asset{
			ID: assetID, Symbol: symbol, Name: symbol + " Corp", LastPrice: d(100),
		}); err != nil {
			t.Fatalf("seed asset: %v", err)
		}
		if err := ms.UpsertHolding(ctx, &model.Holding{
			UserID: userID, AssetID: assetID, Qty: d(qty),
		}); err != nil {
			t.Fatalf("seed holding: %v", err)
		}
	}
}

func TestRank_OrdersByValueDescending(t *testing.T) {
	ms := store.NewMemoryStore()
	seed(t, ms, "u1", "alice", map[string]float64{"AAPL": 5})  // 500
	seed(t, ms, "u2", "bob", map[string]float64{"TSLA": 3})    // 300
	seed(t, ms, "u3", "carol", nil)                            // no holdings

	entries, err := leaderboard.Rank(context.Background(), ms)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "u1" || entries[1].UserID != "u2" {
		t.Errorf("order = [%s %s], want [u1 u2]", entries[0].UserID, entries[1].UserID)
	}
	if !entries[0].PortfolioValue.Equal(d(500)) {
		t.Errorf("u1 value = %s, want 500", entries[0].PortfolioValue)
	}
	if !entries[1].PortfolioValue.Equal(d(300)) {
		t.Errorf("u2 value = %s, want 300", entries[1].PortfolioValue)
	}
}

func TestRank_ExcludesWatchOnlyUsers(t *testing.T) {
	ms := store.NewMemoryStore()
	// Zero-qty holding is a watchlist entry, not a valued position.
	seed(t, ms, "u1", "alice", map[string]float64{"AAPL": 0})
	seed(t, ms, "u2", "bob", map[string]float64{"TSLA": 1})

	entries, err := leaderboard.Rank(context.Background(), ms)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	if len(entries) != 1 || entries[0].UserID != "u2" {
		t.Fatalf("expected only u2, got %+v", entries)
	}
}

func TestRank_TopSymbol(t *testing.T) {
	ms := store.NewMemoryStore()
	seed(t, ms, "u1", "alice", map[string]float64{"AAPL": 2, "TSLA": 7})

	entries, err := leaderboard.Rank(context.Background(), ms)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].TopSymbol != "TSLA" {
		t.Errorf("top symbol = %s, want TSLA", entries[0].TopSymbol)
	}
	if !entries[0].PortfolioValue.Equal(d(900)) {
		t.Errorf("value = %s, want 900", entries[0].PortfolioValue)
	}
}

func TestRank_Empty(t *testing.T) {
	ms := store.NewMemoryStore()

	entries, err := leaderboard.Rank(context.Background(), ms)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %d entries", len(entries))
	}
}

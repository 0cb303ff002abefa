package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedLedger(t *testing.T) (*MemoryStore, context.Context) {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.CreateUser(ctx, &model.User{
		ID: "u1", Name: "alice", Cash: model.DefaultCash, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for _, a := range []model.Asset{
		{ID: "a1", Symbol: "AAPL", Name: "Apple Inc", LastPrice: d(150)},
		{ID: "a2", Symbol: "TSLA", Name: "Tesla", LastPrice: d(100)},
	} {
		if _, err := s.UpsertAsset(ctx, &a); err != nil {
			t.Fatalf("seed asset: %v", err)
		}
	}
	return s, ctx
}

func mutation(assetID, symbol string, delta, qty float64) *TradeMutation {
	return &TradeMutation{
		UserID:    "u1",
		AssetID:   assetID,
		Symbol:    symbol,
		CashDelta: d(delta),
		NewQty:    d(qty),
		Price:     d(100),
		Trade: &model.Trade{
			ID: "t-" + assetID, Kind: model.KindBuy, UserID: "u1",
			AssetID: assetID, Qty: d(qty), Price: d(100), At: time.Now().UTC(),
		},
	}
}

func TestApplyTrade_DeltasCompose(t *testing.T) {
	s, ctx := seedLedger(t)

	// Two orders on different assets, both sized against the same starting
	// balance. Deltas compose: neither debit may overwrite the other.
	if _, err := s.ApplyTrade(ctx, mutation("a1", "AAPL", -1500, 10)); err != nil {
		t.Fatalf("first ApplyTrade: %v", err)
	}
	newCash, err := s.ApplyTrade(ctx, mutation("a2", "TSLA", -1000, 10))
	if err != nil {
		t.Fatalf("second ApplyTrade: %v", err)
	}

	want := model.DefaultCash.Sub(d(2500))
	if !newCash.Equal(want) {
		t.Errorf("returned cash = %s, want %s", newCash, want)
	}
	u, _ := s.GetUser(ctx, "u1")
	if !u.Cash.Equal(want) {
		t.Errorf("stored cash = %s, want %s", u.Cash, want)
	}
}

func TestApplyTrade_RefusesOverdraw(t *testing.T) {
	s, ctx := seedLedger(t)

	_, err := s.ApplyTrade(ctx, mutation("a1", "AAPL", -2_000_000, 10))
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("ApplyTrade = %v, want ErrInsufficientCash", err)
	}

	// Refused atomically: no cash, holding, or trade mutation.
	u, _ := s.GetUser(ctx, "u1")
	if !u.Cash.Equal(model.DefaultCash) {
		t.Errorf("cash = %s, want untouched", u.Cash)
	}
	if _, err := s.GetHolding(ctx, "u1", "a1"); !errors.Is(err, ErrNotFound) {
		t.Error("holding should not exist after a refused trade")
	}
	trades, _ := s.GetTradesByUserAsset(ctx, "u1", "a1")
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}
}

func TestCreateHoldingIfAbsent(t *testing.T) {
	s, ctx := seedLedger(t)

	// Absent: creates the watch row.
	if err := s.CreateHoldingIfAbsent(ctx, &model.Holding{UserID: "u1", AssetID: "a1"}); err != nil {
		t.Fatalf("CreateHoldingIfAbsent: %v", err)
	}
	h, err := s.GetHolding(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("GetHolding: %v", err)
	}
	if !h.Qty.IsZero() {
		t.Errorf("qty = %s, want 0", h.Qty)
	}

	// Present: an existing position survives untouched.
	if err := s.UpsertHolding(ctx, &model.Holding{UserID: "u1", AssetID: "a2", Qty: d(7)}); err != nil {
		t.Fatalf("UpsertHolding: %v", err)
	}
	if err := s.CreateHoldingIfAbsent(ctx, &model.Holding{UserID: "u1", AssetID: "a2"}); err != nil {
		t.Fatalf("CreateHoldingIfAbsent: %v", err)
	}
	h, _ = s.GetHolding(ctx, "u1", "a2")
	if !h.Qty.Equal(d(7)) {
		t.Errorf("qty = %s, want 7 (existing position must survive)", h.Qty)
	}
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/achievement"
	"github.com/papertrade/ledger-engine/internal/basis"
	"github.com/papertrade/ledger-engine/internal/metrics"
	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/quote"
	"github.com/papertrade/ledger-engine/internal/store"
)

// OrderRequest describes one buy or sell order. Exactly one of Shares,
// Amount, or Max sizes the order: an explicit share count, a dollar
// amount converted at the quoted price, or the maximum (all cash for a
// buy, the full position for a sell).
type OrderRequest struct {
	UserID string          `json:"user_id"`
	Symbol string          `json:"symbol"`
	Kind   string          `json:"kind"` // "buy" or "sell"
	Shares decimal.Decimal `json:"shares,omitempty"`
	Amount decimal.Decimal `json:"amount,omitempty"`
	Max    bool            `json:"max,omitempty"`
	View   string          `json:"view,omitempty"` // "portfolio" when placed from the portfolio view
}

// OrderResult is returned after a successful execution.
type OrderResult struct {
	Trade    model.Trade     `json:"trade"`
	Symbol   string          `json:"symbol"`
	Notional decimal.Decimal `json:"notional"`
	Cash     decimal.Decimal `json:"cash"`
	Qty      decimal.Decimal `json:"qty"`
	Profit   *bool           `json:"profit,omitempty"` // sell only
	Badges   []string        `json:"badges,omitempty"`
}

// ExecuteOrder validates and executes one order: resolve the symbol to a
// priced asset, size the order, check funds or inventory, then apply cash,
// holding, trade record, and price refresh as one atomic unit. On success
// the outcome is fed to the achievement engine and broadcast to the
// WebSocket ticker.
func (s *Service) ExecuteOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	start := time.Now()

	if req.Kind != model.KindBuy && req.Kind != model.KindSell {
		return nil, ErrInvalidKind
	}
	symbol, err := quote.Normalize(req.Symbol)
	if err != nil {
		return nil, ErrSymbolNotFound
	}

	// Serialize per (user, symbol): validation and mutation must not
	// interleave with another order on the same position.
	key := req.UserID + "|" + symbol
	if !s.locks.TryAcquire(key) {
		metrics.OrderRejections.WithLabelValues("conflict").Inc()
		return nil, ErrConcurrencyConflict
	}
	defer s.locks.Release(key)

	asset, price, err := s.resolveAsset(ctx, symbol)
	if err != nil {
		metrics.OrderRejections.WithLabelValues("symbol").Inc()
		return nil, err
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	qty := decimal.Zero
	holding, err := s.store.GetHolding(ctx, req.UserID, asset.ID)
	switch {
	case err == nil:
		qty = holding.Qty
	case errors.Is(err, store.ErrNotFound):
		// No holding yet; a buy creates one.
	default:
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	shares, err := resolveShares(req, price, user.Cash, qty)
	if err != nil {
		metrics.OrderRejections.WithLabelValues("quantity").Inc()
		return nil, err
	}
	notional := shares.Mul(price).Round(2)

	var cashDelta, newQty decimal.Decimal
	var profit *bool

	switch req.Kind {
	case model.KindBuy:
		if notional.GreaterThan(user.Cash) {
			metrics.OrderRejections.WithLabelValues("funds").Inc()
			return nil, ErrInsufficientFunds
		}
		cashDelta = notional.Neg()
		newQty = qty.Add(shares)

	case model.KindSell:
		if holding == nil || qty.IsZero() {
			metrics.OrderRejections.WithLabelValues("position").Inc()
			return nil, ErrNoPosition
		}
		if shares.GreaterThan(qty) {
			metrics.OrderRejections.WithLabelValues("shares").Inc()
			return nil, ErrInsufficientShares
		}

		history, err := s.store.GetTradesByUserAsset(ctx, req.UserID, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		p, err := basis.IsProfit(history, price, qty)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
		}
		profit = &p

		cashDelta = notional
		newQty = qty.Sub(shares)
	}

	trade := &model.Trade{
		ID:      uuid.New().String(),
		Kind:    req.Kind,
		UserID:  req.UserID,
		AssetID: asset.ID,
		Qty:     shares,
		Price:   price,
		At:      time.Now().UTC(),
	}

	newCash, err := s.store.ApplyTrade(ctx, &store.TradeMutation{
		UserID:    req.UserID,
		AssetID:   asset.ID,
		Symbol:    symbol,
		CashDelta: cashDelta,
		NewQty:    newQty,
		Price:     price,
		Trade:     trade,
	})
	if errors.Is(err, store.ErrInsufficientCash) {
		// A concurrent order on another asset can drain cash between the
		// funds check and the commit; the store's balance is authoritative.
		metrics.OrderRejections.WithLabelValues("funds").Inc()
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	metrics.OrdersTotal.WithLabelValues(req.Kind).Inc()
	metrics.OrderLatency.WithLabelValues(req.Kind).Observe(time.Since(start).Seconds())

	slog.Info("order executed",
		"trade_id", trade.ID,
		"user", req.UserID,
		"symbol", symbol,
		"kind", req.Kind,
		"shares", shares.String(),
		"price", price.String(),
		"notional", notional.String(),
	)

	outcome := achievement.Outcome{
		Kind:              req.Kind,
		Shares:            shares,
		FromPortfolioView: req.View == "portfolio",
	}
	if profit != nil {
		outcome.Profit = *profit
	}
	badges := s.achievements.Evaluate(ctx, req.UserID, outcome)
	for _, name := range badges {
		metrics.BadgeAwards.Inc()
		slog.Info("badge awarded", "user", req.UserID, "badge", name)
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "trade_executed",
			Symbol: symbol,
			Kind:   req.Kind,
			Shares: shares.String(),
			Price:  price.String(),
		})
	}

	return &OrderResult{
		Trade:    *trade,
		Symbol:   symbol,
		Notional: notional,
		Cash:     newCash,
		Qty:      newQty,
		Profit:   profit,
		Badges:   badges,
	}, nil
}

// resolveAsset turns a normalized symbol into a cataloged asset and the
// execution price. The quote provider is asked first for a fresh price
// (upserting the catalog entry); if it misses, the cached catalog price
// serves as fallback. Only when both miss does the order fail.
func (s *Service) resolveAsset(ctx context.Context, symbol string) (*model.Asset, decimal.Decimal, error) {
	q, err := s.quotes.Lookup(ctx, symbol)
	if err == nil {
		metrics.QuoteLookups.WithLabelValues("hit").Inc()
		asset, err := s.store.UpsertAsset(ctx, &model.Asset{
			ID:        uuid.New().String(),
			Symbol:    symbol,
			Name:      q.Name,
			LastPrice: q.Price,
		})
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return asset, q.Price, nil
	}
	metrics.QuoteLookups.WithLabelValues("miss").Inc()

	asset, err := s.store.GetAssetBySymbol(ctx, symbol)
	if errors.Is(err, store.ErrNotFound) {
		return nil, decimal.Zero, ErrSymbolNotFound
	}
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return asset, asset.LastPrice, nil
}

// resolveShares turns the order's size specification into a 4-decimal
// share count. Zero or negative resolutions are invalid.
func resolveShares(req OrderRequest, price, cash, qty decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}

	var shares decimal.Decimal
	switch {
	case req.Max:
		if req.Kind == model.KindBuy {
			// Floor so the notional can never exceed available cash.
			shares = cash.Div(price).RoundDown(4)
		} else {
			shares = qty
		}
	case !req.Amount.IsZero():
		if req.Amount.IsNegative() {
			return decimal.Zero, ErrInvalidQuantity
		}
		shares = req.Amount.Div(price).Round(4)
	default:
		shares = req.Shares.Round(4)
	}

	if !shares.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}
	return shares, nil
}

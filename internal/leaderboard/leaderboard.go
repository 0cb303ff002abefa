// Package leaderboard ranks users by the value of what they hold. A rank
// is a finite snapshot derived from holdings and cached prices — it never
// mutates the ledger.
package leaderboard

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// Entry is one leaderboard row: a user, their single largest holding, and
// their total holding value (ex-cash).
type Entry struct {
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	TopSymbol      string          `json:"top_symbol"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// Source is the slice of the store the aggregator reads from.
type Source interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUserHoldings(ctx context.Context, userID string) ([]model.HoldingView, error)
}

// Rank computes the leaderboard snapshot: one entry per user with at
// least one valued holding, ordered by portfolio value descending.
// Equal values keep their relative order (stable sort).
func Rank(ctx context.Context, src Source) ([]Entry, error) {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, u := range users {
		holdings, err := src.GetUserHoldings(ctx, u.ID)
		if err != nil {
			return nil, err
		}

		total := decimal.Zero
		var top model.HoldingView
		for _, h := range holdings {
			total = total.Add(h.Value)
			if h.Value.GreaterThan(top.Value) ||
				(h.Value.Equal(top.Value) && top.AssetID != "" && h.AssetID < top.AssetID) {
				top = h
			}
		}
		if !total.IsPositive() {
			continue // nothing valued: watch-only or empty
		}

		entries = append(entries, Entry{
			UserID:         u.ID,
			Name:           u.Name,
			TopSymbol:      top.Symbol,
			PortfolioValue: total,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PortfolioValue.GreaterThan(entries[j].PortfolioValue)
	})
	return entries, nil
}

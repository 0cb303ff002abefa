// Package achievement evaluates trade outcomes against the static badge
// catalog and records newly unlocked badges. Awarding is idempotent under
// the unique (user, skull) constraint, and award failures are swallowed —
// a badge must never break the order that earned it.
package achievement

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// Skull IDs. The catalog is static: ids are stable and never reused.
const (
	Achiever     = 1 // completed a trade for the first time
	NoTimeWasted = 2 // order placed straight from the portfolio view
	TwoFer       = 3 // two or more other badges earned in the same order
	Profiteer    = 4 // sold at a profit
	BigBags      = 5 // traded 1000 shares or more in one order
)

// Catalog is the static badge table, ordered by id.
var Catalog = []model.Skull{
	{ID: Achiever, Name: "Achiever", Description: "Make a trade"},
	{ID: NoTimeWasted, Name: "No Time Wasted", Description: "Trade straight from your portfolio"},
	{ID: TwoFer, Name: "Two-Fer", Description: "Earn two badges with one trade"},
	{ID: Profiteer, Name: "Profiteer", Description: "Sell for a profit"},
	{ID: BigBags, Name: "Big Bags", Description: "Trade 1000 shares at once"},
}

var bigBagsThreshold = decimal.NewFromInt(1000)

// Name returns the display name for a skull id, or "" if unknown.
func Name(id int) string {
	for _, s := range Catalog {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

// Outcome describes one successfully executed order, as seen by the
// badge predicates.
type Outcome struct {
	Kind              string // "buy" or "sell"
	Shares            decimal.Decimal
	Profit            bool // sell only: per the cost-basis calculator
	FromPortfolioView bool // order came from the primary portfolio view
}

// Ledger is the slice of the store the engine needs.
type Ledger interface {
	BadgeIDs(ctx context.Context, userID string) (map[int]bool, error)
	AwardBadge(ctx context.Context, userID string, skullID int) (bool, error)
}

// Engine awards badges against a ledger.
type Engine struct {
	ledger Ledger
}

// NewEngine creates an achievement engine.
func NewEngine(ledger Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Triggers returns the skull ids newly earnable for an outcome, ascending.
// Already-owned badges do not re-fire, and Two-Fer counts only the other
// triggers that fired in this same order.
func Triggers(owned map[int]bool, o Outcome) []int {
	var ids []int

	if !owned[Achiever] {
		ids = append(ids, Achiever)
	}
	if o.FromPortfolioView && !owned[NoTimeWasted] {
		ids = append(ids, NoTimeWasted)
	}
	if o.Kind == model.KindSell && o.Profit && !owned[Profiteer] {
		ids = append(ids, Profiteer)
	}
	if o.Shares.GreaterThanOrEqual(bigBagsThreshold) && !owned[BigBags] {
		ids = append(ids, BigBags)
	}
	if len(ids) >= 2 && !owned[TwoFer] {
		ids = append(ids, TwoFer)
	}

	sort.Ints(ids)
	return ids
}

// Award records each triggered badge and returns the display names of the
// ones newly unlocked, in ascending id order. A duplicate award is a
// silent no-op; storage errors are logged and skipped, never surfaced.
func (e *Engine) Award(ctx context.Context, userID string, triggered []int) []string {
	ids := append([]int(nil), triggered...)
	sort.Ints(ids)

	var names []string
	for _, id := range ids {
		fresh, err := e.ledger.AwardBadge(ctx, userID, id)
		if err != nil {
			slog.Warn("badge award failed", "user", userID, "skull", id, "err", err)
			continue
		}
		if fresh {
			names = append(names, Name(id))
		}
	}
	return names
}

// Evaluate runs the predicate table for one order and awards whatever it
// unlocked, returning the new badge names.
func (e *Engine) Evaluate(ctx context.Context, userID string, o Outcome) []string {
	owned, err := e.ledger.BadgeIDs(ctx, userID)
	if err != nil {
		slog.Warn("badge lookup failed", "user", userID, "err", err)
		return nil
	}
	triggered := Triggers(owned, o)
	if len(triggered) == 0 {
		return nil
	}
	return e.Award(ctx, userID, triggered)
}

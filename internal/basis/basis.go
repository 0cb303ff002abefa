// Package basis derives realized profit or loss for a sale from the
// immutable trade history of one user in one asset.
//
// The cost basis is the average-cost model: net historical cash outlay
// divided by the quantity held before the sale. Pure functions of the
// trade slice — no side effects, no store access.
package basis

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// ErrNoQuantity is returned when the average basis is requested for a
// zero or negative pre-sale quantity (division undefined). The trade
// engine guarantees the quantity is positive before asking.
var ErrNoQuantity = errors.New("basis: non-positive quantity before sale")

// NetOutlay accumulates Σ(buy.qty×buy.price) − Σ(sell.qty×sell.price)
// over a trade history in chronological order.
func NetOutlay(trades []model.Trade) decimal.Decimal {
	outlay := decimal.Zero
	for _, t := range trades {
		v := t.Qty.Mul(t.Price)
		if t.Kind == model.KindBuy {
			outlay = outlay.Add(v)
		} else {
			outlay = outlay.Sub(v)
		}
	}
	return outlay
}

// Average returns the per-share cost basis: net outlay over the quantity
// held before the sale.
func Average(trades []model.Trade, qtyBeforeSale decimal.Decimal) (decimal.Decimal, error) {
	if !qtyBeforeSale.IsPositive() {
		return decimal.Zero, ErrNoQuantity
	}
	return NetOutlay(trades).Div(qtyBeforeSale), nil
}

// IsProfit reports whether selling at sellPrice beats the average basis.
// Compared in multiplied form (sellPrice×qty > netOutlay) so the answer
// does not depend on division precision.
func IsProfit(trades []model.Trade, sellPrice, qtyBeforeSale decimal.Decimal) (bool, error) {
	if !qtyBeforeSale.IsPositive() {
		return false, ErrNoQuantity
	}
	return sellPrice.Mul(qtyBeforeSale).GreaterThan(NetOutlay(trades)), nil
}

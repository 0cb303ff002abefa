// Package quote defines the quote-provider contract: resolving a stock
// symbol to a last-traded price. The engine treats a provider as an opaque
// synchronous lookup and never retries — a not-found result is terminal
// for the order that asked.
package quote

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the provider has no quote for a symbol.
// Transport and parse failures are folded into it as well: from the
// engine's point of view they are all "no quote available".
var ErrNotFound = errors.New("quote: symbol not found")

// ErrInvalidSymbol is returned for strings that cannot be a ticker symbol.
var ErrInvalidSymbol = errors.New("quote: invalid symbol")

// symbolRegex matches normalized ticker symbols: 1-10 chars, uppercase
// letters and digits with optional . or - separators (BRK.B, BF-B).
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Quote is a provider's answer for one symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Provider resolves a symbol to its current quote.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// Normalize uppercases and validates a raw symbol string.
func Normalize(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(symbol) {
		return "", ErrInvalidSymbol
	}
	return symbol, nil
}

package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Client fetches quotes from an IEX-style HTTP endpoint:
// GET {base}/stock/{symbol}/quote?token={apiKey}.
// Every failure — transport, HTTP status, parse — is reported as
// ErrNotFound so the caller treats it as a recoverable miss, never fatal.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a quote client with a bounded request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// quoteResponse is the provider's wire format.
type quoteResponse struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"companyName"`
	LatestPrice decimal.Decimal `json:"latestPrice"`
}

// Lookup fetches the current quote for a symbol.
func (c *Client) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	u := fmt.Sprintf("%s/stock/%s/quote?token=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, ErrNotFound
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("quote lookup failed", "symbol", symbol, "err", err)
		return nil, ErrNotFound
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrNotFound
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		slog.Warn("quote parse failed", "symbol", symbol, "err", err)
		return nil, ErrNotFound
	}
	if qr.Symbol == "" || !qr.LatestPrice.IsPositive() {
		return nil, ErrNotFound
	}

	return &Quote{
		Symbol: qr.Symbol,
		Name:   qr.CompanyName,
		Price:  qr.LatestPrice,
	}, nil
}

// Static is a fixed-table provider for development and tests.
type Static struct {
	quotes map[string]Quote
}

// NewStatic creates a provider answering from the given quotes, keyed by
// symbol.
func NewStatic(quotes ...Quote) *Static {
	m := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		m[q.Symbol] = q
	}
	return &Static{quotes: m}
}

// Lookup answers from the static table.
func (s *Static) Lookup(_ context.Context, symbol string) (*Quote, error) {
	q, ok := s.quotes[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

// Set adds or replaces a quote, for tests that move prices between orders.
func (s *Static) Set(q Quote) {
	s.quotes[q.Symbol] = q
}

package quote_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/quote"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aapl", "AAPL", false},
		{" tsla ", "TSLA", false},
		{"BRK.B", "BRK.B", false},
		{"BF-B", "BF-B", false},
		{"", "", true},
		{"   ", "", true},
		{"TOOLONGSYMBOL", "", true},
		{"BAD SYMBOL", "", true},
		{"$AAPL", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := quote.Normalize(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Normalize(%q) expected error, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stock/AAPL/quote":
			if r.URL.Query().Get("token") != "test-key" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			fmt.Fprint(w, `{"symbol":"AAPL","companyName":"Apple Inc","latestPrice":150.25}`)
		case "/stock/GARBAGE/quote":
			fmt.Fprint(w, `not json`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := quote.NewClient(srv.URL, "test-key", 2*time.Second)
	ctx := context.Background()

	q, err := c.Lookup(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Lookup(AAPL) error: %v", err)
	}
	if q.Symbol != "AAPL" || q.Name != "Apple Inc" {
		t.Errorf("unexpected quote: %+v", q)
	}
	if !q.Price.Equal(decimal.NewFromFloat(150.25)) {
		t.Errorf("price = %s, want 150.25", q.Price)
	}

	if _, err := c.Lookup(ctx, "NOPE"); !errors.Is(err, quote.ErrNotFound) {
		t.Errorf("Lookup(NOPE) = %v, want ErrNotFound", err)
	}

	// Parse failures are a recoverable miss, not a fatal error.
	if _, err := c.Lookup(ctx, "GARBAGE"); !errors.Is(err, quote.ErrNotFound) {
		t.Errorf("Lookup(GARBAGE) = %v, want ErrNotFound", err)
	}
}

func TestClient_Lookup_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := quote.NewClient(srv.URL, "k", time.Second)
	if _, err := c.Lookup(context.Background(), "AAPL"); !errors.Is(err, quote.ErrNotFound) {
		t.Errorf("expected ErrNotFound on transport failure, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	p := quote.NewStatic(
		quote.Quote{Symbol: "AAPL", Name: "Apple Inc", Price: decimal.NewFromInt(100)},
	)

	q, err := p.Lookup(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !q.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("price = %s, want 100", q.Price)
	}

	if _, err := p.Lookup(context.Background(), "MISSING"); !errors.Is(err, quote.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	p.Set(quote.Quote{Symbol: "AAPL", Name: "Apple Inc", Price: decimal.NewFromInt(120)})
	q, _ = p.Lookup(context.Background(), "AAPL")
	if !q.Price.Equal(decimal.NewFromInt(120)) {
		t.Errorf("price after Set = %s, want 120", q.Price)
	}
}

// ABOUTME: Tests for the Gamma market client against a stub API server.
// ABOUTME: Covers the string-encoded array decoding and bad-market skipping.
package polymarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

const gammaMarketsBody = `[
  {
    "id": "100",
    "question": "Will the Fed cut rates in September?",
    "slug": "fed-september",
    "outcomes": "[\"Yes\", \"No\"]",
    "outcomePrices": "[\"0.62\", \"0.38\"]",
    "clobTokenIds": "[\"tok-yes\", \"tok-no\"]",
    "volume": "125000.5",
    "liquidity": "40000",
    "endDate": "2026-09-30T00:00:00Z",
    "active": true,
    "closed": false
  },
  {
    "id": "101",
    "question": "Broken market",
    "outcomes": "[\"Yes\", \"No\"]",
    "outcomePrices": "[\"0.5\"]",
    "active": true,
    "closed": false
  }
]`

func TestFetchActiveMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("active"); got != "true" {
			t.Errorf("active = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(gammaMarketsBody))
	}))
	defer srv.Close()

	client := NewGammaClient(WithGammaBaseURL(srv.URL))
	markets, err := client.FetchActiveMarkets(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}
	// Market 101 has misaligned prices and is skipped.
	if len(markets) != 1 {
		t.Fatalf("got %d markets, want 1", len(markets))
	}

	m := markets[0]
	if m.ID != "100" || m.Slug != "fed-september" {
		t.Errorf("market = %+v", m)
	}
	if len(m.Outcomes) != 2 || m.Outcomes[0] != "Yes" {
		t.Errorf("outcomes = %v", m.Outcomes)
	}
	if !m.OutcomePrices[1].Equal(decimal.RequireFromString("0.38")) {
		t.Errorf("prices = %v", m.OutcomePrices)
	}
	if m.ClobTokenIDs[1] != "tok-no" {
		t.Errorf("token ids = %v", m.ClobTokenIDs)
	}
	if !m.Volume.Equal(decimal.RequireFromString("125000.5")) {
		t.Errorf("volume = %s", m.Volume)
	}
	if m.EndDate.IsZero() {
		t.Error("end date not parsed")
	}
}

func TestFetchMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/100" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "100",
			"question": "Will the Fed cut rates in September?",
			"outcomes": "[\"Yes\", \"No\"]",
			"outcomePrices": "[\"0.62\", \"0.38\"]",
			"active": true
		}`))
	}))
	defer srv.Close()

	client := NewGammaClient(WithGammaBaseURL(srv.URL))
	m, err := client.FetchMarket(context.Background(), "100")
	if err != nil {
		t.Fatalf("FetchMarket: %v", err)
	}
	if m.Question != "Will the Fed cut rates in September?" {
		t.Errorf("question = %q", m.Question)
	}
}

func TestFetchActiveMarkets_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewGammaClient(WithGammaBaseURL(srv.URL))
	_, err := client.FetchActiveMarkets(context.Background(), 5)

	var dataErr *MarketDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected MarketDataError, got %v", err)
	}
}

// ABOUTME: Tests for the CLOB trading client: balances and order placement against a stub exchange.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBalances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/balances" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("auth = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"USDC": "1500.25"})
	}))
	defer srv.Close()

	client := NewClobClient("key", WithClobBaseURL(srv.URL))
	balances, err := client.Balances(context.Background())
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if !balances["USDC"].Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("balances = %v", balances)
	}
}

func TestPlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req clobOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TokenID != "tok-yes" || req.Side != "BUY" || req.Price != "0.62" || req.Size != "10" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"orderID": "ord-1", "status": "matched", "filled": "10"})
	}))
	defer srv.Close()

	client := NewClobClient("key", WithClobBaseURL(srv.URL))
	resp, err := client.PlaceOrder(context.Background(), Order{
		TokenID: "tok-yes",
		Side:    Buy,
		Price:   decimal.RequireFromString("0.62"),
		Size:    decimal.RequireFromString("10"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if resp.OrderID != "ord-1" || resp.Status != "matched" {
		t.Errorf("response = %+v", resp)
	}
	if !resp.Filled.Equal(decimal.RequireFromString("10")) {
		t.Errorf("filled = %s", resp.Filled)
	}
}

func TestPlaceOrder_RejectionCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "insufficient balance"})
	}))
	defer srv.Close()

	client := NewClobClient("key", WithClobBaseURL(srv.URL))
	_, err := client.PlaceOrder(context.Background(), Order{
		TokenID: "tok-yes",
		Side:    Buy,
		Price:   decimal.RequireFromString("0.62"),
		Size:    decimal.RequireFromString("10"),
	})

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.TokenID != "tok-yes" || execErr.Detail != "insufficient balance" {
		t.Errorf("error = %+v", execErr)
	}
}

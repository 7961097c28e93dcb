// ABOUTME: Trading-side clients: account balance lookup and order placement.
// ABOUTME: Orders target CLOB token ids; execution failures carry the exchange's rejection detail.
package polymarket

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const defaultClobBaseURL = "https://clob.polymarket.com"

// BalanceProvider reports spendable balances per asset symbol.
type BalanceProvider interface {
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Order is a request to trade a specific outcome token.
type Order struct {
	TokenID string
	Side    OrderSide
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// OrderResponse is the exchange's acknowledgement of a placed order.
type OrderResponse struct {
	OrderID string          `json:"orderID"`
	Status  string          `json:"status"`
	Filled  decimal.Decimal `json:"filled"`
}

// ExecutionError reports an order the exchange rejected or could not fill.
type ExecutionError struct {
	TokenID string
	Detail  string
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("order for token %s rejected: %s", e.TokenID, e.Detail)
	}
	return fmt.Sprintf("order for token %s failed: %v", e.TokenID, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ClobClient places orders and reads balances against the CLOB exchange API.
type ClobClient struct {
	client *resty.Client
	apiKey string
}

// ClobOption is a functional option for configuring a ClobClient.
type ClobOption func(*ClobClient)

// WithClobBaseURL overrides the exchange base URL.
func WithClobBaseURL(url string) ClobOption {
	return func(c *ClobClient) {
		c.client.SetBaseURL(url)
	}
}

// NewClobClient creates an exchange client authenticated with the given key.
func NewClobClient(apiKey string, opts ...ClobOption) *ClobClient {
	client := resty.New()
	client.SetBaseURL(defaultClobBaseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Authorization", "Bearer "+apiKey)

	cc := &ClobClient{client: client, apiKey: apiKey}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// Balances returns spendable balances keyed by asset symbol.
func (c *ClobClient) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	var parsed map[string]string
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get("/balances")
	if err != nil {
		return nil, &MarketDataError{Op: "balances", Cause: err}
	}
	if resp.IsError() {
		return nil, &MarketDataError{Op: "balances", Cause: fmt.Errorf("status %s", resp.Status())}
	}

	balances := make(map[string]decimal.Decimal, len(parsed))
	for asset, raw := range parsed {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &MarketDataError{Op: "balances", Cause: fmt.Errorf("asset %s amount %q: %w", asset, raw, err)}
		}
		balances[asset] = amount
	}
	return balances, nil
}

// clobOrderRequest is the POST /order request body.
type clobOrderRequest struct {
	TokenID string `json:"tokenID"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// clobErrorResponse is the body the exchange sends with a rejection.
type clobErrorResponse struct {
	Error string `json:"error"`
}

// PlaceOrder submits an order and returns the exchange acknowledgement.
func (c *ClobClient) PlaceOrder(ctx context.Context, order Order) (*OrderResponse, error) {
	log.Printf("component=polymarket.clob action=place_order token=%s side=%s price=%s size=%s",
		order.TokenID, order.Side, order.Price, order.Size)

	var parsed OrderResponse
	var rejection clobErrorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(clobOrderRequest{
			TokenID: order.TokenID,
			Side:    string(order.Side),
			Price:   order.Price.String(),
			Size:    order.Size.String(),
		}).
		SetResult(&parsed).
		SetError(&rejection).
		Post("/order")
	if err != nil {
		return nil, &ExecutionError{TokenID: order.TokenID, Cause: err}
	}
	if resp.IsError() {
		detail := rejection.Error
		if detail == "" {
			detail = resp.Status()
		}
		return nil, &ExecutionError{TokenID: order.TokenID, Detail: detail}
	}
	return &parsed, nil
}

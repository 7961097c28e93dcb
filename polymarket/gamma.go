// ABOUTME: Gamma API client for discovering active prediction markets.
// ABOUTME: Decodes Gamma's string-encoded JSON array fields into aligned market slices.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const defaultGammaBaseURL = "https://gamma-api.polymarket.com"

// GammaClient fetches market metadata from the Gamma REST API.
type GammaClient struct {
	client *resty.Client
}

// GammaOption is a functional option for configuring a GammaClient.
type GammaOption func(*GammaClient)

// WithGammaBaseURL overrides the API base URL.
func WithGammaBaseURL(url string) GammaOption {
	return func(c *GammaClient) {
		c.client.SetBaseURL(url)
	}
}

// NewGammaClient creates a market-discovery client.
func NewGammaClient(opts ...GammaOption) *GammaClient {
	client := resty.New()
	client.SetBaseURL(defaultGammaBaseURL)
	client.SetTimeout(30 * time.Second)

	gc := &GammaClient{client: client}
	for _, opt := range opts {
		opt(gc)
	}
	return gc
}

// MarketDataError reports a market endpoint that was unreachable or returned
// data the pipeline cannot act on.
type MarketDataError struct {
	Op    string
	Cause error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data %s failed: %v", e.Op, e.Cause)
}

func (e *MarketDataError) Unwrap() error {
	return e.Cause
}

// gammaMarket is the wire shape of one market. Gamma encodes its array
// fields as JSON strings, so they arrive as strings here and get decoded in
// toMarket.
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Description   string `json:"description"`
	Slug          string `json:"slug"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	Volume        string `json:"volume"`
	Liquidity     string `json:"liquidity"`
	EndDate       string `json:"endDate"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
}

func (g *gammaMarket) toMarket() (Market, error) {
	m := Market{
		ID:          g.ID,
		Question:    g.Question,
		Description: g.Description,
		Slug:        g.Slug,
		Active:      g.Active,
		Closed:      g.Closed,
	}

	if err := decodeStringArray(g.Outcomes, &m.Outcomes); err != nil {
		return Market{}, fmt.Errorf("market %s outcomes: %w", g.ID, err)
	}
	var rawPrices []string
	if err := decodeStringArray(g.OutcomePrices, &rawPrices); err != nil {
		return Market{}, fmt.Errorf("market %s prices: %w", g.ID, err)
	}
	for _, p := range rawPrices {
		price, err := decimal.NewFromString(p)
		if err != nil {
			return Market{}, fmt.Errorf("market %s price %q: %w", g.ID, p, err)
		}
		m.OutcomePrices = append(m.OutcomePrices, price)
	}
	if g.ClobTokenIDs != "" {
		if err := decodeStringArray(g.ClobTokenIDs, &m.ClobTokenIDs); err != nil {
			return Market{}, fmt.Errorf("market %s token ids: %w", g.ID, err)
		}
	}

	if g.Volume != "" {
		if v, err := decimal.NewFromString(g.Volume); err == nil {
			m.Volume = v
		}
	}
	if g.Liquidity != "" {
		if v, err := decimal.NewFromString(g.Liquidity); err == nil {
			m.Liquidity = v
		}
	}
	if g.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, g.EndDate); err == nil {
			m.EndDate = t
		}
	}
	return m, nil
}

// decodeStringArray unpacks Gamma's double-encoded array fields, e.g.
// `"[\"Yes\", \"No\"]"`.
func decodeStringArray(raw string, out *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

// FetchActiveMarkets returns open, still-active markets ordered by volume.
// Markets whose wire data fails to decode or align are skipped rather than
// failing the whole fetch.
func (c *GammaClient) FetchActiveMarkets(ctx context.Context, limit int) ([]Market, error) {
	var parsed []gammaMarket
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"active":    "true",
			"closed":    "false",
			"limit":     strconv.Itoa(limit),
			"order":     "volume",
			"ascending": "false",
		}).
		SetResult(&parsed).
		Get("/markets")
	if err != nil {
		return nil, &MarketDataError{Op: "fetch", Cause: err}
	}
	if resp.IsError() {
		return nil, &MarketDataError{Op: "fetch", Cause: fmt.Errorf("status %s", resp.Status())}
	}

	markets := make([]Market, 0, len(parsed))
	for _, g := range parsed {
		m, err := g.toMarket()
		if err != nil {
			continue
		}
		if err := m.Validate(); err != nil {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FetchMarket returns a single market by id.
func (c *GammaClient) FetchMarket(ctx context.Context, id string) (Market, error) {
	var parsed gammaMarket
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get("/markets/" + id)
	if err != nil {
		return Market{}, &MarketDataError{Op: "fetch market " + id, Cause: err}
	}
	if resp.IsError() {
		return Market{}, &MarketDataError{Op: "fetch market " + id, Cause: fmt.Errorf("status %s", resp.Status())}
	}

	m, err := parsed.toMarket()
	if err != nil {
		return Market{}, &MarketDataError{Op: "decode market " + id, Cause: err}
	}
	if err := m.Validate(); err != nil {
		return Market{}, &MarketDataError{Op: "validate market " + id, Cause: err}
	}
	return m, nil
}

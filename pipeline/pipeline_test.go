// ABOUTME: End-to-end and stage tests for the top-level pipeline graph.
// ABOUTME: Covers fan-out cardinality, precondition rejection, trade handling, and run bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/2389-research/conclave/polymarket"
	"github.com/shopspring/decimal"
)

func TestPipelineEndToEnd(t *testing.T) {
	client := newScriptedLLM(2)
	trader := &scriptedTrader{}
	recorder := &scriptedRecorder{}

	p, err := New(testDeps(client, trader, recorder), Options{
		AnalystCount:     2,
		MaxTurns:         1,
		MaxSearchResults: 2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := p.Run(context.Background(), testMarket())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Analysts) != 2 {
		t.Errorf("analysts = %d, want 2", len(result.Analysts))
	}
	// Two analysts fan out into two branches, each contributing one section.
	if len(result.Sections) != 2 {
		t.Errorf("sections = %d, want 2", len(result.Sections))
	}

	rec := result.Recommendation
	valid := rec.Outcome == "Yes" || rec.Outcome == "No" || rec.Outcome == NoAction
	if !valid {
		t.Errorf("outcome = %q", rec.Outcome)
	}
	if rec.Conviction.LessThan(decimal.Zero) || rec.Conviction.GreaterThan(decimal.NewFromInt(1)) {
		t.Errorf("conviction = %s", rec.Conviction)
	}

	if trader.orderCount() != 1 {
		t.Errorf("orders = %d, want 1", trader.orderCount())
	}
	if !strings.Contains(result.OrderResponse, "ord-1") {
		t.Errorf("order response = %q", result.OrderResponse)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("records = %d, want 1", len(recorder.records))
	}
	record := recorder.records[0]
	if record.MarketID != "m1" || record.SectionCount != 2 || record.Outcome != "Yes" {
		t.Errorf("record = %+v", record)
	}
	if record.FinishedAt.Before(record.StartedAt) {
		t.Error("record finished before it started")
	}
}

func TestPipelineFanOutCardinality(t *testing.T) {
	for _, n := range []int{1, 3} {
		client := newScriptedLLM(n)
		p, err := New(testDeps(client, &scriptedTrader{}, nil), Options{
			AnalystCount: n,
			MaxTurns:     1,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		result, err := p.Run(context.Background(), testMarket())
		if err != nil {
			t.Fatalf("Run with %d analysts: %v", n, err)
		}
		if len(result.Sections) != n {
			t.Errorf("%d analysts produced %d sections", n, len(result.Sections))
		}
	}
}

func TestPipelineRejectsMalformedMarket(t *testing.T) {
	client := newScriptedLLM(2)
	p, err := New(testDeps(client, &scriptedTrader{}, nil), Options{AnalystCount: 2, MaxTurns: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	market := testMarket()
	market.OutcomePrices = market.OutcomePrices[:1]

	_, err = p.Run(context.Background(), market)
	var precondErr *PreconditionError
	if !errors.As(err, &precondErr) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	// Rejected before any node runs.
	if client.totalCalls.Load() != 0 {
		t.Errorf("llm called %d times before rejection", client.totalCalls.Load())
	}
}

func TestPipelineRejectsZeroAnalysts(t *testing.T) {
	client := newScriptedLLM(0)
	p, err := New(testDeps(client, &scriptedTrader{}, nil), Options{AnalystCount: 0, MaxTurns: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Run(context.Background(), testMarket())
	var precondErr *PreconditionError
	if !errors.As(err, &precondErr) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestTraderExecutionRecordsRejection(t *testing.T) {
	client := newScriptedLLM(1)
	trader := &scriptedTrader{err: &polymarket.ExecutionError{TokenID: "tok-yes", Detail: "insufficient balance"}}

	p, err := New(testDeps(client, trader, nil), Options{AnalystCount: 1, MaxTurns: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := p.Run(context.Background(), testMarket())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The rejection is recorded as the run's order outcome, not a run failure.
	if !strings.Contains(result.OrderResponse, "execution error") {
		t.Errorf("order response = %q", result.OrderResponse)
	}
	if !strings.Contains(result.OrderResponse, "insufficient balance") {
		t.Errorf("order response = %q", result.OrderResponse)
	}
}

func TestNoActionSkipsTrade(t *testing.T) {
	client := newScriptedLLM(1)
	client.outcome = NoAction
	trader := &scriptedTrader{}

	p, err := New(testDeps(client, trader, nil), Options{AnalystCount: 1, MaxTurns: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := p.Run(context.Background(), testMarket())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if trader.orderCount() != 0 {
		t.Errorf("orders = %d, want 0", trader.orderCount())
	}
	if result.OrderResponse != "no action taken" {
		t.Errorf("order response = %q", result.OrderResponse)
	}
}

func TestUnknownOutcomeNormalizesToNoAction(t *testing.T) {
	client := newScriptedLLM(1)
	client.outcome = "Maybe"
	trader := &scriptedTrader{}

	p, err := New(testDeps(client, trader, nil), Options{AnalystCount: 1, MaxTurns: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := p.Run(context.Background(), testMarket())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Recommendation.Outcome != NoAction {
		t.Errorf("outcome = %q, want %q", result.Recommendation.Outcome, NoAction)
	}
	if trader.orderCount() != 0 {
		t.Errorf("orders = %d, want 0", trader.orderCount())
	}
}

func TestOrderSizeCappedByBalance(t *testing.T) {
	client := newScriptedLLM(1)
	trader := &scriptedTrader{}
	deps := testDeps(client, trader, nil)
	// 0.62 * 10 would cost 6.20; only 3.10 is available.
	deps.Balances = &scriptedBalances{balances: map[string]decimal.Decimal{"USDC": decimal.RequireFromString("3.10")}}

	p, err := New(deps, Options{AnalystCount: 1, MaxTurns: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Run(context.Background(), testMarket()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if trader.orderCount() != 1 {
		t.Fatalf("orders = %d, want 1", trader.orderCount())
	}
	order := trader.orders[0]
	if !order.Size.Equal(decimal.RequireFromString("5")) {
		t.Errorf("size = %s, want 5 (3.10 / 0.62)", order.Size)
	}
}

func TestRecommendationNormalize(t *testing.T) {
	market := testMarket()

	rec := Recommendation{Outcome: "Yes", Conviction: decimal.RequireFromString("1.4")}
	rec.Normalize(market)
	if !rec.Conviction.Equal(decimal.NewFromInt(1)) {
		t.Errorf("conviction = %s, want 1", rec.Conviction)
	}

	rec = Recommendation{Outcome: "Whatever", Conviction: decimal.RequireFromString("-0.2")}
	rec.Normalize(market)
	if rec.Outcome != NoAction {
		t.Errorf("outcome = %q", rec.Outcome)
	}
	if !rec.Conviction.Equal(decimal.Zero) {
		t.Errorf("conviction = %s, want 0", rec.Conviction)
	}
}

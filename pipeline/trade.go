// ABOUTME: Trade-side pipeline nodes: balance check, order execution, and run review/bookkeeping.
// ABOUTME: Exchange rejections are recorded as the run's order outcome rather than aborting the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/2389-research/conclave/graph"
	"github.com/2389-research/conclave/polymarket"
	"github.com/shopspring/decimal"
)

// settlementAsset is the balance the trade stage spends from.
const settlementAsset = "USDC"

// RunRecord is the bookkeeping row persisted at the end of a run.
type RunRecord struct {
	MarketID      string
	Question      string
	Outcome       string
	Conviction    decimal.Decimal
	OrderResponse string
	SectionCount  int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// RunRecorder persists completed run records.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// checkBalances reads current holdings from the balance provider.
func (p *Pipeline) checkBalances(ctx context.Context, s *graph.State) (graph.Patch, error) {
	balances, err := p.deps.Balances.Balances(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("component=pipeline action=check_balances assets=%d", len(balances))
	return graph.Patch{fieldBalances: balances}, nil
}

// traderExecution places a fully specified order for the recommended
// outcome. A NoAction recommendation or an insufficient balance places no
// order; an exchange rejection is recorded as the order outcome.
func (p *Pipeline) traderExecution(ctx context.Context, s *graph.State) (graph.Patch, error) {
	rec := stateRecommendation(s)
	if rec.Outcome == NoAction {
		return graph.Patch{fieldOrderResponse: "no action taken"}, nil
	}

	market := stateMarket(s)
	tokenID, ok := market.TokenIDFor(rec.Outcome)
	if !ok {
		return nil, fmt.Errorf("market %s has no token id for outcome %q", market.ID, rec.Outcome)
	}
	price, ok := market.PriceFor(rec.Outcome)
	if !ok {
		return nil, fmt.Errorf("market %s has no price for outcome %q", market.ID, rec.Outcome)
	}

	size := p.opts.OrderSize
	if balance, ok := stateBalances(s)[settlementAsset]; ok && price.IsPositive() {
		if price.Mul(size).GreaterThan(balance) {
			size = balance.Div(price).RoundDown(2)
		}
	}
	if !size.IsPositive() {
		return graph.Patch{fieldOrderResponse: "insufficient balance, no order placed"}, nil
	}

	resp, err := p.deps.Trader.PlaceOrder(ctx, polymarket.Order{
		TokenID: tokenID,
		Side:    polymarket.Buy,
		Price:   price,
		Size:    size,
	})
	var execErr *polymarket.ExecutionError
	if errors.As(err, &execErr) {
		log.Printf("component=pipeline action=trade_rejected token=%s detail=%q", tokenID, execErr.Detail)
		return graph.Patch{fieldOrderResponse: "execution error: " + execErr.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return graph.Patch{
		fieldOrderResponse: fmt.Sprintf("order %s status=%s filled=%s", resp.OrderID, resp.Status, resp.Filled),
	}, nil
}

// performanceReview is the terminal bookkeeping stage: it summarizes the run
// and persists a record of it when a recorder is configured. A persistence
// failure is logged, not fatal; the decision already happened.
func (p *Pipeline) performanceReview(ctx context.Context, s *graph.State) (graph.Patch, error) {
	market := stateMarket(s)
	rec := stateRecommendation(s)
	sections := stateSections(s)
	orderResponse := s.GetString(fieldOrderResponse, "")

	summary := fmt.Sprintf("run complete: %d sections, outcome %q, conviction %s, order: %s",
		len(sections), rec.Outcome, rec.Conviction, orderResponse)

	if p.deps.Recorder != nil {
		startedAt, _ := s.Get(fieldStartedAt).(time.Time)
		record := RunRecord{
			MarketID:      market.ID,
			Question:      market.Question,
			Outcome:       rec.Outcome,
			Conviction:    rec.Conviction,
			OrderResponse: orderResponse,
			SectionCount:  len(sections),
			StartedAt:     startedAt,
			FinishedAt:    time.Now(),
		}
		if err := p.deps.Recorder.RecordRun(ctx, record); err != nil {
			log.Printf("component=pipeline action=record_run_failed error=%v", err)
		}
	}
	return graph.Patch{fieldPerformance: summary}, nil
}

// ABOUTME: Scripted fakes for pipeline tests: LLM client, retrieval searchers, balances, trader, recorder.
// ABOUTME: The fake LLM dispatches on the system prompt and schema name so one instance serves every stage.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/2389-research/conclave/llm"
	"github.com/2389-research/conclave/polymarket"
	"github.com/2389-research/conclave/research"
	"github.com/shopspring/decimal"
)

// scriptedLLM answers every pipeline stage from canned material, keyed off
// the stage's system prompt or structured-response schema name.
type scriptedLLM struct {
	analystCount int
	questionText string
	answerText   string
	sectionText  string
	outcome      string
	conviction   float64

	askCalls     atomic.Int64
	answerCalls  atomic.Int64
	sectionCalls atomic.Int64
	totalCalls   atomic.Int64
}

func newScriptedLLM(analystCount int) *scriptedLLM {
	return &scriptedLLM{
		analystCount: analystCount,
		questionText: "What is the strongest evidence either way?",
		answerText:   "The base rate favors it [1].",
		sectionText:  "## Findings\n\nThe evidence leans yes [1].\n\n### Sources\n[1] https://news.example/a",
		outcome:      "Yes",
		conviction:   0.7,
	}
}

func (f *scriptedLLM) Generate(ctx context.Context, msgs []llm.Message) (string, error) {
	f.totalCalls.Add(1)
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages")
	}
	system := msgs[0].Content
	switch {
	case strings.Contains(system, "analyst interviewing an expert"):
		f.askCalls.Add(1)
		return f.questionText, nil
	case strings.Contains(system, "expert being interviewed"):
		f.answerCalls.Add(1)
		return f.answerText, nil
	case strings.Contains(system, "technical writer"):
		f.sectionCalls.Add(1)
		return f.sectionText, nil
	}
	return "", fmt.Errorf("unexpected generate prompt: %.60s", system)
}

func (f *scriptedLLM) GenerateStructured(ctx context.Context, msgs []llm.Message, schema llm.ResponseSchema, out any) error {
	f.totalCalls.Add(1)
	var payload any
	switch schema.Name {
	case "analyst_panel":
		analysts := make([]map[string]string, 0, f.analystCount)
		for i := 0; i < f.analystCount; i++ {
			analysts = append(analysts, map[string]string{
				"name":        fmt.Sprintf("Analyst %d", i+1),
				"role":        "Researcher",
				"description": fmt.Sprintf("Focus area %d", i+1),
			})
		}
		payload = map[string]any{"analysts": analysts}
	case "search_query":
		payload = map[string]any{"query": "market evidence"}
	case "trade_recommendation":
		payload = map[string]any{
			"outcome":    f.outcome,
			"conviction": f.conviction,
			"rationale":  "sections agree",
		}
	default:
		return fmt.Errorf("unexpected schema %q", schema.Name)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// scriptedSearcher returns the same documents, or the same error, for every
// query.
type scriptedSearcher struct {
	docs  []research.Document
	err   error
	calls atomic.Int64
}

func (f *scriptedSearcher) Search(ctx context.Context, query string, maxResults int) ([]research.Document, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

// scriptedBalances serves a fixed balance map.
type scriptedBalances struct {
	balances map[string]decimal.Decimal
}

func (f *scriptedBalances) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return f.balances, nil
}

// scriptedTrader records placed orders and optionally rejects them.
type scriptedTrader struct {
	mu     sync.Mutex
	orders []polymarket.Order
	err    error
}

func (f *scriptedTrader) PlaceOrder(ctx context.Context, order polymarket.Order) (*polymarket.OrderResponse, error) {
	f.mu.Lock()
	f.orders = append(f.orders, order)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &polymarket.OrderResponse{OrderID: "ord-1", Status: "matched", Filled: order.Size}, nil
}

func (f *scriptedTrader) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// scriptedRecorder captures persisted run records.
type scriptedRecorder struct {
	mu      sync.Mutex
	records []RunRecord
}

func (f *scriptedRecorder) RecordRun(ctx context.Context, rec RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func testMarket() polymarket.Market {
	return polymarket.Market{
		ID:       "m1",
		Question: "Will X happen?",
		Outcomes: []string{"Yes", "No"},
		OutcomePrices: []decimal.Decimal{
			decimal.RequireFromString("0.62"),
			decimal.RequireFromString("0.38"),
		},
		ClobTokenIDs: []string{"tok-yes", "tok-no"},
		Active:       true,
	}
}

func testDeps(client *scriptedLLM, trader *scriptedTrader, recorder *scriptedRecorder) Deps {
	docs := []research.Document{{SourceID: "https://news.example/a", Content: "evidence"}}
	deps := Deps{
		AnalystLLM:   client,
		InterviewLLM: client,
		WriterLLM:    client,
		Web:          &scriptedSearcher{docs: docs},
		Wiki:         &scriptedSearcher{docs: docs},
		Balances:     &scriptedBalances{balances: map[string]decimal.Decimal{"USDC": decimal.NewFromInt(1000)}},
		Trader:       trader,
	}
	// Assign conditionally so a nil *scriptedRecorder stays a nil interface.
	if recorder != nil {
		deps.Recorder = recorder
	}
	return deps
}

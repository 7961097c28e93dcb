// ABOUTME: Top-level pipeline: persona generation, fan-out into interviews, synthesis, and the trade stages.
// ABOUTME: Validates preconditions before the engine starts and exposes the run's final artifacts as a Result.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/2389-research/conclave/graph"
	"github.com/2389-research/conclave/llm"
	"github.com/2389-research/conclave/polymarket"
	"github.com/2389-research/conclave/research"
	"github.com/shopspring/decimal"
)

// Top-level node identifiers.
const (
	nodeCreateAnalysts      = "create_analysts"
	nodeConductInterview    = "conduct_interview"
	nodeWriteRecommendation = "write_recommendation"
	nodeCheckBalances       = "check_balances"
	nodeTraderExecution     = "trader_execution"
	nodePerformanceReview   = "performance_review"
)

const fieldStartedAt = "startedAt"

// OrderPlacer submits orders to the exchange.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order polymarket.Order) (*polymarket.OrderResponse, error)
}

// Deps are the external collaborators the pipeline's nodes call out to.
// Recorder is optional; when nil, performance review skips persistence.
type Deps struct {
	AnalystLLM   llm.Client
	InterviewLLM llm.Client
	WriterLLM    llm.Client
	Web          research.Searcher
	Wiki         research.Searcher
	Balances     polymarket.BalanceProvider
	Trader       OrderPlacer
	Recorder     RunRecorder
}

// Options configure one pipeline instance. AnalystCount must be at least 1;
// MaxTurns of 0 is valid and produces interviews with no expert turns.
type Options struct {
	AnalystCount     int
	MaxTurns         int
	MaxSearchResults int
	OrderSize        decimal.Decimal
}

// Result collects the run's final artifacts.
type Result struct {
	Market         polymarket.Market
	Analysts       []Analyst
	Sections       []string
	Recommendation Recommendation
	OrderResponse  string
	Performance    string
}

// Pipeline is the wired top-level graph, ready to run against markets.
type Pipeline struct {
	deps   Deps
	opts   Options
	engine *graph.Engine
}

// New wires both graphs and returns a runnable pipeline.
func New(deps Deps, opts Options, engineOpts ...graph.EngineOption) (*Pipeline, error) {
	if opts.OrderSize.IsZero() {
		opts.OrderSize = decimal.NewFromInt(10)
	}

	interviewNodes := NewInterviewNodes(deps.InterviewLLM, deps.Web, deps.Wiki, opts.MaxSearchResults)
	interviewEngine, err := NewInterviewEngine(interviewNodes, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("build interview graph: %w", err)
	}

	p := &Pipeline{deps: deps, opts: opts}

	g := graph.New("pipeline", PipelineSchema())
	steps := []error{
		g.AddNode(nodeCreateAnalysts, p.createAnalysts),
		g.AddNode(nodeConductInterview, interviewEngine.AsNode(fieldSections)),
		g.AddNode(nodeWriteRecommendation, p.writeRecommendation),
		g.AddNode(nodeCheckBalances, p.checkBalances),
		g.AddNode(nodeTraderExecution, p.traderExecution),
		g.AddNode(nodePerformanceReview, p.performanceReview),

		g.AddEdge(graph.Start, nodeCreateAnalysts),
		g.AddConditionalEdge(nodeCreateAnalysts, p.initiateAllInterviews),
		g.AddEdge(nodeConductInterview, nodeWriteRecommendation),
		g.AddEdge(nodeWriteRecommendation, nodeCheckBalances),
		g.AddEdge(nodeCheckBalances, nodeTraderExecution),
		g.AddEdge(nodeTraderExecution, nodePerformanceReview),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	p.engine, err = graph.NewEngine(g, engineOpts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Run executes the pipeline against one market. Preconditions are checked
// before any node runs; violations surface as *PreconditionError.
func (p *Pipeline) Run(ctx context.Context, market polymarket.Market) (*Result, error) {
	if err := market.Validate(); err != nil {
		return nil, &PreconditionError{Reason: err.Error()}
	}
	if p.opts.AnalystCount < 1 {
		return nil, &PreconditionError{Reason: fmt.Sprintf("analyst count must be at least 1, got %d", p.opts.AnalystCount)}
	}
	if p.opts.MaxTurns < 0 {
		return nil, &PreconditionError{Reason: fmt.Sprintf("max turns must not be negative, got %d", p.opts.MaxTurns)}
	}

	log.Printf("component=pipeline action=run_start market=%s analysts=%d max_turns=%d",
		market.ID, p.opts.AnalystCount, p.opts.MaxTurns)

	final, err := p.engine.Run(ctx, graph.Patch{
		fieldMarket:       market,
		fieldAnalystCount: p.opts.AnalystCount,
		fieldMaxTurns:     p.opts.MaxTurns,
		fieldStartedAt:    time.Now(),
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Market:         market,
		Analysts:       stateAnalysts(final),
		Sections:       stateSections(final),
		Recommendation: stateRecommendation(final),
		OrderResponse:  final.GetString(fieldOrderResponse, ""),
		Performance:    final.GetString(fieldPerformance, ""),
	}
	log.Printf("component=pipeline action=run_complete market=%s sections=%d outcome=%q",
		market.ID, len(result.Sections), result.Recommendation.Outcome)
	return result, nil
}

// createAnalysts generates exactly the requested number of analyst personas,
// each with a distinct focus on the market question.
func (p *Pipeline) createAnalysts(ctx context.Context, s *graph.State) (graph.Patch, error) {
	market := stateMarket(s)
	count := s.GetInt(fieldAnalystCount, 0)

	var out struct {
		Analysts []Analyst `json:"analysts"`
	}
	schema := llm.ResponseSchema{
		Name:        "analyst_panel",
		Description: "A panel of analyst personas",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"analysts": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":        map[string]any{"type": "string"},
							"role":        map[string]any{"type": "string"},
							"description": map[string]any{"type": "string"},
						},
						"required":             []string{"name", "role", "description"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"analysts"},
			"additionalProperties": false,
		},
	}

	msgs := []llm.Message{
		llm.SystemMessage(fmt.Sprintf(analystInstructions, count, market.Question, market.Description)),
		llm.UserMessage("Generate the panel of analysts."),
	}
	if err := p.deps.AnalystLLM.GenerateStructured(ctx, msgs, schema, &out); err != nil {
		return nil, err
	}
	if len(out.Analysts) != count {
		return nil, fmt.Errorf("asked for %d analysts, got %d", count, len(out.Analysts))
	}
	return graph.Patch{fieldAnalysts: out.Analysts}, nil
}

// initiateAllInterviews fans out one isolated interview branch per analyst.
// Each branch is seeded with its analyst, the market, the turn limit, and an
// opening message addressed to the market question.
func (p *Pipeline) initiateAllInterviews(s *graph.State) ([]graph.Send, error) {
	analysts := stateAnalysts(s)
	if len(analysts) == 0 {
		return nil, &PreconditionError{Reason: "no analysts to interview"}
	}
	market := stateMarket(s)
	maxTurns := s.GetInt(fieldMaxTurns, DefaultMaxTurns)

	sends := make([]graph.Send, 0, len(analysts))
	for _, analyst := range analysts {
		sends = append(sends, graph.Send{
			Node: nodeConductInterview,
			Seed: graph.Patch{
				fieldAnalyst:  analyst,
				fieldMarket:   market,
				fieldMaxTurns: maxTurns,
				fieldMessages: []llm.Message{
					llm.UserMessage(fmt.Sprintf(openingQuestionFormat, market.Question)),
				},
			},
		})
	}
	return sends, nil
}

// writeRecommendation concatenates the merged sections in their stable order
// with the current market odds and produces one normalized Recommendation.
func (p *Pipeline) writeRecommendation(ctx context.Context, s *graph.State) (graph.Patch, error) {
	market := stateMarket(s)
	sections := stateSections(s)

	var odds strings.Builder
	for i, outcome := range market.Outcomes {
		fmt.Fprintf(&odds, "- %s: %s\n", outcome, market.OutcomePrices[i])
	}

	var rec Recommendation
	schema := llm.ResponseSchema{
		Name:        "trade_recommendation",
		Description: "A trade decision with conviction and rationale",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"outcome":    map[string]any{"type": "string"},
				"conviction": map[string]any{"type": "number"},
				"rationale":  map[string]any{"type": "string"},
			},
			"required":             []string{"outcome", "conviction", "rationale"},
			"additionalProperties": false,
		},
	}

	msgs := []llm.Message{
		llm.SystemMessage(fmt.Sprintf(recommendationInstructions,
			market.Question,
			odds.String(),
			strings.Join(sections, "\n\n"),
		)),
		llm.UserMessage("Produce the trade recommendation."),
	}
	if err := p.deps.WriterLLM.GenerateStructured(ctx, msgs, schema, &rec); err != nil {
		return nil, err
	}
	rec.Normalize(market)
	return graph.Patch{fieldRecommendation: rec}, nil
}

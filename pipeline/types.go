// ABOUTME: Domain records and state schemas for the trade-decision pipeline.
// ABOUTME: Declares the field names and merge policies both graphs run under, plus PreconditionError.
package pipeline

import (
	"fmt"

	"github.com/2389-research/conclave/graph"
	"github.com/2389-research/conclave/llm"
	"github.com/2389-research/conclave/polymarket"
	"github.com/shopspring/decimal"
)

// Analyst is a generated persona that drives one interview branch. Immutable
// after persona generation.
type Analyst struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
}

// Persona renders the analyst for prompt embedding.
func (a Analyst) Persona() string {
	return fmt.Sprintf("Name: %s\nRole: %s\nDescription: %s", a.Name, a.Role, a.Description)
}

// NoAction is the recommendation outcome meaning "do not trade".
const NoAction = "no action"

// Recommendation is the synthesis stage's output: an outcome choice, a
// conviction score in [0,1], and supporting rationale.
type Recommendation struct {
	Outcome    string          `json:"outcome"`
	Conviction decimal.Decimal `json:"conviction"`
	Rationale  string          `json:"rationale"`
}

// Normalize clamps the recommendation into its valid range: an outcome the
// market actually offers (anything else becomes NoAction) and a conviction
// in [0,1].
func (r *Recommendation) Normalize(market polymarket.Market) {
	valid := r.Outcome == NoAction
	for _, o := range market.Outcomes {
		if r.Outcome == o {
			valid = true
			break
		}
	}
	if !valid {
		r.Outcome = NoAction
	}
	if r.Conviction.LessThan(decimal.Zero) {
		r.Conviction = decimal.Zero
	}
	if r.Conviction.GreaterThan(decimal.NewFromInt(1)) {
		r.Conviction = decimal.NewFromInt(1)
	}
}

// PreconditionError reports input that is rejected before the graph engine
// starts: a malformed market, a zero analyst count, and the like.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition violated: " + e.Reason
}

// State field names shared by both graphs.
const (
	fieldMarket         = "market"
	fieldAnalystCount   = "analystCount"
	fieldAnalysts       = "analysts"
	fieldSections       = "sections"
	fieldRecommendation = "recommendation"
	fieldBalances       = "balances"
	fieldOrderResponse  = "orderResponse"
	fieldPerformance    = "performance"

	fieldAnalyst   = "analyst"
	fieldMessages  = "messages"
	fieldContext   = "context"
	fieldInterview = "interview"
	fieldMaxTurns  = "maxTurns"
)

// DefaultMaxTurns bounds the interview loop when no limit is configured.
const DefaultMaxTurns = 2

// PipelineSchema governs the top-level shared state: completed interview
// sections accumulate, everything else is set once.
func PipelineSchema() graph.Schema {
	return graph.Schema{
		fieldSections: graph.Append,
	}
}

// InterviewSchema governs one branch's isolated state: the conversation and
// retrieved context accumulate across loop turns.
func InterviewSchema() graph.Schema {
	return graph.Schema{
		fieldMessages: graph.Append,
		fieldContext:  graph.Append,
		fieldSections: graph.Append,
	}
}

// Typed state accessors. A missing or differently-typed field yields the
// zero value; nodes validate what they need.

func stateMarket(s *graph.State) polymarket.Market {
	m, _ := s.Get(fieldMarket).(polymarket.Market)
	return m
}

func stateAnalyst(s *graph.State) Analyst {
	a, _ := s.Get(fieldAnalyst).(Analyst)
	return a
}

func stateAnalysts(s *graph.State) []Analyst {
	a, _ := s.Get(fieldAnalysts).([]Analyst)
	return a
}

func stateMessages(s *graph.State) []llm.Message {
	m, _ := s.Get(fieldMessages).([]llm.Message)
	return m
}

func stateContext(s *graph.State) []string {
	c, _ := s.Get(fieldContext).([]string)
	return c
}

func stateSections(s *graph.State) []string {
	sec, _ := s.Get(fieldSections).([]string)
	return sec
}

func stateRecommendation(s *graph.State) Recommendation {
	r, _ := s.Get(fieldRecommendation).(Recommendation)
	return r
}

func stateBalances(s *graph.State) map[string]decimal.Decimal {
	b, _ := s.Get(fieldBalances).(map[string]decimal.Decimal)
	return b
}

// ABOUTME: The interview state machine: one analyst questioning a simulated expert over retrieved context.
// ABOUTME: Wires ask -> parallel search -> answer with a turn router deciding loop-or-save, then section writing.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/conclave/graph"
	"github.com/2389-research/conclave/llm"
	"github.com/2389-research/conclave/research"
)

// Interview node identifiers.
const (
	nodeAskQuestion     = "ask_question"
	nodeSearchWeb       = "search_web"
	nodeSearchWikipedia = "search_wikipedia"
	nodeAnswerQuestion  = "answer_question"
	nodeSaveInterview   = "save_interview"
	nodeWriteSection    = "write_section"
)

// expertName tags the expert's turns in the message history; the turn router
// counts these against the turn limit.
const expertName = "expert"

// InterviewNodes holds the collaborators one interview branch calls out to.
type InterviewNodes struct {
	llm        llm.Client
	web        research.Searcher
	wiki       research.Searcher
	maxResults int
}

// NewInterviewNodes bundles the collaborators for interview branches.
// maxResults bounds each retrieval call.
func NewInterviewNodes(client llm.Client, web, wiki research.Searcher, maxResults int) *InterviewNodes {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &InterviewNodes{llm: client, web: web, wiki: wiki, maxResults: maxResults}
}

// NewInterviewEngine builds the interview graph and wraps it in an engine.
// The graph:
//
//	Start -(route)-> ask_question -> {search_web, search_wikipedia} ->
//	answer_question -(route)-> ask_question | save_interview ->
//	write_section -> End
//
// Routing through the turn router at entry as well as after each answer means
// a zero turn limit produces an interview with no expert turns at all.
func NewInterviewEngine(n *InterviewNodes, opts ...graph.EngineOption) (*graph.Engine, error) {
	g := graph.New("interview", InterviewSchema())

	steps := []error{
		g.AddNode(nodeAskQuestion, n.askQuestion),
		g.AddNode(nodeSearchWeb, n.searchWeb),
		g.AddNode(nodeSearchWikipedia, n.searchWikipedia),
		g.AddNode(nodeAnswerQuestion, n.answerQuestion),
		g.AddNode(nodeSaveInterview, saveInterview),
		g.AddNode(nodeWriteSection, n.writeSection),

		g.AddConditionalEdge(graph.Start, routeInterview),
		g.AddParallelEdge(nodeAskQuestion, nodeSearchWeb, nodeSearchWikipedia),
		g.AddEdge(nodeSearchWeb, nodeAnswerQuestion),
		g.AddEdge(nodeSearchWikipedia, nodeAnswerQuestion),
		g.AddConditionalEdge(nodeAnswerQuestion, routeInterview),
		g.AddEdge(nodeSaveInterview, nodeWriteSection),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	return graph.NewEngine(g, opts...)
}

// routeInterview decides whether the interview loops for another question or
// winds down. It terminates when the expert has answered maxTurns times, or
// when the analyst's latest question (the second-to-last message once the
// expert has replied) contains the wind-down phrase. With fewer than two
// messages there is no question to inspect, so the interview continues.
func routeInterview(s *graph.State) ([]graph.Send, error) {
	msgs := stateMessages(s)
	maxTurns := s.GetInt(fieldMaxTurns, DefaultMaxTurns)

	if countExpertTurns(msgs) >= maxTurns {
		return graph.Goto(nodeSaveInterview), nil
	}
	if len(msgs) >= 2 && strings.Contains(msgs[len(msgs)-2].Content, terminationPhrase) {
		return graph.Goto(nodeSaveInterview), nil
	}
	return graph.Goto(nodeAskQuestion), nil
}

func countExpertTurns(msgs []llm.Message) int {
	count := 0
	for _, m := range msgs {
		if m.Name == expertName {
			count++
		}
	}
	return count
}

// askQuestion generates the analyst's next turn from the persona and the
// conversation so far.
func (n *InterviewNodes) askQuestion(ctx context.Context, s *graph.State) (graph.Patch, error) {
	analyst := stateAnalyst(s)

	msgs := []llm.Message{llm.SystemMessage(fmt.Sprintf(questionInstructions, analyst.Persona(), terminationPhrase))}
	msgs = append(msgs, stateMessages(s)...)

	text, err := n.llm.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return graph.Patch{fieldMessages: []llm.Message{llm.AssistantMessage(analyst.Name, text)}}, nil
}

// searchQuery derives one search query from the conversation, weighted toward
// the analyst's latest question.
func (n *InterviewNodes) searchQuery(ctx context.Context, s *graph.State) (string, error) {
	msgs := []llm.Message{llm.SystemMessage(searchInstructions)}
	msgs = append(msgs, stateMessages(s)...)

	var out struct {
		Query string `json:"query"`
	}
	schema := llm.ResponseSchema{
		Name:        "search_query",
		Description: "A single web search query",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
	if err := n.llm.GenerateStructured(ctx, msgs, schema, &out); err != nil {
		return "", err
	}
	return out.Query, nil
}

func (n *InterviewNodes) searchWeb(ctx context.Context, s *graph.State) (graph.Patch, error) {
	return n.retrieve(ctx, s, n.web)
}

func (n *InterviewNodes) searchWikipedia(ctx context.Context, s *graph.State) (graph.Patch, error) {
	return n.retrieve(ctx, s, n.wiki)
}

// retrieve runs one retrieval provider and appends the formatted document
// block to the interview context. Zero results is not a failure; the
// interview proceeds with whatever context it has.
func (n *InterviewNodes) retrieve(ctx context.Context, s *graph.State, searcher research.Searcher) (graph.Patch, error) {
	query, err := n.searchQuery(ctx, s)
	if err != nil {
		return nil, err
	}
	docs, err := searcher.Search(ctx, query, n.maxResults)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return graph.Patch{}, nil
	}
	return graph.Patch{fieldContext: []string{research.FormatDocuments(docs)}}, nil
}

// answerQuestion generates the expert's turn, grounded strictly in the
// accumulated context and citing the deduplicated source list with bracketed
// indexes.
func (n *InterviewNodes) answerQuestion(ctx context.Context, s *graph.State) (graph.Patch, error) {
	analyst := stateAnalyst(s)
	blocks := stateContext(s)

	msgs := []llm.Message{llm.SystemMessage(fmt.Sprintf(answerInstructions,
		analyst.Persona(),
		strings.Join(blocks, "\n\n---\n\n"),
		numberedSources(blocks),
	))}
	msgs = append(msgs, stateMessages(s)...)

	text, err := n.llm.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return graph.Patch{fieldMessages: []llm.Message{llm.AssistantMessage(expertName, text)}}, nil
}

// numberedSources renders the deduplicated, ordered source list as the
// numbered index the answer's bracketed citations refer to.
func numberedSources(blocks []string) string {
	sources := research.ExtractSources(blocks)
	if len(sources) == 0 {
		return "(no sources retrieved)"
	}
	var b strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, src)
	}
	return strings.TrimRight(b.String(), "\n")
}

// saveInterview serializes the full message history into the transcript. No
// further messages are appended after this point.
func saveInterview(ctx context.Context, s *graph.State) (graph.Patch, error) {
	var b strings.Builder
	for _, m := range stateMessages(s) {
		name := m.Name
		if name == "" {
			name = string(m.Role)
		}
		fmt.Fprintf(&b, "%s: %s\n\n", name, m.Content)
	}
	return graph.Patch{fieldInterview: strings.TrimRight(b.String(), "\n")}, nil
}

// writeSection produces the branch's report section from the transcript and
// the retrieved context. The section is the branch's sole contribution to
// the parent pipeline state.
func (n *InterviewNodes) writeSection(ctx context.Context, s *graph.State) (graph.Patch, error) {
	analyst := stateAnalyst(s)
	interview := s.GetString(fieldInterview, "")
	blocks := stateContext(s)

	text, err := n.llm.Generate(ctx, []llm.Message{
		llm.SystemMessage(fmt.Sprintf(sectionWriterInstructions,
			analyst.Persona(),
			interview,
			strings.Join(blocks, "\n\n---\n\n"),
		)),
		llm.UserMessage("Write the section."),
	})
	if err != nil {
		return nil, err
	}
	return graph.Patch{fieldSections: []string{text}}, nil
}

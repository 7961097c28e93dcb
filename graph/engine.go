// ABOUTME: Execution engine for pipeline graphs: traversal loop, patch application, and event emission.
// ABOUTME: Dispatches conditional routing and fan-out, wrapping node failures in NodeError with the failing node id.
package graph

import (
	"context"
	"fmt"
	"time"
)

// EventType identifies the kind of engine lifecycle event.
type EventType string

const (
	EventRunStarted      EventType = "run.started"
	EventRunCompleted    EventType = "run.completed"
	EventRunFailed       EventType = "run.failed"
	EventNodeStarted     EventType = "node.started"
	EventNodeCompleted   EventType = "node.completed"
	EventNodeFailed      EventType = "node.failed"
	EventBranchStarted   EventType = "branch.started"
	EventBranchCompleted EventType = "branch.completed"
	EventBranchesMerged  EventType = "branches.merged"
)

// Event is a lifecycle event emitted by the engine during a run.
type Event struct {
	Type      EventType
	Node      string
	Data      map[string]any
	Timestamp time.Time
}

// NodeError wraps a node failure with the identifier of the failing node.
// The engine performs no retries; the error propagates to the caller.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Engine executes a graph from its entry edge to the terminal marker.
type Engine struct {
	graph         *Graph
	maxIterations int
	eventHandler  func(Event)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEventHandler sets a callback receiving engine lifecycle events.
func WithEventHandler(handler func(Event)) EngineOption {
	return func(e *Engine) {
		e.eventHandler = handler
	}
}

// WithMaxIterations overrides the traversal iteration guard.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// NewEngine validates the graph and returns an engine ready to run it.
func NewEngine(g *Graph, opts ...EngineOption) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		graph:         g,
		maxIterations: 1000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the graph starting from its entry edge with the given initial
// patch and returns the final state. Execution proceeds node by node: invoke
// the node with the latest state, fold its patch in under the schema's merge
// policies, then consult the node's outgoing edge for the next step. Fan-out
// edges dispatch concurrent branches and join before continuing.
func (e *Engine) Run(ctx context.Context, initial Patch) (*State, error) {
	state := NewState(e.graph.schema)
	state.Apply(initial)

	e.emit(Event{Type: EventRunStarted, Data: map[string]any{"graph": e.graph.name}})

	current, err := e.advance(ctx, Start, state)
	if err != nil {
		e.emit(Event{Type: EventRunFailed, Data: map[string]any{"error": err.Error()}})
		return nil, err
	}

	for iteration := 0; current != End; iteration++ {
		if iteration >= e.maxIterations {
			err := fmt.Errorf("graph %q exceeded %d iterations, possible routing loop", e.graph.name, e.maxIterations)
			e.emit(Event{Type: EventRunFailed, Data: map[string]any{"error": err.Error()}})
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			e.emit(Event{Type: EventRunFailed, Data: map[string]any{"error": err.Error()}})
			return nil, err
		}

		patch, err := e.executeNode(ctx, current, state)
		if err != nil {
			e.emit(Event{Type: EventRunFailed, Node: current, Data: map[string]any{"error": err.Error()}})
			return nil, err
		}
		state.Apply(patch)

		current, err = e.advance(ctx, current, state)
		if err != nil {
			e.emit(Event{Type: EventRunFailed, Data: map[string]any{"error": err.Error()}})
			return nil, err
		}
	}

	e.emit(Event{Type: EventRunCompleted, Data: map[string]any{"graph": e.graph.name}})
	return state, nil
}

// executeNode runs one node function and wraps failures in NodeError.
func (e *Engine) executeNode(ctx context.Context, id string, state *State) (Patch, error) {
	fn := e.graph.node(id)
	if fn == nil {
		return nil, &NodeError{Node: id, Err: fmt.Errorf("not registered")}
	}

	e.emit(Event{Type: EventNodeStarted, Node: id})
	patch, err := fn(ctx, state)
	if err != nil {
		e.emit(Event{Type: EventNodeFailed, Node: id, Data: map[string]any{"error": err.Error()}})
		return nil, &NodeError{Node: id, Err: err}
	}
	e.emit(Event{Type: EventNodeCompleted, Node: id})
	return patch, nil
}

// advance resolves the outgoing edge of from and returns the next node to
// execute inline. Fan-out edges are executed here: branches run to
// completion, their patches merge into state, and the shared join node is
// returned. A missing edge ends the walk.
func (e *Engine) advance(ctx context.Context, from string, state *State) (string, error) {
	ed := e.graph.outgoing(from)
	if ed == nil {
		return End, nil
	}

	var sends []Send
	switch {
	case ed.router != nil:
		routed, err := ed.router(state)
		if err != nil {
			return "", &NodeError{Node: from, Err: err}
		}
		if len(routed) == 0 {
			return "", &NodeError{Node: from, Err: fmt.Errorf("router produced no targets")}
		}
		sends = routed
	default:
		for _, t := range ed.targets {
			sends = append(sends, Send{Node: t})
		}
	}

	// A single seedless target continues the walk inline over shared state.
	if len(sends) == 1 && sends[0].Seed == nil {
		return sends[0].Node, nil
	}

	return e.runFanOut(ctx, from, state, sends)
}

// AsNode wraps the engine as a NodeFunc for embedding its graph inside a
// parent graph. The nested run is seeded with the caller's state snapshot and
// contributes only the named output fields back as its patch.
func (e *Engine) AsNode(outputFields ...string) NodeFunc {
	return func(ctx context.Context, s *State) (Patch, error) {
		final, err := e.Run(ctx, s.Snapshot())
		if err != nil {
			return nil, err
		}
		patch := make(Patch, len(outputFields))
		for _, field := range outputFields {
			if v := final.Get(field); v != nil {
				patch[field] = v
			}
		}
		return patch, nil
	}
}

// emit sends an event to the configured handler, stamping the current time.
func (e *Engine) emit(evt Event) {
	if e.eventHandler == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	e.eventHandler(evt)
}

// ABOUTME: Concurrent fan-out branch execution with a join barrier and merge into parent state.
// ABOUTME: Each branch owns an isolated state copy; the first failing branch cancels its siblings.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// branchResult carries one completed branch back to the join barrier.
type branchResult struct {
	node  string
	patch Patch
	err   error
}

// runFanOut dispatches each Send as a concurrent branch and blocks until all
// branches finish. Seeded branches receive a fresh state holding only the
// seed; seedless branches receive a clone of the current state. Branch
// patches are folded into the parent state in branch-completion order, which
// is not deterministic across branches; append-policy fields may interleave
// differently between runs.
//
// All branches must converge on the same static join node; that node id is
// returned so the parent walk can continue past the barrier. On the first
// branch failure the remaining branches are cancelled and the failure
// surfaces with the branch's node id.
func (e *Engine) runFanOut(ctx context.Context, from string, state *State, sends []Send) (string, error) {
	join, err := e.joinTarget(from, sends)
	if err != nil {
		return "", err
	}

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan branchResult, len(sends))
	for _, send := range sends {
		fn := e.graph.node(send.Node)
		if fn == nil {
			return "", &NodeError{Node: send.Node, Err: fmt.Errorf("fan-out target not registered")}
		}

		var branchState *State
		if send.Seed != nil {
			branchState = NewState(e.graph.schema)
			branchState.Apply(send.Seed)
		} else {
			branchState = state.Clone()
		}

		e.emit(Event{Type: EventBranchStarted, Node: send.Node})
		go func(node string, fn NodeFunc, bs *State) {
			patch, err := fn(branchCtx, bs)
			if err != nil {
				cancel()
			}
			results <- branchResult{node: node, patch: patch, err: err}
		}(send.Node, fn, branchState)
	}

	// Join barrier: wait for every branch, merging completions as they
	// arrive. The merge is the only point where branch output reaches the
	// parent state, and each branch's patch is applied exactly once.
	var firstErr *NodeError
	merged := 0
	for range sends {
		res := <-results
		if res.err != nil {
			e.emit(Event{Type: EventNodeFailed, Node: res.node, Data: map[string]any{"error": res.err.Error()}})
			// Prefer the branch that actually failed over siblings that
			// merely observed the cancellation.
			if firstErr == nil || (errors.Is(firstErr.Err, context.Canceled) && !errors.Is(res.err, context.Canceled)) {
				firstErr = &NodeError{Node: res.node, Err: res.err}
			}
			continue
		}
		e.emit(Event{Type: EventBranchCompleted, Node: res.node})
		if firstErr == nil {
			state.Apply(res.patch)
			merged++
		}
	}

	if firstErr != nil {
		return "", firstErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.emit(Event{Type: EventBranchesMerged, Node: from, Data: map[string]any{"branches": merged}})
	return join, nil
}

// joinTarget resolves the static node all fan-out branches converge to. Every
// branch node must carry a static single-target edge, and all of them must
// agree; otherwise there is no well-defined barrier to resume from.
func (e *Engine) joinTarget(from string, sends []Send) (string, error) {
	join := ""
	for _, send := range sends {
		ed := e.graph.outgoing(send.Node)
		target := End
		if ed != nil {
			if ed.router != nil || len(ed.targets) != 1 {
				return "", fmt.Errorf("fan-out branch %q from %q must have a single static outgoing edge", send.Node, from)
			}
			target = ed.targets[0]
		}
		if join == "" {
			join = target
			continue
		}
		if target != join {
			return "", fmt.Errorf("fan-out from %q has diverging join targets %q and %q", from, join, target)
		}
	}
	return join, nil
}

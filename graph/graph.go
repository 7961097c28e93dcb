// ABOUTME: Graph model for the pipeline orchestration engine: nodes, edges, and routers.
// ABOUTME: Nodes and edges live in an explicit tagged registry so control flow stays inspectable and testable.
package graph

import (
	"context"
	"fmt"
)

// Reserved node identifiers marking the entry and terminal points of a graph.
const (
	Start = "__start__"
	End   = "__end__"
)

// NodeFunc is a unit of pipeline work: a function from the current state to a
// partial state patch. Node functions must not mutate the state directly;
// all writes go through the returned patch.
type NodeFunc func(ctx context.Context, s *State) (Patch, error)

// Send directs execution to a node. A nil Seed means "go there with the
// current state". A non-nil Seed spawns the target as an isolated branch
// whose state contains only the seed patch.
type Send struct {
	Node string
	Seed Patch
}

// Goto is shorthand for a single seedless routing decision.
func Goto(node string) []Send {
	return []Send{{Node: node}}
}

// Router is a conditional edge: a deterministic function of the state
// snapshot producing the next node(s). A single seedless Send continues the
// walk inline; multiple Sends (or any seeded Send) fan out into concurrent
// branches that join before the walk continues.
type Router func(s *State) ([]Send, error)

// edge is the outgoing edge record for one node: either static targets or a
// router, never both.
type edge struct {
	targets []string
	router  Router
}

// Graph holds the node registry and edge table for one pipeline, plus the
// state schema its runs are governed by.
type Graph struct {
	name   string
	schema Schema
	nodes  map[string]NodeFunc
	edges  map[string]*edge
}

// New creates an empty graph with the given name and state schema.
func New(name string, schema Schema) *Graph {
	return &Graph{
		name:   name,
		schema: schema,
		nodes:  make(map[string]NodeFunc),
		edges:  make(map[string]*edge),
	}
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// AddNode registers a node function under the given id.
func (g *Graph) AddNode(id string, fn NodeFunc) error {
	if id == "" || id == Start || id == End {
		return fmt.Errorf("invalid node id %q", id)
	}
	if fn == nil {
		return fmt.Errorf("node %q: nil NodeFunc", id)
	}
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("node %q already registered", id)
	}
	g.nodes[id] = fn
	return nil
}

// AddEdge adds a static edge: after from completes, execution moves to to.
func (g *Graph) AddEdge(from, to string) error {
	return g.addEdge(from, &edge{targets: []string{to}})
}

// AddParallelEdge adds a static fan-out edge: after from completes, all
// targets run concurrently over isolated state copies and join before the
// walk continues.
func (g *Graph) AddParallelEdge(from string, targets ...string) error {
	if len(targets) < 2 {
		return fmt.Errorf("parallel edge from %q needs at least two targets", from)
	}
	return g.addEdge(from, &edge{targets: targets})
}

// AddConditionalEdge adds a router-driven edge from the given node.
func (g *Graph) AddConditionalEdge(from string, r Router) error {
	if r == nil {
		return fmt.Errorf("conditional edge from %q: nil router", from)
	}
	return g.addEdge(from, &edge{router: r})
}

func (g *Graph) addEdge(from string, e *edge) error {
	if from == End {
		return fmt.Errorf("edge from terminal marker")
	}
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("node %q already has an outgoing edge", from)
	}
	g.edges[from] = e
	return nil
}

// Validate checks the graph for structural errors: a missing entry edge,
// static edges to unregistered nodes, and edges from unregistered nodes.
// Router targets are necessarily checked at run time.
func (g *Graph) Validate() error {
	if _, ok := g.edges[Start]; !ok {
		return fmt.Errorf("graph %q has no entry edge from Start", g.name)
	}
	for from, e := range g.edges {
		if from != Start {
			if _, ok := g.nodes[from]; !ok {
				return fmt.Errorf("graph %q: edge from unregistered node %q", g.name, from)
			}
		}
		for _, to := range e.targets {
			if to == End {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("graph %q: edge %q -> unregistered node %q", g.name, from, to)
			}
		}
	}
	return nil
}

// node returns the registered NodeFunc for id, or nil.
func (g *Graph) node(id string) NodeFunc {
	return g.nodes[id]
}

// outgoing returns the edge record for id, or nil when the node has no
// outgoing edge (the walk ends naturally there).
func (g *Graph) outgoing(id string) *edge {
	return g.edges[id]
}

// Package pipeline provides a deterministic graph runtime for agent
// decision pipelines: named nodes over a shared typed state, static and
// conditional edges, bounded retry loops and forced escalation paths.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Pseudo-vertices delimiting every graph.
const (
	START = "__start__"
	END   = "__end__"
)

var (
	// ErrUnknownEdgeLabel indicates a conditional edge returned a label with
	// no configured route. This is a wiring error, never silently defaulted.
	ErrUnknownEdgeLabel = errors.New("unknown edge label")

	// ErrNoOutgoingEdge indicates execution reached a node with no way out
	ErrNoOutgoingEdge = errors.New("no outgoing edge")

	// ErrInvalidGraph indicates the graph failed structural validation
	ErrInvalidGraph = errors.New("invalid graph")
)

// State is the contract pipeline state types satisfy. The runtime only
// needs escalation marking (error containment, deadlines, budgets) and the
// retry-exhaustion signal that drives the loop guard.
type State interface {
	// MarkEscalated records that the run must end in an escalation.
	MarkEscalated(reason string)

	// Escalated reports whether the run is already marked for escalation.
	Escalated() bool

	// AttemptsExhausted reports whether the retry budget is spent.
	AttemptsExhausted() bool
}

// NodeFunc is one unit of work. It mutates state in place; a returned error
// is contained by the runner, never propagated as a panic or crash.
type NodeFunc[S State] func(ctx context.Context, state S) error

// EdgeFunc inspects state after a node ran and returns a route label.
type EdgeFunc[S State] func(state S) string

type conditionalEdge[S State] struct {
	decide EdgeFunc[S]
	routes map[string]string // label → target node
}

// Graph is a builder for a node/edge topology. Build it once at startup,
// Compile it, and reuse the compiled Runner across requests.
type Graph[S State] struct {
	name        string
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	outputNode  string
	forcedNode  string
}

// NewGraph creates an empty graph.
func NewGraph[S State](name string) *Graph[S] {
	return &Graph[S]{
		name:        name,
		nodes:       make(map[string]NodeFunc[S]),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge[S]),
	}
}

// AddNode registers a named node. Names must be unique.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) error {
	if name == "" || name == START || name == END {
		return fmt.Errorf("%w: reserved node name %q", ErrInvalidGraph, name)
	}
	if fn == nil {
		return fmt.Errorf("%w: node %q has nil func", ErrInvalidGraph, name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("%w: duplicate node %q", ErrInvalidGraph, name)
	}
	g.nodes[name] = fn
	return nil
}

// AddEdge registers a static edge. Use START as from for the entry edge and
// END as to for terminal edges.
func (g *Graph[S]) AddEdge(from, to string) error {
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("%w: node %q already has a static edge", ErrInvalidGraph, from)
	}
	if _, exists := g.conditional[from]; exists {
		return fmt.Errorf("%w: node %q already has a conditional edge", ErrInvalidGraph, from)
	}
	g.edges[from] = to
	return nil
}

// AddConditionalEdge registers a labelled routing decision on from. After
// the node runs, decide(state) picks the label and routes resolves it.
func (g *Graph[S]) AddConditionalEdge(from string, decide EdgeFunc[S], routes map[string]string) error {
	if decide == nil || len(routes) == 0 {
		return fmt.Errorf("%w: conditional edge on %q needs a decide func and routes", ErrInvalidGraph, from)
	}
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("%w: node %q already has a static edge", ErrInvalidGraph, from)
	}
	if _, exists := g.conditional[from]; exists {
		return fmt.Errorf("%w: node %q already has a conditional edge", ErrInvalidGraph, from)
	}
	copied := make(map[string]string, len(routes))
	for label, target := range routes {
		copied[label] = target
	}
	g.conditional[from] = conditionalEdge[S]{decide: decide, routes: copied}
	return nil
}

// SetOutputNode names the node the runner jumps to when a node fails, the
// deadline expires or the step budget runs out. The output node assembles a
// terminal response from whatever state exists.
func (g *Graph[S]) SetOutputNode(name string) {
	g.outputNode = name
}

// SetForcedNode names the node the runner forces execution to when a loop
// re-enters an already-visited node after the retry budget is exhausted.
func (g *Graph[S]) SetForcedNode(name string) {
	g.forcedNode = name
}

// Validate checks structural integrity: the entry edge exists, every edge
// target resolves, every node has a way out and everything is reachable.
func (g *Graph[S]) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("%w: %s has no nodes", ErrInvalidGraph, g.name)
	}
	entry, ok := g.edges[START]
	if !ok {
		return fmt.Errorf("%w: %s has no entry edge from START", ErrInvalidGraph, g.name)
	}

	resolve := func(from, to string) error {
		if to == END {
			return nil
		}
		if _, exists := g.nodes[to]; !exists {
			return fmt.Errorf("%w: %s edge %s -> %s targets unknown node", ErrInvalidGraph, g.name, from, to)
		}
		return nil
	}

	for from, to := range g.edges {
		if from != START {
			if _, exists := g.nodes[from]; !exists {
				return fmt.Errorf("%w: %s edge from unknown node %q", ErrInvalidGraph, g.name, from)
			}
		}
		if err := resolve(from, to); err != nil {
			return err
		}
	}
	for from, edge := range g.conditional {
		if _, exists := g.nodes[from]; !exists {
			return fmt.Errorf("%w: %s conditional edge from unknown node %q", ErrInvalidGraph, g.name, from)
		}
		for label, target := range edge.routes {
			if err := resolve(fmt.Sprintf("%s[%s]", from, label), target); err != nil {
				return err
			}
		}
	}

	for name := range g.nodes {
		_, hasStatic := g.edges[name]
		_, hasConditional := g.conditional[name]
		if !hasStatic && !hasConditional {
			return fmt.Errorf("%w: %s node %q has no outgoing edge", ErrInvalidGraph, g.name, name)
		}
	}

	if g.outputNode != "" {
		if _, exists := g.nodes[g.outputNode]; !exists {
			return fmt.Errorf("%w: %s output node %q not defined", ErrInvalidGraph, g.name, g.outputNode)
		}
	}
	if g.forcedNode != "" {
		if _, exists := g.nodes[g.forcedNode]; !exists {
			return fmt.Errorf("%w: %s forced node %q not defined", ErrInvalidGraph, g.name, g.forcedNode)
		}
	}

	// Reachability from the entry node across all edges. The output and
	// forced nodes count as roots: the runner jumps to them without an edge.
	reached := map[string]bool{}
	queue := []string{entry}
	if g.outputNode != "" {
		queue = append(queue, g.outputNode)
	}
	if g.forcedNode != "" {
		queue = append(queue, g.forcedNode)
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == END || reached[node] {
			continue
		}
		reached[node] = true
		if to, ok := g.edges[node]; ok {
			queue = append(queue, to)
		}
		if edge, ok := g.conditional[node]; ok {
			for _, target := range edge.routes {
				queue = append(queue, target)
			}
		}
	}
	for name := range g.nodes {
		if !reached[name] {
			return fmt.Errorf("%w: %s node %q unreachable from START", ErrInvalidGraph, g.name, name)
		}
	}

	return nil
}

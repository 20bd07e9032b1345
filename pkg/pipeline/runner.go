package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step records one executed node for the trace.
type Step struct {
	Node     string        `json:"node"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Forced   bool          `json:"forced,omitempty"`
}

// Result is the outcome of one pipeline execution.
type Result struct {
	Path     []Step        `json:"path"`
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Nodes returns the executed node names in order.
func (r *Result) Nodes() []string {
	nodes := make([]string, len(r.Path))
	for i, step := range r.Path {
		nodes[i] = step.Node
	}
	return nodes
}

// Runner executes a compiled graph. It is safe for concurrent use; all
// per-run data lives in the state passed to Execute.
type Runner[S State] struct {
	graph    *Graph[S]
	maxSteps int
	logger   *slog.Logger
}

// RunnerOption customises a compiled runner.
type RunnerOption[S State] func(*Runner[S])

// WithMaxSteps overrides the step budget (default: 4x node count).
func WithMaxSteps[S State](n int) RunnerOption[S] {
	return func(r *Runner[S]) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// Compile validates the graph and returns a reusable runner.
func (g *Graph[S]) Compile(opts ...RunnerOption[S]) (*Runner[S], error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	r := &Runner[S]{
		graph:    g,
		maxSteps: 4 * len(g.nodes),
		logger:   slog.Default().With("component", "pipeline", "graph", g.name),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Execute walks the graph from START to END, mutating state in place.
//
// Containment rules:
//   - A node error or panic marks the state escalated with "<node>: <err>"
//     and jumps straight to the output node.
//   - Deadline expiry between nodes escalates with "deadline exceeded" and
//     jumps to the output node.
//   - Exceeding the step budget escalates with "step budget exceeded" and
//     jumps to the output node.
//   - Re-entering an already-visited node once attempts are exhausted forces
//     execution to the forced node instead, ending the loop.
//
// Execute returns an error only when the graph cannot terminate cleanly:
// an unroutable edge label, or a failure in the output node itself.
func (r *Runner[S]) Execute(ctx context.Context, state S) (*Result, error) {
	start := time.Now()
	result := &Result{}
	visited := make(map[string]int, len(r.graph.nodes))

	current := r.graph.edges[START]
	jumped := false // already on the containment path to output

	for current != END {
		// Deadline check between nodes. The output node still runs so a
		// terminal escalation response exists.
		if err := ctx.Err(); err != nil && !jumped {
			state.MarkEscalated("deadline exceeded")
			next, ok := r.jumpToOutput("deadline", current)
			if !ok {
				return result, fmt.Errorf("deadline exceeded at node %s with no output node", current)
			}
			current, ctx, jumped = next, context.WithoutCancel(ctx), true
			continue
		}

		if result.Steps >= r.maxSteps && !jumped {
			state.MarkEscalated("step budget exceeded")
			next, ok := r.jumpToOutput("step budget", current)
			if !ok {
				return result, fmt.Errorf("step budget exceeded at node %s with no output node", current)
			}
			current, jumped = next, true
			continue
		}

		// Loop guard: a second visit with the retry budget spent leaves the
		// loop through the forced node.
		forced := false
		if visited[current] > 0 && state.AttemptsExhausted() &&
			r.graph.forcedNode != "" && current != r.graph.forcedNode {
			r.logger.Warn("Retry budget exhausted, forcing path",
				"node", current, "forced_node", r.graph.forcedNode)
			current = r.graph.forcedNode
			forced = true
		}

		node := r.graph.nodes[current]
		visited[current]++
		result.Steps++

		nodeStart := time.Now()
		err := runNode(ctx, node, state)
		step := Step{Node: current, Duration: time.Since(nodeStart), Forced: forced}
		if err != nil {
			step.Error = err.Error()
		}
		result.Path = append(result.Path, step)

		if err != nil {
			if jumped || current == r.graph.outputNode {
				// The containment path itself failed; nothing left to try.
				result.Duration = time.Since(start)
				return result, fmt.Errorf("output node %s failed: %w", current, err)
			}
			state.MarkEscalated(fmt.Sprintf("%s: %v", current, err))
			next, ok := r.jumpToOutput("node error", current)
			if !ok {
				result.Duration = time.Since(start)
				return result, fmt.Errorf("node %s failed with no output node: %w", current, err)
			}
			current, jumped = next, true
			continue
		}

		next, err := r.route(current, state)
		if err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		current = next
	}

	result.Duration = time.Since(start)
	r.logger.Debug("Pipeline finished", "steps", result.Steps, "duration", result.Duration)
	return result, nil
}

// route resolves the outgoing edge of node for the current state.
func (r *Runner[S]) route(node string, state S) (string, error) {
	if edge, ok := r.graph.conditional[node]; ok {
		label := edge.decide(state)
		target, ok := edge.routes[label]
		if !ok {
			return "", fmt.Errorf("%w: node %s returned %q", ErrUnknownEdgeLabel, node, label)
		}
		return target, nil
	}
	if target, ok := r.graph.edges[node]; ok {
		return target, nil
	}
	return "", fmt.Errorf("%w: node %s", ErrNoOutgoingEdge, node)
}

func (r *Runner[S]) jumpToOutput(reason, from string) (string, bool) {
	if r.graph.outputNode == "" {
		return "", false
	}
	r.logger.Warn("Jumping to output node", "reason", reason, "from", from)
	return r.graph.outputNode, true
}

// runNode executes one node with panic containment.
func runNode[S State](ctx context.Context, node NodeFunc[S], state S) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return node(ctx, state)
}

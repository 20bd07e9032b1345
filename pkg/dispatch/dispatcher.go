// Package dispatch materialises department agents on demand and forwards
// requests into their pipelines. The coordinator, the HTTP layer and the
// async queue all enter pipelines through here, so nested dispatch is
// depth-capped in one place.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/polis-ai/polis/pkg/agent"
	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/metrics"
	"github.com/polis-ai/polis/pkg/models"
)

// Sentinel errors for dispatch operations.
var (
	ErrClosed       = errors.New("dispatcher is closed")
	ErrMaxDepth     = errors.New("nested dispatch depth exceeded")
	ErrSelfDispatch = errors.New("agent cannot dispatch to itself")
)

// maxDepth caps nested dispatch: a dispatched pipeline may not dispatch
// again.
const maxDepth = 1

// Invoker is the slice of an agent the dispatcher drives.
type Invoker interface {
	Process(ctx context.Context, req *models.Request) *models.AgentResponse
}

// Factory materialises the agent serving a department on first use.
type Factory func(agentType config.AgentType) (Invoker, error)

// AgentFactory adapts agent construction over shared dependencies into a
// Factory. Unknown departments fail with the profile registry's error.
func AgentFactory(deps agent.Deps) Factory {
	return func(agentType config.AgentType) (Invoker, error) {
		return agent.New(agentType, deps)
	}
}

// Result is the timed outcome of one dispatched query.
type Result struct {
	Success    bool                  `json:"success"`
	AgentType  string                `json:"agent_type"`
	Response   *models.AgentResponse `json:"response,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
	Timestamp  time.Time             `json:"timestamp"`
	Error      string                `json:"error,omitempty"`
}

// Dispatcher caches one agent instance per department, materialising them
// lazily. Cache reads take the read lock; the first miss takes the write
// lock, so concurrent first use still produces exactly one instance.
type Dispatcher struct {
	mu     sync.RWMutex
	agents map[config.AgentType]Invoker
	closed bool

	factory Factory
	logger  *slog.Logger
	clock   func() time.Time
}

// New builds an empty dispatcher over the factory.
func New(factory Factory) *Dispatcher {
	return &Dispatcher{
		agents:  make(map[config.AgentType]Invoker),
		factory: factory,
		logger:  slog.Default().With("component", "dispatcher"),
		clock:   time.Now,
	}
}

type ctxKey int

const (
	depthKey ctxKey = iota
	originKey
)

// Depth reports how many dispatch hops ctx has already crossed.
func Depth(ctx context.Context) int {
	depth, _ := ctx.Value(depthKey).(int)
	return depth
}

// WithOrigin marks ctx as running inside agentType's pipeline. QueryAgent
// does this itself; entry points that invoke an agent directly use it so the
// self-dispatch guard still holds for handles they pass in.
func WithOrigin(ctx context.Context, agentType string) context.Context {
	return context.WithValue(ctx, originKey, agentType)
}

func origin(ctx context.Context) string {
	o, _ := ctx.Value(originKey).(string)
	return o
}

// QueryAgent materialises or reuses the department's agent, runs the request
// through its pipeline and times it. Refusals and pipeline errors come back
// on the result, never as panics or Go errors: callers enrich context with
// whatever answered and move on.
func (d *Dispatcher) QueryAgent(ctx context.Context, agentType string, req *models.Request, reason string) *Result {
	started := d.clock()
	result := &Result{AgentType: agentType, Timestamp: started.UTC()}

	if err := d.guard(ctx, agentType); err != nil {
		d.logger.Warn("Dispatch refused",
			"agent_type", agentType, "reason", reason, "error", err)
		return result.fail(err)
	}

	invoker, err := d.agent(config.AgentType(agentType))
	if err != nil {
		d.logger.Warn("Dispatch could not materialise agent",
			"agent_type", agentType, "error", err)
		return result.fail(err)
	}

	d.logger.Info("Dispatching request",
		"agent_type", agentType, "reason", reason, "depth", Depth(ctx)+1)

	ctx = context.WithValue(ctx, depthKey, Depth(ctx)+1)
	ctx = WithOrigin(ctx, agentType)
	resp := invoker.Process(ctx, req)

	duration := d.clock().Sub(started)
	result.DurationMS = duration.Milliseconds()
	result.Response = resp
	switch {
	case resp == nil:
		result.Error = "agent produced no response"
	case resp.Decision == models.DecisionError:
		result.Error = resp.Reason
	default:
		result.Success = true
	}
	metrics.ObservePipeline(agentType, decisionLabel(resp), duration)
	return result
}

// QueryMultipleAgents dispatches one request per department, sequentially in
// department order. Failures are per-entry: one agent erroring does not stop
// the rest.
func (d *Dispatcher) QueryMultipleAgents(ctx context.Context, requests map[string]*models.Request, reason string) map[string]*Result {
	types := make([]string, 0, len(requests))
	for agentType := range requests {
		types = append(types, agentType)
	}
	sort.Strings(types)

	results := make(map[string]*Result, len(requests))
	for _, agentType := range types {
		results[agentType] = d.QueryAgent(ctx, agentType, requests[agentType], reason)
	}
	return results
}

// Cached lists the departments whose agents are currently materialised,
// sorted by type.
func (d *Dispatcher) Cached() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.agents))
	for agentType := range d.agents {
		types = append(types, string(agentType))
	}
	sort.Strings(types)
	return types
}

// CloseAll releases every cached agent and refuses further dispatch. Agents
// implementing io.Closer are closed; close errors are logged, not returned.
func (d *Dispatcher) CloseAll() {
	d.mu.Lock()
	agents := d.agents
	d.agents = make(map[config.AgentType]Invoker)
	d.closed = true
	d.mu.Unlock()

	for agentType, invoker := range agents {
		closer, ok := invoker.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			d.logger.Warn("Failed to close agent",
				"agent_type", string(agentType), "error", err)
		}
	}
	d.logger.Info("Dispatcher closed", "released", len(agents))
}

// guard refuses dispatches that would loop: an agent querying itself, or a
// dispatched pipeline dispatching again.
func (d *Dispatcher) guard(ctx context.Context, agentType string) error {
	if origin(ctx) == agentType {
		return fmt.Errorf("%w: %s", ErrSelfDispatch, agentType)
	}
	if depth := Depth(ctx); depth >= maxDepth {
		return fmt.Errorf("%w: depth %d, limit %d", ErrMaxDepth, depth, maxDepth)
	}
	return nil
}

// agent returns the cached instance for the department, materialising it on
// first use.
func (d *Dispatcher) agent(agentType config.AgentType) (Invoker, error) {
	d.mu.RLock()
	invoker, ok := d.agents[agentType]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return invoker, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if invoker, ok := d.agents[agentType]; ok {
		// Another caller won the materialisation race.
		return invoker, nil
	}

	invoker, err := d.factory(agentType)
	if err != nil {
		return nil, err
	}
	d.agents[agentType] = invoker
	d.logger.Info("Agent materialised", "agent_type", string(agentType))
	return invoker, nil
}

func (r *Result) fail(err error) *Result {
	r.Success = false
	r.Error = err.Error()
	return r
}

func decisionLabel(resp *models.AgentResponse) string {
	if resp == nil {
		return string(models.DecisionError)
	}
	return string(resp.Decision)
}

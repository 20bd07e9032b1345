// Package tools wraps datasource queries into the named, parameterised
// capabilities agents invoke from their plans. Tools never raise: every
// failure comes back as a result map carrying an "error" key.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/models"
)

// ErrUnknownTool indicates a tool name outside the registry.
var ErrUnknownTool = errors.New("unknown tool")

// Params is the deterministic parameter pack the tool executor derives from
// pipeline state. Tools read only what they need; zero values mean "not
// specified".
type Params struct {
	AgentType       string // owning department, used for scoped queries
	Location        string
	StartDate       string // ISO date (2006-01-02) of the requested window
	EndDate         string // inclusive; empty means StartDate + DurationDays
	DurationDays    int
	EstimatedCost   float64
	RequiredWorkers int
	Skill           string
}

// Func runs one capability against the data source.
type Func func(ctx context.Context, src datasource.Source, p Params) models.ToolResult

// Tool is a named capability with its implementation.
type Tool struct {
	Name        string
	Description string
	Run         Func
}

// Registry holds a set of tools, either the full catalogue or an agent's
// subset of it.
type Registry struct {
	tools  map[string]Tool
	logger *slog.Logger
}

func newRegistry(tools map[string]Tool) *Registry {
	return &Registry{
		tools:  tools,
		logger: slog.Default().With("component", "tools"),
	}
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether the registry contains name.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset builds an agent-scoped registry. Unknown names are a configuration
// error, caught at startup.
func (r *Registry) Subset(names []string) (*Registry, error) {
	subset := make(map[string]Tool, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		subset[name] = t
	}
	return newRegistry(subset), nil
}

// Execute runs one tool by name. It never panics and never returns an
// error: failures, including unknown names, come back as {"error": ...} so
// a bad step cannot abort the rest of a plan.
func (r *Registry) Execute(ctx context.Context, src datasource.Source, name string, p Params) (result models.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool panicked", "tool", name, "panic", rec)
			result = errResult("panic: %v", rec)
		}
	}()

	t, ok := r.tools[name]
	if !ok {
		return errResult("unknown tool: %s", name)
	}
	if err := ctx.Err(); err != nil {
		return errResult("cancelled: %v", err)
	}
	return t.Run(ctx, src, p)
}

func errResult(format string, args ...any) models.ToolResult {
	return models.ToolResult{"error": fmt.Sprintf(format, args...)}
}

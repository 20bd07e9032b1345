// Package agent implements the shared decision pipeline that every
// department agent runs. One Agent instance serves one department; profiles
// decide intents, tools, feasibility thresholds and policy rules, so adding a
// department is configuration, not code.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/pipeline"
	"github.com/polis-ai/polis/pkg/tools"
)

// agentVersion tags responses and transparency entries.
const agentVersion = "1.0.0"

// Node names of the shared pipeline graph.
const (
	nodeContext     = "context"
	nodeIntent      = "intent"
	nodeGoal        = "goal"
	nodePlanner     = "planner"
	nodeCheckpoint  = "coordination_checkpoint"
	nodeTools       = "tools"
	nodeObserve     = "observe"
	nodeFeasibility = "feasibility"
	nodePolicy      = "policy"
	nodeConfidence  = "confidence"
	nodeRouter      = "router"
	nodeMemoryLog   = "memory_log"
	nodeDirect      = "direct_response"
	nodeOutput      = "output"
)

// Conditional edge labels.
const (
	labelProceed       = "proceed"
	labelEscalate      = "escalate"
	labelInformational = "informational"
	labelRetry         = "retry"
	labelOK            = "ok"
)

// Deps carries the shared services an agent is built from. Config and Source
// are required. LLM, Checker and Recorder are optional; leaving them nil
// selects the deterministic fallbacks and disables coordination and decision
// logging respectively.
type Deps struct {
	Config   *config.Config
	LLM      llm.Completer
	Source   datasource.Source
	Tools    *tools.Registry
	Checker  PlanChecker
	Recorder DecisionRecorder
}

// Agent runs the decision pipeline for one department.
type Agent struct {
	id        string
	agentType config.AgentType
	profile   *config.AgentProfile
	cfg       *config.Config
	llm       llm.Completer
	source    datasource.Source
	registry  *tools.Registry
	checker   PlanChecker
	recorder  DecisionRecorder
	runner    *pipeline.Runner[*State]
	logger    *slog.Logger
	clock     func() time.Time
}

// New builds and validates the agent for agentType. It fails fast on an
// unknown profile, on tools the profile references but the registry lacks,
// and on plan templates naming non-whitelisted tools.
func New(agentType config.AgentType, deps Deps) (*Agent, error) {
	if deps.Config == nil {
		return nil, errors.New("agent: config is required")
	}
	if deps.Config.Agent == nil {
		return nil, errors.New("agent: config is missing the agent section")
	}
	if deps.Source == nil {
		return nil, errors.New("agent: data source is required")
	}

	profile, err := deps.Config.GetProfile(string(agentType))
	if err != nil {
		return nil, err
	}

	base := deps.Tools
	if base == nil {
		base = tools.NewRegistry()
	}
	registry, err := base.Subset(profile.Tools)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", agentType, err)
	}
	for intentName, ic := range profile.Intents {
		for _, tmpl := range ic.Plans {
			for _, step := range tmpl.Steps {
				if !registry.Has(step) {
					return nil, fmt.Errorf("profile %s: intent %s plan %q: %w: %s",
						agentType, intentName, tmpl.Name, tools.ErrUnknownTool, step)
				}
			}
		}
	}

	a := &Agent{
		id:        string(agentType),
		agentType: agentType,
		profile:   profile,
		cfg:       deps.Config,
		llm:       deps.LLM,
		source:    deps.Source,
		registry:  registry,
		checker:   deps.Checker,
		recorder:  deps.Recorder,
		logger:    slog.Default().With("component", "agent", "agent_type", string(agentType)),
		clock:     time.Now,
	}

	graph, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", agentType, err)
	}
	runner, err := graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", agentType, err)
	}
	a.runner = runner
	return a, nil
}

// Type returns the department this agent serves.
func (a *Agent) Type() config.AgentType { return a.agentType }

// buildGraph wires the shared pipeline. Policy is the forced node: a planning
// loop that exhausts its step budget still gets a policy check before the
// output node runs.
func (a *Agent) buildGraph() (*pipeline.Graph[*State], error) {
	g := pipeline.NewGraph[*State]("agent_" + string(a.agentType))

	nodes := []struct {
		name string
		fn   pipeline.NodeFunc[*State]
	}{
		{nodeContext, a.loadContext},
		{nodeIntent, a.analyseIntent},
		{nodeGoal, a.setGoal},
		{nodePlanner, a.plan},
		{nodeCheckpoint, a.coordinationCheckpoint},
		{nodeTools, a.executeTools},
		{nodeObserve, a.observe},
		{nodeFeasibility, a.evaluateFeasibility},
		{nodePolicy, a.validatePolicy},
		{nodeConfidence, a.estimateConfidence},
		{nodeRouter, a.routeDecision},
		{nodeMemoryLog, a.logDecision},
		{nodeDirect, a.directRespond},
		{nodeOutput, a.generateOutput},
	}
	for _, n := range nodes {
		if err := g.AddNode(n.name, n.fn); err != nil {
			return nil, err
		}
	}

	static := [][2]string{
		{pipeline.START, nodeContext},
		{nodeContext, nodeIntent},
		{nodeGoal, nodePlanner},
		{nodeTools, nodeObserve},
		{nodeObserve, nodeFeasibility},
		{nodePolicy, nodeConfidence},
		{nodeConfidence, nodeRouter},
		{nodeRouter, nodeMemoryLog},
		{nodeDirect, nodeMemoryLog},
		{nodeMemoryLog, nodeOutput},
		{nodeOutput, pipeline.END},
	}
	for _, e := range static {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	if err := g.AddConditionalEdge(nodeIntent, routeIntent, map[string]string{
		labelEscalate:      nodeOutput,
		labelInformational: nodeDirect,
		labelProceed:       nodeGoal,
	}); err != nil {
		return nil, err
	}
	if err := g.AddConditionalEdge(nodePlanner, routeEscalateOrProceed, map[string]string{
		labelEscalate: nodeOutput,
		labelProceed:  nodeCheckpoint,
	}); err != nil {
		return nil, err
	}
	if err := g.AddConditionalEdge(nodeCheckpoint, routeRetryAware(labelProceed), map[string]string{
		labelEscalate: nodeOutput,
		labelRetry:    nodePlanner,
		labelProceed:  nodeTools,
	}); err != nil {
		return nil, err
	}
	if err := g.AddConditionalEdge(nodeFeasibility, routeRetryAware(labelOK), map[string]string{
		labelEscalate: nodeOutput,
		labelRetry:    nodeTools,
		labelOK:       nodePolicy,
	}); err != nil {
		return nil, err
	}

	g.SetOutputNode(nodeOutput)
	g.SetForcedNode(nodePolicy)
	return g, nil
}

func routeIntent(s *State) string {
	switch {
	case s.Escalated():
		return labelEscalate
	case s.QueryType == QueryInformational:
		return labelInformational
	default:
		return labelProceed
	}
}

func routeEscalateOrProceed(s *State) string {
	if s.Escalated() {
		return labelEscalate
	}
	return labelProceed
}

// routeRetryAware builds the selector for nodes that may request a retry.
// The retry flag is consumed here so a later pass through the same selector
// starts clean.
func routeRetryAware(passLabel string) func(*State) string {
	return func(s *State) string {
		switch {
		case s.Escalated():
			return labelEscalate
		case s.RetryNeeded:
			s.RetryNeeded = false
			return labelRetry
		default:
			return passLabel
		}
	}
}

// Process runs one request through the pipeline and always returns a
// response. Validation failures and pipeline infrastructure errors surface
// as error-decision responses rather than Go errors so the transport layer
// has a single shape to serialise.
func (a *Agent) Process(ctx context.Context, req *models.Request) *models.AgentResponse {
	resp, _ := a.execute(ctx, req)
	return resp
}

// execute is Process plus the final pipeline state, for tests that assert on
// the node trace.
func (a *Agent) execute(ctx context.Context, req *models.Request) (*models.AgentResponse, *State) {
	started := a.clock()

	if req == nil {
		return models.ErrorResponse("missing request"), nil
	}
	if err := req.Validate(); err != nil {
		a.logger.Warn("Rejecting invalid request", "error", err)
		return models.ErrorResponse(err.Error()), nil
	}

	if timeout := a.cfg.Agent.PipelineTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	state := newState(req, a.agentType, a.cfg.MaxPlanningAttemptsFor(a.profile), started)
	a.logger.Info("Processing request", "request_type", req.Type, "location", req.Location)

	result, err := a.runner.Execute(ctx, state)
	if result != nil {
		state.Trace = result.Nodes()
	}
	if err != nil {
		a.logger.Error("Pipeline did not produce a response", "error", err)
		resp := models.ErrorResponse("internal error: " + err.Error())
		resp.ExecutionTimeMS = a.clock().Sub(started).Milliseconds()
		return resp, state
	}
	if state.Response == nil {
		a.logger.Error("Pipeline completed without a response")
		return models.ErrorResponse("internal error: pipeline produced no response"), state
	}
	return state.Response, state
}

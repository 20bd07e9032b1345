// Package coordination implements the central conflict workflow: detect
// collisions between department decisions, resolve them with deterministic
// rules or the LLM negotiator, gate risky resolutions behind a human, and
// emit one auditable outcome per run.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/human"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/metrics"
	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/pipeline"
)

// Node names of the coordination workflow graph.
const (
	nodeDetect     = "detect_conflicts"
	nodeComplexity = "assess_complexity"
	nodeRules      = "rules"
	nodeLLM        = "llm"
	nodeGate       = "check_human_approval"
	nodeEscalate   = "escalate_to_human"
	nodeFinalize   = "finalize"
)

// Conditional edge labels.
const (
	labelNoConflict = "no_conflict"
	labelSimple     = "simple"
	labelComplex    = "complex"
	labelApproved   = "approved"
	labelNeedsHuman = "needs_human"
)

// DecisionDesk acquires a human decision for an escalation. The human
// package implements it.
type DecisionDesk interface {
	RequestDecision(ctx context.Context, escalation *models.HumanEscalation) models.HumanDecision
}

// DecisionRecorder persists transparency entries for citizen auditability.
// The translog package implements it; a nil recorder disables logging.
type DecisionRecorder interface {
	Append(ctx context.Context, entry models.TransparencyEntry) error
}

// Deps carries the services a coordinator is built from. Config and Desk are
// required. LLM and Recorder are optional; leaving them nil disables
// negotiation and decision logging respectively.
type Deps struct {
	Config   *config.CoordinationConfig
	LLM      llm.Completer
	Desk     DecisionDesk
	Recorder DecisionRecorder
}

// Coordinator runs the conflict workflow over sets of agent decisions and
// answers mid-pipeline plan checkpoints against the shared plan board.
type Coordinator struct {
	cfg        *config.CoordinationConfig
	detector   *Detector
	rules      *RuleEngine
	negotiator *Negotiator
	desk       DecisionDesk
	recorder   DecisionRecorder
	board      *PlanBoard
	runner     *pipeline.Runner[*WorkflowState]
	levels     models.PriorityLevels
	logger     *slog.Logger
	clock      func() time.Time
}

// New builds and validates the coordinator.
func New(deps Deps) (*Coordinator, error) {
	if deps.Config == nil {
		return nil, errors.New("coordination: config is required")
	}
	if deps.Desk == nil {
		return nil, errors.New("coordination: decision desk is required")
	}

	rules := NewRuleEngine(deps.Config)
	c := &Coordinator{
		cfg:        deps.Config,
		detector:   NewDetector(deps.Config),
		rules:      rules,
		negotiator: NewNegotiator(deps.LLM, rules),
		desk:       deps.Desk,
		recorder:   deps.Recorder,
		board:      NewPlanBoard(deps.Config.PlanRetention),
		levels:     deps.Config.Levels(),
		logger:     slog.Default().With("component", "coordinator"),
		clock:      time.Now,
	}

	graph, err := c.buildGraph()
	if err != nil {
		return nil, err
	}
	runner, err := graph.Compile()
	if err != nil {
		return nil, err
	}
	c.runner = runner
	return c, nil
}

// buildGraph wires the coordination workflow. Finalize is the output node:
// whatever fails mid-run, the caller still gets a terminal result.
func (c *Coordinator) buildGraph() (*pipeline.Graph[*WorkflowState], error) {
	g := pipeline.NewGraph[*WorkflowState]("coordination")

	nodes := []struct {
		name string
		fn   pipeline.NodeFunc[*WorkflowState]
	}{
		{nodeDetect, c.detectConflicts},
		{nodeComplexity, c.assessComplexity},
		{nodeRules, c.resolveWithRules},
		{nodeLLM, c.resolveWithLLM},
		{nodeGate, c.checkHumanApproval},
		{nodeEscalate, c.escalateToHuman},
		{nodeFinalize, c.finalize},
	}
	for _, n := range nodes {
		if err := g.AddNode(n.name, n.fn); err != nil {
			return nil, err
		}
	}

	static := [][2]string{
		{pipeline.START, nodeDetect},
		{nodeDetect, nodeComplexity},
		{nodeRules, nodeGate},
		{nodeLLM, nodeGate},
		{nodeEscalate, nodeFinalize},
		{nodeFinalize, pipeline.END},
	}
	for _, e := range static {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	if err := g.AddConditionalEdge(nodeComplexity, routeByComplexity, map[string]string{
		labelNoConflict: nodeFinalize,
		labelSimple:     nodeRules,
		labelComplex:    nodeLLM,
	}); err != nil {
		return nil, err
	}
	if err := g.AddConditionalEdge(nodeGate, routeByGate, map[string]string{
		labelApproved:   nodeFinalize,
		labelNeedsHuman: nodeEscalate,
	}); err != nil {
		return nil, err
	}

	g.SetOutputNode(nodeFinalize)
	return g, nil
}

func routeByComplexity(s *WorkflowState) string { return s.route }
func routeByGate(s *WorkflowState) string       { return s.route }

// Coordinate runs one full workflow over the decisions and always returns a
// result. Infrastructure failures inside the workflow surface as escalated
// results, not Go errors.
func (c *Coordinator) Coordinate(ctx context.Context, decisions []models.AgentDecision) *models.CoordinationResult {
	state := newWorkflowState(decisions, c.clock().UTC())
	c.logger.Info("Coordination started",
		"coordination_id", state.CoordinationID,
		"decisions", len(decisions),
		"agents", strings.Join(models.AgentIDs(decisions), ","))

	if _, err := c.runner.Execute(ctx, state); err != nil {
		// The graph could not terminate cleanly. Nothing downstream of the
		// workflow can be trusted, so synthesise the escalation here.
		c.logger.Error("Coordination workflow failed", "error", err)
		state.FinalDecision = "escalated"
		state.RequiresHuman = true
		state.Method = models.ResolutionMethodNone
		state.Rationale = "coordination workflow error: " + err.Error()
		state.CompletedAt = c.clock().UTC()
	}

	result := state.Result()
	c.logger.Info("Coordination finished",
		"coordination_id", result.CoordinationID,
		"decision", result.Decision,
		"method", string(result.ResolutionMethod),
		"conflicts", result.ConflictsDetected)
	return result
}

// CheckPlanConflicts answers an agent's mid-pipeline checkpoint: would this
// plan collide with what other departments currently intend? The query is
// registered on the plan board either way, so later checkpoints see it.
func (c *Coordinator) CheckPlanConflicts(ctx context.Context, query models.PlanQuery) (*models.CoordinationCheck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	intention := decisionFromQuery(query, c.clock().UTC())
	others := c.board.Snapshot(intention.ID())
	c.board.Register(intention)

	if len(others) == 0 {
		return &models.CoordinationCheck{ShouldProceed: true}, nil
	}

	pool := append(others, intention)
	var mine []models.Conflict
	for _, conflict := range c.detector.Detect(pool) {
		if conflict.Involves(intention.ID()) {
			mine = append(mine, conflict)
		}
	}
	if len(mine) == 0 {
		return &models.CoordinationCheck{ShouldProceed: true}, nil
	}

	check := &models.CoordinationCheck{
		HasConflicts:  true,
		ConflictTypes: models.ConflictTypes(mine),
	}
	for i := range mine {
		check.Recommendations = append(check.Recommendations, recommendationFor(&mine[i], intention.ID()))
		if s := suggestionFor(&mine[i]); s != "" {
			check.AlternativeSuggestions = append(check.AlternativeSuggestions, s)
		}
		if mine[i].Severity == models.SeverityCritical || !c.rules.CanResolve(&mine[i]) {
			check.RequiresHuman = true
		}
	}

	// Emergencies proceed regardless; the coordinator sequences everyone
	// else around them when the decisions are submitted.
	if query.Priority == models.PriorityEmergency {
		check.ShouldProceed = true
		check.RequiresHuman = false
	}

	c.logger.Info("Plan checkpoint answered",
		"agent", intention.ID(),
		"conflicts", len(mine),
		"proceed", check.ShouldProceed,
		"requires_human", check.RequiresHuman)
	return check, nil
}

// ReleasePlan removes an agent's registered intention from the plan board,
// for use once its work is finished or abandoned.
func (c *Coordinator) ReleasePlan(agentID string) {
	c.board.Remove(agentID)
}

// --- Workflow nodes -------------------------------------------------------

func (c *Coordinator) detectConflicts(_ context.Context, s *WorkflowState) error {
	if len(s.Decisions) < 2 {
		s.log(fmt.Sprintf("detect_conflicts: %d decision(s), nothing to coordinate", len(s.Decisions)))
		return nil
	}

	s.Conflicts = c.detector.Detect(s.Decisions)
	for i := range s.Conflicts {
		metrics.ConflictsDetected.WithLabelValues(string(s.Conflicts[i].Type)).Inc()
	}
	if len(s.Conflicts) == 0 {
		s.log("detect_conflicts: no conflicts detected")
		return nil
	}
	s.log(fmt.Sprintf("detect_conflicts: %d conflict(s) detected (%s)",
		len(s.Conflicts), strings.Join(models.ConflictTypes(s.Conflicts), ", ")))
	return nil
}

func (c *Coordinator) assessComplexity(_ context.Context, s *WorkflowState) error {
	if len(s.Conflicts) == 0 {
		s.route = labelNoConflict
		s.log("assess_complexity: nothing to resolve")
		return nil
	}

	maxScore := 0.0
	s.route = labelSimple
	for i := range s.Conflicts {
		if score := s.Conflicts[i].ComplexityScore; score > maxScore {
			maxScore = score
		}
		if !c.rules.CanResolve(&s.Conflicts[i]) {
			s.route = labelComplex
		}
	}
	s.log(fmt.Sprintf("assess_complexity: max complexity %.2f, route %s", maxScore, s.route))
	return nil
}

func (c *Coordinator) resolveWithRules(_ context.Context, s *WorkflowState) error {
	for i := range s.Conflicts {
		res := c.rules.Resolve(&s.Conflicts[i], s.Decisions)
		s.Resolutions = append(s.Resolutions, *res)
		metrics.Resolutions.WithLabelValues(string(res.Method), string(res.Decision)).Inc()
		s.log(fmt.Sprintf("rules: %s resolved as %s (confidence %.2f)",
			res.ConflictID, res.Decision, res.Confidence))
	}
	s.Method = s.primaryMethod()
	return nil
}

func (c *Coordinator) resolveWithLLM(ctx context.Context, s *WorkflowState) error {
	for i := range s.Conflicts {
		res := c.negotiator.Resolve(ctx, &s.Conflicts[i], s.Decisions)
		s.Resolutions = append(s.Resolutions, *res)
		metrics.Resolutions.WithLabelValues(string(res.Method), string(res.Decision)).Inc()
		s.log(fmt.Sprintf("llm: %s resolved as %s via %s (confidence %.2f)",
			res.ConflictID, res.Decision, res.Method, res.Confidence))
	}
	s.Method = s.primaryMethod()
	return nil
}

// checkHumanApproval gates the primary resolution. Secondary resolutions
// ride along: the human reviewing the primary sees the whole run, so one
// approval covers it.
func (c *Coordinator) checkHumanApproval(_ context.Context, s *WorkflowState) error {
	primary := s.primaryResolution()
	if primary == nil {
		s.route = labelNeedsHuman
		s.RequiresHuman = true
		s.gateReason = "no resolution was produced"
		s.log("check_human_approval: no resolution produced, escalating")
		return nil
	}

	var reason string
	switch {
	case primary.Decision == models.ResolutionEscalate:
		reason = "resolution asks for escalation"
	case primary.RequiresHuman:
		reason = "resolution requires human ratification"
	case primary.Confidence < c.cfg.ConfidenceThreshold:
		reason = fmt.Sprintf("confidence %.2f is below the %.2f threshold",
			primary.Confidence, c.cfg.ConfidenceThreshold)
	case totalCost(s.Decisions) > c.cfg.AutoApprovalCostLimit:
		reason = fmt.Sprintf("combined cost %.0f is above the %.0f auto-approval limit",
			totalCost(s.Decisions), c.cfg.AutoApprovalCostLimit)
	}

	if reason == "" {
		s.route = labelApproved
		s.log("check_human_approval: auto-approved")
		return nil
	}
	s.route = labelNeedsHuman
	s.RequiresHuman = true
	s.gateReason = reason
	s.log("check_human_approval: " + reason)
	return nil
}

func (c *Coordinator) escalateToHuman(ctx context.Context, s *WorkflowState) error {
	var conflict *models.Conflict
	if len(s.Conflicts) > 0 {
		conflict = &s.Conflicts[0]
	}

	escalation := human.BuildEscalation(human.EscalationInput{
		Conflict:   conflict,
		Decisions:  s.Decisions,
		Resolution: s.primaryResolution(),
		Reason:     s.gateReason,
		Levels:     c.levels,
	}, c.clock().UTC())
	s.Escalation = escalation
	metrics.Escalations.WithLabelValues(string(escalation.Urgency)).Inc()
	s.log(fmt.Sprintf("escalate_to_human: escalation %s raised (urgency %s)",
		escalation.EscalationID, escalation.Urgency))

	decision := c.desk.RequestDecision(ctx, escalation)
	s.HumanDecision = &decision
	metrics.HumanDecisions.WithLabelValues(string(decision.Status)).Inc()
	s.log(fmt.Sprintf("escalate_to_human: %s by %s", decision.Status, decision.Approver))
	return nil
}

func (c *Coordinator) finalize(ctx context.Context, s *WorkflowState) error {
	switch {
	case s.Escalated():
		// Containment path: a node failed or the deadline expired mid-run.
		s.FinalDecision = "escalated"
		s.RequiresHuman = true
		if s.Rationale == "" {
			s.Rationale = s.escalationReason
		}

	case len(s.Conflicts) == 0:
		s.FinalDecision = "approved"
		s.ExecutionPlan = models.ApproveAllPlan(models.AgentIDs(s.Decisions))
		s.Method = models.ResolutionMethodNone
		s.Rationale = "no conflicts detected"

	default:
		if primary := s.primaryResolution(); primary != nil {
			s.FinalDecision = finalDecisionFor(primary.Decision)
			s.ExecutionPlan = primary.ExecutionPlan
			s.Rationale = primary.Rationale
		} else {
			s.FinalDecision = "escalated"
			s.Rationale = s.gateReason
		}
		if s.HumanDecision != nil {
			applyHumanDecision(s)
		}
	}

	if s.Method == "" {
		s.Method = models.ResolutionMethodNone
	}
	s.CompletedAt = c.clock().UTC()
	s.log(fmt.Sprintf("finalize: %s via %s", s.FinalDecision, s.Method))

	c.record(ctx, s)
	metrics.ObserveCoordination(s.FinalDecision, string(s.Method), s.CompletedAt.Sub(s.StartedAt))
	return nil
}

// applyHumanDecision folds the operator's answer into the final outcome. An
// approval ratifies the machine resolution and keeps its method; any other
// verdict replaces it, so the method becomes human.
func applyHumanDecision(s *WorkflowState) {
	d := s.HumanDecision
	switch d.Status {
	case models.EscalationApproved:
		s.FinalDecision = "approved"
	case models.EscalationModified:
		s.FinalDecision = "modified"
		s.Method = models.ResolutionMethodHuman
	case models.EscalationRejected:
		s.FinalDecision = "rejected"
		s.Method = models.ResolutionMethodHuman
	case models.EscalationDeferred:
		s.FinalDecision = "deferred"
		s.Method = models.ResolutionMethodHuman
	}
	if d.Decision != nil {
		s.ExecutionPlan = d.Decision
	}

	approver := d.Approver
	if approver == "" {
		approver = "unknown"
	}
	note := fmt.Sprintf("%s by %s", d.Status, approver)
	if d.Notes != "" {
		note += ": " + d.Notes
	}
	if s.Rationale == "" {
		s.Rationale = note
	} else {
		s.Rationale += "; " + note
	}
}

// record appends the run's transparency entry. Best-effort: a failing audit
// store never blocks the outcome.
func (c *Coordinator) record(ctx context.Context, s *WorkflowState) {
	if c.recorder == nil {
		return
	}

	entry := models.TransparencyEntry{
		LogID:     uuid.NewString(),
		Timestamp: c.clock(),
		AgentType: "coordinator",
		NodeName:  nodeFinalize,
		Decision:  s.FinalDecision,
		Context: map[string]any{
			"coordination_id":   s.CoordinationID,
			"agents":            models.AgentIDs(s.Decisions),
			"conflicts":         len(s.Conflicts),
			"conflict_types":    models.ConflictTypes(s.Conflicts),
			"resolution_method": string(s.Method),
			"requires_human":    s.RequiresHuman,
		},
		Rationale:  s.Rationale,
		Confidence: s.confidence(),
		CostImpact: totalCost(s.Decisions),
	}
	if s.Escalation != nil {
		entry.Context["escalation_id"] = s.Escalation.EscalationID
		entry.Context["approver"] = s.Escalation.Approver
	}

	if err := c.recorder.Append(ctx, entry); err != nil {
		c.logger.Warn("Failed to record coordination outcome", "error", err)
	}
}

// finalDecisionFor maps a resolution verdict onto the run-level decision
// label.
func finalDecisionFor(d models.ResolutionDecision) string {
	switch d {
	case models.ResolutionApproveAll, models.ResolutionApprovePartial:
		return "approved"
	case models.ResolutionDefer:
		return "deferred"
	case models.ResolutionReject:
		return "rejected"
	case models.ResolutionEscalate:
		return "escalated"
	default:
		return string(d)
	}
}

// --- Workflow state -------------------------------------------------------

// WorkflowState is the mutable record one coordination run threads through
// the graph.
type WorkflowState struct {
	CoordinationID string
	Decisions      []models.AgentDecision
	Conflicts      []models.Conflict
	Resolutions    []models.Resolution
	Method         models.ResolutionMethod
	Escalation     *models.HumanEscalation
	HumanDecision  *models.HumanDecision
	FinalDecision  string
	Rationale      string
	ExecutionPlan  *models.ExecutionPlan
	RequiresHuman  bool
	WorkflowLog    []string
	StartedAt      time.Time
	CompletedAt    time.Time

	route            string
	gateReason       string
	escalated        bool
	escalationReason string
}

func newWorkflowState(decisions []models.AgentDecision, started time.Time) *WorkflowState {
	return &WorkflowState{
		CoordinationID: uuid.NewString(),
		Decisions:      decisions,
		StartedAt:      started,
	}
}

// MarkEscalated implements pipeline.State.
func (s *WorkflowState) MarkEscalated(reason string) {
	s.escalated = true
	if s.escalationReason == "" {
		s.escalationReason = reason
	}
	s.log("escalated: " + reason)
}

// Escalated implements pipeline.State.
func (s *WorkflowState) Escalated() bool { return s.escalated }

// AttemptsExhausted implements pipeline.State. The workflow has no retry
// loops, so a revisited node is always a wiring error and must exit through
// finalize.
func (s *WorkflowState) AttemptsExhausted() bool { return true }

func (s *WorkflowState) log(line string) {
	s.WorkflowLog = append(s.WorkflowLog, line)
}

// primaryResolution returns the resolution of the first detected conflict.
// The gate and the final outcome key off it; detection order makes "first"
// deterministic.
func (s *WorkflowState) primaryResolution() *models.Resolution {
	if len(s.Resolutions) == 0 {
		return nil
	}
	return &s.Resolutions[0]
}

func (s *WorkflowState) primaryMethod() models.ResolutionMethod {
	if primary := s.primaryResolution(); primary != nil {
		return primary.Method
	}
	return models.ResolutionMethodNone
}

func (s *WorkflowState) confidence() float64 {
	if primary := s.primaryResolution(); primary != nil {
		return primary.Confidence
	}
	if len(s.Conflicts) == 0 && !s.escalated {
		return 1.0
	}
	return 0
}

// Result assembles the caller-facing outcome.
func (s *WorkflowState) Result() *models.CoordinationResult {
	return &models.CoordinationResult{
		CoordinationID:    s.CoordinationID,
		Decision:          s.FinalDecision,
		Rationale:         s.Rationale,
		ExecutionPlan:     s.ExecutionPlan,
		ConflictsDetected: len(s.Conflicts),
		ResolutionMethod:  s.Method,
		RequiresHuman:     s.RequiresHuman,
		ProcessingTime:    s.CompletedAt.Sub(s.StartedAt).Seconds(),
		WorkflowLog:       append([]string(nil), s.WorkflowLog...),
	}
}

// --- Checkpoint helpers ----------------------------------------------------

// decisionFromQuery lifts a checkpoint query into the decision shape the
// detector works on.
func decisionFromQuery(q models.PlanQuery, now time.Time) models.AgentDecision {
	dec := models.AgentDecision{
		AgentID:         q.AgentID,
		AgentType:       q.AgentType,
		Decision:        models.DecisionRecommend,
		ResourcesNeeded: q.ResourcesNeeded,
		Location:        q.Location,
		EstimatedCost:   q.EstimatedCost,
		Priority:        q.Priority,
		Timestamp:       now,
	}
	if q.Plan != nil {
		if len(dec.ResourcesNeeded) == 0 {
			dec.ResourcesNeeded = q.Plan.ResourcesNeeded
		}
		if dec.EstimatedCost == 0 {
			dec.EstimatedCost = q.Plan.EstimatedCost
		}
		dec.Timeline = q.Plan.EstimatedDuration
	}
	return dec
}

func recommendationFor(conflict *models.Conflict, agentID string) string {
	others := make([]string, 0, len(conflict.AgentsInvolved))
	for _, id := range conflict.AgentsInvolved {
		if id != agentID {
			others = append(others, id)
		}
	}
	switch conflict.Type {
	case models.ConflictResource:
		return fmt.Sprintf("resources also requested by %s; stagger usage or negotiate over the message bus",
			strings.Join(others, ", "))
	case models.ConflictLocation:
		return fmt.Sprintf("%s already plans work at this location; align schedules before starting",
			strings.Join(others, ", "))
	case models.ConflictTiming:
		return "declared timelines overlap; agree an execution order before starting"
	case models.ConflictPolicy:
		return "seasonal policy restricts this work; defer until the season ends"
	case models.ConflictBudget:
		return "combined spending crosses the budget threshold; seek finance approval first"
	default:
		return conflict.Description
	}
}

func suggestionFor(conflict *models.Conflict) string {
	switch conflict.Type {
	case models.ConflictResource:
		return "pick an alternative plan that needs different resources"
	case models.ConflictLocation:
		return "shift the work window or split the site"
	case models.ConflictTiming:
		return "resubmit with an adjusted start date"
	case models.ConflictPolicy:
		return "resubmit after the restricted season"
	case models.ConflictBudget:
		return "reduce the plan's estimated cost or split it across budget periods"
	default:
		return ""
	}
}

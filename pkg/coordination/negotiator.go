package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/metrics"
	"github.com/polis-ai/polis/pkg/models"
)

// negotiatorSystemPrompt holds the LLM to a strict JSON contract so replies
// parse into a Resolution without prose cleanup.
const negotiatorSystemPrompt = `You are the coordination negotiator for a municipal multi-agent operations system.
Departments have submitted plans that conflict. Decide how the city should proceed.

Respond with a single JSON object and nothing else:
{
  "decision": "approve_all" | "approve_partial" | "defer" | "reject" | "escalate",
  "rationale": "<one or two sentences explaining the tradeoff>",
  "confidence": <number between 0 and 1>,
  "requires_human": <true if a human should ratify this>,
  "execution_plan": {
    "approved": ["<agent ids that proceed now>"],
    "queued": ["<agent ids that wait their turn>"],
    "deferred": ["<agent ids postponed to a later window>"],
    "rejected": ["<agent ids denied>"],
    "action": "<short label for the plan>"
  }
}

Use the agent ids exactly as given. Prefer plans that let urgent work proceed
and sequence the rest; reserve "escalate" for genuine no-win situations.`

// Negotiator settles the conflicts the rule engine cannot, by asking the LLM
// for a structured verdict. Unusable replies and transport failures fall back
// to the rule engine, so negotiation degrades rather than fails.
type Negotiator struct {
	llm    llm.Completer
	rules  *RuleEngine
	logger *slog.Logger
	clock  func() time.Time
}

// NewNegotiator builds the negotiator. A nil completer disables negotiation;
// every conflict then takes the rule fallback.
func NewNegotiator(completer llm.Completer, rules *RuleEngine) *Negotiator {
	return &Negotiator{
		llm:    completer,
		rules:  rules,
		logger: slog.Default().With("component", "negotiator"),
		clock:  time.Now,
	}
}

// negotiationReply is the JSON contract the prompt demands.
type negotiationReply struct {
	Decision      string                `json:"decision"`
	Rationale     string                `json:"rationale"`
	Confidence    float64               `json:"confidence"`
	RequiresHuman bool                  `json:"requires_human"`
	ExecutionPlan *models.ExecutionPlan `json:"execution_plan"`
}

func (r *negotiationReply) validate() error {
	if !models.ResolutionDecision(r.Decision).IsValid() {
		return fmt.Errorf("unknown decision %q", r.Decision)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	return nil
}

// Resolve negotiates one conflict. The returned resolution's method records
// what actually decided it: llm on success, rule after a fallback.
func (n *Negotiator) Resolve(ctx context.Context, conflict *models.Conflict, decisions []models.AgentDecision) *models.Resolution {
	if n.llm == nil {
		return n.fallback(conflict, decisions, "negotiation disabled, no LLM configured")
	}

	involved := involvedDecisions(conflict, decisions)
	var reply negotiationReply
	err := llm.CompleteJSON(ctx, n.llm, llm.Request{
		System: negotiatorSystemPrompt,
		User:   negotiationPrompt(conflict, involved),
	}, &reply)
	if err != nil {
		return n.fallback(conflict, decisions, fmt.Sprintf("negotiation failed: %v", err))
	}
	if err := reply.validate(); err != nil {
		return n.fallback(conflict, decisions, fmt.Sprintf("malformed negotiation reply: %v", err))
	}

	decision := models.ResolutionDecision(reply.Decision)
	plan := reply.ExecutionPlan
	if plan == nil {
		plan = defaultPlan(decision, models.AgentIDs(involved))
		if plan == nil {
			return n.fallback(conflict, decisions,
				fmt.Sprintf("negotiation reply %q carries no execution plan", reply.Decision))
		}
	}

	n.logger.Info("Conflict negotiated",
		"conflict_id", conflict.ConflictID,
		"decision", reply.Decision,
		"confidence", reply.Confidence)

	return &models.Resolution{
		ResolutionID:  uuid.NewString(),
		ConflictID:    conflict.ConflictID,
		Method:        models.ResolutionMethodLLM,
		Decision:      decision,
		Rationale:     reply.Rationale,
		Confidence:    reply.Confidence,
		RequiresHuman: reply.RequiresHuman || decision == models.ResolutionEscalate,
		ExecutionPlan: plan,
		ResolvedAt:    n.clock().UTC(),
	}
}

// fallback hands the conflict to the rule engine and keeps the resolution's
// method honest about it.
func (n *Negotiator) fallback(conflict *models.Conflict, decisions []models.AgentDecision, reason string) *models.Resolution {
	n.logger.Warn("Falling back to rule resolution",
		"conflict_id", conflict.ConflictID, "reason", reason)
	metrics.LLMFallbacks.WithLabelValues("negotiator").Inc()
	return n.rules.Resolve(conflict, decisions)
}

// negotiationPrompt serialises the conflict and the involved decisions for
// the model.
func negotiationPrompt(conflict *models.Conflict, involved []models.AgentDecision) string {
	payload := struct {
		Conflict  *models.Conflict       `json:"conflict"`
		Decisions []models.AgentDecision `json:"decisions"`
	}{conflict, involved}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "Resolve this conflict: " + conflict.Description
	}
	return "Resolve this conflict between department plans:\n" + string(raw)
}

// defaultPlan synthesises an execution plan when the reply omitted one. A
// partial approval cannot be guessed; that case returns nil and the caller
// falls back.
func defaultPlan(decision models.ResolutionDecision, ids []string) *models.ExecutionPlan {
	switch decision {
	case models.ResolutionApproveAll:
		return models.ApproveAllPlan(ids)
	case models.ResolutionDefer:
		return &models.ExecutionPlan{Deferred: ids, Action: "defer_all"}
	case models.ResolutionReject:
		return &models.ExecutionPlan{Rejected: ids, Action: "reject_all"}
	case models.ResolutionEscalate:
		return &models.ExecutionPlan{Action: "escalate"}
	default:
		return nil
	}
}

// Package models defines the shared domain types exchanged between agents,
// the coordinator, the transparency log, and the HTTP API.
package models

// Decision is the outcome label carried by an agent response.
type Decision string

const (
	// DecisionRecommend proposes a plan for execution by the requesting department
	DecisionRecommend Decision = "recommend"
	// DecisionApprove approves the request as submitted
	DecisionApprove Decision = "approve"
	// DecisionDeny rejects the request on feasibility or policy grounds
	DecisionDeny Decision = "deny"
	// DecisionInform answers an informational query without planning
	DecisionInform Decision = "inform"
	// DecisionEscalate defers the request to human review
	DecisionEscalate Decision = "escalate"
	// DecisionDefer postpones the request to a later window
	DecisionDefer Decision = "defer"
	// DecisionError reports an invalid request that never entered the pipeline
	DecisionError Decision = "error"
)

// IsValid checks if the decision is valid
func (d Decision) IsValid() bool {
	switch d {
	case DecisionRecommend,
		DecisionApprove,
		DecisionDeny,
		DecisionInform,
		DecisionEscalate,
		DecisionDefer,
		DecisionError:
		return true
	default:
		return false
	}
}

// RiskLevel classifies the operational risk of a request or plan.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid checks if the risk level is valid
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// RequiresEscalation reports whether the risk level forces human review.
func (r RiskLevel) RequiresEscalation() bool {
	return r == RiskHigh || r == RiskCritical
}

// rank orders risk levels for comparisons.
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// MaxRiskLevel returns the riskier of a and b. Risk only ever rises during
// classification; rules never lower a level already assigned.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Severity grades conflicts and escalation urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// rank orders severities for comparisons.
func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Priority orders competing requests across departments.
// The ordering is routine < maintenance < expansion < safety_critical <
// public_health < emergency; numeric levels come from PriorityLevels.
type Priority string

const (
	PriorityRoutine        Priority = "routine"
	PriorityMaintenance    Priority = "maintenance"
	PriorityExpansion      Priority = "expansion"
	PrioritySafetyCritical Priority = "safety_critical"
	PriorityPublicHealth   Priority = "public_health"
	PriorityEmergency      Priority = "emergency"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityRoutine,
		PriorityMaintenance,
		PriorityExpansion,
		PrioritySafetyCritical,
		PriorityPublicHealth,
		PriorityEmergency:
		return true
	default:
		return false
	}
}

// PriorityLevels maps priority names onto numeric levels used for conflict
// severity and tie-breaking. The mapping is deployment configuration; use
// DefaultPriorityLevels when none is configured.
type PriorityLevels map[Priority]int

// DefaultPriorityLevels returns the built-in priority ordering.
func DefaultPriorityLevels() PriorityLevels {
	return PriorityLevels{
		PriorityRoutine:        1,
		PriorityMaintenance:    3,
		PriorityExpansion:      5,
		PrioritySafetyCritical: 7,
		PriorityPublicHealth:   8,
		PriorityEmergency:      10,
	}
}

// Of returns the numeric level for p. Unknown priorities rank lowest.
func (l PriorityLevels) Of(p Priority) int {
	if level, ok := l[p]; ok {
		return level
	}
	return 1
}

// ConflictType names the dimension along which two decisions collide.
type ConflictType string

const (
	ConflictResource ConflictType = "resource"
	ConflictLocation ConflictType = "location"
	ConflictTiming   ConflictType = "timing"
	ConflictPolicy   ConflictType = "policy"
	ConflictBudget   ConflictType = "budget"
)

// IsValid checks if the conflict type is valid
func (c ConflictType) IsValid() bool {
	switch c {
	case ConflictResource, ConflictLocation, ConflictTiming, ConflictPolicy, ConflictBudget:
		return true
	default:
		return false
	}
}

// ResolutionMethod records which subsystem produced a resolution.
type ResolutionMethod string

const (
	// ResolutionMethodNone means no conflicts were detected
	ResolutionMethodNone ResolutionMethod = "none"
	// ResolutionMethodRule means the deterministic rule engine resolved the conflict
	ResolutionMethodRule ResolutionMethod = "rule"
	// ResolutionMethodLLM means the LLM negotiator resolved the conflict
	ResolutionMethodLLM ResolutionMethod = "llm"
	// ResolutionMethodHuman means a human decided the outcome
	ResolutionMethodHuman ResolutionMethod = "human"
)

// IsValid checks if the resolution method is valid
func (m ResolutionMethod) IsValid() bool {
	switch m {
	case ResolutionMethodNone, ResolutionMethodRule, ResolutionMethodLLM, ResolutionMethodHuman:
		return true
	default:
		return false
	}
}

// ResolutionDecision is the verdict a resolution applies to the conflicting
// decisions as a group.
type ResolutionDecision string

const (
	ResolutionApproveAll     ResolutionDecision = "approve_all"
	ResolutionApprovePartial ResolutionDecision = "approve_partial"
	ResolutionDefer          ResolutionDecision = "defer"
	ResolutionReject         ResolutionDecision = "reject"
	ResolutionEscalate       ResolutionDecision = "escalate"
)

// IsValid checks if the resolution decision is valid
func (d ResolutionDecision) IsValid() bool {
	switch d {
	case ResolutionApproveAll, ResolutionApprovePartial, ResolutionDefer, ResolutionReject, ResolutionEscalate:
		return true
	default:
		return false
	}
}

// EscalationStatus tracks a human escalation through its lifecycle.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationApproved EscalationStatus = "approved"
	EscalationRejected EscalationStatus = "rejected"
	EscalationDeferred EscalationStatus = "deferred"
	EscalationModified EscalationStatus = "modified"
)

// IsValid checks if the escalation status is valid
func (s EscalationStatus) IsValid() bool {
	switch s {
	case EscalationPending, EscalationApproved, EscalationRejected, EscalationDeferred, EscalationModified:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends the escalation.
func (s EscalationStatus) IsTerminal() bool {
	return s.IsValid() && s != EscalationPending
}

// MessageType classifies ad-hoc inter-agent messages.
type MessageType string

const (
	MessageRequestAssistance  MessageType = "request_assistance"
	MessageOfferSupport       MessageType = "offer_support"
	MessageStatusUpdate       MessageType = "status_update"
	MessageResourceAllocation MessageType = "resource_allocation"
	MessageCoordinationNeeded MessageType = "coordination_needed"
	MessageAcknowledgement    MessageType = "acknowledgement"
)

// IsValid checks if the message type is valid
func (t MessageType) IsValid() bool {
	switch t {
	case MessageRequestAssistance,
		MessageOfferSupport,
		MessageStatusUpdate,
		MessageResourceAllocation,
		MessageCoordinationNeeded,
		MessageAcknowledgement:
		return true
	default:
		return false
	}
}

// MessageStatus tracks delivery acknowledgement on the bus.
type MessageStatus string

const (
	MessagePending      MessageStatus = "pending"
	MessageAcknowledged MessageStatus = "acknowledged"
)

// IsValid checks if the message status is valid
func (s MessageStatus) IsValid() bool {
	return s == MessagePending || s == MessageAcknowledged
}

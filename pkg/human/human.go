// Package human acquires operator decisions for escalated coordination
// outcomes: it notifies the configured channels that a decision is needed and
// blocks until an approval source answers or the response timeout passes.
package human

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/models"
)

var (
	// ErrEscalationNotFound is returned when resolving an unknown escalation.
	ErrEscalationNotFound = errors.New("escalation not found")

	// ErrInvalidDecision is returned when a decision cannot resolve an
	// escalation (for example a pending status).
	ErrInvalidDecision = errors.New("invalid decision")
)

// Notifier delivers an escalation to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, escalation *models.HumanEscalation) error
}

// ApprovalSource acquires one decision for an escalation, blocking until a
// decision arrives or ctx expires.
type ApprovalSource interface {
	Acquire(ctx context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error)
}

// Desk connects a notification sink to an approval source under the
// configured response timeout. It always produces a decision: interruptions,
// timeouts and source failures come back as deferrals, never as errors.
type Desk struct {
	source   ApprovalSource
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
	clock    func() time.Time
}

// NewDesk builds the desk. A nil notifier falls back to the log sink; a zero
// timeout means the caller's context alone bounds the wait.
func NewDesk(source ApprovalSource, notifier Notifier, timeout time.Duration) *Desk {
	if notifier == nil {
		notifier = NewLogSink()
	}
	return &Desk{
		source:   source,
		notifier: notifier,
		timeout:  timeout,
		logger:   slog.Default().With("component", "human"),
		clock:    time.Now,
	}
}

// RequestDecision notifies operators about the escalation and blocks for
// their decision. The escalation is updated in place with the outcome.
func (d *Desk) RequestDecision(ctx context.Context, escalation *models.HumanEscalation) models.HumanDecision {
	if escalation.EscalationID == "" {
		escalation.EscalationID = uuid.NewString()
	}
	if escalation.CreatedAt.IsZero() {
		escalation.CreatedAt = d.clock().UTC()
	}
	if escalation.Status == "" {
		escalation.Status = models.EscalationPending
	}

	// Notification failures never block the acquisition.
	if err := d.notifier.Notify(ctx, escalation); err != nil {
		d.logger.Warn("Escalation notification failed",
			"escalation_id", escalation.EscalationID, "error", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	decision, err := d.source.Acquire(ctx, escalation)
	if err != nil {
		d.logger.Warn("Approval acquisition interrupted, deferring",
			"escalation_id", escalation.EscalationID, "error", err)
		decision = models.HumanDecision{
			Status: models.EscalationDeferred,
			Notes:  fmt.Sprintf("approval interrupted: %v", err),
		}
	}
	if !decision.Status.IsTerminal() {
		decision.Status = models.EscalationDeferred
	}
	if decision.ApprovedAt.IsZero() {
		decision.ApprovedAt = d.clock().UTC()
	}

	resolvedAt := decision.ApprovedAt
	escalation.Status = decision.Status
	escalation.Approver = decision.Approver
	escalation.ApprovalNotes = decision.Notes
	escalation.ResolvedAt = &resolvedAt

	d.logger.Info("Escalation resolved",
		"escalation_id", escalation.EscalationID,
		"status", string(decision.Status),
		"approver", decision.Approver)
	return decision
}

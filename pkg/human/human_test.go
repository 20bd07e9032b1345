package human

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/models"
)

type sourceFunc func(ctx context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error)

func (f sourceFunc) Acquire(ctx context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error) {
	return f(ctx, escalation)
}

type notifierFunc func(ctx context.Context, escalation *models.HumanEscalation) error

func (f notifierFunc) Notify(ctx context.Context, escalation *models.HumanEscalation) error {
	return f(ctx, escalation)
}

func approvingSource(approver string) sourceFunc {
	return func(_ context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error) {
		var plan *models.ExecutionPlan
		if len(escalation.Options) > 0 {
			plan = escalation.Options[0].Plan
		}
		return models.HumanDecision{
			Status:   models.EscalationApproved,
			Approver: approver,
			Decision: plan,
		}, nil
	}
}

func TestDeskRequestDecisionFillsEscalation(t *testing.T) {
	var notified *models.HumanEscalation
	notifier := notifierFunc(func(_ context.Context, escalation *models.HumanEscalation) error {
		notified = escalation
		return nil
	})
	desk := NewDesk(approvingSource("duty.manager"), notifier, 0)
	desk.clock = func() time.Time { return escalationNow }

	escalation := &models.HumanEscalation{Reason: "budget dispute"}
	decision := desk.RequestDecision(context.Background(), escalation)

	assert.Equal(t, models.EscalationApproved, decision.Status)
	assert.Equal(t, "duty.manager", decision.Approver)
	assert.Equal(t, escalationNow, decision.ApprovedAt)

	require.NotNil(t, notified)
	assert.NotEmpty(t, escalation.EscalationID)
	assert.Equal(t, escalationNow, escalation.CreatedAt)
	assert.Equal(t, models.EscalationApproved, escalation.Status)
	assert.Equal(t, "duty.manager", escalation.Approver)
	require.NotNil(t, escalation.ResolvedAt)
	assert.Equal(t, escalationNow, *escalation.ResolvedAt)
}

func TestDeskKeepsCallerFields(t *testing.T) {
	desk := NewDesk(approvingSource("x"), nil, 0)

	created := escalationNow.Add(-time.Hour)
	escalation := &models.HumanEscalation{
		EscalationID: "esc-keep",
		CreatedAt:    created,
		Status:       models.EscalationPending,
	}
	desk.RequestDecision(context.Background(), escalation)

	assert.Equal(t, "esc-keep", escalation.EscalationID)
	assert.Equal(t, created, escalation.CreatedAt)
}

func TestDeskNotifierFailureDoesNotBlockDecision(t *testing.T) {
	notifier := notifierFunc(func(context.Context, *models.HumanEscalation) error {
		return errors.New("slack is down")
	})
	desk := NewDesk(approvingSource("duty.manager"), notifier, 0)

	decision := desk.RequestDecision(context.Background(), sampleEscalation())

	assert.Equal(t, models.EscalationApproved, decision.Status)
}

func TestDeskSourceErrorDefers(t *testing.T) {
	source := sourceFunc(func(context.Context, *models.HumanEscalation) (models.HumanDecision, error) {
		return models.HumanDecision{}, errors.New("terminal unavailable")
	})
	desk := NewDesk(source, nil, 0)

	escalation := sampleEscalation()
	decision := desk.RequestDecision(context.Background(), escalation)

	assert.Equal(t, models.EscalationDeferred, decision.Status)
	assert.Contains(t, decision.Notes, "terminal unavailable")
	assert.Equal(t, models.EscalationDeferred, escalation.Status)
	assert.False(t, decision.ApprovedAt.IsZero())
}

func TestDeskTimeoutDefers(t *testing.T) {
	source := sourceFunc(func(ctx context.Context, _ *models.HumanEscalation) (models.HumanDecision, error) {
		<-ctx.Done()
		return models.HumanDecision{}, ctx.Err()
	})
	desk := NewDesk(source, nil, 20*time.Millisecond)

	start := time.Now()
	decision := desk.RequestDecision(context.Background(), sampleEscalation())

	assert.Equal(t, models.EscalationDeferred, decision.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDeskNonTerminalStatusBecomesDeferred(t *testing.T) {
	source := sourceFunc(func(context.Context, *models.HumanEscalation) (models.HumanDecision, error) {
		return models.HumanDecision{Status: models.EscalationPending}, nil
	})
	desk := NewDesk(source, nil, 0)

	decision := desk.RequestDecision(context.Background(), sampleEscalation())

	assert.Equal(t, models.EscalationDeferred, decision.Status)
}

func TestDeskPreservesSourceApprovedAt(t *testing.T) {
	approvedAt := escalationNow.Add(42 * time.Second)
	source := sourceFunc(func(context.Context, *models.HumanEscalation) (models.HumanDecision, error) {
		return models.HumanDecision{
			Status:     models.EscalationRejected,
			Approver:   "ops.lead",
			ApprovedAt: approvedAt,
		}, nil
	})
	desk := NewDesk(source, nil, 0)

	escalation := sampleEscalation()
	decision := desk.RequestDecision(context.Background(), escalation)

	assert.Equal(t, approvedAt, decision.ApprovedAt)
	require.NotNil(t, escalation.ResolvedAt)
	assert.Equal(t, approvedAt, *escalation.ResolvedAt)
}

package human

import (
	"context"
	"errors"
	"log/slog"

	"github.com/polis-ai/polis/pkg/models"
)

// LogSink is the default notifier: one structured log line per escalation.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds the log sink.
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default().With("component", "human")}
}

// Notify writes the escalation to the log.
func (s *LogSink) Notify(_ context.Context, escalation *models.HumanEscalation) error {
	s.logger.Warn("HUMAN APPROVAL REQUIRED",
		"escalation_id", escalation.EscalationID,
		"conflict_id", escalation.ConflictID,
		"urgency", string(escalation.Urgency),
		"reason", escalation.Reason,
		"options", len(escalation.Options))
	return nil
}

// MultiSink fans an escalation out to several notifiers. One failing sink
// does not stop the others; their errors are joined.
type MultiSink struct {
	sinks []Notifier
}

// NewMultiSink builds a fan-out over the given notifiers.
func NewMultiSink(sinks ...Notifier) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Notify delivers to every sink and reports the combined failures.
func (s *MultiSink) Notify(ctx context.Context, escalation *models.HumanEscalation) error {
	var errs []error
	for _, sink := range s.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, escalation); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

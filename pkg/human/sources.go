package human

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/polis-ai/polis/pkg/models"
)

// AutoSource approves every escalation immediately with the first offered
// option. It backs auto-approval deployments and unattended runs.
type AutoSource struct {
	// Approver is the identity recorded on decisions.
	Approver string
}

// Acquire returns an approval for the first option without waiting.
func (s *AutoSource) Acquire(_ context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error) {
	approver := s.Approver
	if approver == "" {
		approver = "system_auto_approve"
	}
	var plan *models.ExecutionPlan
	if len(escalation.Options) > 0 {
		plan = escalation.Options[0].Plan
	}
	return models.HumanDecision{
		Status:   models.EscalationApproved,
		Approver: approver,
		Decision: plan,
		Notes:    "auto-approved by configuration",
	}, nil
}

// InteractiveSource prompts for a decision on the terminal. Prompts are
// serialized: at most one escalation is presented at a time per process.
type InteractiveSource struct {
	mu    sync.Mutex
	out   io.Writer
	in    io.Reader
	start sync.Once
	lines chan string
}

// NewInteractiveSource prompts on stdin/stdout.
func NewInteractiveSource() *InteractiveSource {
	return NewInteractiveSourceWithIO(os.Stdin, os.Stdout)
}

// NewInteractiveSourceWithIO prompts on the given streams.
func NewInteractiveSourceWithIO(in io.Reader, out io.Writer) *InteractiveSource {
	return &InteractiveSource{in: in, out: out}
}

// Acquire presents the escalation and reads one decision line of the form
// "<option number> <approver id>". Unrecognized input defers the escalation
// rather than failing it.
func (s *InteractiveSource) Acquire(ctx context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "\n=== HUMAN APPROVAL REQUIRED [%s] ===\n", escalation.Urgency)
	fmt.Fprintf(s.out, "Escalation: %s\n", escalation.EscalationID)
	fmt.Fprintf(s.out, "Reason:     %s\n", escalation.Reason)
	if escalation.LLMAnalysis != "" {
		fmt.Fprintf(s.out, "Analysis:   %s\n", escalation.LLMAnalysis)
	}
	for i, opt := range escalation.Options {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, opt.Label)
	}
	fmt.Fprintf(s.out, "Choose option [1-%d], then your id (e.g. \"1 ops.lead\"): ", len(escalation.Options))

	line, err := s.readLine(ctx)
	if err != nil {
		return models.HumanDecision{}, err
	}

	choice, approver := parseChoice(line)
	if choice < 1 || choice > len(escalation.Options) {
		return models.HumanDecision{
			Status:   models.EscalationDeferred,
			Approver: approver,
			Notes:    fmt.Sprintf("unrecognized choice %q, deferred", line),
		}, nil
	}
	option := escalation.Options[choice-1]
	return models.HumanDecision{
		Status:   statusForOption(option.ID),
		Approver: approver,
		Decision: option.Plan,
		Notes:    fmt.Sprintf("operator chose %s", option.ID),
	}, nil
}

// readLine hands the blocking terminal read to a pump goroutine so a silent
// console cannot outlive ctx. A line typed after a timeout answers the next
// prompt instead of being lost.
func (s *InteractiveSource) readLine(ctx context.Context) (string, error) {
	s.start.Do(func() {
		s.lines = make(chan string)
		go func() {
			scanner := bufio.NewScanner(s.in)
			for scanner.Scan() {
				s.lines <- strings.TrimSpace(scanner.Text())
			}
			close(s.lines)
		}()
	})

	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// parseChoice splits "2 ops.lead" into the option number and approver id.
func parseChoice(line string) (int, string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, "operator"
	}
	choice, err := strconv.Atoi(fields[0])
	if err != nil {
		choice = 0
	}
	approver := "operator"
	if len(fields) > 1 {
		approver = strings.Join(fields[1:], " ")
	}
	return choice, approver
}

// statusForOption maps an option id onto the escalation status it produces.
func statusForOption(id string) models.EscalationStatus {
	switch id {
	case "approve_all":
		return models.EscalationApproved
	case "approve_partial":
		return models.EscalationModified
	case "defer":
		return models.EscalationDeferred
	case "reject":
		return models.EscalationRejected
	default:
		return models.EscalationModified
	}
}

// PendingSource parks escalations for out-of-band resolution, typically the
// escalation REST endpoints. Acquire blocks until Resolve is called with a
// terminal decision or the context expires.
type PendingSource struct {
	mu      sync.Mutex
	pending map[string]*parkedEscalation
}

type parkedEscalation struct {
	escalation *models.HumanEscalation
	decision   chan models.HumanDecision
}

// NewPendingSource builds an empty pending queue.
func NewPendingSource() *PendingSource {
	return &PendingSource{pending: map[string]*parkedEscalation{}}
}

// Acquire parks the escalation and blocks for its resolution.
func (s *PendingSource) Acquire(ctx context.Context, escalation *models.HumanEscalation) (models.HumanDecision, error) {
	parked := &parkedEscalation{
		escalation: escalation,
		decision:   make(chan models.HumanDecision, 1),
	}
	s.mu.Lock()
	s.pending[escalation.EscalationID] = parked
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, escalation.EscalationID)
		s.mu.Unlock()
	}()

	select {
	case decision := <-parked.decision:
		return decision, nil
	case <-ctx.Done():
		return models.HumanDecision{}, ctx.Err()
	}
}

// Pending lists escalations still waiting for a decision, oldest first.
func (s *PendingSource) Pending() []models.HumanEscalation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.HumanEscalation, 0, len(s.pending))
	for _, parked := range s.pending {
		out = append(out, *parked.escalation)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EscalationID < out[j].EscalationID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Resolve answers a parked escalation with a terminal decision.
func (s *PendingSource) Resolve(escalationID string, decision models.HumanDecision) error {
	if !decision.Status.IsTerminal() {
		return fmt.Errorf("%w: status %q does not resolve an escalation", ErrInvalidDecision, decision.Status)
	}

	s.mu.Lock()
	parked, ok := s.pending[escalationID]
	if ok {
		delete(s.pending, escalationID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrEscalationNotFound, escalationID)
	}
	parked.decision <- decision
	return nil
}

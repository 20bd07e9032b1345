package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/polis-ai/polis/pkg/models"
)

// Confidence weights; the four factors always sum to 1.0.
const (
	weightDataCompleteness = 0.30
	weightRiskFactor       = 0.30
	weightRetryPenalty     = 0.20
	weightHistorical       = 0.20

	// defaultHistoricalSimilarity stands in while no similarity lookup is
	// wired into the pipeline.
	defaultHistoricalSimilarity = 0.7
)

// riskFactors maps the risk level onto its confidence contribution.
var riskFactors = map[models.RiskLevel]float64{
	models.RiskLow:      1.0,
	models.RiskMedium:   0.8,
	models.RiskHigh:     0.6,
	models.RiskCritical: 0.3,
}

// estimateConfidence computes the weighted confidence scalar:
//
//	0.30*data_completeness + 0.30*risk_factor + 0.20*retry_penalty + 0.20*historical_similarity
//
// clamped to [0,1] and rounded to two decimals. The factor breakdown is kept
// on the state for the response details and the transparency log.
func (a *Agent) estimateConfidence(ctx context.Context, s *State) error {
	completeness := 1.0
	if succeeded, total := s.successfulTools(); total > 0 {
		completeness = float64(succeeded) / float64(total)
	}

	risk, ok := riskFactors[s.RiskLevel]
	if !ok {
		risk = riskFactors[models.RiskMedium]
	}

	retryPenalty := math.Max(0.4, 1-0.15*float64(s.Attempts))
	historical := defaultHistoricalSimilarity

	confidence := weightDataCompleteness*completeness +
		weightRiskFactor*risk +
		weightRetryPenalty*retryPenalty +
		weightHistorical*historical
	confidence = math.Round(math.Min(1, math.Max(0, confidence))*100) / 100

	s.ConfidenceFactors = map[string]float64{
		"data_completeness":     completeness,
		"risk_factor":           risk,
		"retry_penalty":         retryPenalty,
		"historical_similarity": historical,
	}
	s.Confidence = confidence

	a.logger.Debug("Confidence estimated",
		"confidence", confidence,
		"data_completeness", completeness,
		"risk_factor", risk,
		"retry_penalty", retryPenalty)
	return nil
}

// routeDecision applies the escalation disjunction. Earlier nodes already
// escalate on their own triggers; the router is the authoritative last word
// before the response is assembled. Confidence exactly at the threshold does
// not escalate.
func (a *Agent) routeDecision(ctx context.Context, s *State) error {
	threshold := a.cfg.ConfidenceThresholdFor(a.profile)

	switch {
	case s.Escalate:
		// Already marked; keep the original reason.
	case !s.PolicyOK:
		s.MarkEscalated("policy violations require human review")
	case s.RiskLevel.RequiresEscalation():
		s.MarkEscalated(fmt.Sprintf("risk level %s requires human review", s.RiskLevel))
	case s.Confidence < threshold:
		s.MarkEscalated(fmt.Sprintf("confidence %.2f below threshold %.2f", s.Confidence, threshold))
	case !s.Feasible && s.AttemptsExhausted():
		s.MarkEscalated(s.FeasibilityReason)
	}

	a.logger.Debug("Decision routed",
		"escalate", s.Escalate,
		"confidence", s.Confidence,
		"threshold", threshold,
		"feasible", s.Feasible,
		"policy_ok", s.PolicyOK)
	return nil
}

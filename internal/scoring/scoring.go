// Package scoring combines risk signals into a fraud probability and maps
// the result to a disposition.
package scoring

import (
	"fmt"
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Risk level labels.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Signal names used in contributions.
const (
	SignalStatistical = "statistical"
	SignalNarrative   = "narrative"
)

// Scorer holds weights and thresholds. It has no other state.
type Scorer struct {
	cfg domain.ScoringConfig
}

// New creates a scorer from configuration.
func New(cfg domain.ScoringConfig) (*Scorer, error) {
	if cfg.StatisticalWeight < 0 || cfg.NarrativeWeight < 0 {
		return nil, fmt.Errorf("signal weights must not be negative")
	}
	if cfg.StatisticalWeight+cfg.NarrativeWeight == 0 {
		return nil, fmt.Errorf("at least one signal weight must be positive")
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer configuration.
func (s *Scorer) Config() domain.ScoringConfig {
	return s.cfg
}

// Combine blends the statistical and narrative fraud scores.
// Inputs and output are clamped to [0,1].
func (s *Scorer) Combine(statFraud, narrativeFraud float64) float64 {
	sf := clampFraud(statFraud)
	nf := clampFraud(narrativeFraud)
	return clamp(s.cfg.StatisticalWeight*sf + s.cfg.NarrativeWeight*nf)
}

// Decide maps scores to a disposition. Reject wins over approve.
func (s *Scorer) Decide(combinedFraud, approval float64) domain.Disposition {
	combinedFraud = clampFraud(combinedFraud)
	approval = clampApproval(approval)

	switch {
	case combinedFraud > s.cfg.RejectAbove:
		return domain.DispositionReject
	case approval > s.cfg.ApproveAbove && combinedFraud < s.cfg.ApproveFraudBelow:
		return domain.DispositionAutoApprove
	default:
		return domain.DispositionManualReview
	}
}

// RiskLevel labels a combined fraud score for reporting.
func (s *Scorer) RiskLevel(combinedFraud float64) string {
	switch {
	case combinedFraud > s.cfg.HighRiskAbove:
		return RiskHigh
	case combinedFraud > s.cfg.MediumRiskAbove:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Assess produces the full risk verdict for a run.
func (s *Scorer) Assess(stat domain.StatisticalScore, narrative domain.NarrativeRisk) *domain.RiskVerdict {
	sf := clampFraud(stat.FraudProbability)
	sa := clampApproval(stat.ApprovalProbability)
	nf := clampFraud(narrative.RiskScore)

	combined := s.Combine(sf, nf)

	verdict := &domain.RiskVerdict{
		StatisticalFraud:    sf,
		StatisticalApproval: sa,
		NarrativeFraud:      nf,
		CombinedFraud:       combined,
		RiskLevel:           s.RiskLevel(combined),
		Disposition:         s.Decide(combined, sa),
		Contributions: []domain.SignalContribution{
			{Signal: SignalStatistical, Score: sf, Weight: s.cfg.StatisticalWeight, Contribution: s.cfg.StatisticalWeight * sf},
			{Signal: SignalNarrative, Score: nf, Weight: s.cfg.NarrativeWeight, Contribution: s.cfg.NarrativeWeight * nf},
		},
	}

	if sf > s.cfg.HighRiskAbove {
		verdict.Indicators = append(verdict.Indicators, "High statistical fraud probability")
	}
	verdict.Indicators = append(verdict.Indicators, narrative.Indicators...)

	return verdict
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// clampFraud treats NaN as maximal risk.
func clampFraud(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return clamp(v)
}

// clampApproval treats NaN as no approval signal.
func clampApproval(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v)
}

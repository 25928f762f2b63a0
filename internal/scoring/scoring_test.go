package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(domain.DefaultScoringConfig())
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadWeights(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.StatisticalWeight = -0.1
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = domain.DefaultScoringConfig()
	cfg.StatisticalWeight, cfg.NarrativeWeight = 0, 0
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	s := newScorer(t)

	assert.InDelta(t, 0.6*0.5+0.4*0.25, s.Combine(0.5, 0.25), 1e-9)
	assert.Equal(t, 1.0, s.Combine(1, 1))
	assert.Equal(t, 0.0, s.Combine(0, 0))

	t.Run("ClampsInputs", func(t *testing.T) {
		assert.Equal(t, 1.0, s.Combine(7, 3))
		assert.Equal(t, 0.0, s.Combine(-2, -1))
		assert.Equal(t, s.Combine(1, 0.5), s.Combine(1.8, 0.5))
	})

	t.Run("NaNIsMaximalRisk", func(t *testing.T) {
		assert.Equal(t, s.Combine(1, 0), s.Combine(math.NaN(), 0))
	})

	t.Run("Monotonic", func(t *testing.T) {
		prev := -1.0
		for i := 0; i <= 20; i++ {
			v := s.Combine(float64(i)/20, 0.3)
			assert.GreaterOrEqual(t, v, prev)
			prev = v
		}
		prev = -1.0
		for i := 0; i <= 20; i++ {
			v := s.Combine(0.3, float64(i)/20)
			assert.GreaterOrEqual(t, v, prev)
			prev = v
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, s.Combine(0.123, 0.456), s.Combine(0.123, 0.456))
	})
}

func TestDecide(t *testing.T) {
	s := newScorer(t)

	tests := []struct {
		name      string
		statFraud float64
		narrative float64
		approval  float64
		want      domain.Disposition
	}{
		{"RejectWinsOverApproval", 0.95, 0.9, 0.9, domain.DispositionReject},
		{"AutoApprove", 0.1, 0.1, 0.85, domain.DispositionAutoApprove},
		{"ManualReview", 0.5, 0.5, 0.5, domain.DispositionManualReview},
		{"HighApprovalButModerateFraud", 0.4, 0.4, 0.95, domain.DispositionManualReview},
		{"LowFraudButLowApproval", 0.05, 0.05, 0.8, domain.DispositionManualReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			combined := s.Combine(tt.statFraud, tt.narrative)
			assert.Equal(t, tt.want, s.Decide(combined, tt.approval))
		})
	}

	t.Run("Boundaries", func(t *testing.T) {
		assert.Equal(t, domain.DispositionManualReview, s.Decide(0.70, 0.1), "0.70 is not above the reject threshold")
		assert.Equal(t, domain.DispositionReject, s.Decide(0.7001, 0.1))
		assert.Equal(t, domain.DispositionManualReview, s.Decide(0.30, 0.99), "0.30 is not below the approve fraud ceiling")
		assert.Equal(t, domain.DispositionAutoApprove, s.Decide(0.29, 0.81))
	})
}

func TestRiskLevel(t *testing.T) {
	s := newScorer(t)

	assert.Equal(t, RiskHigh, s.RiskLevel(0.71))
	assert.Equal(t, RiskMedium, s.RiskLevel(0.70))
	assert.Equal(t, RiskMedium, s.RiskLevel(0.41))
	assert.Equal(t, RiskLow, s.RiskLevel(0.40))
	assert.Equal(t, RiskLow, s.RiskLevel(0))
}

func TestAssess(t *testing.T) {
	s := newScorer(t)

	verdict := s.Assess(
		domain.StatisticalScore{FraudProbability: 0.9, ApprovalProbability: 0.1},
		domain.NarrativeRisk{RiskScore: 0.6, Indicators: []string{"Suspicious pattern: edited"}},
	)

	assert.InDelta(t, 0.78, verdict.CombinedFraud, 1e-9)
	assert.Equal(t, domain.DispositionReject, verdict.Disposition)
	assert.Equal(t, RiskHigh, verdict.RiskLevel)
	assert.Equal(t, []string{"High statistical fraud probability", "Suspicious pattern: edited"}, verdict.Indicators)

	require.Len(t, verdict.Contributions, 2)
	assert.Equal(t, SignalStatistical, verdict.Contributions[0].Signal)
	assert.InDelta(t, 0.54, verdict.Contributions[0].Contribution, 1e-9)
	assert.InDelta(t, 0.24, verdict.Contributions[1].Contribution, 1e-9)

	total := verdict.Contributions[0].Contribution + verdict.Contributions[1].Contribution
	assert.InDelta(t, verdict.CombinedFraud, total, 1e-9)
}

func TestCustomThresholds(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.StatisticalWeight, cfg.NarrativeWeight = 1, 0
	cfg.RejectAbove = 0.5
	s, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, 0.55, s.Combine(0.55, 1))
	assert.Equal(t, domain.DispositionReject, s.Decide(0.55, 0.9))
}

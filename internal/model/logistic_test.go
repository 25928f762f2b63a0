package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLogisticScore(t *testing.T) {
	m := NewLogistic(DefaultCoefficients())
	ctx := context.Background()

	score := func(f domain.ClaimFeatures) *domain.StatisticalScore {
		t.Helper()
		s, err := m.Score(ctx, f)
		require.NoError(t, err)
		return s
	}

	t.Run("TypicalClaimIsLowRisk", func(t *testing.T) {
		s := score(domain.ClaimFeatures{Amount: domain.Dollars(8850), DocumentCount: 1})
		assert.Less(t, s.FraudProbability, 0.1)
		assert.Greater(t, s.ApprovalProbability, 0.9)
		assert.InDelta(t, 1.0, s.FraudProbability+s.ApprovalProbability, 1e-12)
	})

	t.Run("ProbabilitiesInRange", func(t *testing.T) {
		for _, f := range []domain.ClaimFeatures{
			{},
			{Amount: domain.Dollars(10_000_000), ClaimantHistoryCount: 40},
			{Amount: -500, DocumentCount: 100},
		} {
			s := score(f)
			assert.GreaterOrEqual(t, s.FraudProbability, 0.0)
			assert.LessOrEqual(t, s.FraudProbability, 1.0)
		}
	})

	t.Run("AmountRaisesRisk", func(t *testing.T) {
		low := score(domain.ClaimFeatures{Amount: domain.Dollars(500)})
		high := score(domain.ClaimFeatures{Amount: domain.Dollars(45000)})
		assert.Greater(t, high.FraudProbability, low.FraudProbability)
	})

	t.Run("DocumentsLowerRiskUpToCap", func(t *testing.T) {
		none := score(domain.ClaimFeatures{Amount: domain.Dollars(5000)})
		two := score(domain.ClaimFeatures{Amount: domain.Dollars(5000), DocumentCount: 2})
		five := score(domain.ClaimFeatures{Amount: domain.Dollars(5000), DocumentCount: 5})
		nine := score(domain.ClaimFeatures{Amount: domain.Dollars(5000), DocumentCount: 9})
		assert.Less(t, two.FraudProbability, none.FraudProbability)
		assert.Equal(t, five.FraudProbability, nine.FraudProbability)
	})

	t.Run("RecentHistoryRaisesRisk", func(t *testing.T) {
		base := domain.ClaimFeatures{Amount: domain.Dollars(2000), DocumentCount: 1, ClaimantHistoryCount: 2}
		old := base
		old.DaysSinceLastClaim = 200
		recent := base
		recent.DaysSinceLastClaim = 3
		fresh := domain.ClaimFeatures{Amount: domain.Dollars(2000), DocumentCount: 1}

		assert.Greater(t, score(recent).FraudProbability, score(old).FraudProbability)
		assert.Greater(t, score(old).FraudProbability, score(fresh).FraudProbability)
	})
}

func TestLogisticCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLogistic(DefaultCoefficients()).Score(ctx, domain.ClaimFeatures{})
	assert.ErrorIs(t, err, context.Canceled)
}

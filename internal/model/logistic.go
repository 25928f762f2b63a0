// Package model provides the statistical fraud scorer.
package model

import (
	"context"
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Coefficients are the weights of the logistic fraud model.
type Coefficients struct {
	Intercept float64
	// Amount multiplies ln(1 + amount/1000).
	Amount float64
	// Document is applied per document, up to MaxDocuments.
	Document     float64
	MaxDocuments int
	// History is applied per prior claim.
	History float64
	// Recency adds up to this much when the last claim was within
	// RecencyDays, decaying linearly to zero.
	Recency     float64
	RecencyDays int
}

// DefaultCoefficients returns the shipped model weights.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Intercept:    -3.0,
		Amount:       0.35,
		Document:     -0.4,
		MaxDocuments: 5,
		History:      0.45,
		Recency:      0.5,
		RecencyDays:  30,
	}
}

// Logistic scores claim features with a fixed logistic regression.
// Approval probability is the complement of fraud probability.
type Logistic struct {
	coef Coefficients
}

var _ domain.StatisticalScorer = (*Logistic)(nil)

// NewLogistic creates a scorer with the given coefficients.
func NewLogistic(coef Coefficients) *Logistic {
	return &Logistic{coef: coef}
}

// Score computes fraud and approval probabilities.
func (l *Logistic) Score(ctx context.Context, f domain.ClaimFeatures) (*domain.StatisticalScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := l.coef
	z := c.Intercept

	dollars := math.Max(f.Amount.Float(), 0)
	z += c.Amount * math.Log1p(dollars/1000)

	docs := f.DocumentCount
	if c.MaxDocuments > 0 && docs > c.MaxDocuments {
		docs = c.MaxDocuments
	}
	z += c.Document * float64(docs)

	z += c.History * float64(f.ClaimantHistoryCount)

	if f.ClaimantHistoryCount > 0 && c.RecencyDays > 0 && f.DaysSinceLastClaim < c.RecencyDays {
		z += c.Recency * (1 - float64(f.DaysSinceLastClaim)/float64(c.RecencyDays))
	}

	fraud := 1 / (1 + math.Exp(-z))
	return &domain.StatisticalScore{
		FraudProbability:    fraud,
		ApprovalProbability: 1 - fraud,
	}, nil
}

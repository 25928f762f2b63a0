// Package history provides read-only claimant history lookups.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ClaimLister is the slice of the repository the history service reads.
type ClaimLister interface {
	ListClaimsByClaimant(ctx context.Context, claimantID string, since time.Time) ([]*domain.Claim, error)
}

// Service answers questions about a claimant's earlier claims.
type Service struct {
	claims ClaimLister
	window time.Duration
}

// NewService creates a history service. window bounds the lookback used for
// model features.
func NewService(claims ClaimLister, window time.Duration) *Service {
	if window <= 0 {
		window = 365 * 24 * time.Hour
	}
	return &Service{
		claims: claims,
		window: window,
	}
}

// Priors returns the claimant's claims submitted in [since, claim.SubmittedAt],
// excluding claim itself, newest first.
func (s *Service) Priors(ctx context.Context, claim *domain.Claim, since time.Time) ([]*domain.Claim, error) {
	if claim == nil || claim.ClaimantID == "" {
		return nil, nil
	}

	all, err := s.claims.ListClaimsByClaimant(ctx, claim.ClaimantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims for claimant %s: %w", claim.ClaimantID, err)
	}

	priors := make([]*domain.Claim, 0, len(all))
	for _, c := range all {
		if c.ID == claim.ID || c.SubmittedAt.After(claim.SubmittedAt) {
			continue
		}
		priors = append(priors, c)
	}
	return priors, nil
}

// Features builds the statistical model inputs from real claimant history.
// DaysSinceLastClaim is 0 when the claimant has no earlier claim.
func (s *Service) Features(ctx context.Context, claim *domain.Claim) (domain.ClaimFeatures, error) {
	features := baseFeatures(claim)

	priors, err := s.Priors(ctx, claim, claim.SubmittedAt.Add(-s.window))
	if err != nil {
		return features, err
	}

	features.ClaimantHistoryCount = len(priors)
	if len(priors) > 0 {
		features.DaysSinceLastClaim = WholeDays(claim.SubmittedAt.Sub(priors[0].SubmittedAt))
	}
	return features, nil
}

// ZeroFeatures is a cold-start feature source that reports no history.
type ZeroFeatures struct{}

// Features returns amount and document count with zeroed history.
func (ZeroFeatures) Features(_ context.Context, claim *domain.Claim) (domain.ClaimFeatures, error) {
	return baseFeatures(claim), nil
}

func baseFeatures(claim *domain.Claim) domain.ClaimFeatures {
	return domain.ClaimFeatures{
		Amount:        claim.Amount,
		DocumentCount: claim.DocumentCount(),
	}
}

// WholeDays truncates a duration to whole elapsed days.
func WholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// MonthStart returns the first instant of t's UTC calendar month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

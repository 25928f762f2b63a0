package claims

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// UpdateStatus applies a specialist's manual change to a claim under review.
// UnderReview to UnderReview re-assigns the specialist. Approved or Rejected
// resolves the review and appends a decision by the specialist.
func (s *Service) UpdateStatus(ctx context.Context, claimID string, req StatusUpdate) (*domain.Claim, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	next, err := domain.ParseClaimStatus(req.Status)
	if err != nil {
		return nil, err
	}

	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimUnderReview {
		return nil, fmt.Errorf("%w: manual update requires %s, claim is %s",
			domain.ErrInvalidTransition, domain.ClaimUnderReview, claim.Status)
	}

	now := s.now()
	specialist := strings.TrimSpace(req.SpecialistID)
	if specialist != "" {
		claim.AssignSpecialist(specialist, now)
	}
	if err := claim.TransitionTo(next, now); err != nil {
		return nil, err
	}

	switch next {
	case domain.ClaimApproved, domain.ClaimRejected:
		reviewer := specialist
		if reviewer == "" && claim.AssignedSpecialistID != nil {
			reviewer = *claim.AssignedSpecialistID
		}
		if reviewer == "" {
			return nil, fmt.Errorf("%w: a specialist id is required to resolve a review", domain.ErrInvalidInput)
		}

		status := domain.DecisionApproved
		if next == domain.ClaimRejected {
			status = domain.DecisionRejected
		}
		reason := strings.TrimSpace(req.Comments)
		if reason == "" {
			reason = "Manual review: " + string(next)
		}

		decision := domain.NewDecision(s.newID(), claim, status, reason, reviewer, now)
		if err := s.repo.RecordOutcome(ctx, claim, decision); err != nil {
			return nil, fmt.Errorf("failed to record review outcome: %w", err)
		}
		s.log.Info("review resolved", "claim_id", claim.ID, "status", next, "reviewer", reviewer)
		s.notify(ctx, claim, domain.NotifyDecisionMade)

	default:
		if err := s.repo.UpdateClaim(ctx, claim); err != nil {
			return nil, fmt.Errorf("failed to update claim: %w", err)
		}
		s.log.Info("review reassigned", "claim_id", claim.ID, "specialist_id", specialist)
		s.notify(ctx, claim, domain.NotifyStatusUpdate)
	}

	s.cacheStatus(ctx, claim)
	return claim, nil
}

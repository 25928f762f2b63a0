package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// recorder writes a disposition as a claim status change plus an
// append-only decision, atomically.
type recorder struct {
	store Store
	newID func() string
	now   func() time.Time
}

func (r *recorder) record(ctx context.Context, claim *domain.Claim, d domain.Disposition, reason string) (*domain.Decision, error) {
	prev, prevUpdated := claim.Status, claim.UpdatedAt
	now := r.now()

	if err := claim.TransitionTo(d.ClaimStatus(), now); err != nil {
		return nil, err
	}

	decision := domain.NewDecision(r.newID(), claim, d.DecisionStatus(), reason, d.Reviewer(), now)
	if err := r.store.RecordOutcome(ctx, claim, decision); err != nil {
		claim.Status, claim.UpdatedAt = prev, prevUpdated
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}
	return decision, nil
}

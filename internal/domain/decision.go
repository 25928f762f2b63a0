package domain

import "time"

// DecisionStatus is the outcome recorded in the audit trail.
type DecisionStatus string

const (
	DecisionPending       DecisionStatus = "Pending"
	DecisionApproved      DecisionStatus = "Approved"
	DecisionRejected      DecisionStatus = "Rejected"
	DecisionPendingReview DecisionStatus = "PendingReview"
)

// Reviewer sentinels.
const (
	ReviewerAutomated  = "automated-system"
	ReviewerUnassigned = "unassigned"
)

// Decision is an immutable audit record of a disposition.
type Decision struct {
	ID            string         `json:"id"`
	ClaimID       string         `json:"claimId"`
	Status        DecisionStatus `json:"status"`
	DecidedAt     time.Time      `json:"decidedAt"`
	Reason        string         `json:"reason"`
	Reviewer      string         `json:"reviewer"`
	FraudScore    *float64       `json:"fraudScore,omitempty"`
	ApprovalScore *float64       `json:"approvalScore,omitempty"`
}

// NewDecision snapshots the claim's current scores into a new Decision.
// The scores are copied so later claim updates never reach the record.
func NewDecision(id string, claim *Claim, status DecisionStatus, reason, reviewer string, now time.Time) *Decision {
	return &Decision{
		ID:            id,
		ClaimID:       claim.ID,
		Status:        status,
		DecidedAt:     now.UTC(),
		Reason:        reason,
		Reviewer:      reviewer,
		FraudScore:    copyFloat(claim.FraudScore),
		ApprovalScore: copyFloat(claim.ApprovalScore),
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

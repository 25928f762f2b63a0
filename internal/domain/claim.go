// Package domain defines the core types and collaborator contracts for Harrier.
package domain

import (
	"fmt"
	"time"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimSubmitted        ClaimStatus = "Submitted"
	ClaimProcessing       ClaimStatus = "Processing"
	ClaimApproved         ClaimStatus = "Approved"
	ClaimRejected         ClaimStatus = "Rejected"
	ClaimUnderReview      ClaimStatus = "UnderReview"
	ClaimProcessingFailed ClaimStatus = "ProcessingFailed"
)

// claimTransitions lists the allowed next states for each state.
// Approved and Rejected have no outgoing edges.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimSubmitted:        {ClaimProcessing},
	ClaimProcessing:       {ClaimApproved, ClaimRejected, ClaimUnderReview, ClaimProcessingFailed},
	ClaimProcessingFailed: {ClaimProcessing},
	ClaimUnderReview:      {ClaimApproved, ClaimRejected, ClaimUnderReview},
}

// ParseClaimStatus matches a status name exactly.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	st := ClaimStatus(s)
	switch st {
	case ClaimSubmitted, ClaimProcessing, ClaimApproved, ClaimRejected, ClaimUnderReview, ClaimProcessingFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown claim status %q", ErrInvalidInput, s)
}

// Terminal reports whether no further transition can occur.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimApproved || s == ClaimRejected
}

// Decided reports whether an automated run has already produced an outcome.
func (s ClaimStatus) Decided() bool {
	return s.Terminal() || s == ClaimUnderReview
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Claim is the unit of work moving through the pipeline.
type Claim struct {
	ID                   string      `json:"id"`
	PolicyID             string      `json:"policyId"`
	ClaimantID           string      `json:"claimantId"`
	Description          string      `json:"description,omitempty"`
	Amount               Money       `json:"amount"`
	Status               ClaimStatus `json:"status"`
	SubmittedAt          time.Time   `json:"submittedAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
	FraudScore           *float64    `json:"fraudScore,omitempty"`
	ApprovalScore        *float64    `json:"approvalScore,omitempty"`
	AssignedSpecialistID *string     `json:"assignedSpecialistId,omitempty"`

	Documents []*Document `json:"documents,omitempty"`
}

// NewClaim builds a claim in the Submitted state.
func NewClaim(id, policyID, claimantID string, amount Money, description string, now time.Time) (*Claim, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	now = now.UTC()
	return &Claim{
		ID:          id,
		PolicyID:    policyID,
		ClaimantID:  claimantID,
		Description: description,
		Amount:      amount,
		Status:      ClaimSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}, nil
}

// TransitionTo moves the claim to next if the state machine allows it.
func (c *Claim) TransitionTo(next ClaimStatus, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
	}
	c.Status = next
	c.touch(now)
	return nil
}

// SetScores records the combined fraud score and the approval score.
func (c *Claim) SetScores(fraud, approval float64, now time.Time) error {
	if fraud < 0 || fraud > 1 || approval < 0 || approval > 1 {
		return fmt.Errorf("%w: scores must lie in [0,1], got fraud=%v approval=%v", ErrInvalidInput, fraud, approval)
	}
	c.FraudScore = &fraud
	c.ApprovalScore = &approval
	c.touch(now)
	return nil
}

// AssignSpecialist sets the reviewer responsible for a manual review.
func (c *Claim) AssignSpecialist(id string, now time.Time) {
	c.AssignedSpecialistID = &id
	c.touch(now)
}

// Touch bumps UpdatedAt without changing state.
func (c *Claim) Touch(now time.Time) {
	c.touch(now)
}

// touch keeps UpdatedAt monotonic even if the clock steps backwards.
func (c *Claim) touch(now time.Time) {
	now = now.UTC()
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// DocumentCount returns the number of attached documents.
func (c *Claim) DocumentCount() int {
	return len(c.Documents)
}

// StatusView is the lightweight projection returned by status lookups.
type StatusView struct {
	ClaimID              string      `json:"claimId"`
	Status               ClaimStatus `json:"status"`
	Amount               Money       `json:"amount"`
	SubmittedAt          time.Time   `json:"submittedAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
	FraudScore           *float64    `json:"fraudScore,omitempty"`
	ApprovalScore        *float64    `json:"approvalScore,omitempty"`
	AssignedSpecialistID *string     `json:"assignedSpecialistId,omitempty"`
	DocumentCount        int         `json:"documentCount"`
}

// View projects the claim into a StatusView.
func (c *Claim) View() *StatusView {
	return &StatusView{
		ClaimID:              c.ID,
		Status:               c.Status,
		Amount:               c.Amount,
		SubmittedAt:          c.SubmittedAt,
		UpdatedAt:            c.UpdatedAt,
		FraudScore:           c.FraudScore,
		ApprovalScore:        c.ApprovalScore,
		AssignedSpecialistID: c.AssignedSpecialistID,
		DocumentCount:        len(c.Documents),
	}
}

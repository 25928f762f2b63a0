package domain

import "errors"

// Sentinel errors shared across packages. Wrap them with fmt.Errorf("...: %w")
// and match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrClaimFinalized is returned when a claim is already Approved, Rejected
	// or awaiting manual review and an automated run is requested.
	ErrClaimFinalized = errors.New("claim already decided")

	// ErrClaimInProgress is returned when another run owns the claim.
	ErrClaimInProgress = errors.New("claim is being processed")

	// ErrClaimLocked is returned when the per-claim lock is held elsewhere.
	ErrClaimLocked = errors.New("claim is locked")
)

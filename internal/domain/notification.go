package domain

import "time"

// NotificationKind selects the message sent to a claimant.
type NotificationKind string

const (
	NotifyClaimReceived        NotificationKind = "ClaimReceived"
	NotifyStatusUpdate         NotificationKind = "StatusUpdate"
	NotifyDecisionMade         NotificationKind = "DecisionMade"
	NotifyDocumentsRequested   NotificationKind = "DocumentsRequested"
	NotifyManualReviewAssigned NotificationKind = "ManualReviewAssigned"
)

// Subject returns the message subject for the kind.
func (k NotificationKind) Subject() string {
	switch k {
	case NotifyClaimReceived:
		return "Claim Received"
	case NotifyStatusUpdate:
		return "Claim Status Update"
	case NotifyDecisionMade:
		return "Claim Decision"
	case NotifyDocumentsRequested:
		return "Documents Required"
	case NotifyManualReviewAssigned:
		return "Manual Review Assigned"
	default:
		return "Claim Notification"
	}
}

// Body returns the message body for the kind.
func (k NotificationKind) Body() string {
	switch k {
	case NotifyClaimReceived:
		return "Your claim has been received and is being processed."
	case NotifyStatusUpdate:
		return "Your claim status has been updated."
	case NotifyDecisionMade:
		return "A decision has been made on your claim."
	case NotifyDocumentsRequested:
		return "Additional documents are required for your claim."
	case NotifyManualReviewAssigned:
		return "Your claim has been assigned for manual review."
	default:
		return "There is an update on your claim."
	}
}

// NotificationStatus tracks delivery.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "Pending"
	NotificationSent    NotificationStatus = "Sent"
	NotificationFailed  NotificationStatus = "Failed"
)

// Notification is a delivery record keyed by claim and kind.
type Notification struct {
	ID        string             `json:"id"`
	ClaimID   string             `json:"claimId"`
	Recipient string             `json:"recipient"`
	Kind      NotificationKind   `json:"kind"`
	Status    NotificationStatus `json:"status"`
	Subject   string             `json:"subject"`
	Body      string             `json:"body"`
	CreatedAt time.Time          `json:"createdAt"`
	SentAt    *time.Time         `json:"sentAt,omitempty"`
	Error     string             `json:"error,omitempty"`
}

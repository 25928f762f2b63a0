package domain

// Disposition is the pipeline's output classification.
type Disposition string

const (
	DispositionAutoApprove  Disposition = "AutoApprove"
	DispositionReject       Disposition = "Reject"
	DispositionManualReview Disposition = "ManualReview"
)

// ClaimStatus maps the disposition to the status the claim moves to.
func (d Disposition) ClaimStatus() ClaimStatus {
	switch d {
	case DispositionAutoApprove:
		return ClaimApproved
	case DispositionReject:
		return ClaimRejected
	default:
		return ClaimUnderReview
	}
}

// DecisionStatus maps the disposition to the recorded decision status.
func (d Disposition) DecisionStatus() DecisionStatus {
	switch d {
	case DispositionAutoApprove:
		return DecisionApproved
	case DispositionReject:
		return DecisionRejected
	default:
		return DecisionPendingReview
	}
}

// Reviewer returns the reviewer identity recorded for an automated outcome.
func (d Disposition) Reviewer() string {
	if d == DispositionManualReview {
		return ReviewerUnassigned
	}
	return ReviewerAutomated
}

// DocumentResult is the analysis outcome for one document.
type DocumentResult struct {
	DocumentID     string  `json:"documentId"`
	Success        bool    `json:"success"`
	ExtractedText  string  `json:"extractedText,omitempty"`
	Confidence     float64 `json:"confidence"`
	ClassifiedType string  `json:"classifiedType,omitempty"`
	ContentValid   bool    `json:"contentValid"`
	Error          string  `json:"error,omitempty"`
	ProcessMs      int64   `json:"processMs"`
}

// RuleFailure names a failing check and why.
type RuleFailure struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// RulesVerdict is the rules engine output.
type RulesVerdict struct {
	Valid        bool            `json:"valid"`
	Reason       string          `json:"reason,omitempty"`
	RulesChecked []string        `json:"rulesChecked"`
	RuleResults  map[string]bool `json:"ruleResults"`
	Failures     []RuleFailure   `json:"failures,omitempty"`
}

// SignalContribution is one signal's weighted share of the combined score.
type SignalContribution struct {
	Signal       string  `json:"signal"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// RiskVerdict is the scorer output.
type RiskVerdict struct {
	StatisticalFraud    float64              `json:"statisticalFraud"`
	StatisticalApproval float64              `json:"statisticalApproval"`
	NarrativeFraud      float64              `json:"narrativeFraud"`
	CombinedFraud       float64              `json:"combinedFraud"`
	RiskLevel           string               `json:"riskLevel"`
	Disposition         Disposition          `json:"disposition"`
	Indicators          []string             `json:"indicators,omitempty"`
	Contributions       []SignalContribution `json:"contributions"`
}

// ProcessingMetadata carries timings for a run.
type ProcessingMetadata struct {
	TraceID     string `json:"traceId,omitempty"`
	DocumentsMs int64  `json:"documentsMs"`
	RulesMs     int64  `json:"rulesMs"`
	ScoringMs   int64  `json:"scoringMs"`
	TotalMs     int64  `json:"totalMs"`
}

// ProcessingResult is the aggregated output of one pipeline run.
// Success=false means the run did not complete; FinalDecision is then empty
// and must not be read as a disposition.
type ProcessingResult struct {
	ClaimID       string             `json:"claimId"`
	Success       bool               `json:"success"`
	Error         string             `json:"error,omitempty"`
	FinalDecision Disposition        `json:"finalDecision,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Status        ClaimStatus        `json:"status"`
	Documents     []DocumentResult   `json:"documents"`
	Rules         *RulesVerdict      `json:"rules,omitempty"`
	Risk          *RiskVerdict       `json:"risk,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	Entities      *Entities          `json:"entities,omitempty"`
	Metadata      ProcessingMetadata `json:"metadata"`
}

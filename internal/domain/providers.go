package domain

import "context"

// Extraction is the basic output of a document analysis provider.
type Extraction struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Table is a grid of cell text detected in a document.
type Table struct {
	Rows [][]string `json:"rows"`
}

// StructuredExtraction is the richer output some providers support.
type StructuredExtraction struct {
	Extraction
	Tables         []Table           `json:"tables,omitempty"`
	FormFields     map[string]string `json:"formFields,omitempty"`
	ClassifiedType string            `json:"classifiedType,omitempty"`
}

// DocumentAnalyzer extracts text from a stored document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, locator string) (*Extraction, error)
}

// StructuredAnalyzer is implemented by providers that also return tables
// and form fields.
type StructuredAnalyzer interface {
	DocumentAnalyzer
	AnalyzeStructured(ctx context.Context, locator string) (*StructuredExtraction, error)
}

// DocumentClassifier labels extracted text with a document type.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Narrative recommendations.
const (
	RecommendApprove     = "Approve"
	RecommendReview      = "Review"
	RecommendInvestigate = "Investigate"
)

// NarrativeRisk is the fraud-narrative scan output.
type NarrativeRisk struct {
	RiskScore      float64  `json:"riskScore"`
	RiskLevel      string   `json:"riskLevel"`
	Indicators     []string `json:"indicators"`
	Recommendation string   `json:"recommendation"`
}

// Entities are the structured facts pulled out of free text.
type Entities struct {
	Names     []string `json:"names"`
	Dates     []string `json:"dates"`
	Amounts   []string `json:"amounts"`
	Locations []string `json:"locations"`
	ClaimType string   `json:"claimType"`
}

// NarrativeAnalyzer summarizes claim text and scans it for fraud signals.
type NarrativeAnalyzer interface {
	Summarize(ctx context.Context, description, documentText string) (string, error)
	AnalyzeFraudNarrative(ctx context.Context, text string) (*NarrativeRisk, error)
	ExtractEntities(ctx context.Context, text string) (*Entities, error)
}

// ClaimFeatures are the inputs to the statistical model.
type ClaimFeatures struct {
	Amount               Money `json:"amount"`
	DocumentCount        int   `json:"documentCount"`
	ClaimantHistoryCount int   `json:"claimantHistoryCount"`
	DaysSinceLastClaim   int   `json:"daysSinceLastClaim"`
}

// StatisticalScore is the model output.
type StatisticalScore struct {
	FraudProbability    float64 `json:"fraudProbability"`
	ApprovalProbability float64 `json:"approvalProbability"`
}

// StatisticalScorer scores claim features.
type StatisticalScorer interface {
	Score(ctx context.Context, features ClaimFeatures) (*StatisticalScore, error)
}

// Notifier triggers a claimant notification. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, claimID, recipient string, kind NotificationKind) error
}

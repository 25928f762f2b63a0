package narrative

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/opensource-finance/harrier/internal/domain"
)

// LowOCRConfidence is the OCR confidence below which extracted text is
// treated as unreliable.
const LowOCRConfidence = 0.5

const (
	lowConfidenceWeight = 0.2
	minContentRunes     = 50
)

// WithOCRConfidence raises risk by the low-confidence weight when any
// completed document was read below LowOCRConfidence. risk is not modified.
func WithOCRConfidence(risk *domain.NarrativeRisk, docs []*domain.Document) *domain.NarrativeRisk {
	lowest, ok := lowestConfidence(docs)
	if !ok || lowest >= LowOCRConfidence {
		return risk
	}
	indicators := append(slices.Clone(risk.Indicators), fmt.Sprintf("Low OCR confidence: %.0f%%", lowest*100))
	return riskFor(risk.RiskScore+lowConfidenceWeight, indicators)
}

// ContentValid reports whether a document's extracted text can stand as
// evidence. The text must be present and read with adequate confidence,
// hold at least 50 characters and carry no suspicious wording.
func ContentValid(doc *domain.Document) bool {
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return false
	}
	if doc.OCRConfidence != nil && *doc.OCRConfidence < LowOCRConfidence {
		return false
	}
	if utf8.RuneCountInString(text) < minContentRunes {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

func lowestConfidence(docs []*domain.Document) (float64, bool) {
	lowest, found := 1.0, false
	for _, d := range docs {
		if d.OCRStatus != domain.OCRCompleted || d.OCRConfidence == nil {
			continue
		}
		lowest = min(lowest, *d.OCRConfidence)
		found = true
	}
	return lowest, found
}

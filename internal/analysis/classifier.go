package analysis

import (
	"context"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Classifier labels.
const (
	LabelUnknown = "Unknown"
	LabelOther   = "Other"
)

// minKeywordMatches is how many keywords a label needs to be chosen.
const minKeywordMatches = 2

type keywordSet struct {
	label    string
	keywords []string
}

var defaultKeywords = []keywordSet{
	{"Invoice", []string{"invoice", "invoice number", "invoice date", "bill to", "subtotal", "total due", "payment terms"}},
	{"Receipt", []string{"receipt", "paid", "transaction", "payment received", "thank you for your purchase"}},
	{"MedicalReport", []string{"medical", "diagnosis", "patient", "physician", "treatment", "prescription", "hospital", "clinic", "symptoms"}},
	{"InsurancePolicy", []string{"policy", "coverage", "premium", "deductible", "beneficiary", "insured", "underwriter"}},
	{"ClaimForm", []string{"claim form", "claimant", "date of loss", "description of damage", "claim number"}},
	{"PoliceReport", []string{"police", "officer", "incident", "report number", "witness", "accident report"}},
	{"RepairEstimate", []string{"estimate", "repair", "parts", "labor", "mechanic", "body shop", "damage assessment"}},
	{"BankStatement", []string{"bank statement", "account", "balance", "deposit", "withdrawal", "transaction history"}},
}

// KeywordClassifier picks the label with the most keyword hits.
type KeywordClassifier struct {
	sets []keywordSet
}

var _ domain.DocumentClassifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier creates a classifier with the built-in keyword table.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{sets: defaultKeywords}
}

// Classify returns Unknown for blank text and Other when no label reaches
// two keyword matches. Ties go to the label listed first.
func (c *KeywordClassifier) Classify(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return LabelUnknown, nil
	}

	lower := strings.ToLower(text)
	best, bestScore := LabelOther, 0
	for _, set := range c.sets {
		score := 0
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = set.label, score
		}
	}

	if bestScore < minKeywordMatches {
		return LabelOther, nil
	}
	return best, nil
}

package narrative

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

const (
	longInvoice  = "Invoice 4471 for kitchen floor replacement after water damage, total due $8,850.00"
	draftInvoice = "DRAFT " + longInvoice
)

func completedDoc(id, text string, confidence float64) *domain.Document {
	d := domain.NewDocument(id, "c1", domain.DocInvoice, id+".txt", fixedNow)
	d.CompleteOCR(text, confidence)
	return d
}

func TestWithOCRConfidence(t *testing.T) {
	base := riskFor(0.1, []string{"Urgent or emotional wording"})

	t.Run("adequate confidence", func(t *testing.T) {
		got := WithOCRConfidence(base, []*domain.Document{completedDoc("d1", longInvoice, 0.9)})
		assert.Same(t, base, got)
	})

	t.Run("no completed documents", func(t *testing.T) {
		failed := domain.NewDocument("d1", "c1", domain.DocInvoice, "d1.txt", fixedNow)
		failed.FailOCR()
		assert.Same(t, base, WithOCRConfidence(base, []*domain.Document{failed}))
		assert.Same(t, base, WithOCRConfidence(base, nil))
	})

	t.Run("lowest document counts", func(t *testing.T) {
		docs := []*domain.Document{
			completedDoc("d1", longInvoice, 0.95),
			completedDoc("d2", longInvoice, 0.42),
		}
		got := WithOCRConfidence(base, docs)
		assert.InDelta(t, 0.3, got.RiskScore, 1e-9)
		assert.Equal(t, LevelMedium, got.RiskLevel)
		assert.Equal(t, []string{"Urgent or emotional wording", "Low OCR confidence: 42%"}, got.Indicators)
		assert.Equal(t, []string{"Urgent or emotional wording"}, base.Indicators)
	})

	t.Run("capped at one", func(t *testing.T) {
		high := riskFor(0.95, nil)
		got := WithOCRConfidence(high, []*domain.Document{completedDoc("d1", longInvoice, 0.1)})
		assert.Equal(t, 1.0, got.RiskScore)
		assert.Equal(t, LevelHigh, got.RiskLevel)
	})
}

func TestContentValid(t *testing.T) {
	pending := domain.NewDocument("d0", "c1", domain.DocInvoice, "d0.txt", fixedNow)

	tests := []struct {
		name string
		doc  *domain.Document
		want bool
	}{
		{"usable", completedDoc("d1", longInvoice, 0.9), true},
		{"no text", pending, false},
		{"blank text", completedDoc("d2", "   ", 0.9), false},
		{"low confidence", completedDoc("d3", longInvoice, 0.49), false},
		{"too short", completedDoc("d4", "Invoice 4471 total $8,850.00", 0.9), false},
		{"suspicious wording", completedDoc("d5", draftInvoice, 0.9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentValid(tt.doc))
		})
	}

	require.GreaterOrEqual(t, len(strings.TrimSpace(longInvoice)), minContentRunes)
}

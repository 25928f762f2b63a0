package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/vertex"
)

// Prompt input limits, in runes.
const (
	summaryInputLimit = 3000
	fraudInputLimit   = 2000
	entityInputLimit  = 500
)

// ErrEmptyCompletion is returned when a model produced no usable text.
var ErrEmptyCompletion = errors.New("narrative: empty model completion")

// Completer sends a single prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLM is a narrative analyzer backed by a language model. Every failure is
// returned to the caller.
type LLM struct {
	completer Completer
}

var _ domain.NarrativeAnalyzer = (*LLM)(nil)

// NewLLM creates a model-backed narrative analyzer.
func NewLLM(completer Completer) *LLM {
	return &LLM{completer: completer}
}

const summaryPrompt = `Summarize this insurance claim in 2-3 sentences. Focus on what happened, when, where, the estimated amount, and any red flags.

%s

Summary:`

const fraudPrompt = `Analyze this insurance claim description for potential fraud indicators. Look for: inconsistencies, vague details, unusual circumstances, known fraud patterns.

%s

Return ONLY JSON:
{
  "riskScore": <0.0-1.0>,
  "riskLevel": "Low"|"Medium"|"High",
  "indicators": ["indicator1"],
  "recommendation": "Approve"|"Review"|"Investigate"
}`

const entityPrompt = `Extract the entities of this insurance claim text.

%s

Return ONLY JSON:
{
  "names": ["person names"],
  "dates": ["dates as written"],
  "amounts": [100.00],
  "locations": ["places"],
  "claimType": "medical"|"auto"|"property"|"life"|"other"
}`

// Summarize asks the model for a short claim summary.
func (l *LLM) Summarize(ctx context.Context, description, documentText string) (string, error) {
	input := truncate(joinText(description, documentText), summaryInputLimit)
	out, err := l.complete(ctx, fmt.Sprintf(summaryPrompt, input))
	if err != nil {
		return "", fmt.Errorf("summarize claim: %w", err)
	}
	return out, nil
}

type fraudReply struct {
	RiskScore      *float64 `json:"riskScore"`
	RiskLevel      string   `json:"riskLevel"`
	Indicators     []string `json:"indicators"`
	Recommendation string   `json:"recommendation"`
}

// AnalyzeFraudNarrative asks the model for a fraud risk assessment.
func (l *LLM) AnalyzeFraudNarrative(ctx context.Context, text string) (*domain.NarrativeRisk, error) {
	out, err := l.complete(ctx, fmt.Sprintf(fraudPrompt, truncate(text, fraudInputLimit)))
	if err != nil {
		return nil, fmt.Errorf("analyze fraud narrative: %w", err)
	}

	var reply fraudReply
	if err := json.Unmarshal([]byte(vertex.StripFences(out)), &reply); err != nil {
		return nil, fmt.Errorf("fraud narrative reply is not valid JSON: %w", err)
	}
	if reply.RiskScore == nil {
		return nil, fmt.Errorf("fraud narrative reply has no riskScore")
	}

	risk := riskFor(*reply.RiskScore, reply.Indicators)
	if risk.Indicators == nil {
		risk.Indicators = []string{}
	}
	if level := normalizeLevel(reply.RiskLevel); level != "" {
		risk.RiskLevel = level
	}
	if rec := normalizeRecommendation(reply.Recommendation); rec != "" {
		risk.Recommendation = rec
	}
	return risk, nil
}

type entityReply struct {
	Names     []string          `json:"names"`
	Dates     []string          `json:"dates"`
	Amounts   []json.RawMessage `json:"amounts"`
	Locations []string          `json:"locations"`
	ClaimType string            `json:"claimType"`
}

// ExtractEntities asks the model for names, dates, amounts, locations and
// the claim type.
func (l *LLM) ExtractEntities(ctx context.Context, text string) (*domain.Entities, error) {
	out, err := l.complete(ctx, fmt.Sprintf(entityPrompt, truncate(text, entityInputLimit)))
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	var reply entityReply
	if err := json.Unmarshal([]byte(vertex.StripFences(out)), &reply); err != nil {
		return nil, fmt.Errorf("entity reply is not valid JSON: %w", err)
	}

	return &domain.Entities{
		Names:     nonNil(reply.Names),
		Dates:     nonNil(reply.Dates),
		Amounts:   amountStrings(reply.Amounts),
		Locations: nonNil(reply.Locations),
		ClaimType: normalizeClaimType(reply.ClaimType),
	}, nil
}

func (l *LLM) complete(ctx context.Context, prompt string) (string, error) {
	out, err := l.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// amountStrings accepts numbers or strings and renders them as dollars.
func amountStrings(raw []json.RawMessage) []string {
	out := []string{}
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			var f float64
			if err := json.Unmarshal(r, &f); err != nil {
				continue
			}
			s = strconv.FormatFloat(f, 'f', 2, 64)
		}
		if m, err := domain.ParseMoney(s); err == nil && m > 0 {
			out = append(out, m.Display())
		}
	}
	return out
}

func normalizeLevel(s string) string {
	for _, l := range []string{LevelLow, LevelMedium, LevelHigh} {
		if strings.EqualFold(strings.TrimSpace(s), l) {
			return l
		}
	}
	return ""
}

func normalizeRecommendation(s string) string {
	for _, r := range []string{domain.RecommendApprove, domain.RecommendReview, domain.RecommendInvestigate} {
		if strings.EqualFold(strings.TrimSpace(s), r) {
			return r
		}
	}
	return ""
}

func normalizeClaimType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case ClaimTypeMedical, ClaimTypeAuto, ClaimTypeProperty, ClaimTypeLife:
		return s
	default:
		return ClaimTypeOther
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

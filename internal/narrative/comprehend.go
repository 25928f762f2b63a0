package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/comprehend"
	"github.com/aws/aws-sdk-go/service/comprehend/comprehendiface"

	"github.com/opensource-finance/harrier/internal/domain"
)

// negativeSentimentBonus is added to the fraud score of negative narratives.
const negativeSentimentBonus = 0.15

const comprehendLanguage = "en"

// Comprehend decorates another analyzer with AWS Comprehend. Negative
// sentiment raises the fraud score, and detected people, dates and places
// replace the base analyzer's.
type Comprehend struct {
	base   domain.NarrativeAnalyzer
	client comprehendiface.ComprehendAPI
}

var _ domain.NarrativeAnalyzer = (*Comprehend)(nil)

// NewComprehend creates the decorator from an AWS session.
func NewComprehend(sess *session.Session, base domain.NarrativeAnalyzer) *Comprehend {
	return NewComprehendWithClient(comprehend.New(sess), base)
}

// NewComprehendWithClient creates the decorator over an existing client.
func NewComprehendWithClient(client comprehendiface.ComprehendAPI, base domain.NarrativeAnalyzer) *Comprehend {
	return &Comprehend{base: base, client: client}
}

// Summarize delegates to the base analyzer.
func (c *Comprehend) Summarize(ctx context.Context, description, documentText string) (string, error) {
	return c.base.Summarize(ctx, description, documentText)
}

// AnalyzeFraudNarrative scores with the base analyzer, then applies the
// sentiment bonus.
func (c *Comprehend) AnalyzeFraudNarrative(ctx context.Context, text string) (*domain.NarrativeRisk, error) {
	risk, err := c.base.AnalyzeFraudNarrative(ctx, text)
	if err != nil {
		return nil, err
	}

	input := truncate(strings.TrimSpace(text), fraudInputLimit)
	if input == "" {
		return risk, nil
	}

	out, err := c.client.DetectSentimentWithContext(ctx, &comprehend.DetectSentimentInput{
		Text:         aws.String(input),
		LanguageCode: aws.String(comprehendLanguage),
	})
	if err != nil {
		return nil, fmt.Errorf("comprehend detect sentiment: %w", err)
	}

	if aws.StringValue(out.Sentiment) == comprehend.SentimentTypeNegative {
		score := min(risk.RiskScore+negativeSentimentBonus, 1)
		adjusted := riskFor(score, append(risk.Indicators, "Negative sentiment in narrative"))
		if RiskLevel(score) == RiskLevel(risk.RiskScore) {
			adjusted.RiskLevel = risk.RiskLevel
			adjusted.Recommendation = risk.Recommendation
		}
		risk = adjusted
	}
	return risk, nil
}

// ExtractEntities keeps the base analyzer's amounts and claim type and takes
// names, dates and locations from Comprehend.
func (c *Comprehend) ExtractEntities(ctx context.Context, text string) (*domain.Entities, error) {
	entities, err := c.base.ExtractEntities(ctx, text)
	if err != nil {
		return nil, err
	}

	input := truncate(strings.TrimSpace(text), entityInputLimit)
	if input == "" {
		return entities, nil
	}

	out, err := c.client.DetectEntitiesWithContext(ctx, &comprehend.DetectEntitiesInput{
		Text:         aws.String(input),
		LanguageCode: aws.String(comprehendLanguage),
	})
	if err != nil {
		return nil, fmt.Errorf("comprehend detect entities: %w", err)
	}

	names, dates, locations := []string{}, []string{}, []string{}
	for _, e := range out.Entities {
		text := aws.StringValue(e.Text)
		switch aws.StringValue(e.Type) {
		case comprehend.EntityTypePerson:
			names = append(names, text)
		case comprehend.EntityTypeDate:
			dates = append(dates, text)
		case comprehend.EntityTypeLocation:
			locations = append(locations, text)
		}
	}

	entities.Names = names
	entities.Dates = dates
	entities.Locations = locations
	return entities, nil
}

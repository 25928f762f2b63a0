package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/vertex"
)

// VertexSystemPrompt instructs the model to act as an OCR engine.
const VertexSystemPrompt = `You are a document text extraction engine for an insurance claims system.
Read the attached document and return JSON only, with this shape:
{"text": "<all text in reading order>", "confidence": <0.0-1.0>, "documentType": "<Invoice|Receipt|MedicalReport|InsurancePolicy|ClaimForm|PoliceReport|RepairEstimate|BankStatement|Other>", "formFields": {"<label>": "<value>"}}
Do not summarize. Do not invent text that is not visible.`

const vertexUserPrompt = "Extract the text of this document."

// VertexAnalyzer extracts document text with a Gemini model. GCS locators
// are passed by URI; local files are sent inline.
type VertexAnalyzer struct {
	model vertex.Generator
	local *LocalStore
}

var _ domain.StructuredAnalyzer = (*VertexAnalyzer)(nil)

// NewVertexAnalyzer creates an analyzer over a model configured with
// VertexSystemPrompt and JSON output.
func NewVertexAnalyzer(model vertex.Generator) *VertexAnalyzer {
	return &VertexAnalyzer{model: model}
}

// WithLocal lets the analyzer send files beneath store inline. Without a
// store, file locators are refused.
func (v *VertexAnalyzer) WithLocal(store *LocalStore) *VertexAnalyzer {
	v.local = store
	return v
}

type vertexExtraction struct {
	Text         string            `json:"text"`
	Confidence   float64           `json:"confidence"`
	DocumentType string            `json:"documentType"`
	FormFields   map[string]string `json:"formFields"`
}

// Analyze returns the extracted text and the model's confidence.
func (v *VertexAnalyzer) Analyze(ctx context.Context, locator string) (*domain.Extraction, error) {
	out, err := v.AnalyzeStructured(ctx, locator)
	if err != nil {
		return nil, err
	}
	return &out.Extraction, nil
}

// AnalyzeStructured also returns the model's document type and form fields.
func (v *VertexAnalyzer) AnalyzeStructured(ctx context.Context, locator string) (*domain.StructuredExtraction, error) {
	part, err := v.documentPart(locator)
	if err != nil {
		return nil, err
	}

	resp, err := v.model.GenerateContent(ctx, part, genai.Text(vertexUserPrompt))
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	raw, err := vertex.ResponseText(resp)
	if err != nil {
		return nil, err
	}

	var parsed vertexExtraction
	if err := json.Unmarshal([]byte(vertex.StripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("vertex extraction is not valid JSON: %w", err)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, ErrNoText
	}

	out := &domain.StructuredExtraction{
		Extraction: domain.Extraction{
			Text:       text,
			Confidence: min(max(parsed.Confidence, 0), 1),
		},
		ClassifiedType: parsed.DocumentType,
	}
	if len(parsed.FormFields) > 0 {
		out.FormFields = parsed.FormFields
	}
	return out, nil
}

func (v *VertexAnalyzer) documentPart(locator string) (genai.Part, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeGCS:
		return genai.FileData{MIMEType: mimeType(loc.Key), FileURI: loc.String()}, nil
	case SchemeFile:
		data, err := readLocal(v.local, loc.Path)
		if err != nil {
			return nil, err
		}
		return genai.Blob{MIMEType: mimeType(loc.Path), Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: vertex cannot read %s", ErrUnsupportedLocator, loc.Scheme)
	}
}

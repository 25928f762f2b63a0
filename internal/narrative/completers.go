package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/aws/aws-sdk-go/service/bedrockruntime/bedrockruntimeiface"

	"github.com/opensource-finance/harrier/internal/vertex"
)

// VertexCompleter completes prompts with a Gemini model.
type VertexCompleter struct {
	model vertex.Generator
}

var _ Completer = (*VertexCompleter)(nil)

// NewVertexCompleter wraps a generative model.
func NewVertexCompleter(model vertex.Generator) *VertexCompleter {
	return &VertexCompleter{model: model}
}

// Complete sends the prompt as a single text part.
func (v *VertexCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}
	return vertex.ResponseText(resp)
}

const (
	bedrockAnthropicVersion = "bedrock-2023-06-01"
	bedrockMaxTokens        = 1024
	bedrockContentType      = "application/json"
)

// BedrockCompleter completes prompts with an Anthropic model on Bedrock.
type BedrockCompleter struct {
	client  bedrockruntimeiface.BedrockRuntimeAPI
	modelID string
}

var _ Completer = (*BedrockCompleter)(nil)

// NewBedrockCompleter creates a completer from an AWS session.
func NewBedrockCompleter(sess *session.Session, modelID string) *BedrockCompleter {
	return NewBedrockCompleterWithClient(bedrockruntime.New(sess), modelID)
}

// NewBedrockCompleterWithClient creates a completer over an existing client.
func NewBedrockCompleterWithClient(client bedrockruntimeiface.BedrockRuntimeAPI, modelID string) *BedrockCompleter {
	return &BedrockCompleter{client: client, modelID: modelID}
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete invokes the model with a single user message.
func (b *BedrockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        bedrockMaxTokens,
		Temperature:      0,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode bedrock request: %w", err)
	}

	out, err := b.client.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String(bedrockContentType),
		Accept:      aws.String(bedrockContentType),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "" || c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return text.String(), nil
}

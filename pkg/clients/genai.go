package clients

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAI calls Gemini directly with a native response schema.
type GenAI struct {
	Client *genai.Client
	Model  string
}

// NewGenAI creates a Gemini API client for apiKey.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAI{Client: client, Model: model}, nil
}

func (c *GenAI) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.Schema != nil {
		cfg.ResponseSchema = toGenAISchema(req.Schema)
	}

	resp, err := c.Client.Models.GenerateContent(ctx, firstNonEmpty(req.Model, c.Model), []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}},
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("genai returned no candidates")
	}

	var raw strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		raw.WriteString(p.Text)
	}
	return raw.String(), nil
}

func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       toGenAISchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

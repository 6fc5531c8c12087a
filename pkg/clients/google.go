package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mikeboe/deep-research/pkg/config"
)

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
)

// GoogleAi builds a langchaingo Gemini model.
func GoogleAi(ctx context.Context, model, apiKey string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init google ai: %w", err)
	}
	return llm, nil
}

// OpenAI builds a langchaingo OpenAI-compatible model.
func OpenAI(model, apiKey, baseURL string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init openai: %w", err)
	}
	return llm, nil
}

// New returns the Completer selected by cfg.LLMProvider.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	model := cfg.DefaultModel()

	switch cfg.LLMProvider {
	case ProviderGoogle, "":
		llm, err := GoogleAi(ctx, model, cfg.GoogleApiKey)
		if err != nil {
			return nil, err
		}
		return NewLangChain(llm, model), nil
	case ProviderOpenAI:
		llm, err := OpenAI(model, cfg.OpenAIApiKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		return NewLangChain(llm, model), nil
	case ProviderGenAI:
		return NewGenAI(ctx, cfg.GoogleApiKey, model)
	default:
		return nil, fmt.Errorf("invalid llm provider: %s", cfg.LLMProvider)
	}
}

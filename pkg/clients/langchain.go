package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const defaultMaxRetries = 3

// LangChain adapts a langchaingo model to the Completer interface. The schema
// is described in the system prompt and the model runs in JSON mode.
type LangChain struct {
	LLM        llms.Model
	Model      string
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
}

// NewLangChain wraps llm, defaulting requests to model.
func NewLangChain(llm llms.Model, model string) *LangChain {
	return &LangChain{
		LLM:        llm,
		Model:      model,
		MaxRetries: defaultMaxRetries,
		Backoff:    time.Second,
		Logger:     slog.Default(),
	}
}

func (c *LangChain) Complete(ctx context.Context, req Request) (string, error) {
	system := req.SystemPrompt
	if req.Schema != nil {
		system += "\n\n# Response Format: \n\n" + req.Schema.Instructions()
	}

	var opts []llms.CallOption
	opts = append(opts, llms.WithJSONMode())
	if model := firstNonEmpty(req.Model, c.Model); model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	return c.generateWithRetry(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}, opts, func(content string) error {
		if !json.Valid([]byte(StripCodeFence(content))) {
			return fmt.Errorf("response is not valid json (content: %s)", content)
		}
		return nil
	})
}

// generateWithRetry attempts to generate content and validates it using the provided function.
// It retries up to MaxRetries times if the LLM fails or the validator returns an error.
func (c *LangChain) generateWithRetry(ctx context.Context, prompts []llms.MessageContent, opts []llms.CallOption, validator func(string) error) (string, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			c.logger().Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.Backoff * time.Duration(i)): // Linear backoff
			}
		}

		resp, err := c.LLM.GenerateContent(ctx, prompts, opts...)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}

		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func (c *LangChain) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

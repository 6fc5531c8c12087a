package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one structured completion call.
type Request struct {
	Prompt       string
	SystemPrompt string
	// Model overrides the completer's default model when set.
	Model  string
	Schema *Schema
}

// Completer returns the raw JSON text a model produced for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError marks a failure of the completion provider itself. Callers
// treat it as fatal for the whole run, unlike search failures.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Complete runs a structured completion and decodes the response into T.
func Complete[T any](ctx context.Context, c Completer, prompt, systemPrompt string, schema *Schema) (T, error) {
	var out T

	raw, err := c.Complete(ctx, Request{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Schema:       schema,
	})
	if err != nil {
		return out, &ProviderError{Op: "complete", Err: err}
	}

	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &out); err != nil {
		return out, &ProviderError{Op: "decode", Err: fmt.Errorf("json parse error: %w (content: %s)", err, raw)}
	}
	return out, nil
}

// StripCodeFence removes a surrounding ```json fence some models add in JSON mode.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

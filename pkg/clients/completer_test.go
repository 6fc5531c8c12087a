package clients

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"github.com/mikeboe/deep-research/pkg/config"
)

type fakeCompleter struct {
	response string
	err      error
	last     Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.last = req
	return f.response, f.err
}

type answer struct {
	ExactAnswer string `json:"exactAnswer"`
}

func TestCompleteDecodesResponse(t *testing.T) {
	schema := Object(map[string]*Schema{"exactAnswer": String("the answer")})
	fc := &fakeCompleter{response: "```json\n{\"exactAnswer\": \"42\"}\n```"}

	got, err := Complete[answer](context.Background(), fc, "question", "system", schema)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ExactAnswer)
	assert.Equal(t, "question", fc.last.Prompt)
	assert.Equal(t, "system", fc.last.SystemPrompt)
	assert.Same(t, schema, fc.last.Schema)
}

func TestCompleteWrapsFailuresAsProviderError(t *testing.T) {
	tests := []struct {
		name   string
		fc     *fakeCompleter
		wantOp string
	}{
		{"provider failure", &fakeCompleter{err: errors.New("quota exceeded")}, "complete"},
		{"invalid json", &fakeCompleter{response: "not json"}, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Complete[answer](context.Background(), tt.fc, "p", "s", nil)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantOp, pe.Op)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCodeFence(tt.in))
	}
}

func TestSchemaInstructions(t *testing.T) {
	schema := Object(map[string]*Schema{
		"learnings":         StringArray("List of learnings"),
		"followUpQuestions": StringArray("List of follow-up questions"),
	})

	assert.Equal(t, []string{"followUpQuestions", "learnings"}, schema.Required)
	text := schema.Instructions()
	assert.True(t, strings.HasPrefix(text, "Return the JSON object directly"))
	assert.Contains(t, text, `"learnings"`)
	assert.Contains(t, text, `"type": "array"`)
}

func TestToGenAISchema(t *testing.T) {
	schema := Object(map[string]*Schema{
		"queries": ArrayOf("queries", Object(map[string]*Schema{
			"query":        String("the query"),
			"researchGoal": String("the goal"),
		})),
	})

	got := toGenAISchema(schema)
	require.NotNil(t, got)
	assert.Equal(t, genai.TypeObject, got.Type)
	queries := got.Properties["queries"]
	require.NotNil(t, queries)
	assert.Equal(t, genai.TypeArray, queries.Type)
	assert.Equal(t, genai.TypeObject, queries.Items.Type)
	assert.Equal(t, genai.TypeString, queries.Items.Properties["query"].Type)
	assert.Equal(t, []string{"query", "researchGoal"}, queries.Items.Required)
}

type scriptedModel struct {
	responses []string
	errs      []error
	calls     int
	messages  []llms.MessageContent
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	i := m.calls
	m.calls++
	m.messages = messages
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.responses[i]}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainRetriesUntilValidJSON(t *testing.T) {
	model := &scriptedModel{
		responses: []string{"", "not json", `{"exactAnswer":"ok"}`},
		errs:      []error{errors.New("transient")},
	}
	c := NewLangChain(model, "test-model")
	c.Backoff = 0

	out, err := c.Complete(context.Background(), Request{
		Prompt:       "hi",
		SystemPrompt: "sys",
		Schema:       Object(map[string]*Schema{"exactAnswer": String("")}),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"exactAnswer":"ok"}`, out)
	assert.Equal(t, 3, model.calls)

	require.Len(t, model.messages, 2)
	system := model.messages[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "# Response Format:")
}

func TestLangChainGivesUpAfterMaxRetries(t *testing.T) {
	model := &scriptedModel{responses: []string{"nope", "nope", "nope"}}
	c := NewLangChain(model, "")
	c.Backoff = 0

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation failed after 3 retries")
	assert.Equal(t, 3, model.calls)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), &config.Config{LLMProvider: "carrier-pigeon"})
	require.Error(t, err)

	_, err = New(context.Background(), &config.Config{LLMProvider: ProviderOpenAI})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

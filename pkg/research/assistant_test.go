package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/trimmer"
)

var (
	_ QueryGenerator    = (*Assistant)(nil)
	_ LearningExtractor = (*Assistant)(nil)
)

type scriptedCompleter struct {
	response string
	err      error
	requests []clients.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req clients.Request) (string, error) {
	c.requests = append(c.requests, req)
	return c.response, c.err
}

func newTestAssistant(c clients.Completer) *Assistant {
	a := NewAssistant(c, trimmer.New(wordCounter{}, 1000))
	a.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestGenerateQueriesCapsCount(t *testing.T) {
	c := &scriptedCompleter{response: `{"queries":[
		{"query":"a","researchGoal":"ga"},
		{"query":"  ","researchGoal":"blank"},
		{"query":"b","researchGoal":"gb"},
		{"query":"c","researchGoal":"gc"}
	]}`}
	a := newTestAssistant(c)

	queries, err := a.GenerateQueries(context.Background(), "solid state batteries", 2, []string{"fact one", "fact two"})
	require.NoError(t, err)
	assert.Equal(t, []SearchQuery{{Query: "a", ResearchGoal: "ga"}, {Query: "b", ResearchGoal: "gb"}}, queries)

	require.Len(t, c.requests, 1)
	req := c.requests[0]
	assert.Contains(t, req.Prompt, "<prompt>solid state batteries</prompt>")
	assert.Contains(t, req.Prompt, "Return a maximum of 2 queries")
	assert.Contains(t, req.Prompt, "- fact one\n- fact two")
	assert.Contains(t, req.SystemPrompt, "Today is 2025-03-01T12:00:00Z")
	assert.Equal(t, []string{"queries"}, req.Schema.Required)
}

func TestExtractLearnings(t *testing.T) {
	c := &scriptedCompleter{response: "```json\n{\"learnings\":[\"l1\"],\"followUpQuestions\":[\"q1\",\"q2\"]}\n```"}
	a := newTestAssistant(c)

	got, err := a.ExtractLearnings(context.Background(), "query", []string{"page one", "page two"}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, got.Learnings)
	assert.Equal(t, []string{"q1", "q2"}, got.FollowUpQuestions)

	prompt := c.requests[0].Prompt
	assert.Contains(t, prompt, "<query>query</query>")
	assert.Contains(t, prompt, "<content>\npage one\n</content>\n<content>\npage two\n</content>")
	assert.Contains(t, c.requests[0].Schema.Properties["followUpQuestions"].Description, "max of 2")
}

func TestExtractLearningsTrimsPrompt(t *testing.T) {
	c := &scriptedCompleter{response: `{"learnings":[],"followUpQuestions":[]}`}
	a := NewAssistant(c, trimmer.New(wordCounter{}, 200))

	long := strings.Repeat("word ", 5000)
	_, err := a.ExtractLearnings(context.Background(), "q", []string{long}, 3, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, wordCounter{}.CountTokens(c.requests[0].Prompt), 200)
}

func TestWriteReportAppendsSources(t *testing.T) {
	c := &scriptedCompleter{response: `{"reportMarkdown":"# Report\n\nBody"}`}
	a := newTestAssistant(c)

	report, err := a.WriteReport(context.Background(), "prompt", []string{"l1", "l2"}, []string{"https://a", "https://b"})
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\nBody\n\n## Sources\n\n- https://a\n- https://b", report)
	assert.Contains(t, c.requests[0].Prompt, "<learning>\nl1\n</learning>\n<learning>\nl2\n</learning>")
}

func TestWriteAnswer(t *testing.T) {
	c := &scriptedCompleter{response: `{"exactAnswer":"42"}`}
	answer, err := newTestAssistant(c).WriteAnswer(context.Background(), "What is the answer?", []string{"l1"})
	require.NoError(t, err)
	assert.Equal(t, "42", answer)
	assert.Contains(t, c.requests[0].Prompt, "<prompt>What is the answer?</prompt>")
}

func TestGenerateFeedback(t *testing.T) {
	c := &scriptedCompleter{response: `{"questions":["q1","q2","q3","q4"]}`}
	questions, err := newTestAssistant(c).GenerateFeedback(context.Background(), "topic", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2", "q3"}, questions)
	assert.Contains(t, c.requests[0].Prompt, "Return a maximum of 3 questions")
}

func TestAssistantWrapsProviderErrors(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("rate limited")}
	_, err := newTestAssistant(c).GenerateQueries(context.Background(), "q", 2, nil)

	var perr *clients.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "complete", perr.Op)

	c = &scriptedCompleter{response: "not json"}
	_, err = newTestAssistant(c).WriteAnswer(context.Background(), "q", nil)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "decode", perr.Op)
}

func TestCombineFeedback(t *testing.T) {
	got := CombineFeedback("EV batteries", []string{"Which chemistry?", "Timeframe?"}, []string{"LFP", "2030"})
	assert.Equal(t, "Initial Query: EV batteries\nFollow-up Questions and Answers:\nQ: Which chemistry?\nA: LFP\nQ: Timeframe?\nA: 2030", got)
}

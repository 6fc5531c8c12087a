package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/trimmer"
)

// DefaultFeedbackQuestions caps the clarifying questions asked before a report.
const DefaultFeedbackQuestions = 3

// Assistant implements every LLM-backed research step on top of a Completer.
// It satisfies QueryGenerator and LearningExtractor.
type Assistant struct {
	Completer clients.Completer
	Trimmer   *trimmer.Trimmer
	Logger    *slog.Logger
	// Now stamps the system prompt; defaults to time.Now.
	Now func() time.Time
}

func NewAssistant(completer clients.Completer, trim *trimmer.Trimmer) *Assistant {
	return &Assistant{
		Completer: completer,
		Trimmer:   trim,
		Logger:    slog.Default(),
		Now:       time.Now,
	}
}

// WithLogger returns a copy of a that logs to logger.
func (a *Assistant) WithLogger(logger *slog.Logger) *Assistant {
	c := *a
	c.Logger = logger
	return &c
}

func (a *Assistant) systemPrompt() string {
	return SystemPrompt(a.Now())
}

func (a *Assistant) trim(prompt string) string {
	if a.Trimmer == nil {
		return prompt
	}
	return a.Trimmer.Trim(prompt, 0)
}

// GenerateQueries asks the model for search queries and keeps at most numQueries.
func (a *Assistant) GenerateQueries(ctx context.Context, query string, numQueries int, learnings []string) ([]SearchQuery, error) {
	type queriesResponse struct {
		Queries []SearchQuery `json:"queries"`
	}

	resp, err := clients.Complete[queriesResponse](ctx, a.Completer,
		queriesPrompt(query, numQueries, learnings), a.systemPrompt(), queriesSchema(numQueries))
	if err != nil {
		return nil, err
	}

	queries := make([]SearchQuery, 0, len(resp.Queries))
	for _, q := range resp.Queries {
		if strings.TrimSpace(q.Query) == "" {
			continue
		}
		queries = append(queries, q)
	}
	if numQueries >= 0 && len(queries) > numQueries {
		queries = queries[:numQueries]
	}

	a.Logger.Info("Generated queries", "count", len(queries))
	return queries, nil
}

// ExtractLearnings distills learnings and follow-up questions from contents.
func (a *Assistant) ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUpQuestions int) (*Learnings, error) {
	resp, err := clients.Complete[Learnings](ctx, a.Completer,
		a.trim(learningsPrompt(query, contents, numLearnings)), a.systemPrompt(),
		learningsSchema(numLearnings, numFollowUpQuestions))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// WriteReport composes the final markdown report and appends the sources.
func (a *Assistant) WriteReport(ctx context.Context, prompt string, learnings, visitedURLs []string) (string, error) {
	type reportResponse struct {
		ReportMarkdown string `json:"reportMarkdown"`
	}

	a.Logger.Info("Writing final report", "learnings", len(learnings), "sources", len(visitedURLs))
	resp, err := clients.Complete[reportResponse](ctx, a.Completer,
		a.trim(reportPrompt(prompt, learnings)), a.systemPrompt(), reportSchema)
	if err != nil {
		return "", err
	}
	return resp.ReportMarkdown + SourcesSection(visitedURLs), nil
}

// SourcesSection renders visited URLs as the report's trailing source list.
func SourcesSection(urls []string) string {
	items := make([]string, len(urls))
	for i, u := range urls {
		items[i] = "- " + u
	}
	return "\n\n## Sources\n\n" + strings.Join(items, "\n")
}

// WriteAnswer composes a short, exact answer.
func (a *Assistant) WriteAnswer(ctx context.Context, prompt string, learnings []string) (string, error) {
	type answerResponse struct {
		ExactAnswer string `json:"exactAnswer"`
	}

	a.Logger.Info("Writing final answer", "learnings", len(learnings))
	resp, err := clients.Complete[answerResponse](ctx, a.Completer,
		a.trim(answerPrompt(prompt, learnings)), a.systemPrompt(), answerSchema)
	if err != nil {
		return "", err
	}
	return resp.ExactAnswer, nil
}

// GenerateFeedback asks for at most numQuestions clarifying questions.
func (a *Assistant) GenerateFeedback(ctx context.Context, query string, numQuestions int) ([]string, error) {
	type feedbackResponse struct {
		Questions []string `json:"questions"`
	}

	if numQuestions <= 0 {
		numQuestions = DefaultFeedbackQuestions
	}
	resp, err := clients.Complete[feedbackResponse](ctx, a.Completer,
		feedbackPrompt(query, numQuestions), a.systemPrompt(), feedbackSchema)
	if err != nil {
		return nil, fmt.Errorf("feedback generation failed: %w", err)
	}

	questions := resp.Questions
	if len(questions) > numQuestions {
		questions = questions[:numQuestions]
	}
	return questions, nil
}

// CombineFeedback folds the clarifying questions and answers into the research prompt.
func CombineFeedback(initialQuery string, questions, answers []string) string {
	n := min(len(questions), len(answers))
	pairs := make([]string, n)
	for i := 0; i < n; i++ {
		pairs[i] = fmt.Sprintf("Q: %s\nA: %s", questions[i], answers[i])
	}
	return fmt.Sprintf("Initial Query: %s\nFollow-up Questions and Answers:\n%s", initialQuery, strings.Join(pairs, "\n"))
}

package research

import (
	"context"

	"github.com/mikeboe/deep-research/pkg/search"
)

// SearchQuery is one search to run, with the goal it is meant to advance.
type SearchQuery struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

// Learnings is what the extractor distilled from one query's contents.
type Learnings struct {
	Learnings         []string `json:"learnings"`
	FollowUpQuestions []string `json:"followUpQuestions"`
}

// Result holds the accumulated learnings and visited URLs of a research tree.
type Result struct {
	Learnings   []string `json:"learnings"`
	VisitedURLs []string `json:"visitedUrls"`
}

// Progress is a snapshot of a running research tree.
type Progress struct {
	CurrentDepth     int    `json:"currentDepth"`
	TotalDepth       int    `json:"totalDepth"`
	CurrentBreadth   int    `json:"currentBreadth"`
	TotalBreadth     int    `json:"totalBreadth"`
	TotalQueries     int    `json:"totalQueries"`
	CompletedQueries int    `json:"completedQueries"`
	CurrentQuery     string `json:"currentQuery,omitempty"`
}

// QueryGenerator turns a research prompt into at most numQueries search queries.
type QueryGenerator interface {
	GenerateQueries(ctx context.Context, query string, numQueries int, learnings []string) ([]SearchQuery, error)
}

// LearningExtractor distills learnings and follow-up questions from scraped contents.
type LearningExtractor interface {
	ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUpQuestions int) (*Learnings, error)
}

// ContentSink receives every batch of search results before extraction,
// e.g. to index the pages for later retrieval.
type ContentSink interface {
	Index(ctx context.Context, query string, results []search.Result) error
}

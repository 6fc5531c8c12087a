package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/trimmer"
)

const (
	DefaultSearchLimit   = 5
	DefaultSearchTimeout = 15 * time.Second
	// DefaultContentTokens is the token budget for each scraped page before extraction.
	DefaultContentTokens = 25000
	DefaultNumLearnings  = 3
)

// Engine explores a topic as a tree of search queries. Each level asks the
// QueryGenerator for up to breadth queries, runs them concurrently, and
// recurses on the follow-up questions with half the breadth and one less
// depth until depth is exhausted.
type Engine struct {
	Queries  QueryGenerator
	Learner  LearningExtractor
	Searcher search.Searcher
	Trimmer  *trimmer.Trimmer
	// Limiter bounds how many branches search and extract at once across the
	// whole tree. A nil Limiter means no bound.
	Limiter *semaphore.Weighted
	// Sink, when set, receives every batch of search results.
	Sink   ContentSink
	Logger *slog.Logger

	SearchLimit   int
	SearchTimeout time.Duration
	ContentTokens int
}

// NewEngine builds an Engine that runs at most concurrency searches at a time.
func NewEngine(queries QueryGenerator, learner LearningExtractor, searcher search.Searcher, trim *trimmer.Trimmer, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		Queries:       queries,
		Learner:       learner,
		Searcher:      searcher,
		Trimmer:       trim,
		Limiter:       semaphore.NewWeighted(int64(concurrency)),
		Logger:        slog.Default(),
		SearchLimit:   DefaultSearchLimit,
		SearchTimeout: DefaultSearchTimeout,
		ContentTokens: DefaultContentTokens,
	}
}

// WithLogger returns a copy of e that logs to logger. The copy shares e's
// Limiter, so concurrent runs still respect one global bound.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	c := *e
	c.Logger = logger
	return &c
}

// RunOption configures a single Research call.
type RunOption func(*runOptions)

type runOptions struct {
	onProgress func(Progress)
}

// WithProgress registers a callback invoked after every progress update.
// Calls are serialized.
func WithProgress(fn func(Progress)) RunOption {
	return func(o *runOptions) {
		o.onProgress = fn
	}
}

// Research explores query breadth-wide and depth-deep, starting from the
// given learnings and visited URLs, and returns everything accumulated by the
// tree. Search and extraction failures only prune the failing branch; a
// *clients.ProviderError aborts the run and is returned.
func (e *Engine) Research(ctx context.Context, query string, breadth, depth int, learnings, visitedURLs []string, opts ...RunOption) (*Result, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	tr := newTracker(breadth, depth, o.onProgress)
	e.Logger.Info("Starting research", "breadth", breadth, "depth", depth)

	res, err := e.research(ctx, tr, query, breadth, depth, learnings, visitedURLs)
	if err != nil {
		return nil, err
	}

	p := tr.snapshot()
	e.Logger.Info("Research complete",
		"learnings", len(res.Learnings),
		"urls", len(res.VisitedURLs),
		"completed_queries", p.CompletedQueries,
		"total_queries", p.TotalQueries)
	return res, nil
}

func (e *Engine) research(ctx context.Context, tr *tracker, query string, breadth, depth int, learnings, visitedURLs []string) (*Result, error) {
	e.Logger.Info("Generating search queries", "prompt", query, "breadth", breadth, "depth", depth)

	queries, err := e.Queries.GenerateQueries(ctx, query, breadth, learnings)
	if err != nil {
		return nil, fmt.Errorf("query generation failed: %w", err)
	}
	if len(queries) == 0 {
		e.Logger.Warn("No search queries generated, returning current state")
		return &Result{Learnings: learnings, VisitedURLs: visitedURLs}, nil
	}

	tr.update(func(p *Progress) {
		p.TotalQueries += len(queries)
		p.CurrentQuery = queries[0].Query
	})

	results := make([]*Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := e.branch(gctx, tr, q, breadth, depth, learnings, visitedURLs)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(results), nil
}

// branch runs one query and everything below it. Failures other than
// provider errors and cancellation yield the inherited accumulators.
func (e *Engine) branch(ctx context.Context, tr *tracker, q SearchQuery, breadth, depth int, learnings, visitedURLs []string) (*Result, error) {
	res, err := e.descend(ctx, tr, q, breadth, depth, learnings, visitedURLs)
	if err == nil {
		return res, nil
	}

	var perr *clients.ProviderError
	if errors.As(err, &perr) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if search.IsTimeout(err) {
		e.Logger.Warn("Timeout error running query", "query", q.Query, "error", err)
	} else {
		e.Logger.Error("Error running query", "query", q.Query, "error", err)
	}
	return &Result{Learnings: learnings, VisitedURLs: visitedURLs}, nil
}

func (e *Engine) descend(ctx context.Context, tr *tracker, q SearchQuery, breadth, depth int, learnings, visitedURLs []string) (*Result, error) {
	newBreadth := (breadth + 1) / 2
	newDepth := depth - 1

	urls, learned, err := e.searchAndLearn(ctx, q, newBreadth)
	if err != nil {
		tr.update(func(p *Progress) {
			p.CompletedQueries++
		})
		return nil, err
	}

	allLearnings := slices.Concat(learnings, learned.Learnings)
	allURLs := slices.Concat(visitedURLs, urls)

	if newDepth > 0 {
		e.Logger.Info("Researching deeper", "breadth", newBreadth, "depth", newDepth)
		tr.update(func(p *Progress) {
			p.CurrentDepth = newDepth
			p.CurrentBreadth = newBreadth
			p.CompletedQueries++
			p.CurrentQuery = q.Query
		})

		next := strings.TrimSpace(fmt.Sprintf("Previous research goal: %s\nFollow-up research directions: %s",
			q.ResearchGoal, strings.Join(learned.FollowUpQuestions, ", ")))
		return e.research(ctx, tr, next, newBreadth, newDepth, allLearnings, allURLs)
	}

	tr.update(func(p *Progress) {
		p.CurrentDepth = 0
		p.CompletedQueries++
		p.CurrentQuery = q.Query
	})
	return &Result{Learnings: allLearnings, VisitedURLs: allURLs}, nil
}

// searchAndLearn holds one limiter slot for the search and the extraction.
// The slot is released before the caller recurses so nested levels cannot
// starve on slots held by their ancestors.
func (e *Engine) searchAndLearn(ctx context.Context, q SearchQuery, numFollowUps int) ([]string, *Learnings, error) {
	if e.Limiter != nil {
		if err := e.Limiter.Acquire(ctx, 1); err != nil {
			return nil, nil, err
		}
		defer e.Limiter.Release(1)
	}

	e.Logger.Info("Searching", "query", q.Query)
	results, err := e.Searcher.Search(ctx, q.Query, search.Options{
		Limit:   e.SearchLimit,
		Formats: []string{"markdown"},
		Timeout: e.SearchTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search failed: %w", err)
	}

	if e.Sink != nil {
		if err := e.Sink.Index(ctx, q.Query, results); err != nil {
			e.Logger.Warn("Failed to store search results", "query", q.Query, "error", err)
		}
	}

	contents := search.Contents(results)
	if e.Trimmer != nil {
		for i, c := range contents {
			contents[i] = e.Trimmer.Trim(c, e.ContentTokens)
		}
	}
	e.Logger.Info("Processing search result", "query", q.Query, "contents", len(contents))

	learned, err := e.Learner.ExtractLearnings(ctx, q.Query, contents, DefaultNumLearnings, numFollowUps)
	if err != nil {
		return nil, nil, fmt.Errorf("learning extraction failed: %w", err)
	}
	if learned == nil {
		learned = &Learnings{}
	}
	e.Logger.Info("Extracted learnings", "query", q.Query, "learnings", len(learned.Learnings), "follow_ups", len(learned.FollowUpQuestions))

	return search.URLs(results), learned, nil
}

// merge unions the branch results, dropping duplicates and keeping the
// first-seen order.
func merge(results []*Result) *Result {
	out := &Result{Learnings: []string{}, VisitedURLs: []string{}}
	seenLearning := make(map[string]bool)
	seenURL := make(map[string]bool)

	for _, r := range results {
		if r == nil {
			continue
		}
		for _, l := range r.Learnings {
			if !seenLearning[l] {
				seenLearning[l] = true
				out.Learnings = append(out.Learnings, l)
			}
		}
		for _, u := range r.VisitedURLs {
			if !seenURL[u] {
				seenURL[u] = true
				out.VisitedURLs = append(out.VisitedURLs, u)
			}
		}
	}
	return out
}

// Package search defines the search/scrape provider contract used by the
// research engine and the providers that implement it.
package search

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrTimeout is returned (wrapped) when a provider gives up waiting on a search.
var ErrTimeout = errors.New("search: Timeout")

// Result is one search hit. Markdown holds the scraped page content and may be empty.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// Options controls a single search call.
type Options struct {
	Limit   int
	Formats []string
	Timeout time.Duration
}

// Searcher runs a web search and returns scraped results.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// IsTimeout reports whether err means the search ran out of time.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "Timeout")
}

// URLs returns the non-empty URLs of results, in order.
func URLs(results []Result) []string {
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// Contents returns the non-empty scraped contents of results, in order.
func Contents(results []Result) []string {
	contents := make([]string, 0, len(results))
	for _, r := range results {
		if r.Markdown != "" {
			contents = append(contents, r.Markdown)
		}
	}
	return contents
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTavilyURL = "https://api.tavily.com"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string) *Tavily {
	return NewTavilyWithClient(apiKey, defaultTavilyURL, &http.Client{Timeout: 30 * time.Second})
}

// NewTavilyWithClient constructs a Tavily search provider using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewTavilyWithClient(apiKey, baseURL string, client *http.Client) *Tavily {
	if baseURL == "" {
		baseURL = defaultTavilyURL
	}
	return &Tavily{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type tavilyRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Content    string `json:"content"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

// Search posts a query to Tavily, asking for raw page content so results carry
// the same text a scraper would return.
func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:             query,
		SearchDepth:       "basic",
		MaxResults:        opts.Limit,
		IncludeRawContent: len(opts.Formats) > 0,
	})
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("tavily: %w", ErrTimeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		results = append(results, Result{URL: r.URL, Title: r.Title, Markdown: content})
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

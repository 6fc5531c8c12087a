package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultFirecrawlURL = "https://api.firecrawl.dev"

// Firecrawl searches the web and scrapes each hit through the Firecrawl API.
type Firecrawl struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewFirecrawl constructs a Firecrawl search provider.
func NewFirecrawl(apiKey, baseURL string) *Firecrawl {
	return NewFirecrawlWithClient(apiKey, baseURL, &http.Client{Timeout: 60 * time.Second})
}

// NewFirecrawlWithClient constructs a Firecrawl search provider using the supplied HTTP client.
func NewFirecrawlWithClient(apiKey, baseURL string, client *http.Client) *Firecrawl {
	if baseURL == "" {
		baseURL = defaultFirecrawlURL
	}
	return &Firecrawl{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type firecrawlRequest struct {
	Query         string                  `json:"query"`
	Limit         int                     `json:"limit,omitempty"`
	Timeout       int64                   `json:"timeout,omitempty"`
	ScrapeOptions *firecrawlScrapeOptions `json:"scrapeOptions,omitempty"`
}

type firecrawlScrapeOptions struct {
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
}

// Search posts a query to Firecrawl's /v1/search endpoint.
func (f *Firecrawl) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(f.APIKey) == "" {
		return nil, errors.New("firecrawl: API key is missing")
	}

	reqBody := firecrawlRequest{
		Query:   query,
		Limit:   opts.Limit,
		Timeout: opts.Timeout.Milliseconds(),
	}
	if len(opts.Formats) > 0 {
		reqBody.ScrapeOptions = &firecrawlScrapeOptions{Formats: opts.Formats}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/v1/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("firecrawl: %w after %s", ErrTimeout, opts.Timeout)
		}
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
		return nil, fmt.Errorf("firecrawl: %w (status %d)", ErrTimeout, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Firecrawl returned non-200 status code", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("firecrawl http %d: %s", resp.StatusCode, string(body))
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal firecrawl response: %w", err)
	}
	if !parsed.Success && parsed.Error != "" {
		return nil, fmt.Errorf("firecrawl: %s", parsed.Error)
	}

	results := make([]Result, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		results = append(results, Result{URL: d.URL, Title: d.Title, Markdown: d.Markdown})
	}
	return results, nil
}

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultArxivURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches arXiv papers. It needs no API key; when a PDF scraper is
// configured the full paper text replaces the abstract.
type Arxiv struct {
	BaseURL string
	Scraper *PDFScraper
	client  *http.Client
}

// NewArxiv constructs an arXiv search provider.
func NewArxiv(scraper *PDFScraper) *Arxiv {
	return &Arxiv{BaseURL: defaultArxivURL, Scraper: scraper, client: &http.Client{Timeout: 30 * time.Second}}
}

// Search queries the arXiv API.
func (a *Arxiv) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	maxResults := opts.Limit
	if maxResults <= 0 {
		maxResults = 5
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0") // Start from the first result

	apiURL := a.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create API request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("arxiv: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		slog.Error("API returned non-200 status code", "status", resp.StatusCode, "body", string(bodyBytes))
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]Result, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		r := entryResult(entry)
		if a.Scraper != nil && pdfLink(entry) != "" {
			text, err := a.Scraper.Scrape(ctx, pdfLink(entry))
			if err != nil {
				slog.Warn("Failed to scrape, using summary", "url", pdfLink(entry), "error", err)
			} else {
				r.Markdown = text
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func entryResult(entry ArxivEntry) Result {
	title := strings.Join(strings.Fields(entry.Title), " ")
	link := pdfLink(entry)
	if link == "" {
		link = strings.TrimSpace(entry.ID)
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n", title)
	if entry.Published != "" {
		fmt.Fprintf(&md, "Published: %s\n", strings.TrimSpace(entry.Published))
	}
	fmt.Fprintf(&md, "\n%s\n", strings.TrimSpace(entry.Summary))

	return Result{URL: link, Title: title, Markdown: md.String()}
}

func pdfLink(entry ArxivEntry) string {
	for _, link := range entry.Link {
		if link.Type == "application/pdf" {
			return link.Href
		}
	}
	return ""
}

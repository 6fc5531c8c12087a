package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOCRURL = "https://api.mistral.ai/v1/ocr"

type PdfScrapeResponsePage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type OcrResponse struct {
	Pages []PdfScrapeResponsePage `json:"pages"`
}

// PDFScraper extracts the contents of a PDF file as markdown using the Mistral OCR API.
type PDFScraper struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewPDFScraper returns nil when apiKey is empty so callers can skip OCR.
func NewPDFScraper(apiKey string) *PDFScraper {
	if apiKey == "" {
		return nil
	}
	return &PDFScraper{APIKey: apiKey, BaseURL: defaultOCRURL, client: &http.Client{Timeout: 2 * time.Minute}}
}

// Scrape runs OCR over the PDF at url.
func (s *PDFScraper) Scrape(ctx context.Context, url string) (string, error) {
	url = strings.Replace(url, "http://", "https://", 1)

	reqBody := map[string]interface{}{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": url,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status: %s, body: %s", resp.Status, string(body))
	}

	var ocrResponse OcrResponse
	if err := json.Unmarshal(body, &ocrResponse); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "# URL: %s\n\n", url)
	for _, page := range ocrResponse.Pages {
		fmt.Fprintf(&out, "- Page %d -\n", page.Index)
		out.WriteString(page.Markdown + "\n\n")
	}
	return out.String(), nil
}

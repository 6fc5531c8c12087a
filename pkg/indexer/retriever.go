package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type SimilaritySearcher interface {
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error)
}

// Retriever answers semantic lookups over previously indexed pages.
type Retriever struct {
	Embedder QueryEmbedder
	Store    SimilaritySearcher
}

func NewRetriever(embedder QueryEmbedder, store SimilaritySearcher) *Retriever {
	return &Retriever{Embedder: embedder, Store: store}
}

// Search returns the topK chunks most similar to query. A non-empty source
// limits results to chunks of that page; filter is a metadata filter as
// understood by the vector store ($and, $or, $not over source, title and
// query keys).
func (r *Retriever) Search(ctx context.Context, query string, topK int, source string, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	queryEmbedding, err := r.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := r.Store.SimilaritySearch(ctx, queryEmbedding, topK, withSource(filter, source))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return results, nil
}

func withSource(filter map[string]any, source string) map[string]any {
	switch {
	case source == "":
		if len(filter) == 0 {
			return nil
		}
		return filter
	case len(filter) == 0:
		return map[string]any{"source": source}
	default:
		return map[string]any{"$and": []any{filter, map[string]any{"source": source}}}
	}
}

// Format renders results as plain text blocks for tool output.
func Format(results []vectorstore.SimilaritySearchResult) string {
	formatted := make([]string, 0, len(results))
	for _, result := range results {
		source := result.Document.Source()
		if source == "" {
			source = "unknown"
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "[Source]: %s\n[Score]: %.3f\n[Content]: %s", source, result.Score, result.Document.Content)

		keys := make([]string, 0, len(result.Document.Metadata))
		for k := range result.Document.Metadata {
			if k != "source" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n[%s]: %v", k, result.Document.Metadata[k])
		}

		formatted = append(formatted, sb.String())
	}
	return strings.Join(formatted, "\n\n")
}

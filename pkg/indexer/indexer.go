// Package indexer chunks the pages a research run retrieves, embeds the
// chunks and stores them in a vector collection for later retrieval.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type DocumentStore interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	HasSource(ctx context.Context, source string) (bool, error)
}

// Indexer stores search results as embedded chunks. Pages already present in
// the collection are skipped.
type Indexer struct {
	Splitter textsplitter.TextSplitter
	Embedder Embedder
	Store    DocumentStore
	Logger   *slog.Logger
}

func New(splitter textsplitter.TextSplitter, embedder Embedder, store DocumentStore) *Indexer {
	return &Indexer{
		Splitter: splitter,
		Embedder: embedder,
		Store:    store,
		Logger:   slog.Default(),
	}
}

// Index chunks, embeds and stores every result that has content. It keeps
// going past a failing page and returns the joined errors.
func (ix *Indexer) Index(ctx context.Context, query string, results []search.Result) error {
	var errs []error
	for _, r := range results {
		if r.URL == "" || r.Markdown == "" {
			continue
		}
		if err := ix.indexPage(ctx, query, r); err != nil {
			ix.Logger.Error("Failed to index page", "url", r.URL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.URL, err))
		}
	}
	return errors.Join(errs...)
}

func (ix *Indexer) indexPage(ctx context.Context, query string, r search.Result) error {
	exists, err := ix.Store.HasSource(ctx, r.URL)
	if err != nil {
		return err
	}
	if exists {
		ix.Logger.Debug("Page already indexed", "url", r.URL)
		return nil
	}

	chunks, err := textsplitter.CreateDocuments(ix.Splitter, []string{r.Markdown}, []map[string]any{{
		"source": r.URL,
		"title":  r.Title,
		"query":  query,
	}})
	if err != nil {
		return fmt.Errorf("failed to split text: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.PageContent
	}
	vectors, err := ix.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			Content:   c.PageContent,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}
	if err := ix.Store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents to vector store: %w", err)
	}

	ix.Logger.Info("Indexed page", "url", r.URL, "chunks", len(docs))
	return nil
}

package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

var _ research.ContentSink = (*Indexer)(nil)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type memoryStore struct {
	docs    []vectorstore.Document
	filters []map[string]any
}

func (m *memoryStore) AddDocuments(_ context.Context, docs []vectorstore.Document) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memoryStore) HasSource(_ context.Context, source string) (bool, error) {
	for _, d := range m.docs {
		if d.Source() == source {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) SimilaritySearch(_ context.Context, _ []float32, topK int, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error) {
	m.filters = append(m.filters, filter)
	var out []vectorstore.SimilaritySearchResult
	for _, d := range m.docs {
		if src, ok := filter["source"]; ok && d.Source() != src {
			continue
		}
		out = append(out, vectorstore.SimilaritySearchResult{Document: d, Score: 0.9})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func newTestIndexer(t *testing.T, embedder Embedder, store DocumentStore) *Indexer {
	t.Helper()
	s, err := splitter.NewRecursiveCharacter(40, 0)
	require.NoError(t, err)
	return New(s, embedder, store)
}

func TestIndexChunksEmbedsAndStores(t *testing.T) {
	store := &memoryStore{}
	embedder := &fakeEmbedder{}
	ix := newTestIndexer(t, embedder, store)

	page := strings.Repeat("Solid state batteries use a solid electrolyte.\n\n", 3)
	err := ix.Index(context.Background(), "solid state batteries", []search.Result{
		{URL: "https://a.example", Title: "A", Markdown: page},
		{URL: "https://empty.example"},
		{Markdown: "no url"},
	})
	require.NoError(t, err)

	require.Greater(t, len(store.docs), 1)
	assert.Equal(t, 1, embedder.calls)
	for _, d := range store.docs {
		assert.Equal(t, "https://a.example", d.Source())
		assert.Equal(t, "A", d.Metadata["title"])
		assert.Equal(t, "solid state batteries", d.Metadata["query"])
		assert.LessOrEqual(t, len([]rune(d.Content)), 40)
		assert.Equal(t, []float32{float32(len(d.Content))}, d.Embedding)
	}
}

func TestIndexSkipsKnownSources(t *testing.T) {
	store := &memoryStore{docs: []vectorstore.Document{{Content: "old", Metadata: map[string]any{"source": "https://a.example"}}}}
	embedder := &fakeEmbedder{}
	ix := newTestIndexer(t, embedder, store)

	err := ix.Index(context.Background(), "q", []search.Result{{URL: "https://a.example", Markdown: "new content"}})
	require.NoError(t, err)
	assert.Len(t, store.docs, 1)
	assert.Zero(t, embedder.calls)
}

func TestIndexJoinsPageErrors(t *testing.T) {
	ix := newTestIndexer(t, &fakeEmbedder{err: errors.New("quota")}, &memoryStore{})

	err := ix.Index(context.Background(), "q", []search.Result{
		{URL: "https://a.example", Markdown: "alpha"},
		{URL: "https://b.example", Markdown: "beta"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://a.example")
	assert.Contains(t, err.Error(), "https://b.example")
}

func TestRetrieverSearch(t *testing.T) {
	store := &memoryStore{docs: []vectorstore.Document{
		{Content: "alpha", Metadata: map[string]any{"source": "https://a.example", "title": "A"}},
		{Content: "beta", Metadata: map[string]any{"source": "https://b.example"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, store)

	results, err := r.Search(context.Background(), "q", 0, "https://b.example", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"source": "https://b.example"}, store.filters[0])

	results, err = r.Search(context.Background(), "q", 5, "", nil)
	require.NoError(t, err)
	assert.Nil(t, store.filters[1])

	text := Format(results)
	assert.Contains(t, text, "[Source]: https://a.example\n[Score]: 0.900\n[Content]: alpha\n[title]: A")
	assert.Contains(t, text, "[Content]: beta")
}

func TestWithSource(t *testing.T) {
	byQuery := map[string]any{"query": "fusion"}

	assert.Nil(t, withSource(nil, ""))
	assert.Equal(t, byQuery, withSource(byQuery, ""))
	assert.Equal(t, map[string]any{"source": "https://a.example"}, withSource(map[string]any{}, "https://a.example"))
	assert.Equal(t,
		map[string]any{"$and": []any{byQuery, map[string]any{"source": "https://a.example"}}},
		withSource(byQuery, "https://a.example"))
}

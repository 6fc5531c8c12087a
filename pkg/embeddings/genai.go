package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// maxBatch is the number of texts the Gemini embedding endpoint accepts per call.
const maxBatch = 100

// GenAIEmbedder embeds page chunks with a Gemini embedding model.
type GenAIEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGenAIEmbedder creates an embedder producing vectors of the given dimension.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GenAIEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GenAIEmbedder{
		client:    client,
		model:     model,
		dimension: int32(dimension),
	}, nil
}

// Dimension is the length of every vector the embedder returns.
func (e *GenAIEmbedder) Dimension() int {
	return int(e.dimension)
}

// EmbedText embeds a single text, e.g. a search query.
func (e *GenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in batches, preserving order.
func (e *GenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		res, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &e.dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed texts: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(res.Embeddings), end-start)
		}

		for _, emb := range res.Embeddings {
			if len(emb.Values) == 0 {
				return nil, fmt.Errorf("empty embedding returned")
			}
			result = append(result, emb.Values)
		}
	}

	return result, nil
}

package server

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

type fakeSources struct {
	query  string
	topK   int
	source string
	filter map[string]any
}

func (f *fakeSources) Search(_ context.Context, query string, topK int, source string, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error) {
	f.query, f.topK, f.source, f.filter = query, topK, source, filter
	return []vectorstore.SimilaritySearchResult{{
		Document: vectorstore.Document{Content: "chunk", Metadata: map[string]interface{}{"source": "https://a.example"}},
		Score:    0.9,
	}}, nil
}

func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPDeepResearch(t *testing.T) {
	svc, _ := newTestService(t, oneQueryGenerator{}, staticCompleter{response: `{"exactAnswer":"42"}`})
	cs := connect(t, NewMCPServer(svc, nil))

	tools, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "deep_research", tools.Tools[0].Name)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "deep_research",
		Arguments: map[string]any{"topic": "meaning", "mode": "answer", "breadth": 1, "depth": 1},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "42", toolText(t, res))
}

func TestMCPSearchSources(t *testing.T) {
	svc, _ := newTestService(t, oneQueryGenerator{}, staticCompleter{})
	sources := &fakeSources{}
	cs := connect(t, NewMCPServer(svc, sources))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_sources",
		Arguments: map[string]any{
			"query":  "plasma",
			"topK":   3,
			"source": "https://a.example",
			"filter": map[string]any{"$not": map[string]any{"query": "tokamak"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, toolText(t, res), "[Source]: https://a.example")
	assert.Equal(t, "plasma", sources.query)
	assert.Equal(t, 3, sources.topK)
	assert.Equal(t, "https://a.example", sources.source)
	assert.Equal(t, map[string]any{"$not": map[string]any{"query": "tokamak"}}, sources.filter)

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_sources",
		Arguments: map[string]any{"query": " "},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

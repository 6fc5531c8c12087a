package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/deep-research/pkg/indexer"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// SourceSearcher looks up indexed page chunks; *indexer.Retriever implements it.
type SourceSearcher interface {
	Search(ctx context.Context, query string, topK int, source string, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error)
}

type DeepResearchArgs struct {
	Topic   string `json:"topic" jsonschema:"the question or topic to research"`
	Breadth int    `json:"breadth,omitempty" jsonschema:"number of search queries per level, default 4"`
	Depth   int    `json:"depth,omitempty" jsonschema:"number of recursion levels, default 2"`
	Mode    string `json:"mode,omitempty" jsonschema:"report for a markdown report or answer for a short exact answer"`
}

type SearchSourcesArgs struct {
	Query  string         `json:"query" jsonschema:"the search query"`
	TopK   int            `json:"topK,omitempty" jsonschema:"number of results to return, default 5"`
	Source string         `json:"source,omitempty" jsonschema:"only return chunks of this source URL"`
	Filter map[string]any `json:"filter,omitempty" jsonschema:"metadata filter on source, title or query keys, combinable with $and, $or and $not"`
}

// NewMCPServer exposes research runs and, when sources is not nil, the
// indexed page store as MCP tools.
func NewMCPServer(svc *Service, sources SourceSearcher) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "deep-research-mcp", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deep_research",
		Description: "Research a topic by recursively searching the web and return a markdown report or a short answer.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args DeepResearchArgs) (*mcp.CallToolResult, any, error) {
		out, err := svc.RunResearch(ctx, CreateJobRequest(args), nil)
		if err != nil {
			return nil, nil, err
		}
		return textResult(out.Output), nil, nil
	})

	if sources != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "search_sources",
			Description: "Search pages collected during earlier research using semantic search.",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, args SearchSourcesArgs) (*mcp.CallToolResult, any, error) {
			if strings.TrimSpace(args.Query) == "" {
				return nil, nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
			}
			results, err := sources.Search(ctx, args.Query, args.TopK, args.Source, args.Filter)
			if err != nil {
				return nil, nil, err
			}
			if len(results) == 0 {
				return textResult("No results found."), nil, nil
			}
			return textResult(indexer.Format(results)), nil, nil
		})
	}

	return server
}

// NewMCPHandler serves server over the streamable HTTP transport.
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

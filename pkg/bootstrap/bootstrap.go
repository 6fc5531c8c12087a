// Package bootstrap wires the research components from a config.Config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/indexer"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/trimmer"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// Search provider names accepted in SEARCH_PROVIDER.
const (
	SearchFirecrawl = "firecrawl"
	SearchTavily    = "tavily"
	SearchArxiv     = "arxiv"
)

// App holds the wired components. DB and Retriever are nil unless content
// indexing is enabled or a database was supplied.
type App struct {
	Config    *config.Config
	Engine    *research.Engine
	Assistant *research.Assistant
	DB        *database.PostgresDB
	Retriever *indexer.Retriever

	closers []func()
}

type Option func(*options)

type options struct {
	db     *database.PostgresDB
	logger *slog.Logger
}

// WithDatabase reuses an open database instead of connecting to DATABASE_URL.
func WithDatabase(db *database.PostgresDB) Option {
	return func(o *options) { o.db = db }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds the completer, search provider, trimmer, engine and, when
// INDEX_CONTENT is set, the indexer.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, DB: o.db}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	completer, err := clients.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init completion provider: %w", err)
	}

	counter, err := trimmer.NewTiktokenCounter(cfg.TokenEncoding)
	if err != nil {
		return nil, err
	}
	trim := trimmer.New(counter, cfg.ContextSize).WithLogger(o.logger)

	searcher, closeSearcher, err := NewSearcher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeSearcher)

	app.Assistant = research.NewAssistant(completer, trim)
	app.Assistant.Logger = o.logger

	app.Engine = research.NewEngine(app.Assistant, app.Assistant, searcher, trim, cfg.Concurrency)
	app.Engine.Logger = o.logger

	if cfg.IndexContent {
		if err := app.wireIndexer(ctx, o.logger); err != nil {
			return nil, err
		}
	}

	o.logger.Info("Research engine ready",
		"llm_provider", cfg.LLMProvider,
		"model", cfg.DefaultModel(),
		"search_provider", cfg.SearchProvider,
		"concurrency", cfg.Concurrency,
		"index_content", cfg.IndexContent)

	ok = true
	return app, nil
}

func (a *App) wireIndexer(ctx context.Context, logger *slog.Logger) error {
	cfg := a.Config

	if a.DB == nil {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
	}
	if err := a.DB.InitCollection(ctx, cfg.CollectionName, cfg.EmbeddingDim); err != nil {
		return err
	}

	store, err := vectorstore.NewPGVectorStore(a.DB.Pool, cfg.CollectionName)
	if err != nil {
		return err
	}
	embedder, err := embeddings.NewGenAIEmbedder(ctx, cfg.GoogleApiKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("failed to init embedder: %w", err)
	}
	chunker, err := splitter.NewRecursiveCharacter(cfg.ChunkSize, cfg.ChunkOverlap, splitter.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("invalid chunking settings: %w", err)
	}

	ix := indexer.New(chunker, embedder, store)
	ix.Logger = logger
	a.Engine.Sink = ix
	a.Retriever = indexer.NewRetriever(embedder, store)
	return nil
}

// NewSearcher returns the configured search provider behind a result cache.
// The returned func releases the cache connection.
func NewSearcher(ctx context.Context, cfg *config.Config) (search.Searcher, func(), error) {
	var provider search.Searcher
	switch cfg.SearchProvider {
	case SearchFirecrawl, "":
		provider = search.NewFirecrawl(cfg.FirecrawlApiKey, cfg.FirecrawlBaseURL)
	case SearchTavily:
		provider = search.NewTavily(cfg.TavilyApiKey)
	case SearchArxiv:
		provider = search.NewArxiv(search.NewPDFScraper(cfg.MistralApiKey))
	default:
		return nil, nil, fmt.Errorf("invalid search provider: %s", cfg.SearchProvider)
	}

	if cfg.RedisURL == "" {
		return search.NewCached(provider, search.NewMemoryCache(), cfg.SearchCacheTTL), func() {}, nil
	}

	cache, err := search.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return search.NewCached(provider, cache, cfg.SearchCacheTTL), func() { cache.Close() }, nil
}

// Close releases every connection the App opened itself.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/search"
)

func TestNewSearcherSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		check    func(t *testing.T, next search.Searcher)
	}{
		{"", func(t *testing.T, next search.Searcher) { assert.IsType(t, &search.Firecrawl{}, next) }},
		{SearchFirecrawl, func(t *testing.T, next search.Searcher) {
			fc, ok := next.(*search.Firecrawl)
			require.True(t, ok)
			assert.Equal(t, "https://self-hosted.example", fc.BaseURL)
		}},
		{SearchTavily, func(t *testing.T, next search.Searcher) { assert.IsType(t, &search.Tavily{}, next) }},
		{SearchArxiv, func(t *testing.T, next search.Searcher) {
			ax, ok := next.(*search.Arxiv)
			require.True(t, ok)
			assert.Nil(t, ax.Scraper)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &config.Config{
				SearchProvider:   tt.provider,
				FirecrawlBaseURL: "https://self-hosted.example/",
				SearchCacheTTL:   time.Hour,
			}
			s, closeFn, err := NewSearcher(context.Background(), cfg)
			require.NoError(t, err)
			defer closeFn()

			cached, ok := s.(*search.Cached)
			require.True(t, ok)
			assert.Equal(t, time.Hour, cached.TTL)
			assert.IsType(t, &search.MemoryCache{}, cached.Cache)
			tt.check(t, cached.Next)
		})
	}
}

func TestNewSearcherRejectsUnknownProvider(t *testing.T) {
	_, _, err := NewSearcher(context.Background(), &config.Config{SearchProvider: "bing"})
	assert.ErrorContains(t, err, "invalid search provider")
}

func TestNewSearcherRejectsBadRedisURL(t *testing.T) {
	_, _, err := NewSearcher(context.Background(), &config.Config{RedisURL: "not a url"})
	assert.Error(t, err)
}

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "GOOGLE_API_KEY", "GEMINI_API_KEY", "MODEL", "SEARCH_PROVIDER",
		"FIRECRAWL_CONCURRENCY", "CONTEXT_SIZE", "TOKEN_ENCODING", "SEARCH_CACHE_TTL",
		"INDEX_CONTENT", "CHUNK_SIZE", "CHUNK_OVERLAP", "PORT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.LLMProvider != "google" {
		t.Errorf("LLMProvider = %q, want google", cfg.LLMProvider)
	}
	if cfg.SearchProvider != "firecrawl" {
		t.Errorf("SearchProvider = %q, want firecrawl", cfg.SearchProvider)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
	}
	if cfg.ContextSize != 128000 {
		t.Errorf("ContextSize = %d, want 128000", cfg.ContextSize)
	}
	if cfg.TokenEncoding != "o200k_base" {
		t.Errorf("TokenEncoding = %q, want o200k_base", cfg.TokenEncoding)
	}
	if cfg.SearchCacheTTL != 24*time.Hour {
		t.Errorf("SearchCacheTTL = %v, want 24h", cfg.SearchCacheTTL)
	}
	if cfg.IndexContent {
		t.Error("IndexContent should default to false")
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Port)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("FIRECRAWL_CONCURRENCY", "4")
	t.Setenv("CONTEXT_SIZE", "not-a-number")
	t.Setenv("SEARCH_CACHE_TTL", "5m")
	t.Setenv("INDEX_CONTENT", "true")

	cfg := Load()

	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want openai", cfg.LLMProvider)
	}
	if cfg.GoogleApiKey != "gemini-key" {
		t.Errorf("GoogleApiKey = %q, want fallback to GEMINI_API_KEY", cfg.GoogleApiKey)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.ContextSize != 128000 {
		t.Errorf("ContextSize = %d, want default on parse error", cfg.ContextSize)
	}
	if cfg.SearchCacheTTL != 5*time.Minute {
		t.Errorf("SearchCacheTTL = %v, want 5m", cfg.SearchCacheTTL)
	}
	if !cfg.IndexContent {
		t.Error("IndexContent should be true")
	}
}

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit model", Config{LLMProvider: "openai", Model: "gpt-4o"}, "gpt-4o"},
		{"openai default", Config{LLMProvider: "openai"}, "gpt-4.1-nano"},
		{"google default", Config{LLMProvider: "google"}, "gemini-3-flash-preview"},
		{"genai default", Config{LLMProvider: "genai"}, "gemini-3-flash-preview"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DefaultModel(); got != tt.want {
				t.Errorf("DefaultModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

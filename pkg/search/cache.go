package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by a Cache when the key is absent or expired.
var ErrCacheMiss = errors.New("search: cache miss")

// Cache stores serialized search results.
type Cache interface {
	Get(ctx context.Context, key string) ([]Result, error)
	Set(ctx context.Context, key string, results []Result, ttl time.Duration) error
}

// Cached wraps a Searcher so identical queries hit the provider at most once.
// Concurrent callers for the same key share one in-flight request; failed
// searches are never cached.
type Cached struct {
	Next   Searcher
	Cache  Cache
	TTL    time.Duration
	Logger *slog.Logger

	group singleflight.Group
}

// NewCached wraps next with cache. A nil cache falls back to an in-memory one.
func NewCached(next Searcher, cache Cache, ttl time.Duration) *Cached {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Cached{Next: next, Cache: cache, TTL: ttl, Logger: slog.Default()}
}

func (c *Cached) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	key := cacheKey(query, opts)

	if results, err := c.Cache.Get(ctx, key); err == nil {
		c.Logger.Debug("Search cache hit", "query", query)
		return results, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.Logger.Warn("Search cache read failed", "query", query, "error", err)
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		results, err := c.Next.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		if err := c.Cache.Set(ctx, key, results, c.TTL); err != nil {
			c.Logger.Warn("Search cache write failed", "query", query, "error", err)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.Logger.Debug("Shared in-flight search", "query", query)
	}
	return v.([]Result), nil
}

func cacheKey(query string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s", query, opts.Limit, strings.Join(opts.Formats, ","))
	return "search:" + hex.EncodeToString(h.Sum(nil))
}

type memoryEntry struct {
	results []Result
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}
	return e.results, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, results []Result, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{results: results}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// RedisCache shares search results between processes.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis instance at url (redis://...).
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]Result, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode cached results: %w", err)
	}
	return results, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, results []Result, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

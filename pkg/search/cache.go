package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 6 * time.Hour

// Cached wraps a Provider with a redis result cache. Cache failures never
// fail a search; they are logged and the provider is asked directly.
type Cached struct {
	provider Provider
	client   *redis.Client
	ttl      time.Duration
	prefix   string
}

// NewCached creates a cache in front of provider. A zero ttl means six hours.
func NewCached(provider Provider, client *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{provider: provider, client: client, ttl: ttl, prefix: "search:"}
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (c *Cached) Name() string { return c.provider.Name() }

func (c *Cached) key(query string, maxResults int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%s", maxResults, strings.ToLower(strings.TrimSpace(query)))))
	return c.prefix + c.provider.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := c.key(query, maxResults)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var results []Result
		if err := json.Unmarshal(data, &results); err == nil {
			logger.Debug("[Search] Cache hit", "provider", c.provider.Name(), "query", query)
			return results, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.Warn("[Search] Cache read failed", "err", err)
	}

	results, err := c.provider.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}

	if data, err := json.Marshal(results); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Warn("[Search] Cache write failed", "err", err)
		}
	}
	return results, nil
}

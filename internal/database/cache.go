package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// Cache implementation
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	RetrievalResultsKey = "retrieval:results:%s"
	PopularQueriesKey   = "popular:queries"
	SystemHealthKey     = "system:health"
)

// CachedChunk is the cached form of one scored search hit.
type CachedChunk struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievalKey is the cache key for a top-k search of query.
func RetrievalKey(query string, k int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return fmt.Sprintf(RetrievalResultsKey, utils.MD5Hash(fmt.Sprintf("%s|%d", normalized, k)))
}

// CacheRetrieval stores the results of a top-k search.
func (c *Cache) CacheRetrieval(ctx context.Context, query string, k int, chunks []CachedChunk, expiration time.Duration) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal retrieval results: %w", err)
	}
	return c.client.Set(ctx, RetrievalKey(query, k), data, expiration).Err()
}

// GetCachedRetrieval returns cached search results or ErrCacheMiss.
func (c *Cache) GetCachedRetrieval(ctx context.Context, query string, k int) ([]CachedChunk, error) {
	var chunks []CachedChunk
	if err := c.getJSON(ctx, RetrievalKey(query, k), &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// InvalidateAllRetrieval drops every cached search, e.g. after re-seeding.
func (c *Cache) InvalidateAllRetrieval(ctx context.Context) (int, error) {
	pattern := fmt.Sprintf(RetrievalResultsKey, "*")
	removed := 0

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

// CachePopularQueries caches popular queries list
func (c *Cache) CachePopularQueries(ctx context.Context, queries []models.PopularQuery, expiration time.Duration) error {
	data, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("failed to marshal popular queries: %w", err)
	}
	return c.client.Set(ctx, PopularQueriesKey, data, expiration).Err()
}

// GetCachedPopularQueries retrieves cached popular queries
func (c *Cache) GetCachedPopularQueries(ctx context.Context) ([]models.PopularQuery, error) {
	var queries []models.PopularQuery
	if err := c.getJSON(ctx, PopularQueriesKey, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health map[string]string, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}
	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context) (map[string]string, error) {
	var health map[string]string
	if err := c.getJSON(ctx, SystemHealthKey, &health); err != nil {
		return nil, err
	}
	return health, nil
}

// GetCacheStats reports a few counters from INFO stats.
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]string, error) {
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"keyspace_hits":   extractStat(info, "keyspace_hits"),
		"keyspace_misses": extractStat(info, "keyspace_misses"),
	}, nil
}

func (c *Cache) getJSON(ctx context.Context, key string, out interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func extractStat(info, key string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}

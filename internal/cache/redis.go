package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEmbeddingCache caches query embedding vectors in Redis so replicas of
// the query service share one cache. Vectors are stored as JSON with a TTL.
// Cache errors are logged and treated as misses: Redis being down never
// fails a query.
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEmbeddingCache connects to Redis at addr and verifies the
// connection with a ping.
func NewRedisEmbeddingCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisEmbeddingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache.NewRedisEmbeddingCache: ping %s: %w", addr, err)
	}
	return &RedisEmbeddingCache{client: client, ttl: ttl}, nil
}

// Get returns a cached embedding vector if present.
func (c *RedisEmbeddingCache) Get(ctx context.Context, queryHash string) ([]float32, bool) {
	data, err := c.client.Get(ctx, queryHash).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("[EMBED-CACHE] redis get failed", "query_hash", queryHash, "error", err)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		slog.Warn("[EMBED-CACHE] redis entry corrupt, dropping", "query_hash", queryHash, "error", err)
		c.client.Del(ctx, queryHash)
		return nil, false
	}

	slog.Info("[EMBED-CACHE] redis hit", "query_hash", queryHash, "vec_dim", len(vec))
	return vec, true
}

// Set stores an embedding vector with the configured TTL.
func (c *RedisEmbeddingCache) Set(ctx context.Context, queryHash string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		slog.Warn("[EMBED-CACHE] redis marshal failed", "query_hash", queryHash, "error", err)
		return
	}
	if err := c.client.Set(ctx, queryHash, data, c.ttl).Err(); err != nil {
		slog.Warn("[EMBED-CACHE] redis set failed", "query_hash", queryHash, "error", err)
		return
	}
	slog.Info("[EMBED-CACHE] redis set",
		"query_hash", queryHash,
		"vec_dim", len(vec),
		"ttl_s", int(c.ttl.Seconds()),
	)
}

// Close releases the Redis connection.
func (c *RedisEmbeddingCache) Close() error {
	return c.client.Close()
}

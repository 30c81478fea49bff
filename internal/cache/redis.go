package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vinq:cache:"

// Redis is a Cache shared between processes. Keys are hashes of the
// normalized query; ttl of 0 keeps entries until evicted.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, query string) (string, bool) {
	val, err := r.client.Get(ctx, Key(query)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("cache get failed", "error", err)
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, query, response string) {
	if err := r.client.Set(ctx, Key(query), response, r.ttl).Err(); err != nil {
		slog.Warn("cache set failed", "error", err)
	}
}

// Key returns the Redis key for a query.
func Key(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

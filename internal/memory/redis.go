package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "vinq:session:"

// RedisStore keeps each session as a Redis list of JSON messages, trimmed to
// the window on every append. The key TTL is refreshed on every access, so
// idle sessions expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	window int
}

// NewRedisStore creates a Redis-backed Store. Non-positive ttl and window
// fall back to 60 minutes and 10 messages.
func NewRedisStore(client *redis.Client, ttl time.Duration, window int) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisStore{client: client, ttl: ttl, window: window}
}

func (s *RedisStore) Add(ctx context.Context, sessionID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	val, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, val)
		pipe.LTrim(ctx, key, -int64(s.window), -1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string, max int) ([]Message, error) {
	if max <= 0 {
		max = s.window
	}
	key := s.key(sessionID)

	vals, err := s.client.LRange(ctx, key, int64(-max), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if len(vals) == 0 {
		return []Message{}, nil
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("refreshing session ttl: %w", err)
	}

	out := make([]Message, 0, len(vals))
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the keys written by RedisStore.
const DefaultRedisPrefix = "tts-proxy"

// RedisStore implements core.ObjectStore on Redis. Expiry is delegated to
// Redis through SET ... EX.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisTTL sets the expiry of stored entries. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		prefix: DefaultRedisPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Download implements core.ObjectStore.
func (s *RedisStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: '%s'", core.ErrObjectNotFound, key)
		}

		return nil, fmt.Errorf("redis get failed for '%s': %w", key, err)
	}

	return data, nil
}

// Upload implements core.ObjectStore.
func (s *RedisStore) Upload(ctx context.Context, key string, data []byte) error {
	err := s.client.Set(ctx, s.redisKey(key), data, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set failed for '%s': %w", key, err)
	}

	return nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":audio:" + key
}

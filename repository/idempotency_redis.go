package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore is the Redis-backed IdempotencyStore. Expiry is
// delegated to Redis key TTLs, so Get never has to inspect timestamps.
type RedisIdempotencyStore struct {
	rc     *redis.Client
	prefix string
	ttl    *time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store
func NewRedisIdempotencyStore(rc *redis.Client, prefix string, ttl *time.Duration) IdempotencyStore {
	return &RedisIdempotencyStore{rc: rc, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) cacheKey(ownerID, key string) string {
	// Owner-scoped keys keep tenants from replaying each other's bodies
	return fmt.Sprintf("%sidem:%s:%s", s.prefix, ownerID, key)
}

// Get returns the stored response body, nil when absent or expired
func (s *RedisIdempotencyStore) Get(ctx context.Context, ownerID, key string) (json.RawMessage, error) {
	bs, err := s.rc.Get(ctx, s.cacheKey(ownerID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return json.RawMessage(bs), nil
}

// Save stores the body under the configured TTL. A zero TTL means
// immediate expiry, so nothing is written; a nil TTL stores forever.
func (s *RedisIdempotencyStore) Save(ctx context.Context, ownerID, key string, response json.RawMessage) error {
	var expiry time.Duration
	if s.ttl != nil {
		if *s.ttl == 0 {
			return nil
		}
		expiry = *s.ttl
	}
	return s.rc.Set(ctx, s.cacheKey(ownerID, key), []byte(response), expiry).Err()
}

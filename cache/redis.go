package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// NewRedisStore returns a Store backed by a networked redis instance.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisStore persists cache entries in redis so that multiple processes
// share one cache.
type RedisStore struct {
	client *redis.Client
}

// Get returns the cached value for key. Backend errors are logged and
// reported as a miss so the caller falls through to the upstream fetch.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Errorf("redis cache: failed to read entry %s: %s", key, err)
		}
		return "", ErrCacheMiss
	}

	return val, nil
}

// Set writes the value for key, expiring after ttl. A zero ttl stores
// the entry without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return errors.Wrap(err, "failed to write cache entry")
	}

	return nil
}

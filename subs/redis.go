package subs

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	allKey       = "subscriptions:all"
	recordPrefix = "subscription:"
)

// NewRedisStore returns a Store reading the subscription records the
// signup service writes to redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisStore reads subscriptions from a shared redis instance.
type RedisStore struct {
	client *redis.Client
}

// ListIDs returns every registered subscription id.
func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, allKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscription ids")
	}
	return ids, nil
}

// Get returns the subscription record for id.
func (s *RedisStore) Get(ctx context.Context, id string) (Subscription, error) {
	raw, err := s.client.Get(ctx, recordPrefix+id).Result()
	if err == redis.Nil {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, errors.Wrap(err, "failed to read subscription")
	}

	var sub Subscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return Subscription{}, errors.Wrap(err, "failed to parse subscription record")
	}
	return sub, nil
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore backs the exam session store with plain Redis string keys.
// A positive ttl makes abandoned sessions expire on their own; each write
// refreshes it.
type KVStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewKVStore(client *redis.Client, ttl time.Duration) *KVStore {
	return &KVStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

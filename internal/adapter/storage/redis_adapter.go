package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resolverKeyPrefix = "resolver:"
	defaultResolveTTL = 5 * time.Minute
)

// RedisCache stores serialized resolver results with a time-based expiry.
// Redis bounds its own memory, so no explicit entry cap is kept here.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, resolverKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultResolveTTL
	}
	return r.client.Set(ctx, resolverKeyPrefix+key, payload, ttl).Err()
}

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bazaar/backend/internal/services"
)

const redisKeyPrefix = "bazaar:pref:"

type RedisPreferenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPreferenceCache pings the server before returning. A zero ttl
// keeps entries forever.
func NewRedisPreferenceCache(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisPreferenceCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisPreferenceCache{client: client, ttl: ttl}, nil
}

func (c *RedisPreferenceCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, services.ErrCacheMiss
	}
	return b, err
}

func (c *RedisPreferenceCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err()
}

func (c *RedisPreferenceCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (c *RedisPreferenceCache) Close() error {
	return c.client.Close()
}

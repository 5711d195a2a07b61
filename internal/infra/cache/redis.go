package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"recipe-feed/internal/domain"
	"recipe-feed/internal/infra/metrics"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш. Все ключи получают общий префикс.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", c.prefix, start, err)
	return err
}

// GetMany читает ключи одним MGET. Для отсутствующих ключей в ответе nil.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefix + key
	}
	start := time.Now()
	values, err := c.client.MGet(ctx, prefixed...).Result()
	metrics.ObserveNetworkRequest("redis", "mget", c.prefix, start, err)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if i >= len(out) {
			break
		}
		switch raw := v.(type) {
		case string:
			out[i] = []byte(raw)
		case []byte:
			out[i] = raw
		}
	}
	return out, nil
}

// Ping проверяет соединение с Redis.
func (c *RedisCache) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	metrics.ObserveNetworkRequest("redis", "ping", "", start, err)
	return err
}

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ObjectCache keeps a readable copy of recently synchronized objects.
type ObjectCache interface {
	CacheObject(ctx context.Context, object Object) error
}

type NopCache struct{}

func (NopCache) CacheObject(ctx context.Context, object Object) error {
	return nil
}

const objectCacheKeyPrefix = "zgw2vrijbrp:object:"

// RedisCache caches objects in Redis under their id.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache connects to the Redis URL in cfg.
// Returns nil if the URL is empty (Redis not configured).
func NewRedisCache(ctx context.Context, cfg CacheConfig) (*RedisCache, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{Client: client, TTL: cfg.TTL}, nil
}

func (c *RedisCache) CacheObject(ctx context.Context, object Object) error {
	if err := c.Client.Set(ctx, objectCacheKeyPrefix+object.ID, object.Data, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache object %s: %w", object.ID, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

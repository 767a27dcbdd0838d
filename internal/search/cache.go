package search

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the response cache in front of the search service.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// RedisCache is a cache-aside store for serialized search responses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *log.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "search:",
		ttl:    ttl,
		log:    logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Println("cache get:", err)
		}
		return nil, false
	}

	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.log.Println("cache set:", err)
	}
}

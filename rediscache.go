package pagemill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisCache stores post lists as JSON in Redis so invalidation is shared
// across processes. Backend errors are logged and read as misses.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisCache connects to Redis and returns a cache backend over it.
func NewRedisCache(addr, password string, db int, ttl time.Duration, log zerolog.Logger) (QueryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &redisCache{client: client, ttl: ttl, log: log}, nil
}

func (c *redisCache) Get(key string) ([]BlogPost, bool) {
	data, err := c.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return nil, false
	}
	var posts []BlogPost
	if err := json.Unmarshal(data, &posts); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache payload corrupt")
		return nil, false
	}
	return posts, true
}

func (c *redisCache) Set(key string, posts []BlogPost) {
	data, err := json.Marshal(posts)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(context.Background(), key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *redisCache) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(context.Background(), keys...).Err(); err != nil {
		c.log.Warn().Err(err).Msg("cache delete failed")
	}
}

func (c *redisCache) DeletePrefix(prefixes ...string) {
	ctx := context.Background()
	for _, prefix := range prefixes {
		var cursor uint64
		for {
			keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				c.log.Warn().Err(err).Str("prefix", prefix).Msg("cache scan failed")
				break
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					c.log.Warn().Err(err).Str("prefix", prefix).Msg("cache delete failed")
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

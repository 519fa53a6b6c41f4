package cache

import (
	"time"

	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/redis"
)

// RedisCache backs the Cache interface with the shared redis adapter so
// that entries are visible across service instances.
type RedisCache struct {
	adapter redis.RedisAdapter
}

func NewRedisCache(adapter redis.RedisAdapter) *RedisCache {
	return &RedisCache{adapter: adapter}
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	b, err := c.adapter.Get(key)
	if err != nil {
		if err != redis.NilError {
			logger.Warn("[cache] redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return b, true
}

func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) {
	if err := c.adapter.Set(key, value, ttl); err != nil {
		logger.Warn("[cache] redis set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Delete(key string) {
	if err := c.adapter.Del(key); err != nil {
		logger.Warn("[cache] redis del failed", "key", key, "error", err)
	}
}

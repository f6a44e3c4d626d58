package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nexconsult/vies-api/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ResultCache caches definitive VIES answers in Redis, falling back to an
// in-memory map when Redis is unavailable. Transport errors are never
// cached: a SERVICE_UNAVAILABLE now says nothing about the next attempt.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	memCache map[string]memItem
	memMutex sync.RWMutex
}

type memItem struct {
	result    models.VatResult
	expiresAt time.Time
}

// NewResultCache creates a new result cache
func NewResultCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) CacheInterface {
	return &ResultCache{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		memCache: make(map[string]memItem),
	}
}

func cacheKey(vatNumber string) string {
	return "vies:" + vatNumber
}

// Get retrieves a cached result by canonical VAT string (e.g. IT05159640266)
func (c *ResultCache) Get(ctx context.Context, vatNumber string) (*models.VatResult, bool) {
	key := cacheKey(vatNumber)

	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		if err == nil {
			var result models.VatResult
			if err := json.Unmarshal([]byte(val), &result); err == nil {
				c.logger.WithField("key", key).Debug("Cache hit (Redis)")
				return &result, true
			}
			c.logger.WithField("key", key).Warn("Dropping unreadable cache entry")
			c.client.Del(ctx, key)
			return nil, false
		}
		if err != redis.Nil {
			c.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("Redis get error, falling back to memory cache")
		}
	}

	c.memMutex.RLock()
	item, exists := c.memCache[key]
	c.memMutex.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		c.memMutex.Lock()
		delete(c.memCache, key)
		c.memMutex.Unlock()
		return nil, false
	}

	c.logger.WithField("key", key).Debug("Cache hit (memory)")
	result := item.result
	return &result, true
}

// Set stores a result with the configured TTL. Non-definitive results are
// silently ignored.
func (c *ResultCache) Set(ctx context.Context, vatNumber string, result *models.VatResult) {
	if result == nil || !result.ErrorCode.IsDefinitive() {
		return
	}

	key := cacheKey(vatNumber)

	if c.client != nil {
		payload, err := json.Marshal(result)
		if err == nil {
			if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err == nil {
				c.logger.WithField("key", key).Debug("Cache set (Redis)")
				return
			}
			c.logger.WithField("key", key).Warn("Redis set error, falling back to memory cache")
		}
	}

	c.memMutex.Lock()
	c.memCache[key] = memItem{
		result:    *result,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.memMutex.Unlock()

	c.logger.WithField("key", key).Debug("Cache set (memory)")
}

// Delete removes a cached result
func (c *ResultCache) Delete(ctx context.Context, vatNumber string) error {
	key := cacheKey(vatNumber)

	if c.client != nil {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("Redis delete error")
		}
	}

	c.memMutex.Lock()
	delete(c.memCache, key)
	c.memMutex.Unlock()

	c.logger.WithField("key", key).Debug("Cache delete")
	return nil
}

// Clear clears all cached results
func (c *ResultCache) Clear(ctx context.Context) error {
	if c.client != nil {
		if err := c.client.FlushDB(ctx).Err(); err != nil {
			c.logger.WithField("error", err.Error()).Warn("Redis clear error")
		}
	}

	c.memMutex.Lock()
	c.memCache = make(map[string]memItem)
	c.memMutex.Unlock()

	c.logger.Info("Result cache cleared")
	return nil
}

// GetStats returns cache statistics
func (c *ResultCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	if c.client != nil {
		info, err := c.client.Info(ctx, "memory").Result()
		if err == nil {
			stats["redis"] = map[string]interface{}{
				"available": true,
				"info":      info,
			}
		} else {
			stats["redis"] = map[string]interface{}{
				"available": false,
				"error":     err.Error(),
			}
		}
	} else {
		stats["redis"] = map[string]interface{}{
			"available": false,
		}
	}

	c.memMutex.RLock()
	memSize := len(c.memCache)
	c.memMutex.RUnlock()

	stats["memory"] = map[string]interface{}{
		"size": memSize,
		"ttl":  c.ttl.String(),
	}

	return stats, nil
}

// Health returns cache health status
func (c *ResultCache) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.client.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["redis"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		health["redis"] = map[string]interface{}{
			"status": "disabled",
		}
	}

	health["memory"] = map[string]interface{}{
		"status": "healthy",
	}

	return health
}

// cleanupExpired removes expired items from the memory cache
func (c *ResultCache) cleanupExpired() {
	c.memMutex.Lock()
	defer c.memMutex.Unlock()

	now := time.Now()
	for key, item := range c.memCache {
		if now.After(item.expiresAt) {
			delete(c.memCache, key)
		}
	}
}

// StartCleanupRoutine starts a goroutine to periodically clean expired items
func (c *ResultCache) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			c.cleanupExpired()
		}
	}()
}

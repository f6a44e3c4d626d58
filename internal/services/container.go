package services

import (
	"context"
	"fmt"

	"github.com/nexconsult/vies-api/internal/config"
	"github.com/nexconsult/vies-api/internal/logger"
	"github.com/nexconsult/vies-api/internal/logstream"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client

	LogStream    *logstream.Stream
	CacheService CacheInterface
	ViesService  ValidatorInterface
	BatchService *BatchService
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	if err := container.initRedis(); err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	container.initServices()
	return container, nil
}

// initRedis initializes the Redis client; the cache degrades to its
// in-memory fallback when Redis is unreachable.
func (c *Container) initRedis() error {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	ctx := context.Background()
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis connection failed, running without shared cache")
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}

	return nil
}

// initServices initializes all services
func (c *Container) initServices() {
	c.LogStream = logstream.New(c.config.Batch.LogBufferSize)
	c.logger.AddHook(logger.NewStreamHook(c.LogStream))

	c.CacheService = NewResultCache(c.redisClient, c.config.VIES.CacheTTL, c.logger)
	if rc, ok := c.CacheService.(*ResultCache); ok {
		rc.StartCleanupRoutine()
	}

	c.ViesService = NewViesClient(c.config.VIES, c.CacheService, c.LogStream, c.logger)
	c.BatchService = NewBatchService(c.ViesService, c.config.Batch.Workers, c.config.Batch.Timeout, c.logger)
	c.BatchService.StartCleanupRoutine(c.config.Batch.JobRetention)
}

// Close closes all service connections
func (c *Container) Close() error {
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.redisClient != nil {
		ctx := context.Background()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
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

	if c.ViesService != nil {
		health["vies"] = c.ViesService.Health()
	}
	if c.BatchService != nil {
		health["batch"] = c.BatchService.Stats()
	}

	return health
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.redisClient
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}

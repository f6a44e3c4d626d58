package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	VIES     VIESConfig     `json:"vies"`
	Batch    BatchConfig    `json:"batch"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// VIESConfig holds the outbound VIES client configuration
type VIESConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
	CacheTTL   time.Duration `json:"cache_ttl"`
	// RequestsPerSecond throttles outbound lookups across all workers.
	// VIES documents no rate limit, so the default stays conservative.
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`
}

// BatchConfig holds batch orchestration configuration
type BatchConfig struct {
	Workers int `json:"workers"`
	// Timeout bounds the wall-clock run of a whole batch; zero disables it.
	Timeout time.Duration `json:"timeout"`
	// MaxInlineSize caps the synchronous batch endpoint payload.
	MaxInlineSize int `json:"max_inline_size"`
	// JobRetention is how long finished jobs stay pollable before eviction.
	JobRetention time.Duration `json:"job_retention"`
	// LogBufferSize is the number of live-log lines kept for the log stream.
	LogBufferSize int `json:"log_buffer_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
		},
		VIES: VIESConfig{
			BaseURL:           getEnv("VIES_BASE_URL", "https://ec.europa.eu/taxation_customs/vies/rest-api"),
			Timeout:           time.Duration(getEnvAsInt("VIES_TIMEOUT", 15)) * time.Second,
			MaxRetries:        getEnvAsInt("VIES_MAX_RETRIES", 1),
			RetryDelay:        time.Duration(getEnvAsInt("VIES_RETRY_DELAY", 2)) * time.Second,
			CacheTTL:          time.Duration(getEnvAsInt("VIES_CACHE_TTL", 3600)) * time.Second,
			RequestsPerSecond: getEnvAsFloat("VIES_RPS", 5.0),
			BurstSize:         getEnvAsInt("VIES_BURST", 10),
		},
		Batch: BatchConfig{
			Workers:       getEnvAsInt("BATCH_WORKERS", 5),
			Timeout:       time.Duration(getEnvAsInt("BATCH_TIMEOUT", 0)) * time.Second,
			MaxInlineSize: getEnvAsInt("BATCH_MAX_INLINE", 100),
			JobRetention:  time.Duration(getEnvAsInt("BATCH_JOB_RETENTION", 3600)) * time.Second,
			LogBufferSize: getEnvAsInt("LOG_BUFFER_SIZE", 500),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 100),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
			},
		},
	}

	if cfg.Batch.Workers < 1 {
		return nil, fmt.Errorf("BATCH_WORKERS must be at least 1")
	}
	if cfg.VIES.MaxRetries < 0 {
		return nil, fmt.Errorf("VIES_MAX_RETRIES must not be negative")
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

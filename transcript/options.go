package transcript

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StoreOption is a functional option for configuring a transcript store.
type StoreOption func(*StoreConfig)

// StoreConfig holds configuration for transcript stores.
type StoreConfig struct {
	Limits Limits
	Logger zerolog.Logger

	RedisClient *redis.Client
	RedisTTL    time.Duration
	RedisPrefix string

	SQLiteDSN string

	SupabaseURL string
	SupabaseKey string
}

// NewStoreConfig applies opts over the defaults.
func NewStoreConfig(opts ...StoreOption) *StoreConfig {
	c := &StoreConfig{
		Limits: DefaultLimits,
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithLimits sets the history limits applied by the store.
func WithLimits(l Limits) StoreOption {
	return func(c *StoreConfig) {
		c.Limits = l
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(c *StoreConfig) {
		c.Logger = logger
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *StoreConfig) {
		c.RedisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *StoreConfig) {
		c.RedisTTL = ttl
	}
}

// WithRedisPrefix sets the key prefix for Redis keys.
func WithRedisPrefix(prefix string) StoreOption {
	return func(c *StoreConfig) {
		c.RedisPrefix = prefix
	}
}

// WithSQLiteDSN sets the database for the SQLite store.
func WithSQLiteDSN(dsn string) StoreOption {
	return func(c *StoreConfig) {
		c.SQLiteDSN = dsn
	}
}

// WithSupabase sets the project URL and API key for the Supabase store.
func WithSupabase(url, apiKey string) StoreOption {
	return func(c *StoreConfig) {
		c.SupabaseURL = url
		c.SupabaseKey = apiKey
	}
}

// Package drivers provides the transcript.Store implementations.
package drivers

import (
	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
)

// NewStore creates a new transcript.Store based on the given type.
// Supports "memory", "redis", "sqlite" and "supabase" driver types.
// Redis requires WithRedisClient, SQLite requires WithSQLiteDSN and
// Supabase requires WithSupabase.
func NewStore(storeType transcript.StoreType, opts ...transcript.StoreOption) (transcript.Store, error) {
	config := transcript.NewStoreConfig(opts...)

	switch storeType {
	case transcript.StoreTypeMemory, "":
		return NewInMemoryStore(config.Limits, WithMemoryLogger(config.Logger)), nil

	case transcript.StoreTypeRedis:
		if config.RedisClient == nil {
			return nil, chat.ErrInvalidConfig
		}
		return NewRedisStore(config.RedisClient, config.RedisTTL,
			WithRedisKeyPrefix(config.RedisPrefix),
			WithRedisLimits(config.Limits),
		), nil

	case transcript.StoreTypeSQLite:
		if config.SQLiteDSN == "" {
			return nil, chat.ErrInvalidConfig
		}
		store, err := NewSQLiteStore(config.SQLiteDSN, config.Limits)
		if err != nil {
			return nil, err
		}
		return store, nil

	case transcript.StoreTypeSupabase:
		if config.SupabaseURL == "" || config.SupabaseKey == "" {
			return nil, chat.ErrInvalidConfig
		}
		store, err := NewSupabaseStore(SupabaseConfig{
			URL:    config.SupabaseURL,
			APIKey: config.SupabaseKey,
			Limits: config.Limits,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, chat.ErrInvalidStoreType
	}
}

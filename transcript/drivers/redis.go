package drivers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for transcripts
	transcriptKeyPrefix = "chat:transcript:"
	// Default TTL for transcript keys (24 hours)
	defaultTTL = 24 * time.Hour
)

// RedisStore implements transcript.Store using Redis.
// A string key marks that the conversation exists; a list key holds the
// JSON-encoded turns, so an empty transcript is still known to the store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	limits transcript.Limits
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisKeyPrefix sets the key prefix. Empty keeps the default.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisLimits sets the history limits.
func WithRedisLimits(l transcript.Limits) RedisOption {
	return func(s *RedisStore) {
		s.limits = l
	}
}

// NewRedisStore creates a new Redis-based transcript store.
func NewRedisStore(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: transcriptKeyPrefix,
		limits: transcript.DefaultLimits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements transcript.Store.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.metaKey(id), time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "redis transcript store: create")
	}
	return id, nil
}

// Exists implements transcript.Store.
func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.metaKey(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis transcript store: exists")
	}
	return n > 0, nil
}

// Append implements transcript.Store.
// The marker key is created if missing, the turn is pushed, the list is
// trimmed to the turn limit and both TTLs are refreshed in one MULTI/EXEC.
func (s *RedisStore) Append(ctx context.Context, id string, turn chat.Turn) error {
	val, err := json.Marshal(turn)
	if err != nil {
		return errors.Wrap(err, "redis transcript store: marshal turn")
	}

	metaKey, turnsKey := s.metaKey(id), s.turnsKey(id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, metaKey, time.Now().UTC().Format(time.RFC3339Nano), s.ttl)
		pipe.RPush(ctx, turnsKey, val)
		if s.limits.MaxTurns > 0 {
			pipe.LTrim(ctx, turnsKey, int64(-s.limits.MaxTurns), -1)
		}
		pipe.Expire(ctx, metaKey, s.ttl)
		pipe.Expire(ctx, turnsKey, s.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis transcript store: append")
	}
	return nil
}

// Get implements transcript.Store.
// Refreshes TTL on every read.
func (s *RedisStore) Get(ctx context.Context, id string) ([]chat.Turn, error) {
	turnsKey := s.turnsKey(id)
	vals, err := s.client.LRange(ctx, turnsKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis transcript store: get")
	}

	turns := make([]chat.Turn, 0, len(vals))
	for _, v := range vals {
		var t chat.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, errors.Wrap(err, "redis transcript store: unmarshal turn")
		}
		if !t.Role.Valid() {
			return nil, errors.Wrapf(chat.ErrUnknownRole, "redis transcript store: role %q", t.Role)
		}
		turns = append(turns, t)
	}

	// Refresh TTL on read
	if len(vals) > 0 {
		_ = s.client.Expire(ctx, turnsKey, s.ttl).Err()
		_ = s.client.Expire(ctx, s.metaKey(id), s.ttl).Err()
	}

	return s.limits.Apply(turns), nil
}

// Clear implements transcript.Store.
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	ok, err := s.Exists(ctx, id)
	if err != nil || !ok {
		return err
	}
	if err := s.client.Del(ctx, s.turnsKey(id)).Err(); err != nil {
		return errors.Wrap(err, "redis transcript store: clear")
	}
	return nil
}

// Close implements transcript.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) metaKey(id string) string {
	return s.prefix + id
}

func (s *RedisStore) turnsKey(id string) string {
	return s.prefix + id + ":turns"
}

var _ transcript.Store = (*RedisStore)(nil)

package drivers

import (
	"path/filepath"
	"testing"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	s, err := NewStore(transcript.StoreTypeMemory)
	require.NoError(t, err)
	require.IsType(t, &InMemoryStore{}, s)

	_, err = NewStore(transcript.StoreTypeRedis)
	require.ErrorIs(t, err, chat.ErrInvalidConfig)

	_, err = NewStore(transcript.StoreTypeSQLite)
	require.ErrorIs(t, err, chat.ErrInvalidConfig)

	_, err = NewStore(transcript.StoreTypeSupabase, transcript.WithSupabase("https://example.supabase.co", ""))
	require.ErrorIs(t, err, chat.ErrInvalidConfig)

	_, err = NewStore("etcd")
	require.ErrorIs(t, err, chat.ErrInvalidStoreType)
}

func TestNewStore_Redis(t *testing.T) {
	_, client := newMiniredisClient(t)
	s, err := NewStore(transcript.StoreTypeRedis, transcript.WithRedisClient(client), transcript.WithRedisPrefix("x:"))
	require.NoError(t, err)
	rs, ok := s.(*RedisStore)
	require.True(t, ok)
	require.Equal(t, "x:", rs.prefix)
	require.Equal(t, transcript.DefaultLimits, rs.limits)
}

func TestNewStore_SQLite(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	s, err := NewStore(transcript.StoreTypeSQLite, transcript.WithSQLiteDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

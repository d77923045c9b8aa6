package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/creastat/chat/transcript/tests"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	tests.RunStoreContract(t, func(t *testing.T, limits transcript.Limits) transcript.Store {
		_, client := newMiniredisClient(t)
		s := NewRedisStore(client, time.Hour, WithRedisLimits(limits))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, time.Minute, WithRedisKeyPrefix("test:"))
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, id, chat.BuildUserTurn("hi", nil)))

	require.True(t, mr.Exists("test:"+id))
	require.True(t, mr.Exists("test:"+id+":turns"))
	require.Equal(t, time.Minute, mr.TTL("test:"+id+":turns"))

	mr.FastForward(2 * time.Minute)

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore_TrimsOnWrite(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, time.Hour, WithRedisLimits(transcript.Limits{MaxTurns: 2}))
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, id, chat.BuildUserTurn("q", nil)))
	}

	items, err := mr.List(transcriptKeyPrefix + id + ":turns")
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestNewRedisStore_DefaultTTL(t *testing.T) {
	_, client := newMiniredisClient(t)
	s := NewRedisStore(client, 0)
	require.Equal(t, defaultTTL, s.ttl)
	require.Equal(t, transcriptKeyPrefix, s.prefix)
}

func TestRedisStore_GetRejectsUnknownRole(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, time.Hour)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	_, err = mr.Push(transcriptKeyPrefix+id+":turns", `{"role":"system","content":[{"type":"text","text":"x"}],"token_count":1}`)
	require.NoError(t, err)

	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, chat.ErrUnknownRole)
}

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/creastat/chat/transcript/drivers"
	"github.com/stretchr/testify/require"
)

func TestBinder_BindOrCreate_CreatesOnce(t *testing.T) {
	store := drivers.NewInMemoryStore(transcript.Limits{})
	created := 0
	b := NewBinder(store, WithCreateHook(func() { created++ }))
	ctx := context.Background()

	s := &Session{}
	id, err := b.BindOrCreate(ctx, s)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, id, s.ConversationID)
	require.True(t, s.Modified())

	again, err := b.BindOrCreate(ctx, s)
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Equal(t, 1, created)

	turns, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestBinder_BindOrCreate_ReplacesUnknownID(t *testing.T) {
	store := drivers.NewInMemoryStore(transcript.Limits{})
	b := NewBinder(store)
	ctx := context.Background()

	s := &Session{ConversationID: "evicted-or-forged"}
	id, err := b.BindOrCreate(ctx, s)
	require.NoError(t, err)
	require.NotEqual(t, "evicted-or-forged", id)

	ok, err := store.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBinder_Rebind(t *testing.T) {
	store := drivers.NewInMemoryStore(transcript.Limits{})
	b := NewBinder(store)
	ctx := context.Background()

	s := &Session{}
	first, err := b.BindOrCreate(ctx, s)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, first, chat.BuildUserTurn("hi", nil)))

	second, err := b.Rebind(ctx, s)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Equal(t, second, s.ConversationID)

	turns, err := store.Get(ctx, second)
	require.NoError(t, err)
	require.Empty(t, turns)

	old, err := store.Get(ctx, first)
	require.NoError(t, err)
	require.Len(t, old, 1)
}

type failingStore struct {
	transcript.Store
}

func (failingStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func (failingStore) Create(context.Context) (string, error) {
	return "", errors.New("store down")
}

func TestBinder_PropagatesStoreErrors(t *testing.T) {
	b := NewBinder(failingStore{})
	ctx := context.Background()

	_, err := b.BindOrCreate(ctx, &Session{ConversationID: "c1"})
	require.ErrorContains(t, err, "store down")

	s := &Session{}
	_, err = b.Rebind(ctx, s)
	require.ErrorContains(t, err, "store down")
	require.Equal(t, "", s.ConversationID)
}

package tests

import (
	"context"
	"testing"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns a fresh, empty store configured with the given limits.
type StoreFactory func(t *testing.T, limits transcript.Limits) transcript.Store

// RunStoreContract is a reusable test suite that verifies if a driver complies with transcript.Store.
func RunStoreContract(t *testing.T, newStore StoreFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("Create_InstallsEmptyTranscript", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})

		id1, err := s.Create(ctx)
		require.NoError(t, err)
		id2, err := s.Create(ctx)
		require.NoError(t, err)
		require.NotEqual(t, id1, id2)

		ok, err := s.Exists(ctx, id1)
		require.NoError(t, err)
		require.True(t, ok)

		turns, err := s.Get(ctx, id1)
		require.NoError(t, err)
		require.Empty(t, turns)
	})

	t.Run("Get_UnknownIsEmpty", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})

		ok, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)

		turns, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		require.Empty(t, turns)
	})

	t.Run("Append_PreservesOrder", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})
		id, err := s.Create(ctx)
		require.NoError(t, err)

		user := chat.BuildUserTurn("describe", []chat.Upload{{Filename: "a.png", Data: []byte{1, 2, 3}}})
		assistant := chat.NewAssistantTurn("three bytes")
		require.NoError(t, s.Append(ctx, id, user))
		require.NoError(t, s.Append(ctx, id, assistant))

		turns, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, []chat.Turn{user, assistant}, turns)
	})

	t.Run("Append_LazilyCreates", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})

		require.NoError(t, s.Append(ctx, "11111111-2222-3333-4444-555555555555", chat.BuildUserTurn("hi", nil)))

		ok, err := s.Exists(ctx, "11111111-2222-3333-4444-555555555555")
		require.NoError(t, err)
		require.True(t, ok)

		turns, err := s.Get(ctx, "11111111-2222-3333-4444-555555555555")
		require.NoError(t, err)
		require.Len(t, turns, 1)
	})

	t.Run("Clear_EmptiesButKeepsID", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})
		id, err := s.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, id, chat.BuildUserTurn("hi", nil)))
		require.NoError(t, s.Append(ctx, id, chat.NewAssistantTurn("hello")))

		require.NoError(t, s.Clear(ctx, id))

		turns, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Empty(t, turns)

		ok, err := s.Exists(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("Clear_UnknownIsNoop", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})

		require.NoError(t, s.Clear(ctx, "missing"))

		ok, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Get_ReturnsCopy", func(t *testing.T) {
		s := newStore(t, transcript.Limits{})
		id, err := s.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, id, chat.BuildUserTurn("original", nil)))

		turns, err := s.Get(ctx, id)
		require.NoError(t, err)
		turns[0].Content[0].Text = "mutated"

		again, err := s.Get(ctx, id)
		require.NoError(t, err)
		text, _ := again[0].LastText()
		require.Equal(t, "original", text)
	})

	t.Run("Limits_KeepRecentTurns", func(t *testing.T) {
		s := newStore(t, transcript.Limits{MaxTurns: 4})
		id, err := s.Create(ctx)
		require.NoError(t, err)

		for _, q := range []string{"one", "two", "three"} {
			require.NoError(t, s.Append(ctx, id, chat.BuildUserTurn(q, nil)))
			require.NoError(t, s.Append(ctx, id, chat.NewAssistantTurn("re: "+q)))
		}

		turns, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 4)
		require.Equal(t, chat.RoleUser, turns[0].Role)
		text, _ := turns[0].LastText()
		require.Equal(t, "two", text)
	})
}

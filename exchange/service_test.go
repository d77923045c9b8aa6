package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/creastat/chat"
	"github.com/creastat/chat/metrics"
	"github.com/creastat/chat/session"
	"github.com/creastat/chat/transcript"
	"github.com/creastat/chat/transcript/drivers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []chat.CompletionRequest
	ctxs  []context.Context
}

func (m *fakeModel) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	m.ctxs = append(m.ctxs, ctx)
	return m.reply, m.err
}

func newTestService(t *testing.T, model chat.Model, opts ...Option) (*Service, transcript.Store) {
	t.Helper()
	store := drivers.NewInMemoryStore(transcript.Limits{})
	t.Cleanup(func() { _ = store.Close() })
	if model != nil {
		opts = append(opts, WithModel(model))
	}
	return NewService(store, opts...), store
}

func TestExchange_Success(t *testing.T) {
	model := &fakeModel{reply: "Hi"}
	svc, store := newTestService(t, model)
	sess := &session.Session{}

	res, err := svc.Exchange(context.Background(), sess, "Hello", nil)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ConversationID)
	require.True(t, sess.Modified())

	require.Equal(t, "Hi", res.Response)
	require.Equal(t, 0, res.FilesProcessed)
	require.Equal(t, []chat.DisplayTurn{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi"},
	}, res.Conversation)

	require.Len(t, model.calls, 1)
	require.Equal(t, DefaultModelID, model.calls[0].Model)
	require.Equal(t, DefaultMaxTokens, model.calls[0].MaxTokens)
	require.Len(t, model.calls[0].Turns, 1)

	turns, err := store.Get(context.Background(), sess.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
}

func TestExchange_SendsFullHistory(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc, _ := newTestService(t, model, WithModelID("m-1"), WithMaxTokens(50))
	sess := &session.Session{}
	ctx := context.Background()

	_, err := svc.Exchange(ctx, sess, "one", nil)
	require.NoError(t, err)
	res, err := svc.Exchange(ctx, sess, "two", nil)
	require.NoError(t, err)

	require.Len(t, res.Conversation, 4)
	require.Len(t, model.calls, 2)
	last := model.calls[1]
	require.Equal(t, "m-1", last.Model)
	require.Equal(t, 50, last.MaxTokens)
	require.Len(t, last.Turns, 3)
	require.Equal(t, chat.RoleUser, last.Turns[0].Role)
	require.Equal(t, chat.RoleAssistant, last.Turns[1].Role)
	require.Equal(t, chat.RoleUser, last.Turns[2].Role)
}

func TestExchange_WithUploads(t *testing.T) {
	model := &fakeModel{reply: "Summary"}
	svc, _ := newTestService(t, model)
	sess := &session.Session{}

	res, err := svc.Exchange(context.Background(), sess, "Summarize", []chat.Upload{
		{Filename: "report.pdf", Data: []byte("%PDF")},
		{Filename: "notes.txt", Data: []byte("hi")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.FilesProcessed)
	require.Equal(t, "Summarize", res.Conversation[0].Content)

	sent := model.calls[0].Turns[0]
	require.Len(t, sent.Content, 3)
	require.Equal(t, chat.BlockKindDocument, sent.Content[0].Kind)
	require.Equal(t, "application/pdf", sent.Content[0].MediaType)
	require.Equal(t, chat.BlockKindDocument, sent.Content[1].Kind)
	require.Equal(t, "text/plain", sent.Content[1].MediaType)
	require.Equal(t, chat.BlockKindText, sent.Content[2].Kind)
}

func TestExchange_MissingModel(t *testing.T) {
	svc, _ := newTestService(t, nil)
	sess := &session.Session{}

	_, err := svc.Exchange(context.Background(), sess, "Hello", nil)
	var cfgErr *chat.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, chat.ErrMissingAPIKey)
	require.Empty(t, sess.ConversationID)
	require.False(t, sess.Modified())
}

func TestExchange_EmptyQuery(t *testing.T) {
	model := &fakeModel{reply: "Hi"}
	svc, store := newTestService(t, model)
	sess := &session.Session{}
	ctx := context.Background()

	_, err := svc.Exchange(ctx, sess, "Hello", nil)
	require.NoError(t, err)

	_, err = svc.Exchange(ctx, sess, "", []chat.Upload{{Filename: "a.pdf", Data: []byte("x")}})
	var valErr *chat.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.EqualError(t, err, "Query text is required")

	turns, err := store.Get(ctx, sess.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Len(t, model.calls, 1)
}

func TestExchange_ModelFailureLeavesUserTurn(t *testing.T) {
	model := &fakeModel{err: errors.New("rate limited")}
	svc, store := newTestService(t, model)
	sess := &session.Session{}
	ctx := context.Background()

	_, err := svc.Exchange(ctx, sess, "Hello", nil)
	var extErr *chat.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	require.EqualError(t, err, "rate limited")

	turns, err := store.Get(ctx, sess.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, chat.RoleUser, turns[0].Role)

	model.err = nil
	model.reply = "back"
	res, err := svc.Exchange(ctx, sess, "Again", nil)
	require.NoError(t, err)
	require.Len(t, res.Conversation, 3)
}

func TestExchange_ModelCallSurvivesCancel(t *testing.T) {
	model := &fakeModel{reply: "Hi"}
	svc, _ := newTestService(t, model)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Exchange(ctx, &session.Session{}, "Hello", nil)
	require.NoError(t, err)
	cancel()

	require.NoError(t, model.ctxs[0].Err())
}

func TestExchange_StaleBindingCreatesConversation(t *testing.T) {
	model := &fakeModel{reply: "Hi"}
	svc, store := newTestService(t, model)
	sess := &session.Session{ConversationID: "gone"}

	_, err := svc.Exchange(context.Background(), sess, "Hello", nil)
	require.NoError(t, err)
	require.NotEqual(t, "gone", sess.ConversationID)

	ok, err := store.Exists(context.Background(), sess.ConversationID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewChat_RebindsToEmptyConversation(t *testing.T) {
	model := &fakeModel{reply: "Hi"}
	svc, store := newTestService(t, model)
	sess := &session.Session{}
	ctx := context.Background()

	_, err := svc.Exchange(ctx, sess, "Hello", nil)
	require.NoError(t, err)
	prev := sess.ConversationID

	id, err := svc.NewChat(ctx, sess)
	require.NoError(t, err)
	require.NotEqual(t, prev, id)
	require.Equal(t, id, sess.ConversationID)

	turns, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestClearChat(t *testing.T) {
	model := &fakeModel{reply: "Hi"}
	svc, store := newTestService(t, model)
	sess := &session.Session{}
	ctx := context.Background()

	_, err := svc.Exchange(ctx, sess, "Hello", nil)
	require.NoError(t, err)
	id := sess.ConversationID

	require.NoError(t, svc.ClearChat(ctx, sess))
	require.Equal(t, id, sess.ConversationID)

	turns, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, turns)

	require.NoError(t, svc.ClearChat(ctx, &session.Session{}))
}

func TestBind_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	sess := &session.Session{}
	ctx := context.Background()

	first, err := svc.Bind(ctx, sess)
	require.NoError(t, err)
	second, err := svc.Bind(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestExchange_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	model := &fakeModel{reply: "Hi"}
	svc, _ := newTestService(t, model, WithMetrics(m))
	sess := &session.Session{}
	ctx := context.Background()

	_, err := svc.Exchange(ctx, sess, "Hello", []chat.Upload{{Filename: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)
	_, err = svc.Exchange(ctx, sess, "", nil)
	require.Error(t, err)

	n, err := testutil.GatherAndCount(m.Registry(),
		"claudechat_exchanges_total",
		"claudechat_attachments_total",
		"claudechat_conversations_created_total",
	)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

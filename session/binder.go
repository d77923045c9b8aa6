package session

import (
	"context"

	"github.com/creastat/chat/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Binder associates sessions with conversation IDs held by a transcript store.
type Binder struct {
	store  transcript.Store
	logger zerolog.Logger

	onCreate func()
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithBinderLogger sets the logger.
func WithBinderLogger(logger zerolog.Logger) BinderOption {
	return func(b *Binder) {
		b.logger = logger
	}
}

// WithCreateHook registers a callback run after each new conversation.
func WithCreateHook(fn func()) BinderOption {
	return func(b *Binder) {
		b.onCreate = fn
	}
}

// NewBinder creates a Binder over store.
func NewBinder(store transcript.Store, opts ...BinderOption) *Binder {
	b := &Binder{
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BindOrCreate returns the session's conversation ID if the store knows it,
// otherwise creates a conversation and binds the session to it.
func (b *Binder) BindOrCreate(ctx context.Context, s *Session) (string, error) {
	if s.ConversationID != "" {
		ok, err := b.store.Exists(ctx, s.ConversationID)
		if err != nil {
			return "", errors.Wrap(err, "session: check conversation")
		}
		if ok {
			return s.ConversationID, nil
		}
		b.logger.Debug().Str("conversation_id", s.ConversationID).Msg("bound conversation unknown to store, creating a new one")
	}
	return b.create(ctx, s)
}

// Rebind always creates a new conversation and binds the session to it.
func (b *Binder) Rebind(ctx context.Context, s *Session) (string, error) {
	return b.create(ctx, s)
}

func (b *Binder) create(ctx context.Context, s *Session) (string, error) {
	id, err := b.store.Create(ctx)
	if err != nil {
		return "", errors.Wrap(err, "session: create conversation")
	}
	s.Bind(id)
	if b.onCreate != nil {
		b.onCreate()
	}
	b.logger.Info().Str("conversation_id", id).Msg("created conversation")
	return id, nil
}

// Package exchange drives one chat request/response cycle against a
// transcript store and a model.
package exchange

import (
	"context"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/metrics"
	"github.com/creastat/chat/session"
	"github.com/creastat/chat/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultModelID is the model used when none is configured.
	DefaultModelID = "claude-3-7-sonnet-20250219"
	// DefaultMaxTokens caps each model response.
	DefaultMaxTokens = 4000
)

// Result is the outcome of a successful exchange.
type Result struct {
	Response       string             `json:"response"`
	Conversation   []chat.DisplayTurn `json:"conversation"`
	FilesProcessed int                `json:"files_processed"`
}

// Service is the exchange orchestrator.
type Service struct {
	store  transcript.Store
	binder *session.Binder
	model  chat.Model

	modelID   string
	maxTokens int

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithModel sets the model. Without one every exchange fails with a
// configuration error.
func WithModel(m chat.Model) Option {
	return func(s *Service) {
		s.model = m
	}
}

// WithModelID sets the model identifier sent with each request.
func WithModelID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.modelID = id
		}
	}
}

// WithMaxTokens sets the response token cap sent with each request.
func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the collectors exchanges are recorded on.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service over store.
func NewService(store transcript.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		modelID:   DefaultModelID,
		maxTokens: DefaultMaxTokens,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.binder = session.NewBinder(store,
		session.WithBinderLogger(s.logger),
		session.WithCreateHook(s.metrics.ConversationCreated),
	)
	return s
}

// Bind makes sure the session is bound to a conversation the store knows.
func (s *Service) Bind(ctx context.Context, sess *session.Session) (string, error) {
	return s.binder.BindOrCreate(ctx, sess)
}

// NewChat binds the session to a fresh, empty conversation.
func (s *Service) NewChat(ctx context.Context, sess *session.Session) (string, error) {
	return s.binder.Rebind(ctx, sess)
}

// ClearChat empties the bound conversation and keeps its ID.
// An unbound session is left untouched.
func (s *Service) ClearChat(ctx context.Context, sess *session.Session) error {
	if sess.ConversationID == "" {
		return nil
	}
	if err := s.store.Clear(ctx, sess.ConversationID); err != nil {
		return errors.Wrap(err, "exchange: clear conversation")
	}
	s.logger.Info().Str("conversation_id", sess.ConversationID).Msg("cleared conversation")
	return nil
}

// Exchange appends the user turn, asks the model for a reply and appends it.
//
// Errors are *chat.ConfigurationError when no model is configured,
// *chat.ValidationError for an empty query and *chat.ExternalServiceError when
// the model call fails. The first two leave all state untouched.
func (s *Service) Exchange(ctx context.Context, sess *session.Session, query string, uploads []chat.Upload) (*Result, error) {
	if s.model == nil {
		s.metrics.ObserveExchange(metrics.OutcomeConfiguration)
		return nil, &chat.ConfigurationError{Err: chat.ErrMissingAPIKey}
	}

	id, err := s.binder.BindOrCreate(ctx, sess)
	if err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeInternal)
		return nil, err
	}
	log := s.logger.With().Str("conversation_id", id).Logger()

	if query == "" {
		s.metrics.ObserveExchange(metrics.OutcomeValidation)
		return nil, &chat.ValidationError{Err: chat.ErrEmptyQuery}
	}

	// The user turn stays even if the model call below fails, leaving it
	// without an assistant reply. This is intended: no rollback.
	userTurn := chat.BuildUserTurn(query, uploads)
	if err := s.store.Append(ctx, id, userTurn); err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeInternal)
		return nil, errors.Wrap(err, "exchange: append user turn")
	}
	s.metrics.AddAttachments(len(uploads))

	history, err := s.store.Get(ctx, id)
	if err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeInternal)
		return nil, errors.Wrap(err, "exchange: load transcript")
	}

	log.Debug().
		Int("files", len(uploads)).
		Int("turns", len(history)).
		Int("estimated_tokens", chat.EstimateTurnsTokens(history)).
		Msg("sending transcript to model")

	start := time.Now()
	reply, err := s.model.Complete(context.WithoutCancel(ctx), chat.CompletionRequest{
		Model:     s.modelID,
		MaxTokens: s.maxTokens,
		Turns:     history,
	})
	elapsed := time.Since(start)
	s.metrics.ObserveModelRequest(elapsed)
	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Msg("model request failed")
		s.metrics.ObserveExchange(metrics.OutcomeExternal)
		return nil, &chat.ExternalServiceError{Err: err}
	}

	if err := s.store.Append(ctx, id, chat.NewAssistantTurn(reply)); err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeInternal)
		return nil, errors.Wrap(err, "exchange: append assistant turn")
	}

	history, err = s.store.Get(ctx, id)
	if err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeInternal)
		return nil, errors.Wrap(err, "exchange: load transcript")
	}

	log.Info().Int("files", len(uploads)).Dur("duration", elapsed).Msg("exchange completed")
	s.metrics.ObserveExchange(metrics.OutcomeSuccess)

	return &Result{
		Response:       reply,
		Conversation:   chat.DisplayView(history),
		FilesProcessed: len(uploads),
	}, nil
}

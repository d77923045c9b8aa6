// Package server exposes the chat over HTTP.
package server

import (
	"embed"
	"net/http"
	"time"

	"github.com/creastat/chat/exchange"
	"github.com/creastat/chat/metrics"
	"github.com/creastat/chat/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// DefaultMaxUploadBytes caps the size of a /query request body.
const DefaultMaxUploadBytes int64 = 32 << 20

//go:embed static/index.html
var staticFS embed.FS

// Server holds the handler dependencies.
type Server struct {
	service        *exchange.Service
	codec          *session.Codec
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts /metrics for m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxUploadBytes sets the request body limit for /query.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// New creates a Server.
func New(service *exchange.Service, codec *session.Codec, opts ...Option) *Server {
	s := &Server{
		service:        service,
		codec:          codec,
		logger:         zerolog.Nop(),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/query", s.handleQuery)
	r.Post("/new_chat", s.handleNewChat)
	r.Post("/clear_chat", s.handleClearChat)
	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/anthropic"
	"github.com/creastat/chat/exchange"
	"github.com/creastat/chat/metrics"
	"github.com/creastat/chat/server"
	"github.com/creastat/chat/session"
	"github.com/creastat/chat/transcript"
	"github.com/creastat/chat/transcript/drivers"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

type serveConfig struct {
	Addr string

	APIKey         string
	Model          string
	MaxTokens      int
	BaseURL        string
	RequestTimeout time.Duration

	SecretKey      string
	SecureCookie   bool
	SessionMaxAge  time.Duration
	MaxUploadBytes int64

	Store         transcript.StoreType
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	SQLiteDSN     string
	SupabaseURL   string
	SupabaseKey   string

	Limits        transcript.Limits
	IdleTTL       time.Duration
	EvictInterval time.Duration
}

func serveConfigFromViper(v *viper.Viper) serveConfig {
	return serveConfig{
		Addr:           v.GetString("addr"),
		APIKey:         v.GetString("anthropic-api-key"),
		Model:          v.GetString("model"),
		MaxTokens:      v.GetInt("max-tokens"),
		BaseURL:        v.GetString("anthropic-base-url"),
		RequestTimeout: v.GetDuration("request-timeout"),
		SecretKey:      v.GetString("secret-key"),
		SecureCookie:   v.GetBool("secure-cookie"),
		SessionMaxAge:  v.GetDuration("session-max-age"),
		MaxUploadBytes: v.GetInt64("max-upload-bytes"),
		Store:          transcript.StoreType(strings.ToLower(v.GetString("store"))),
		RedisAddr:      v.GetString("redis-addr"),
		RedisPassword:  v.GetString("redis-password"),
		RedisDB:        v.GetInt("redis-db"),
		RedisTTL:       v.GetDuration("redis-ttl"),
		SQLiteDSN:      v.GetString("sqlite-dsn"),
		SupabaseURL:    v.GetString("supabase-url"),
		SupabaseKey:    v.GetString("supabase-key"),
		Limits: transcript.Limits{
			MaxTurns:  v.GetInt("max-turns"),
			MaxTokens: v.GetInt("max-history-tokens"),
		},
		IdleTTL:       v.GetDuration("idle-ttl"),
		EvictInterval: v.GetDuration("evict-interval"),
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, serveConfigFromViper(viper.GetViper()), log.Logger)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":5000", "Listen address")
	f.String("anthropic-api-key", "", "Anthropic API key (also ANTHROPIC_API_KEY)")
	f.String("model", exchange.DefaultModelID, "Model identifier")
	f.Int("max-tokens", exchange.DefaultMaxTokens, "Maximum tokens per response")
	f.String("anthropic-base-url", anthropic.DefaultBaseURL, "Anthropic API base URL")
	f.Duration("request-timeout", anthropic.DefaultTimeout, "Model request timeout")
	f.String("secret-key", "", "Session cookie signing key (also SECRET_KEY); random when empty")
	f.Bool("secure-cookie", false, "Mark the session cookie Secure")
	f.Duration("session-max-age", session.DefaultMaxAge, "Session cookie lifetime")
	f.Int64("max-upload-bytes", server.DefaultMaxUploadBytes, "Maximum /query request size")
	f.String("store", string(transcript.StoreTypeMemory), "Transcript store (memory, redis, sqlite, supabase)")
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database")
	f.Duration("redis-ttl", 24*time.Hour, "Redis transcript TTL")
	f.String("sqlite-dsn", "claudechat.db", "SQLite DSN or database file path")
	f.String("supabase-url", "", "Supabase project URL")
	f.String("supabase-key", "", "Supabase API key")
	f.Int("max-turns", transcript.DefaultLimits.MaxTurns, "Turns kept per conversation (0 = unbounded)")
	f.Int("max-history-tokens", transcript.DefaultLimits.MaxTokens, "Estimated tokens kept per conversation (0 = unbounded)")
	f.Duration("idle-ttl", 24*time.Hour, "Evict in-memory conversations idle this long (0 disables)")
	f.Duration("evict-interval", time.Minute, "In-memory eviction check interval")

	cobra.CheckErr(viper.BindPFlags(f))
	return cmd
}

func runServe(ctx context.Context, cfg serveConfig, logger zerolog.Logger) error {
	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close transcript store")
		}
	}()

	if cfg.Limits.Unbounded() {
		logger.Warn().Msg("history limits disabled, conversations grow without bound")
	}

	m := metrics.New()

	svcOpts := []exchange.Option{
		exchange.WithModelID(cfg.Model),
		exchange.WithMaxTokens(cfg.MaxTokens),
		exchange.WithLogger(logger),
		exchange.WithMetrics(m),
	}
	if model := buildModel(cfg, logger); model != nil {
		svcOpts = append(svcOpts, exchange.WithModel(model))
	} else {
		logger.Warn().Msg("no Anthropic API key configured, queries will be rejected")
	}
	svc := exchange.NewService(store, svcOpts...)

	if cfg.SecretKey == "" {
		logger.Warn().Msg("no secret key configured, sessions will not survive a restart")
	}
	codec, err := session.NewCodec(cfg.SecretKey,
		session.WithSecure(cfg.SecureCookie),
		session.WithMaxAge(cfg.SessionMaxAge),
	)
	if err != nil {
		return err
	}

	handler := server.New(svc, codec,
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes),
	).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if mem, ok := store.(*drivers.InMemoryStore); ok {
		mem.SetEvictionConfig(cfg.IdleTTL, cfg.EvictInterval)
		mem.StartEvictionLoop(gctx)
	}

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Str("store", string(cfg.Store)).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return errors.Wrap(err, "graceful shutdown")
		}
		return nil
	})

	return g.Wait()
}

func buildModel(cfg serveConfig, logger zerolog.Logger) chat.Model {
	if cfg.APIKey == "" {
		return nil
	}
	return anthropic.NewClient(cfg.APIKey,
		anthropic.WithBaseURL(cfg.BaseURL),
		anthropic.WithTimeout(cfg.RequestTimeout),
		anthropic.WithLogger(logger),
	)
}

func buildStore(ctx context.Context, cfg serveConfig, logger zerolog.Logger) (transcript.Store, error) {
	opts := []transcript.StoreOption{
		transcript.WithLimits(cfg.Limits),
		transcript.WithLogger(logger),
	}

	switch cfg.Store {
	case transcript.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
		}
		opts = append(opts, transcript.WithRedisClient(client), transcript.WithRedisTTL(cfg.RedisTTL))

	case transcript.StoreTypeSQLite:
		dsn := cfg.SQLiteDSN
		if !strings.HasPrefix(dsn, "file:") {
			var err error
			dsn, err = drivers.SQLiteDSNForFile(dsn)
			if err != nil {
				return nil, err
			}
		}
		opts = append(opts, transcript.WithSQLiteDSN(dsn))

	case transcript.StoreTypeSupabase:
		opts = append(opts, transcript.WithSupabase(cfg.SupabaseURL, cfg.SupabaseKey))
	}

	store, err := drivers.NewStore(cfg.Store, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "transcript store %q", cfg.Store)
	}
	return store, nil
}

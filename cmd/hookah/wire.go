package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/auth"
	"github.com/hpungsan/hookah/internal/cache"
	"github.com/hpungsan/hookah/internal/config"
	"github.com/hpungsan/hookah/internal/db"
	"github.com/hpungsan/hookah/internal/generate"
	"github.com/hpungsan/hookah/internal/history"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/logging"
	"github.com/hpungsan/hookah/internal/ops"
	"github.com/hpungsan/hookah/internal/postgres"
	"github.com/hpungsan/hookah/internal/ratelimit"
)

// documentStore is what the cache and the history recorder need from a backend.
type documentStore interface {
	GetSuggestion(ctx context.Context, hash string) (*hookah.Record, error)
	InsertSuggestion(ctx context.Context, r *hookah.Record) error
	InsertHistory(ctx context.Context, e *hookah.HistoryEntry) error
	ListHistory(ctx context.Context, userID string) ([]hookah.HistoryRow, error)
}

var (
	_ documentStore = (*db.Store)(nil)
	_ documentStore = (*postgres.Store)(nil)
)

// runtime holds the wired service and everything that must be released with it.
type runtime struct {
	cfg     *config.Config
	log     *logrus.Logger
	svc     *ops.Service
	closers []func() error
	cancel  context.CancelFunc
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() {
	r.cancel()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.WithError(err).Warn("close failed")
		}
	}
}

// defaultHome returns ~/.hookah, or .hookah when the home directory is unknown.
func defaultHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".hookah"
	}
	return filepath.Join(homeDir, ".hookah")
}

// loadConfig reads the config file, overlays HOOKAH_* variables and validates the result.
func loadConfig(home, configPath string, lookup func(string) (string, bool)) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(home)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err = config.ApplyEnv(cfg, lookup)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured document store.
func openStore(ctx context.Context, cfg *config.Config, home string) (documentStore, func() error, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		database, err := db.Init(home)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		return db.NewStore(database), database.Close, nil
	}
}

// newLimiter builds the configured rate limiter. In-process state is swept until ctx is done.
func newLimiter(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ratelimit.Limiter, func() error) {
	switch cfg.RateLimiter {
	case config.LimiterRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return ratelimit.NewRedisFixedWindow(client, cfg.RateLimit, cfg.RateWindow(), log), client.Close
	case config.LimiterTokenBucket:
		limiter := ratelimit.NewTokenBucket(cfg.RateLimit, cfg.RateWindow())
		limiter.StartCleanup(ctx, cfg.RateWindow())
		return limiter, nil
	default:
		limiter := ratelimit.NewFixedWindow(cfg.RateLimit, cfg.RateWindow())
		limiter.StartCleanup(ctx, cfg.RateWindow())
		return limiter, nil
	}
}

// newGenerator builds the Gemini-backed generation client.
func newGenerator(cfg *config.Config, log logrus.FieldLogger) (ops.Generator, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("gemini_api_key is required (set HOOKAH_GEMINI_API_KEY)")
	}
	backend := generate.NewGemini(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey, &http.Client{})
	return generate.New(backend, generate.Options{
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
		Timeout:     cfg.GenerationTimeout(),
	}, log), nil
}

// buildRuntime wires the suggestion service from configuration.
func buildRuntime(home, configPath string, opts appOptions) (*runtime, error) {
	cfg, err := loadConfig(home, configPath, opts.lookupEnv)
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required (set HOOKAH_JWT_SECRET)")
	}

	log := logging.NewWithWriter(opts.stderr, cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithCancel(context.Background())
	rt := &runtime{cfg: cfg, log: log, cancel: cancel}

	store, closeStore, err := openStore(ctx, cfg, home)
	if err != nil {
		cancel()
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	limiter, closeLimiter := newLimiter(ctx, cfg, log)
	if closeLimiter != nil {
		rt.closers = append(rt.closers, closeLimiter)
	}

	gen := opts.generator
	if gen == nil {
		gen, err = newGenerator(cfg, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.svc = ops.New(ops.Deps{
		Verifier:   auth.NewJWTVerifier(cfg.JWTSecret),
		Limiter:    limiter,
		Cache:      cache.New(store, log),
		Generator:  gen,
		History:    history.New(store, log),
		Log:        log,
		RetryAfter: cfg.RateWindow(),
	})

	log.WithFields(logrus.Fields{
		"store":        cfg.Store,
		"rate_limiter": cfg.RateLimiter,
		"rate_limit":   cfg.RateLimit,
		"model":        cfg.GeminiModel,
	}).Debug("service wired")

	return rt, nil
}

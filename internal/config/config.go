package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Rate limiter backends.
const (
	LimiterMemory      = "memory"
	LimiterRedis       = "redis"
	LimiterTokenBucket = "token_bucket"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds application configuration.
type Config struct {
	// RateLimit is the number of suggestion requests admitted per user per window.
	RateLimit int `json:"rate_limit"`

	// RateWindowSeconds is the fixed window length.
	RateWindowSeconds int `json:"rate_window_seconds"`

	// RateLimiter selects the limiter backend: memory, redis or token_bucket.
	// memory and token_bucket are per process; redis is shared across instances.
	RateLimiter string `json:"rate_limiter,omitempty"`

	// RedisAddr is the host:port of the Redis server used by the redis limiter.
	RedisAddr string `json:"redis_addr,omitempty"`

	// MaxAttempts is the total number of generation attempts, including the first.
	MaxAttempts int `json:"max_attempts"`

	// RetryDelayMS is the fixed delay between generation attempts.
	RetryDelayMS int `json:"retry_delay_ms"`

	// GenerationTimeoutSeconds bounds a single call to the generation service.
	GenerationTimeoutSeconds int `json:"generation_timeout_seconds"`

	GeminiModel   string `json:"gemini_model"`
	GeminiBaseURL string `json:"gemini_base_url"`

	// GeminiAPIKey is normally supplied through HOOKAH_GEMINI_API_KEY.
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`

	// JWTSecret is the HS256 secret used to verify bearer tokens.
	JWTSecret string `json:"jwt_secret,omitempty"`

	// Store selects the document store: sqlite or postgres.
	Store string `json:"store,omitempty"`

	// PostgresDSN is required when Store is postgres.
	PostgresDSN string `json:"postgres_dsn,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RateLimit:                10,
		RateWindowSeconds:        60,
		RateLimiter:              LimiterMemory,
		RedisAddr:                "127.0.0.1:6379",
		MaxAttempts:              5,
		RetryDelayMS:             1000,
		GenerationTimeoutSeconds: 30,
		GeminiModel:              "gemini-pro",
		GeminiBaseURL:            "https://generativelanguage.googleapis.com",
		Store:                    StoreSQLite,
		Bind:                     "127.0.0.1",
		Port:                     8080,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// RateWindow returns the rate limit window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

// RetryDelay returns the delay between generation attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// GenerationTimeout returns the per-call timeout for the generation service.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.hookah.
func Load(baseDir string) (*Config, error) {
	return LoadFile(filepath.Join(baseDir, "config.json"))
}

// LoadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func LoadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence when non-zero.
func Merge(base, overlay *Config) *Config {
	result := *base

	mergeInt(&result.RateLimit, overlay.RateLimit)
	mergeInt(&result.RateWindowSeconds, overlay.RateWindowSeconds)
	mergeInt(&result.MaxAttempts, overlay.MaxAttempts)
	mergeInt(&result.RetryDelayMS, overlay.RetryDelayMS)
	mergeInt(&result.GenerationTimeoutSeconds, overlay.GenerationTimeoutSeconds)
	mergeInt(&result.DBMaxOpenConns, overlay.DBMaxOpenConns)
	mergeInt(&result.DBMaxIdleConns, overlay.DBMaxIdleConns)
	mergeInt(&result.Port, overlay.Port)

	mergeString(&result.RateLimiter, overlay.RateLimiter)
	mergeString(&result.RedisAddr, overlay.RedisAddr)
	mergeString(&result.GeminiModel, overlay.GeminiModel)
	mergeString(&result.GeminiBaseURL, overlay.GeminiBaseURL)
	mergeString(&result.GeminiAPIKey, overlay.GeminiAPIKey)
	mergeString(&result.JWTSecret, overlay.JWTSecret)
	mergeString(&result.Store, overlay.Store)
	mergeString(&result.PostgresDSN, overlay.PostgresDSN)
	mergeString(&result.Bind, overlay.Bind)
	mergeString(&result.LogLevel, overlay.LogLevel)
	mergeString(&result.LogFormat, overlay.LogFormat)

	return &result
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// envPrefix is prepended to every environment variable name.
const envPrefix = "HOOKAH_"

// ApplyEnv overlays HOOKAH_* environment variables onto cfg.
// lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) (*Config, error) {
	overlay := &Config{}

	strs := map[string]*string{
		"RATE_LIMITER":    &overlay.RateLimiter,
		"REDIS_ADDR":      &overlay.RedisAddr,
		"GEMINI_MODEL":    &overlay.GeminiModel,
		"GEMINI_BASE_URL": &overlay.GeminiBaseURL,
		"GEMINI_API_KEY":  &overlay.GeminiAPIKey,
		"JWT_SECRET":      &overlay.JWTSecret,
		"STORE":           &overlay.Store,
		"POSTGRES_DSN":    &overlay.PostgresDSN,
		"BIND":            &overlay.Bind,
		"LOG_LEVEL":       &overlay.LogLevel,
		"LOG_FORMAT":      &overlay.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT":                 &overlay.RateLimit,
		"RATE_WINDOW_SECONDS":        &overlay.RateWindowSeconds,
		"MAX_ATTEMPTS":               &overlay.MaxAttempts,
		"RETRY_DELAY_MS":             &overlay.RetryDelayMS,
		"GENERATION_TIMEOUT_SECONDS": &overlay.GenerationTimeoutSeconds,
		"DB_MAX_OPEN_CONNS":          &overlay.DBMaxOpenConns,
		"DB_MAX_IDLE_CONNS":          &overlay.DBMaxIdleConns,
		"PORT":                       &overlay.Port,
	}
	for name, dst := range ints {
		v, ok := lookup(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s%s must be an integer: %w", envPrefix, name, err)
		}
		*dst = n
	}

	return Merge(cfg, overlay), nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.RateLimit < 1 {
		return fmt.Errorf("rate_limit must be at least 1")
	}
	if c.RateWindowSeconds < 1 {
		return fmt.Errorf("rate_window_seconds must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.RetryDelayMS < 0 {
		return fmt.Errorf("retry_delay_ms must not be negative")
	}
	switch c.RateLimiter {
	case LimiterMemory, LimiterTokenBucket:
	case LimiterRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis rate limiter")
		}
	default:
		return fmt.Errorf("rate_limiter must be one of: memory, redis, token_bucket")
	}
	switch c.Store {
	case StoreSQLite:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("store must be one of: sqlite, postgres")
	}
	return nil
}

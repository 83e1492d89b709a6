// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port string
	// BodyLimit bounds request body size, echo syntax ("2M").
	BodyLimit string

	// MongoURL and MongoDatabase locate the document store.
	MongoURL      string
	MongoDatabase string

	// RedisURL locates the rate limiter backend. Empty disables rate
	// limiting.
	RedisURL string

	// JWTSecret signs and verifies app session tokens.
	JWTSecret string

	// ProviderKeys maps provider name to the server-side API key used when
	// the caller supplies none.
	ProviderKeys map[string]string
	// DefaultProvider handles model ids without a provider prefix.
	DefaultProvider string

	// AppURL and AppName are sent as attribution headers to aggregator
	// providers.
	AppURL  string
	AppName string

	// TitleModel is the composite model id used for thread title
	// generation.
	TitleModel string

	// RateLimitRequests per RateLimitWindow, per user or client IP.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// LogJSON switches the log handler from pretty terminal output to
	// line-delimited JSON.
	LogJSON bool
	// LogLevel is debug, info, warn or error.
	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:          envOr("PORT", "8080"),
		BodyLimit:     envOr("BODY_LIMIT", "2M"),
		MongoURL:      os.Getenv("MONGODB_URL"),
		MongoDatabase: envOr("MONGODB_DATABASE", "relaychat"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ProviderKeys: map[string]string{
			"openai":     os.Getenv("OPENAI_API_KEY"),
			"openrouter": os.Getenv("OPENROUTER_API_KEY"),
			"gemini":     os.Getenv("GEMINI_API_KEY"),
		},
		DefaultProvider:   envOr("DEFAULT_PROVIDER", "openai"),
		AppURL:            envOr("APP_URL", "http://localhost:8080"),
		AppName:           envOr("APP_NAME", "relaychat"),
		TitleModel:        os.Getenv("TITLE_MODEL"),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		LogJSON:           envBool("LOG_JSON", false),
		LogLevel:          parseLevel(envOr("LOG_LEVEL", "info")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MongoURL == "" {
		return fmt.Errorf("MONGODB_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

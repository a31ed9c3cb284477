package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded once from the environment and
// passed explicitly into every component.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Tinkoff merchant credentials. The secret participates in request and
	// webhook token generation and must never reach a client.
	TinkoffTerminalKey string
	TinkoffSecret      string
	TinkoffBaseURL     string

	// Identity provider shared secret used to verify bearer tokens.
	AuthJWTSecret string
	AuthIssuer    string

	TelegramBotToken string
	TelegramChatID   string
	TelegramBaseURL  string

	OutboundTimeout  time.Duration
	RetryMaxAttempts int
	RetryBase        time.Duration

	WebhookLockTTL   time.Duration
	WebhookReplayTTL time.Duration
	IdempotencyTTL   time.Duration

	CatalogCacheTTL time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	QueueRedisPrefix string
	QueueMaxAttempts int

	MigrateOnStart bool

	LogLevel  string
	LogFormat string

	TracingEnabled bool
	OTLPEndpoint   string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TinkoffTerminalKey: k.String("TINKOFF_TERMINAL_KEY"),
		TinkoffSecret:      firstNonEmpty(k.String("TINKOFF_SECRET"), k.String("TINKOFF_PASSWORD")),
		TinkoffBaseURL:     valueOrDefault(k.String("TINKOFF_BASE_URL"), "https://securepay.tinkoff.ru/v2"),
		AuthJWTSecret:      k.String("AUTH_JWT_SECRET"),
		AuthIssuer:         k.String("AUTH_ISSUER"),
		TelegramBotToken:   k.String("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     k.String("TELEGRAM_CHAT_ID"),
		TelegramBaseURL:    valueOrDefault(k.String("TELEGRAM_BASE_URL"), "https://api.telegram.org"),
		OutboundTimeout:    parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		RetryMaxAttempts:   intOrDefault(k.Int("RETRY_MAX_ATTEMPTS"), 3),
		RetryBase:          parseDuration(k.String("RETRY_BASE"), "200ms"),
		WebhookLockTTL:     parseDuration(k.String("WEBHOOK_LOCK_TTL"), "15s"),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "15m"),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:       intOrDefault(k.Int("RATE_LIMIT_MAX"), 30),
		QueueRedisPrefix:   valueOrDefault(k.String("QUEUE_REDIS_PREFIX"), "arbarea:queue"),
		QueueMaxAttempts:   intOrDefault(k.Int("QUEUE_MAX_ATTEMPTS"), 6),
		MigrateOnStart:     parseBool(valueOrDefault(k.String("MIGRATE_ON_START"), "true")),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          k.String("LOG_FORMAT"),
		TracingEnabled:     parseBool(k.String("OTEL_TRACING_ENABLED")),
		OTLPEndpoint:       k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.LogFormat == "" {
		if cfg.AppEnv == "development" {
			cfg.LogFormat = "console"
		} else {
			cfg.LogFormat = "json"
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.TinkoffTerminalKey == "" || cfg.TinkoffSecret == "" {
		return nil, errors.New("TINKOFF_TERMINAL_KEY and TINKOFF_SECRET are required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// TelegramConfigured reports whether notification credentials are present.
func (c *Config) TelegramConfigured() bool {
	return strings.TrimSpace(c.TelegramBotToken) != "" && strings.TrimSpace(c.TelegramChatID) != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadForTests allows tests to override environment variables without leaking
// the overrides into the surrounding process.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":         "postgres://localhost:5432/arbarea",
		"REDIS_URL":            "redis://localhost:6379/0",
		"TINKOFF_TERMINAL_KEY": "TK-TEST",
		"TINKOFF_SECRET":       "secret",
		"TINKOFF_PASSWORD":     "",
		"OUTBOUND_TIMEOUT":     "",
		"PORT":                 "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "https://securepay.tinkoff.ru/v2", cfg.TinkoffBaseURL)
	require.Equal(t, 10*time.Second, cfg.OutboundTimeout)
	require.Equal(t, 30, cfg.RateLimitMax)
	require.True(t, cfg.MigrateOnStart)
	require.False(t, cfg.TelegramConfigured())
}

func TestLoadRequiresCredentials(t *testing.T) {
	env := baseEnv()
	env["TINKOFF_SECRET"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["DATABASE_URL"] = ""
	_, err = config.LoadForTests(env)
	require.Error(t, err)
}

func TestSecretFallsBackToPassword(t *testing.T) {
	env := baseEnv()
	env["TINKOFF_SECRET"] = ""
	env["TINKOFF_PASSWORD"] = "legacy-secret"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "legacy-secret", cfg.TinkoffSecret)
}

func TestTelegramConfigured(t *testing.T) {
	env := baseEnv()
	env["TELEGRAM_BOT_TOKEN"] = "123:abc"
	env["TELEGRAM_CHAT_ID"] = "-100200300"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.TelegramConfigured())
}

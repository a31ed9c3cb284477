package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slava9999-dev/arbarea-backend/internal/config"
	"github.com/slava9999-dev/arbarea-backend/internal/notify"
	"github.com/slava9999-dev/arbarea-backend/internal/obs"
	"github.com/slava9999-dev/arbarea-backend/internal/queue"
	"github.com/slava9999-dev/arbarea-backend/internal/resilience"
)

// The worker drains the paid-notification queue and delivers messages via the
// Telegram bot API, so a slow or flapping bot endpoint never adds latency to
// webhook acknowledgments.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Warn().Err(err).Msg("redis tracing instrumentation failed")
	}

	obs.MustRegisterDomainMetrics("arbarea", prometheus.NewRegistry())

	if !cfg.TelegramConfigured() {
		logger.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the worker")
	}

	telegram := notify.TelegramClient{
		Cfg: notify.TelegramConfig{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
			BaseURL:  cfg.TelegramBaseURL,
		},
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second),
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.OutboundTimeout,
		},
	}

	worker := queue.Worker{
		R:         rdb,
		Prefix:    cfg.QueueRedisPrefix,
		Kind:      notify.TaskOrderPaid,
		Handler:   notify.Deliverer{Telegram: telegram}.Handle,
		RetryBase: cfg.RetryBase,
		PollEvery: 250 * time.Millisecond,
	}

	logger.Info().Str("queue_prefix", cfg.QueueRedisPrefix).Msg("notification worker started")
	if err := worker.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("notification worker stopped")
}

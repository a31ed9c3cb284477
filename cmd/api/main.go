package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slava9999-dev/arbarea-backend/internal/auth"
	"github.com/slava9999-dev/arbarea-backend/internal/catalog"
	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/config"
	"github.com/slava9999-dev/arbarea-backend/internal/db"
	"github.com/slava9999-dev/arbarea-backend/internal/health"
	"github.com/slava9999-dev/arbarea-backend/internal/lock"
	"github.com/slava9999-dev/arbarea-backend/internal/notify"
	"github.com/slava9999-dev/arbarea-backend/internal/obs"
	"github.com/slava9999-dev/arbarea-backend/internal/order"
	"github.com/slava9999-dev/arbarea-backend/internal/payment"
	"github.com/slava9999-dev/arbarea-backend/internal/pricing"
	"github.com/slava9999-dev/arbarea-backend/internal/queue"
	"github.com/slava9999-dev/arbarea-backend/internal/ratelimit"
	"github.com/slava9999-dev/arbarea-backend/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Warn().Err(err).Msg("redis tracing instrumentation failed")
	}

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName: "arbarea-api",
			Endpoint:    cfg.OTLPEndpoint,
			Environment: cfg.AppEnv,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("tracer init failed, continuing without tracing")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := obs.NewHTTPMetrics("arbarea", nil, registry)
	obs.MustRegisterDomainMetrics("arbarea", registry)

	outbound := resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second),
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      0.2,
		Timeout:     cfg.OutboundTimeout,
	}

	catalogSvc := catalog.Service{
		Store: catalog.Store{Pool: pool},
		Cache: catalog.NewCache(rdb, cfg.CatalogCacheTTL),
	}
	orders := order.Store{Pool: pool}

	tinkoffCfg := payment.TinkoffConfig{
		TerminalKey: cfg.TinkoffTerminalKey,
		Secret:      cfg.TinkoffSecret,
		BaseURL:     cfg.TinkoffBaseURL,
	}
	provider := payment.TinkoffClient{Cfg: tinkoffCfg, HTTP: outbound}

	enqueuer := queue.Enqueuer{
		R:           rdb,
		Prefix:      cfg.QueueRedisPrefix,
		DedupTTL:    cfg.WebhookReplayTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
	}

	var notifier payment.PaidNotifier
	if cfg.TelegramConfigured() {
		notifier = notify.OrderPaidNotifier{Queue: enqueuer}
	} else {
		logger.Warn().Msg("telegram credentials missing, paid notifications disabled")
	}

	paymentHandlers := payment.Handlers{
		Svc: payment.Service{
			Pricing:  pricing.Engine{Catalog: catalogSvc},
			Orders:   orders,
			Provider: provider,
		},
		Webhook: payment.WebhookProcessor{
			Cfg:       tinkoffCfg,
			Orders:    orders,
			Notifier:  notifier,
			Locker:    lock.Locker{R: rdb},
			LockTTL:   cfg.WebhookLockTTL,
			Replay:    rdb,
			ReplayTTL: cfg.WebhookReplayTTL,
		},
		Validate: validator.New(),
	}
	catalogHandlers := catalog.Handlers{Svc: catalogSvc}
	healthHandler := health.Handler{Checker: health.Probes{Pool: pool, Redis: rdb}}

	verifier := auth.Verifier{
		Secret:    []byte(cfg.AuthJWTSecret),
		Issuer:    cfg.AuthIssuer,
		ClockSkew: time.Minute,
	}

	intakeLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: rdb, Prefix: "rl:payments"},
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter degraded, failing open")
		},
	}
	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(loggerContext(logger))
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", catalogHandlers.List)
		r.Get("/products/{id}", catalogHandlers.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(verifier))
			r.Use(intakeLimiter.Middleware)
			r.Use(idem.Middleware)
			r.Post("/payments", paymentHandlers.CreateOrder)
		})
	})

	// Provider callback, registered outside /api/v1 to match the URL the
	// acquirer is configured with.
	r.Post("/payments/webhook", paymentHandlers.ProviderWebhook)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func loggerContext(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
		})
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	gbhttp "github.com/gitbridge/gitbridge/internal/adapter/http"
	"github.com/gitbridge/gitbridge/internal/adapter/natskv"
	"github.com/gitbridge/gitbridge/internal/adapter/otel"
	"github.com/gitbridge/gitbridge/internal/adapter/postgres"
	"github.com/gitbridge/gitbridge/internal/adapter/ristretto"
	"github.com/gitbridge/gitbridge/internal/adapter/tiered"
	"github.com/gitbridge/gitbridge/internal/adapter/ws"
	"github.com/gitbridge/gitbridge/internal/config"
	"github.com/gitbridge/gitbridge/internal/credential"
	"github.com/gitbridge/gitbridge/internal/executor"
	"github.com/gitbridge/gitbridge/internal/idempotency"
	"github.com/gitbridge/gitbridge/internal/logger"
	"github.com/gitbridge/gitbridge/internal/middleware"
	"github.com/gitbridge/gitbridge/internal/port/cache"
	"github.com/gitbridge/gitbridge/internal/remote"
	"github.com/gitbridge/gitbridge/internal/service"
	"github.com/gitbridge/gitbridge/internal/token"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"token_ttl", cfg.TokenCache.TTL,
		"idempotency_window", cfg.Idempotency.Window,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// Idempotency record store: in-process L1, with a shared NATS KV tier
	// behind it when NATS is configured.
	l1, err := ristretto.New(cfg.Idempotency.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	var recordCache cache.Cache = l1
	if cfg.NATS.URL != "" {
		l2, closeNATS, err := natskv.Open(ctx, cfg.NATS.URL, cfg.Idempotency.Bucket, 2*cfg.Idempotency.Window)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer closeNATS()
		recordCache = tiered.New(l1, l2, cfg.Idempotency.Window)
	}

	// --- Remote services ---

	registry := remote.NewRegistry()
	if cfg.Services.GitHubBaseURL != "" {
		if err := registry.SetBaseURL("github", cfg.Services.GitHubBaseURL); err != nil {
			return fmt.Errorf("github base url: %w", err)
		}
	}
	if cfg.Services.GitLabBaseURL != "" {
		if err := registry.SetBaseURL("gitlab", cfg.Services.GitLabBaseURL); err != nil {
			return fmt.Errorf("gitlab base url: %w", err)
		}
	}

	creds := postgres.NewCredentialStore(pool, credential.DeriveKey(cfg.Secrets.MasterKey))

	apiClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otel.Transport(nil),
	}

	tokens := make(map[string]*token.Manager)
	sources := make([]executor.TokenSource, 0)
	for _, id := range registry.IDs() {
		svc, _ := registry.Lookup(id)
		tm := token.NewManager(svc, token.Options{
			Store:     creds,
			Client:    apiClient,
			TTL:       cfg.TokenCache.TTL,
			Threshold: cfg.Throttle.Threshold,
		})
		tokens[id] = tm
		sources = append(sources, tm)
	}

	exec := executor.New(idempotency.New(recordCache, cfg.Idempotency.Window), executor.Options{
		Client:            apiClient,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BackoffBase:       cfg.Retry.BackoffBase,
		ThrottleFallback:  cfg.Throttle.FallbackWait,
		RateLimitFallback: cfg.Retry.RateLimitFallback,
	}, sources...)

	// --- Services ---

	hub := ws.NewHub()
	bridge := service.NewBridgeService(exec, hub)
	hooks := service.NewWebhookService(hub)

	// --- HTTP ---

	shutdownTracer := otel.InitTracer("gitbridge")
	defer func() { _ = shutdownTracer(context.Background()) }()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	handlers := gbhttp.NewHandlers(exec, bridge, hooks, tokens, version)

	r := chi.NewRouter()
	r.Use(gbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(gbhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(gbhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.Handler)
	r.Use(otel.HTTPMiddleware("gitbridge"))
	r.Use(metrics.Middleware)

	r.Get("/ws", hub.HandleWS)
	gbhttp.MountRoutes(r, handlers, registry, cfg.Webhook)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

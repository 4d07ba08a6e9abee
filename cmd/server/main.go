// Command server starts the AI interview engine HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/ai/template"
	httpserver "github.com/fairyhunter13/ai-interview-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/lock"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-engine/internal/app"
	"github.com/fairyhunter13/ai-interview-engine/internal/config"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
	"github.com/fairyhunter13/ai-interview-engine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, AI, session, and monitoring instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Infra: DB pool
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Repositories
	sessRepo := postgres.NewSessionRepo(pool)
	planRepo := postgres.NewPlanRepo(pool)
	snapRepo := postgres.NewSnapshotRepo(pool)

	// Redis-backed per-session lock
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	locker := lock.NewRedisLocker(rdb, cfg.SessionLockTTL)

	// Event producer (Redpanda)
	producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close event producer", slog.Any("error", err))
		}
	}()

	// Question generation: the OpenRouter client when an API key is
	// configured, otherwise the deterministic template bank. The AI client
	// also serves as the classifier delegate for ambiguous replies.
	var gen domain.QuestionGenerator
	var delegate domain.ClassifierDelegate
	if cfg.AIEnabled() {
		aicl := openrouter.New(cfg)
		gen = aicl
		delegate = aicl
		slog.Info("question generator: openrouter", slog.String("model", cfg.OpenRouterModel))
	} else {
		gen = template.New()
		slog.Info("question generator: template bank (no API key configured)")
	}

	rules, err := config.LoadClassifierRules(cfg.ClassifierRulesPath)
	if err != nil {
		slog.Error("classifier rules load failed", slog.Any("error", err))
		os.Exit(1)
	}
	classifier := usecase.NewClassifier(rules, delegate)

	// Usecases
	sessionSvc := usecase.NewSessionService(sessRepo, planRepo, locker, classifier, gen, producer)
	monitoringSvc := usecase.NewMonitoringService(snapRepo, cfg.MaxSnapshotMB)

	// Readiness checks
	dbCheck, redisCheck, kafkaCheck := app.BuildReadinessChecks(pool, rdb, producer)

	// HTTP server
	srv := httpserver.NewServer(cfg, sessionSvc, monitoringSvc, dbCheck, redisCheck, kafkaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

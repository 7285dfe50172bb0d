package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/attempt"
	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/database"
	"github.com/Suraj08344/examproct-backend/internal/handler"
	"github.com/Suraj08344/examproct-backend/internal/logger"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/repository"
	"github.com/Suraj08344/examproct-backend/internal/router"
	"github.com/Suraj08344/examproct-backend/internal/service"
	"github.com/Suraj08344/examproct-backend/internal/signaling"
	"github.com/Suraj08344/examproct-backend/internal/store"
	"github.com/Suraj08344/examproct-backend/internal/validator"
	"github.com/Suraj08344/examproct-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamProct Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	examRepo := repository.NewExamRepository(pool, rdb, log)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	resultService := service.NewResultService(attemptRepo, log)
	notificationService := service.NewNotificationService(attemptRepo, eventRepo, log)
	monitorService := service.NewMonitorService(monitorRepo, eventRepo)

	// ─── Realtime Channel ─────────────────────────────────────────────
	hub := realtime.NewHub(log)
	bridge := realtime.NewRedisBridge(rdb, hub, log)
	relay := signaling.NewRelay(hub, log)

	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	go bridge.Run(bridgeCtx)

	// ─── Attempt Registry ─────────────────────────────────────────────
	sessionStore := store.NewRedisStore(rdb, cfg.SnapshotGrace, log)
	registry := attempt.NewRegistry(examRepo, resultService, sessionStore, hub, attempt.Config{
		AutosaveInterval: cfg.AutosaveInterval,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt:   handler.NewAttemptHandler(registry, log),
		WS:        handler.NewWSHandler(registry, examRepo, hub, relay, rdb, log, cfg.AllowedOrigins),
		ProctorWS: handler.NewProctorWSHandler(examRepo, hub, relay, notificationService, monitorService, log, cfg.AllowedOrigins),
		Proctor:   handler.NewProctorHandler(notificationService, hub, log),
		Monitor:   handler.NewMonitorHandler(rdb, examRepo, monitorService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	eventWorker := worker.NewEventWorker(eventRepo, rdb, log)
	snapshotWorker := worker.NewSnapshotWorker(attemptRepo, rdb, log)

	go eventWorker.Start(workerCtx)
	go snapshotWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Snapshot every live attempt so students can resume after the
	// restart, then stop the bridge and workers.
	registry.Shutdown(shutdownCtx)
	bridgeCancel()

	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

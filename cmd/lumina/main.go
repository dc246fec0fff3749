package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina/internal/accounts"
	"github.com/lumina-lms/lumina/internal/app"
	"github.com/lumina-lms/lumina/internal/auth"
	"github.com/lumina-lms/lumina/internal/authz"
	"github.com/lumina-lms/lumina/internal/courses"
	"github.com/lumina-lms/lumina/internal/entitlements"
	"github.com/lumina-lms/lumina/internal/lessons"
	"github.com/lumina-lms/lumina/internal/observability"
	"github.com/lumina-lms/lumina/internal/platform/cache"
	"github.com/lumina-lms/lumina/internal/platform/db"
	"github.com/lumina-lms/lumina/internal/storage"
	"github.com/lumina-lms/lumina/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	files := storage.NewFileStore(cfg.StorageDir)

	notifier, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	entitlementRepo := entitlements.NewRepository(dbpool)
	entitlementService := entitlements.NewService(entitlementRepo)

	courseRepo := courses.NewRepository(dbpool)
	engine := authz.NewEngine(entitlementService, courseRepo).WithRecorder(metrics)

	courseService := courses.NewService(courseRepo, engine, entitlementService, files)
	courseHandler := courses.NewHandler(logger, courseService)

	lessonRepo := lessons.NewRepository(dbpool)
	lessonService := lessons.NewService(lessonRepo, engine, files)
	lessonHandler := lessons.NewHandler(logger, lessonService)

	accountRepo := accounts.NewRepository(dbpool)
	tokenStore := accounts.NewTokenStore(redisClient)
	accountService := accounts.NewService(accountRepo, engine, entitlementService, tokenStore, notifier)
	accountHandler := accounts.NewHandler(logger, accountService)

	tokenManager := auth.NewTokenManager(redisClient, cfg.TokenTTL)
	authService := auth.NewService(accountRepo, entitlementService, tokenManager)
	authHandler := auth.NewHandler(logger, authService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		TokenManager:    tokenManager,
		AuthHandler:     authHandler,
		AccountsHandler: accountHandler,
		CoursesHandler:  courseHandler,
		LessonsHandler:  lessonHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

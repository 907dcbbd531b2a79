package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/runbook-hub/runbook-hub/internal/access"
	accesshttp "github.com/runbook-hub/runbook-hub/internal/access/http"
	"github.com/runbook-hub/runbook-hub/internal/app"
	"github.com/runbook-hub/runbook-hub/internal/audit"
	audithttp "github.com/runbook-hub/runbook-hub/internal/audit/http"
	"github.com/runbook-hub/runbook-hub/internal/auth"
	"github.com/runbook-hub/runbook-hub/internal/identity"
	"github.com/runbook-hub/runbook-hub/internal/runbooks"
	runbookshttp "github.com/runbook-hub/runbook-hub/internal/runbooks/http"
	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := settings.NewRedisStore(redisClient)
	provider := identity.NewContextProvider(identity.Project{ID: cfg.ProjectID, Name: cfg.ProjectName})

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	authService := auth.NewService(store, cfg.ProjectID)

	controller := access.NewController(store, provider, logger)
	trail := audit.NewTrail(store, provider, logger)
	runbookService := runbooks.NewService(runbooks.NewRepository(store, cfg.ProjectID), controller, trail)

	authHandler := auth.NewHandler(logger, authService, sessionManager, func(r *http.Request) bool {
		if err := controller.Init(r.Context()); err != nil {
			logger.Warn("init access controller", slog.Any("error", err))
		}
		return controller.CanManageSecurity(r.Context())
	})

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		Accounts:        authService,
		AuthHandler:     authHandler,
		SecurityHandler: accesshttp.NewHandler(logger, controller),
		AuditHandler:    audithttp.NewHandler(logger, trail, controller),
		RunbooksHandler: runbookshttp.NewHandler(logger, runbookService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	trail.Flush()
}

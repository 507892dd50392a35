package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/roommend/roommend/internal/app"
	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/dashboard"
	"github.com/roommend/roommend/internal/observability"
	"github.com/roommend/roommend/internal/platform/cache"
	"github.com/roommend/roommend/internal/platform/db"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/roles"
	"github.com/roommend/roommend/internal/session"
	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/users"
	"github.com/roommend/roommend/internal/view"
	"github.com/roommend/roommend/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	templates.SetDecorator(dashboard.Decorator(csrfManager, logger))
	guard := app.NewGuard(logger, templates, metrics)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, jobClient, metrics, logger)
	authenticator := auth.NewCoalescingAuthenticator(authService)

	registry := session.NewRegistry(sessionStore(cfg, redisClient), session.WithTTL(cfg.AuthSessionTTL))

	rbacService := rbac.NewService(roles.NewRepository(dbpool))
	usersService := users.NewService(users.NewRepository(dbpool), rbacService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Metrics:            metrics,
		Authenticator:      authenticator,
		Refresher:          authService,
		Registry:           registry,
		AuthHandler:        auth.NewHandler(logger, templates, sessionManager, csrfManager),
		DashboardHandler:   dashboard.NewHandler(logger, templates, guard),
		RolesHandler:       roles.NewHandler(logger, rbacService, templates, guard),
		UsersHandler:       users.NewHandler(logger, usersService, rbacService, templates, guard),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, templates, guard),
		SessionAPI:         session.NewAPIHandler(logger, registry, authenticator, guard),
		JobHandler:         jobs.NewHandler(inspector, logger, guard),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("session_store", cfg.SessionStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func sessionStore(cfg *app.Config, client redis.UniversalClient) session.Store {
	if cfg.SessionStore == app.SessionStoreMemory {
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(client)
}

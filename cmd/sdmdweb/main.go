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

	"github.com/AceBNeato/sdmdweb-sub001/internal/app"
	"github.com/AceBNeato/sdmdweb-sub001/internal/auth"
	"github.com/AceBNeato/sdmdweb-sub001/internal/elevation"
	"github.com/AceBNeato/sdmdweb-sub001/internal/observability"
	"github.com/AceBNeato/sdmdweb-sub001/internal/platform/cache"
	"github.com/AceBNeato/sdmdweb-sub001/internal/platform/db"
	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
	"github.com/AceBNeato/sdmdweb-sub001/internal/roles"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
	"github.com/AceBNeato/sdmdweb-sub001/internal/users"
	"github.com/AceBNeato/sdmdweb-sub001/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "sdmdweb_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	activityLogger := shared.NewActivityLogger(dbpool, logger)
	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	limiter := auth.NewLimiter(redisClient, cfg.MaxLoginAttempts)
	lockoutPolicy := auth.LockoutPolicy{
		MaxAttempts: cfg.MaxLoginAttempts,
		AdminWindow: cfg.AdminLockoutWindow,
		StaffWindow: cfg.StaffLockoutWindow,
	}
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, limiter, sessionManager, rbacService, activityLogger, lockoutPolicy, logger).
		WithMetrics(metrics)
	authHandler := auth.NewHandler(logger, authService, csrfManager)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	elevationRepo := elevation.NewRepository(dbpool)
	elevationService := elevation.NewService(elevationRepo, rbacService, activityLogger, logger).
		WithNotifier(jobs.NewElevationNotifier(jobClient))
	elevationHandler := elevation.NewHandler(logger, elevationService)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, rbacService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		RolesHandler:     rolesHandler,
		UsersHandler:     usersHandler,
		ElevationHandler: elevationHandler,
		JobHandler:       jobHandler,
		Pool:             dbpool,
		RBACMiddleware:   rbacMiddleware,
		Metrics:          metrics,
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

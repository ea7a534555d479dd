package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/AceBNeato/sdmdweb-sub001/internal/app"
	"github.com/AceBNeato/sdmdweb-sub001/internal/elevation"
	"github.com/AceBNeato/sdmdweb-sub001/internal/platform/db"
	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
	"github.com/AceBNeato/sdmdweb-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	activityLogger := shared.NewActivityLogger(pool, logger)
	rbacService := rbac.NewService(rbac.NewRepository(pool), logger)
	elevationService := elevation.NewService(elevation.NewRepository(pool), rbacService, activityLogger, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeElevationSweep, Handler: jobs.NewElevationSweepHandler(elevationService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ElevationSweepCron, Task: jobs.NewElevationSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

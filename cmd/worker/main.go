package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/balanca-pos/balanca/internal/app"
	"github.com/balanca-pos/balanca/internal/ledger/accounts"
	"github.com/balanca-pos/balanca/internal/ledger/depreciation"
	"github.com/balanca-pos/balanca/internal/ledger/journal"
	"github.com/balanca-pos/balanca/internal/platform/cache"
	"github.com/balanca-pos/balanca/internal/platform/db"
	"github.com/balanca-pos/balanca/internal/shared"
	"github.com/balanca-pos/balanca/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	reportCache := shared.NewReportCache(redisClient, cfg.ReportCacheTTL)

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	journalService := journal.NewService(journal.NewRepository(pool), auditLogger, reportCache)
	depreciationRepo := depreciation.NewRepository(pool)
	depreciationService := depreciation.NewService(depreciationRepo, journalService, accountsService, auditLogger)

	depreciationJob := jobs.NewDepreciationJob(depreciationService, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), 30*24*time.Hour, logger)

	monthlyTask, err := jobs.NewDepreciationRunTask(jobs.DepreciationRunPayload{})
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationRun, Handler: depreciationJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DepreciationCron, Task: monthlyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 3 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
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

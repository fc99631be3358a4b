package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/balanca-pos/balanca/internal/app"
	"github.com/balanca-pos/balanca/internal/billing"
	"github.com/balanca-pos/balanca/internal/ledger/accounts"
	"github.com/balanca-pos/balanca/internal/ledger/depreciation"
	"github.com/balanca-pos/balanca/internal/ledger/journal"
	"github.com/balanca-pos/balanca/internal/ledger/reports"
	"github.com/balanca-pos/balanca/internal/platform/cache"
	"github.com/balanca-pos/balanca/internal/platform/db"
	"github.com/balanca-pos/balanca/internal/shared"
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
	idempotencyStore := shared.NewIdempotencyStore(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo, auditLogger, reportCache)
	journalHandler := journal.NewHandler(logger, journalService)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, reportCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	depreciationRepo := depreciation.NewRepository(pool)
	depreciationService := depreciation.NewService(depreciationRepo, journalService, accountsService, auditLogger)
	depreciationHandler := depreciation.NewHandler(logger, depreciationService)

	billingRepo := billing.NewRepository(pool)
	billingMappings := billing.NewMappingRepository(pool)
	billingService := billing.NewService(billingRepo, journalService, billingMappings, auditLogger)
	billingHandler := billing.NewHandler(logger, billingService)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AccountsHandler:     accountsHandler,
		JournalHandler:      journalHandler,
		ReportsHandler:      reportsHandler,
		DepreciationHandler: depreciationHandler,
		BillingHandler:      billingHandler,
		Idempotency:         idempotencyStore,
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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/farmledger/farmledger/internal/app"
	"github.com/farmledger/farmledger/internal/inventory"
	jobmetrics "github.com/farmledger/farmledger/internal/jobs"
	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/platform/cache"
	"github.com/farmledger/farmledger/internal/platform/db"
	"github.com/farmledger/farmledger/internal/reports"
	"github.com/farmledger/farmledger/jobs"
)

func main() {
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerService := ledger.NewService(ledger.NewRepository(pool), nil)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), nil, inventory.ServiceConfig{
		AllowBackorder: cfg.AllowBackorder,
	})
	reportCache := reports.NewCache(redisClient, cfg.CacheTTL)
	reportService := reports.NewService(reports.NewRepository(pool), reportCache)

	metrics := jobmetrics.NewMetrics(nil)
	runner := jobs.NewRunner(logger, ledgerService, inventoryService, reportService, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  runner.Handlers(),
		Cron:      jobs.DefaultCron(),
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

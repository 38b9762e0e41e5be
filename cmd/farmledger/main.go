package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/farmledger/farmledger/cmd/farmledger/cli"
	"github.com/farmledger/farmledger/internal/app"
	"github.com/farmledger/farmledger/internal/farm"
	"github.com/farmledger/farmledger/internal/inventory"
	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/observability"
	"github.com/farmledger/farmledger/internal/party"
	"github.com/farmledger/farmledger/internal/platform/cache"
	"github.com/farmledger/farmledger/internal/platform/db"
	"github.com/farmledger/farmledger/internal/posting"
	"github.com/farmledger/farmledger/internal/production"
	"github.com/farmledger/farmledger/internal/reports"
	"github.com/farmledger/farmledger/internal/shared"
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		AllowBackorder: cfg.AllowBackorder,
	})
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	partyRepo := party.NewRepository(dbpool)
	partyService := party.NewService(partyRepo, ledgerService, auditLogger)
	partyHandler := party.NewHandler(logger, partyService)

	reportCache := reports.NewCache(redisClient, cfg.CacheTTL)
	reportRepo := reports.NewRepository(dbpool)
	reportService := reports.NewService(reportRepo, reportCache)
	reportHandler := reports.NewHandler(logger, reportService)

	coordinator := posting.NewCoordinator(
		posting.NewUnitOfWork(dbpool),
		ledgerService,
		inventoryService,
		idempotencyStore,
		auditLogger,
		metrics,
		reports.PostingInvalidator{Cache: reportCache},
	)
	postingHandler := posting.NewHandler(logger, coordinator)

	farmRepo := farm.NewRepository(dbpool)
	farmService := farm.NewService(farmRepo, auditLogger)
	farmHandler := farm.NewHandler(logger, farmService)

	productionRepo := production.NewRepository(dbpool)
	productionService := production.NewService(productionRepo, inventoryService, farmService, auditLogger)
	productionHandler := production.NewHandler(logger, productionService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PartyHandler:      partyHandler,
		LedgerHandler:     ledgerHandler,
		InventoryHandler:  inventoryHandler,
		PostingHandler:    postingHandler,
		FarmHandler:       farmHandler,
		ProductionHandler: productionHandler,
		ReportsHandler:    reportHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
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

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		return fmt.Errorf("usage: farmledger jobs <trigger <name>|inspect>")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: farmledger jobs trigger <name>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %s", args[0])
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/config"
	"github.com/lendingdesk/backoffice/internal/db"
	auditdomain "github.com/lendingdesk/backoffice/internal/domain/audit"
	"github.com/lendingdesk/backoffice/internal/jobs"
	"github.com/lendingdesk/backoffice/internal/observability"
	postgresrepo "github.com/lendingdesk/backoffice/internal/repository/postgres"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var store cache.Store = cache.Nop{}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, stats cache will not be invalidated", "err", err)
		} else {
			defer client.Close()
			store = cache.NewRedisStore(client, "backoffice:")
		}
	}

	sweeper := jobs.NewSweeper(
		postgresrepo.NewLoanRepository(pool),
		postgresrepo.NewCreditRepository(pool),
		auditdomain.NewService(postgresrepo.NewAuditRepository(pool), logger),
		store,
		logger,
	)

	scheduler, err := jobs.NewScheduler(cfg.WorkerSchedule, sweeper, cfg.WorkerSweepBatches, cfg.WorkerRunTimeout, logger)
	if err != nil {
		logger.Error("invalid worker schedule", "schedule", cfg.WorkerSchedule, "err", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "schedule", cfg.WorkerSchedule, "batch_size", cfg.WorkerSweepBatches)
	// catch up immediately rather than waiting for the first tick
	jobs.RunSweep(sigCtx, sweeper, cfg.WorkerSweepBatches, cfg.WorkerRunTimeout, logger)
	scheduler.Start()

	<-sigCtx.Done()
	<-scheduler.Stop().Done()
	logger.Info("worker stopped")
}

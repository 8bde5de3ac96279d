package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/config"
	"github.com/lendingdesk/backoffice/internal/db"
	admindomain "github.com/lendingdesk/backoffice/internal/domain/admin"
	auditdomain "github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/http/handlers"
	"github.com/lendingdesk/backoffice/internal/observability"
	postgresrepo "github.com/lendingdesk/backoffice/internal/repository/postgres"
	"github.com/lendingdesk/backoffice/internal/server"
	"github.com/lendingdesk/backoffice/internal/ws"
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

	if cfg.DBAutoMigrate {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			logger.Error("failed to apply migrations", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "files", applied)
	}

	var store cache.Store = cache.Nop{}
	var cachePinger handlers.Pinger
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, stats cache disabled", "err", err)
		} else {
			defer client.Close()
			redisStore := cache.NewRedisStore(client, "backoffice:")
			store, cachePinger = redisStore, redisStore
		}
	}

	auditService := auditdomain.NewService(postgresrepo.NewAuditRepository(pool), logger)

	authRepo := db.NewAuthRepository(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	authService := auth.NewService(authRepo, jwtManager, auth.NewPasswordHasher(cfg.AuthBcryptCost), auditService, auth.Options{
		AccessTTL:           cfg.JWTAccessTTL,
		RefreshTTL:          cfg.JWTRefreshTTL,
		BootstrapAdminEmail: cfg.AuthBootstrapAdminEmail,
		Cache:               store,
	})

	loanService := loandomain.NewService(postgresrepo.NewLoanRepository(pool), auditService, store, cfg.CacheTTL)
	creditService := creditdomain.NewService(postgresrepo.NewCreditRepository(pool), auditService, store, cfg.CacheTTL)
	adminService := admindomain.NewService(authRepo, auditService, store, cfg.CacheTTL)
	dashboards := admindomain.NewDashboards(adminService, loanService, creditService, auditService)

	hub := ws.NewHub()
	notifier := ws.NewNotifier(postgresrepo.NewWSRepository(pool), hub, logger, cfg.WSPollInterval)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:           pool,
		CachePinger:      cachePinger,
		AuthHandler:      handlers.NewAuthHandler(authService, auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.AuthEnableBearer),
		LoanHandler:      handlers.NewLoanHandler(loanService),
		CreditHandler:    handlers.NewCreditHandler(creditService),
		AdminHandler:     handlers.NewAdminHandler(adminService, auditService),
		DashboardHandler: handlers.NewDashboardHandler(dashboards),
		WSHandler:        ws.NewHandler(hub, ws.Access{Loans: loanService, Credits: creditService}),
		JWTManager:       jwtManager,
		Sessions:         authService,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := notifier.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("live feed notifier stopped", "err", err)
		}
	}()

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}

package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/config"
	"github.com/lendingdesk/backoffice/internal/http/handlers"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
	"github.com/lendingdesk/backoffice/internal/version"
	"github.com/lendingdesk/backoffice/internal/ws"
)

type Dependencies struct {
	Pinger           handlers.Pinger
	CachePinger      handlers.Pinger
	AuthHandler      *handlers.AuthHandler
	LoanHandler      *handlers.LoanHandler
	CreditHandler    *handlers.CreditHandler
	AdminHandler     *handlers.AdminHandler
	DashboardHandler *handlers.DashboardHandler
	WSHandler        *ws.Handler
	JWTManager       *auth.JWTManager
	// Sessions, when set, is consulted on staff and admin routes.
	Sessions middleware.SessionChecker
}

func init() {
	// amounts arrive as json.Number so they are parsed exactly
	binding.EnableDecoderUseNumber = true
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RequestBodyLimit(cfg.MaxBodyBytes))

	health := handlers.NewHealthHandler(deps.Pinger, deps.CachePinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.JWTManager == nil {
		return withNoRoute(r)
	}
	requireAuth := middleware.RequireAuth(deps.JWTManager, cfg.AuthEnableBearer)
	staffOnly := []gin.HandlerFunc{middleware.RequireInternal()}
	if deps.Sessions != nil {
		staffOnly = append([]gin.HandlerFunc{middleware.RequireLiveSession(deps.Sessions)}, staffOnly...)
	}

	if deps.AuthHandler != nil {
		authGroup := r.Group("/v1/auth")
		authGroup.POST("/signup", deps.AuthHandler.Signup)
		authGroup.POST("/login", deps.AuthHandler.Login)
		authGroup.POST("/refresh", deps.AuthHandler.Refresh)
		authGroup.POST("/logout", deps.AuthHandler.Logout)

		protected := authGroup.Group("")
		protected.Use(requireAuth)
		protected.GET("/me", deps.AuthHandler.Me)
		protected.POST("/password", deps.AuthHandler.ChangePassword)
	}

	v1 := r.Group("/v1")
	v1.Use(requireAuth)

	if deps.LoanHandler != nil {
		// debtors read their own loans; the service scopes them
		v1.GET("/loans", deps.LoanHandler.ListLoans)
		v1.GET("/loans/summary", deps.LoanHandler.Summary)
		v1.GET("/loans/:loanId", deps.LoanHandler.GetLoan)
		v1.GET("/loans/:loanId/repayments", deps.LoanHandler.ListRepayments)

		staff := v1.Group("")
		staff.Use(staffOnly...)
		staff.POST("/loans", deps.LoanHandler.CreateLoan)
		staff.PATCH("/loans/:loanId/status", deps.LoanHandler.UpdateStatus)
		staff.POST("/loans/:loanId/repayments", deps.LoanHandler.RecordRepayment)
	}
	if deps.CreditHandler != nil {
		v1.GET("/credits", deps.CreditHandler.ListCredits)
		v1.GET("/credits/summary", deps.CreditHandler.Summary)
		v1.GET("/credits/:creditId", deps.CreditHandler.GetCredit)
		v1.GET("/credits/:creditId/payouts", deps.CreditHandler.ListPayouts)

		staff := v1.Group("")
		staff.Use(staffOnly...)
		staff.POST("/credits", deps.CreditHandler.CreateCredit)
		staff.POST("/credits/:creditId/withdraw", deps.CreditHandler.Withdraw)
		staff.POST("/credits/:creditId/payouts", deps.CreditHandler.RecordPayout)
	}
	if deps.DashboardHandler != nil {
		v1.GET("/dashboard", deps.DashboardHandler.Get)
	}
	if deps.WSHandler != nil {
		v1.GET("/ws", deps.WSHandler.HandleWebSocket)
	}

	if deps.AdminHandler != nil {
		adminGroup := r.Group("/v1/admin")
		adminGroup.Use(requireAuth)
		adminGroup.Use(staffOnly...)
		adminGroup.GET("/users", deps.AdminHandler.ListUsers)
		adminGroup.GET("/users/counts", deps.AdminHandler.UserCounts)
		adminGroup.GET("/audit-logs", deps.AdminHandler.ListAuditLogs)
		adminGroup.PATCH("/users/:userId/role", middleware.RequireRole(auth.RoleAdmin), deps.AdminHandler.UpdateUserRole)
	}

	return withNoRoute(r)
}

func withNoRoute(r *gin.Engine) *gin.Engine {
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})
	return r
}

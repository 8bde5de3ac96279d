package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/db"
	admindomain "github.com/lendingdesk/backoffice/internal/domain/admin"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
)

type AdminService interface {
	ListUsers(ctx context.Context, actor auth.Principal, f db.UserFilter) ([]db.User, error)
	UpdateUserRole(ctx context.Context, actor auth.Principal, userID, role string) (*db.User, error)
	UserCounts(ctx context.Context, actor auth.Principal) (admindomain.UserCounts, error)
}

type AuditService interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Log, error)
}

type AdminHandler struct {
	adminService AdminService
	auditService AuditService
}

func NewAdminHandler(adminService AdminService, auditService AuditService) *AdminHandler {
	return &AdminHandler{adminService: adminService, auditService: auditService}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := page(c)
	users, err := h.adminService.ListUsers(c.Request.Context(), middleware.Principal(c), db.UserFilter{
		Role:   c.Query("role"),
		Search: c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(c, err, "list_users_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.adminService.UpdateUserRole(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("userId")), req.Role)
	if err != nil {
		writeError(c, err, "update_role_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandler) UserCounts(c *gin.Context) {
	counts, err := h.adminService.UserCounts(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		writeError(c, err, "user_counts_failed")
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, offset := page(c)
	logs, err := h.auditService.List(c.Request.Context(), audit.Filter{
		ActorID:    c.Query("actor_id"),
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(c, err, "list_audit_logs_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

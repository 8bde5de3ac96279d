package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	admindomain "github.com/lendingdesk/backoffice/internal/domain/admin"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
)

type DashboardService interface {
	Staff(ctx context.Context, viewer auth.Principal) (*admindomain.StaffDashboard, error)
	Debtor(ctx context.Context, viewer auth.Principal) (*admindomain.DebtorDashboard, error)
	Creditor(ctx context.Context, viewer auth.Principal) (*admindomain.CreditorDashboard, error)
}

type DashboardHandler struct {
	dashboards DashboardService
}

func NewDashboardHandler(dashboards DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Get serves the landing dashboard for the caller's role.
func (h *DashboardHandler) Get(c *gin.Context) {
	viewer := middleware.Principal(c)
	ctx := c.Request.Context()

	var (
		body any
		err  error
	)
	switch {
	case viewer.Internal():
		body, err = h.dashboards.Staff(ctx, viewer)
	case viewer.Role == auth.RoleDebtor:
		body, err = h.dashboards.Debtor(ctx, viewer)
	case viewer.Role == auth.RoleCreditor:
		body, err = h.dashboards.Creditor(ctx, viewer)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err != nil {
		writeError(c, err, "dashboard_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": viewer.Role, "dashboard": body})
}

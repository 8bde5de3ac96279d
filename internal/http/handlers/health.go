package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/version"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness. The cache is optional: a nil
// pinger reports "disabled" and never fails readiness.
type HealthHandler struct {
	database Pinger
	cache    Pinger
}

func NewHealthHandler(database, cache Pinger) *HealthHandler {
	return &HealthHandler{database: database, cache: cache}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "backoffice-api",
		"version": version.Version,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ready", "database": "ok", "cache": "disabled"}
	code := http.StatusOK

	if h.database == nil || h.database.Ping(ctx) != nil {
		body["status"], body["database"] = "not_ready", "error"
		code = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		// stats fall back to postgres; readiness follows the database only
		if err := h.cache.Ping(ctx); err != nil {
			body["cache"] = "degraded"
		} else {
			body["cache"] = "ok"
		}
	}
	c.JSON(code, body)
}

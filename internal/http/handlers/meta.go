package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/finance"
)

type MetaHandler struct {
	env     string
	version string
}

func NewMetaHandler(env, version string) *MetaHandler {
	return &MetaHandler{env: env, version: version}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":            "Lending Back Office",
		"version":         h.version,
		"env":             h.env,
		"roles":           auth.Roles,
		"loan_statuses":   finance.LoanStatuses,
		"credit_statuses": finance.CreditStatuses,
		"day_count":       "actual/365",
		"interest_basis":  "simple",
	})
}

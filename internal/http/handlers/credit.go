package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	"github.com/lendingdesk/backoffice/internal/finance"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
)

type CreditService interface {
	CreateCredit(ctx context.Context, actor auth.Principal, req creditdomain.CreateRequest) (*creditdomain.View, error)
	ListCredits(ctx context.Context, viewer auth.Principal, f creditdomain.ListFilter) ([]creditdomain.View, error)
	GetCredit(ctx context.Context, viewer auth.Principal, creditID string) (*creditdomain.View, error)
	Withdraw(ctx context.Context, actor auth.Principal, creditID string) (*creditdomain.View, error)
	RecordPayout(ctx context.Context, actor auth.Principal, creditID string, req creditdomain.PayoutRequest) (*creditdomain.Payout, *creditdomain.View, error)
	ListPayouts(ctx context.Context, viewer auth.Principal, creditID string, limit, offset int32) ([]creditdomain.Payout, error)
	Summary(ctx context.Context, viewer auth.Principal, creditorID string) (finance.CreditStats, error)
}

type CreditHandler struct {
	creditService CreditService
}

func NewCreditHandler(creditService CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

type createCreditRequest struct {
	CreditorID   string `json:"creditor_id" binding:"required"`
	Reference    string `json:"reference" binding:"required"`
	Principal    any    `json:"principal" binding:"required"`
	InterestRate any    `json:"interest_rate" binding:"required"`
	TenureMonths int32  `json:"tenure_months" binding:"required"`
	StartDate    string `json:"start_date" binding:"required"`
	EndDate      string `json:"end_date"`
}

type payoutRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Amount any    `json:"amount" binding:"required"`
	PaidAt string `json:"paid_at"`
	Note   string `json:"note"`
}

func (h *CreditHandler) CreateCredit(c *gin.Context) {
	var req createCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.creditService.CreateCredit(c.Request.Context(), middleware.Principal(c), creditdomain.CreateRequest{
		CreditorID:   req.CreditorID,
		Reference:    req.Reference,
		Principal:    req.Principal,
		InterestRate: req.InterestRate,
		TenureMonths: req.TenureMonths,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	})
	if err != nil {
		writeError(c, err, "create_credit_failed")
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *CreditHandler) ListCredits(c *gin.Context) {
	limit, offset := page(c)
	items, err := h.creditService.ListCredits(c.Request.Context(), middleware.Principal(c), creditdomain.ListFilter{
		CreditorID: strings.TrimSpace(c.Query("creditor_id")),
		Status:     strings.TrimSpace(c.Query("status")),
		Search:     strings.TrimSpace(c.Query("q")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(c, err, "list_credits_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *CreditHandler) GetCredit(c *gin.Context) {
	item, err := h.creditService.GetCredit(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("creditId")))
	if err != nil {
		writeError(c, err, "get_credit_failed")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CreditHandler) Withdraw(c *gin.Context) {
	item, err := h.creditService.Withdraw(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("creditId")))
	if err != nil {
		writeError(c, err, "withdraw_failed")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CreditHandler) RecordPayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	payout, item, err := h.creditService.RecordPayout(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("creditId")), creditdomain.PayoutRequest{
		Kind:   req.Kind,
		Amount: req.Amount,
		PaidAt: req.PaidAt,
		Note:   req.Note,
	})
	if err != nil {
		writeError(c, err, "payout_failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payout": payout, "credit": item})
}

func (h *CreditHandler) ListPayouts(c *gin.Context) {
	limit, offset := page(c)
	items, err := h.creditService.ListPayouts(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("creditId")), limit, offset)
	if err != nil {
		writeError(c, err, "list_payouts_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *CreditHandler) Summary(c *gin.Context) {
	stats, err := h.creditService.Summary(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Query("creditor_id")))
	if err != nil {
		writeError(c, err, "credit_summary_failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

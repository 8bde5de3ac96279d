package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/finance"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
)

type LoanService interface {
	CreateLoan(ctx context.Context, actor auth.Principal, req loandomain.CreateRequest) (*loandomain.View, error)
	ListLoans(ctx context.Context, viewer auth.Principal, f loandomain.ListFilter) ([]loandomain.View, error)
	GetLoan(ctx context.Context, viewer auth.Principal, loanID string) (*loandomain.View, error)
	UpdateStatus(ctx context.Context, actor auth.Principal, loanID, status string) (*loandomain.View, error)
	RecordRepayment(ctx context.Context, actor auth.Principal, loanID string, req loandomain.RepaymentRequest) (*loandomain.Repayment, *loandomain.View, error)
	ListRepayments(ctx context.Context, viewer auth.Principal, loanID string, limit, offset int32) ([]loandomain.Repayment, error)
	Summary(ctx context.Context, viewer auth.Principal, debtorID string) (finance.LoanStats, error)
}

type LoanHandler struct {
	loanService LoanService
}

func NewLoanHandler(loanService LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

type createLoanRequest struct {
	DebtorID     string `json:"debtor_id" binding:"required"`
	Reference    string `json:"reference" binding:"required"`
	Principal    any    `json:"principal" binding:"required"`
	InterestRate any    `json:"interest_rate" binding:"required"`
	TenureMonths int32  `json:"tenure_months"`
	StartDate    string `json:"start_date" binding:"required"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
}

type repaymentRequest struct {
	Amount any    `json:"amount" binding:"required"`
	PaidAt string `json:"paid_at"`
	Note   string `json:"note"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.CreateLoan(c.Request.Context(), middleware.Principal(c), loandomain.CreateRequest{
		DebtorID:     req.DebtorID,
		Reference:    req.Reference,
		Principal:    req.Principal,
		InterestRate: req.InterestRate,
		TenureMonths: req.TenureMonths,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Status:       req.Status,
	})
	if err != nil {
		writeError(c, err, "create_loan_failed")
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	limit, offset := page(c)
	items, err := h.loanService.ListLoans(c.Request.Context(), middleware.Principal(c), loandomain.ListFilter{
		DebtorID: strings.TrimSpace(c.Query("debtor_id")),
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("q")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(c, err, "list_loans_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	item, err := h.loanService.GetLoan(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("loanId")))
	if err != nil {
		writeError(c, err, "get_loan_failed")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.UpdateStatus(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("loanId")), req.Status)
	if err != nil {
		writeError(c, err, "update_status_failed")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) RecordRepayment(c *gin.Context) {
	var req repaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	repayment, item, err := h.loanService.RecordRepayment(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("loanId")), loandomain.RepaymentRequest{
		Amount: req.Amount,
		PaidAt: req.PaidAt,
		Note:   req.Note,
	})
	if err != nil {
		writeError(c, err, "repayment_failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"repayment": repayment, "loan": item})
}

func (h *LoanHandler) ListRepayments(c *gin.Context) {
	limit, offset := page(c)
	items, err := h.loanService.ListRepayments(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Param("loanId")), limit, offset)
	if err != nil {
		writeError(c, err, "list_repayments_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Summary serves the book summary to staff, or one debtor's summary when
// debtor_id is given. Debtors always get their own.
func (h *LoanHandler) Summary(c *gin.Context) {
	stats, err := h.loanService.Summary(c.Request.Context(), middleware.Principal(c), strings.TrimSpace(c.Query("debtor_id")))
	if err != nil {
		writeError(c, err, "loan_summary_failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

package loan

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lendingdesk/backoffice/internal/finance"
)

var (
	ErrNotFound          = errors.New("loan_not_found")
	ErrInvalidInput      = errors.New("invalid_loan_input")
	ErrInvalidPeriod     = errors.New("invalid_loan_period")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrRepaymentRejected = errors.New("repayment_rejected")
	ErrOverpayment       = errors.New("repayment_exceeds_balance")
	ErrForbidden         = errors.New("forbidden")
	ErrStaleState        = errors.New("loan_changed_concurrently")
)

type Entity struct {
	ID           string             `json:"id"`
	DebtorID     string             `json:"debtor_id"`
	Reference    string             `json:"reference"`
	Principal    decimal.Decimal    `json:"principal"`
	InterestRate decimal.Decimal    `json:"interest_rate"`
	TenureMonths int32              `json:"tenure_months"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	AmountRepaid decimal.Decimal    `json:"amount_repaid"`
	Status       finance.LoanStatus `json:"status"`
	CreatedBy    string             `json:"created_by,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func (e Entity) Terms() finance.Terms {
	return finance.Terms{
		Principal:    e.Principal,
		Repaid:       e.AmountRepaid,
		RatePercent:  e.InterestRate,
		TenureMonths: int(e.TenureMonths),
		StartDate:    e.StartDate,
	}
}

func (e Entity) Position() finance.LoanPosition {
	return finance.LoanPosition{Status: e.Status, Principal: e.Principal}
}

// View is a loan together with its read-time valuation.
type View struct {
	Entity
	Valuation finance.Valuation `json:"valuation"`
}

type Repayment struct {
	ID         int64           `json:"id"`
	LoanID     string          `json:"loan_id"`
	DebtorID   string          `json:"debtor_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	RecordedBy string          `json:"recorded_by,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CreateInput struct {
	DebtorID     string
	Reference    string
	Principal    decimal.Decimal
	InterestRate decimal.Decimal
	TenureMonths int32
	StartDate    time.Time
	EndDate      time.Time
	Status       finance.LoanStatus
	CreatedBy    string
}

type RepaymentInput struct {
	LoanID     string
	Amount     decimal.Decimal
	PaidAt     time.Time
	RecordedBy string
	Note       string
	// ExpectedRepaid guards against two repayments racing on the same balance.
	ExpectedRepaid decimal.Decimal
	NewStatus      finance.LoanStatus
}

type ListFilter struct {
	DebtorID string
	Status   string
	Search   string
	Limit    int32
	Offset   int32
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, error)
	ListPositions(ctx context.Context, debtorID string) ([]finance.LoanPosition, error)
	UpdateStatus(ctx context.Context, id string, from, to finance.LoanStatus) error
	RecordRepayment(ctx context.Context, in RepaymentInput) (*Repayment, error)
	ListRepayments(ctx context.Context, loanID string, limit, offset int32) ([]Repayment, error)
	ListMatured(ctx context.Context, before time.Time, limit int32) ([]Entity, error)
}

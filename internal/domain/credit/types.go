package credit

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lendingdesk/backoffice/internal/finance"
)

var (
	ErrNotFound          = errors.New("credit_not_found")
	ErrInvalidInput      = errors.New("invalid_credit_input")
	ErrInvalidPeriod     = errors.New("invalid_credit_period")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrPayoutRejected    = errors.New("payout_rejected")
	ErrPayoutExceeds     = errors.New("payout_exceeds_principal")
	ErrForbidden         = errors.New("forbidden")
	ErrStaleState        = errors.New("credit_changed_concurrently")
)

type PayoutKind string

const (
	PayoutInterest  PayoutKind = "interest"
	PayoutPrincipal PayoutKind = "principal"
)

func ParsePayoutKind(s string) (PayoutKind, bool) {
	switch PayoutKind(s) {
	case PayoutInterest, PayoutPrincipal:
		return PayoutKind(s), true
	}
	return "", false
}

type Entity struct {
	ID            string               `json:"id"`
	CreditorID    string               `json:"creditor_id"`
	Reference     string               `json:"reference"`
	Principal     decimal.Decimal      `json:"principal"`
	InterestRate  decimal.Decimal      `json:"interest_rate"`
	TenureMonths  int32                `json:"tenure_months"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
	PrincipalPaid decimal.Decimal      `json:"principal_paid"`
	InterestPaid  decimal.Decimal      `json:"interest_paid"`
	Status        finance.CreditStatus `json:"status"`
	CreatedBy     string               `json:"created_by,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (e Entity) Terms() finance.Terms {
	return finance.Terms{
		Principal:    e.Principal,
		Repaid:       e.PrincipalPaid,
		RatePercent:  e.InterestRate,
		TenureMonths: int(e.TenureMonths),
		StartDate:    e.StartDate,
	}
}

func (e Entity) Position() finance.CreditPosition {
	return finance.CreditPosition{
		Status:        e.Status,
		Principal:     e.Principal,
		PrincipalPaid: e.PrincipalPaid,
		RatePercent:   e.InterestRate,
		TenureMonths:  int(e.TenureMonths),
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
	}
}

type View struct {
	Entity
	Valuation finance.Valuation `json:"valuation"`
}

type Payout struct {
	ID         int64           `json:"id"`
	CreditID   string          `json:"credit_id"`
	CreditorID string          `json:"creditor_id,omitempty"`
	Kind       PayoutKind      `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	RecordedBy string          `json:"recorded_by,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CreateInput struct {
	CreditorID   string
	Reference    string
	Principal    decimal.Decimal
	InterestRate decimal.Decimal
	TenureMonths int32
	StartDate    time.Time
	EndDate      time.Time
	CreatedBy    string
}

type PayoutInput struct {
	CreditID   string
	Kind       PayoutKind
	Amount     decimal.Decimal
	PaidAt     time.Time
	RecordedBy string
	Note       string
	// ExpectedPrincipalPaid guards principal payouts against concurrent writers.
	ExpectedPrincipalPaid decimal.Decimal
}

type ListFilter struct {
	CreditorID string
	Status     string
	Search     string
	Limit      int32
	Offset     int32
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, error)
	ListPositions(ctx context.Context, creditorID string) ([]finance.CreditPosition, error)
	UpdateStatus(ctx context.Context, id string, from, to finance.CreditStatus) error
	RecordPayout(ctx context.Context, in PayoutInput) (*Payout, error)
	ListPayouts(ctx context.Context, creditID string, limit, offset int32) ([]Payout, error)
	ListMatured(ctx context.Context, before time.Time, limit int32) ([]Entity, error)
}

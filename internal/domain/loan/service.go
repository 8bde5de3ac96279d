package loan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	"github.com/lendingdesk/backoffice/internal/finance"
)

type CreateRequest struct {
	DebtorID     string `validate:"required,uuid"`
	Reference    string `validate:"required,max=64"`
	Principal    any
	InterestRate any
	TenureMonths int32  `validate:"gte=0,lte=600"`
	StartDate    string `validate:"required"`
	EndDate      string
	Status       string
}

type RepaymentRequest struct {
	Amount any
	PaidAt string
	Note   string `validate:"max=500"`
}

type Service struct {
	repo     Repository
	audit    audit.Recorder
	cache    cache.Store
	cacheTTL time.Duration
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, recorder audit.Recorder, store cache.Store, cacheTTL time.Duration, opts ...Option) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if store == nil {
		store = cache.Nop{}
	}
	s := &Service{
		repo:     repo,
		audit:    recorder,
		cache:    store,
		cacheTTL: cacheTTL,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateLoan(ctx context.Context, actor auth.Principal, req CreateRequest) (*View, error) {
	if !actor.Internal() {
		return nil, ErrForbidden
	}
	in, err := s.parseCreate(req)
	if err != nil {
		return nil, err
	}
	in.CreatedBy = actor.UserID

	created, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.UserID,
		Action:     audit.ActionLoanCreated,
		TargetType: "loan",
		TargetID:   created.ID,
		Payload: map[string]any{
			"debtor_id":     created.DebtorID,
			"reference":     created.Reference,
			"principal":     created.Principal.String(),
			"interest_rate": created.InterestRate.String(),
			"tenure_months": created.TenureMonths,
		},
	})
	s.invalidate(ctx, created.DebtorID)
	return s.view(*created), nil
}

func (s *Service) parseCreate(req CreateRequest) (CreateInput, error) {
	if err := s.validate.Struct(req); err != nil {
		return CreateInput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	principal, err := finance.ParseAmount(req.Principal)
	if err != nil {
		return CreateInput{}, fmt.Errorf("%w: principal: %v", ErrInvalidInput, err)
	}
	rate, err := finance.ParseRate(req.InterestRate)
	if err != nil {
		return CreateInput{}, fmt.Errorf("%w: interest_rate: %v", ErrInvalidInput, err)
	}
	start, err := finance.ParseDate(req.StartDate)
	if err != nil {
		return CreateInput{}, fmt.Errorf("%w: start_date: %v", ErrInvalidInput, err)
	}
	end := start.AddDate(0, int(req.TenureMonths), 0)
	if strings.TrimSpace(req.EndDate) != "" {
		end, err = finance.ParseDate(req.EndDate)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: end_date: %v", ErrInvalidInput, err)
		}
	}
	if end.Before(start) {
		return CreateInput{}, ErrInvalidPeriod
	}
	status := finance.LoanPerforming
	if strings.TrimSpace(req.Status) != "" {
		status, err = finance.ParseLoanStatus(req.Status)
		if err != nil {
			return CreateInput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	return CreateInput{
		DebtorID:     strings.TrimSpace(req.DebtorID),
		Reference:    strings.TrimSpace(req.Reference),
		Principal:    principal,
		InterestRate: rate,
		TenureMonths: req.TenureMonths,
		StartDate:    start,
		EndDate:      end,
		Status:       status,
	}, nil
}

func (s *Service) ListLoans(ctx context.Context, viewer auth.Principal, f ListFilter) ([]View, error) {
	switch {
	case viewer.Internal():
	case viewer.Role == auth.RoleDebtor:
		f.DebtorID = viewer.UserID
	default:
		return nil, ErrForbidden
	}
	if strings.TrimSpace(f.Status) != "" {
		st, err := finance.ParseLoanStatus(f.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		f.Status = string(st)
	}

	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(items))
	for _, item := range items {
		out = append(out, *s.view(item))
	}
	return out, nil
}

func (s *Service) GetLoan(ctx context.Context, viewer auth.Principal, loanID string) (*View, error) {
	item, err := s.load(ctx, viewer, loanID)
	if err != nil {
		return nil, err
	}
	return s.view(*item), nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, loanID, status string) (*View, error) {
	if !actor.Internal() {
		return nil, ErrForbidden
	}
	next, err := finance.ParseLoanStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	item, err := s.load(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, item.ID, item.Status, next); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.UserID,
		Action:     audit.ActionLoanStatus,
		TargetType: "loan",
		TargetID:   item.ID,
		Payload:    map[string]any{"from": item.Status, "to": next},
	})
	s.invalidate(ctx, item.DebtorID)

	item.Status = next
	item.UpdatedAt = s.now()
	return s.view(*item), nil
}

func (s *Service) RecordRepayment(ctx context.Context, actor auth.Principal, loanID string, req RepaymentRequest) (*Repayment, *View, error) {
	if !actor.Internal() {
		return nil, nil, ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	amount, err := finance.ParseAmount(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	paidAt := s.now()
	if strings.TrimSpace(req.PaidAt) != "" {
		paidAt, err = finance.ParseDate(req.PaidAt)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: paid_at: %v", ErrInvalidInput, err)
		}
	}

	item, err := s.load(ctx, actor, loanID)
	if err != nil {
		return nil, nil, err
	}
	if !item.Status.AcceptsRepayment() {
		return nil, nil, fmt.Errorf("%w: loan is %s", ErrRepaymentRejected, item.Status)
	}
	remaining := item.Terms().Remaining()
	if amount.GreaterThan(remaining) {
		return nil, nil, fmt.Errorf("%w: remaining %s", ErrOverpayment, remaining)
	}

	repaid := item.AmountRepaid.Add(amount)
	nextStatus := item.Status
	if repaid.GreaterThanOrEqual(item.Principal) {
		nextStatus = finance.LoanPreliquidated
	}

	rep, err := s.repo.RecordRepayment(ctx, RepaymentInput{
		LoanID:         item.ID,
		Amount:         amount,
		PaidAt:         paidAt,
		RecordedBy:     actor.UserID,
		Note:           strings.TrimSpace(req.Note),
		ExpectedRepaid: item.AmountRepaid,
		NewStatus:      nextStatus,
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.UserID,
		Action:     audit.ActionRepaymentCreated,
		TargetType: "loan",
		TargetID:   item.ID,
		Payload:    map[string]any{"repayment_id": rep.ID, "amount": amount.String(), "status": nextStatus},
	})
	s.invalidate(ctx, item.DebtorID)

	item.AmountRepaid = repaid
	item.Status = nextStatus
	return rep, s.view(*item), nil
}

func (s *Service) ListRepayments(ctx context.Context, viewer auth.Principal, loanID string, limit, offset int32) ([]Repayment, error) {
	item, err := s.load(ctx, viewer, loanID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRepayments(ctx, item.ID, limit, offset)
}

// Summary aggregates the debtor's loans, or the whole book when debtorID is
// empty and the viewer is internal.
func (s *Service) Summary(ctx context.Context, viewer auth.Principal, debtorID string) (finance.LoanStats, error) {
	switch {
	case viewer.Internal():
	case viewer.Role == auth.RoleDebtor:
		debtorID = viewer.UserID
	default:
		return finance.LoanStats{}, ErrForbidden
	}

	key := cache.KeyLoanBook
	if debtorID != "" {
		key = cache.KeyDebtorLoans(debtorID)
	}
	return cache.Remember(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) (finance.LoanStats, error) {
		positions, err := s.repo.ListPositions(ctx, debtorID)
		if err != nil {
			return finance.LoanStats{}, err
		}
		return finance.SummarizeLoans(positions), nil
	})
}

// Valuate computes the valuation of an already loaded loan as of now.
func (s *Service) Valuate(item Entity) finance.Valuation {
	return finance.Value(item.Terms(), s.now())
}

func (s *Service) load(ctx context.Context, viewer auth.Principal, loanID string) (*Entity, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, ErrNotFound
	}
	item, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(item.DebtorID) {
		// hide existence from other debtors
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) view(item Entity) *View {
	return &View{Entity: item, Valuation: s.Valuate(item)}
}

func (s *Service) invalidate(ctx context.Context, debtorID string) {
	_ = s.cache.Delete(ctx, cache.KeyLoanBook, cache.KeyDebtorLoans(debtorID))
}

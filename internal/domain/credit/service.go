package credit

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
	CreditorID   string `validate:"required,uuid"`
	Reference    string `validate:"required,max=64"`
	Principal    any
	InterestRate any
	TenureMonths int32  `validate:"gte=1,lte=600"`
	StartDate    string `validate:"required"`
	EndDate      string
}

type PayoutRequest struct {
	Kind   string `validate:"required,oneof=interest principal"`
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

func (s *Service) CreateCredit(ctx context.Context, actor auth.Principal, req CreateRequest) (*View, error) {
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
		Action:     audit.ActionCreditCreated,
		TargetType: "credit",
		TargetID:   created.ID,
		Payload: map[string]any{
			"creditor_id":   created.CreditorID,
			"reference":     created.Reference,
			"principal":     created.Principal.String(),
			"interest_rate": created.InterestRate.String(),
			"tenure_months": created.TenureMonths,
		},
	})
	s.invalidate(ctx, created.CreditorID)
	return s.view(*created), nil
}

func (s *Service) parseCreate(req CreateRequest) (CreateInput, error) {
	if err := s.validate.Struct(req); err != nil {
		return CreateInput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	principal, err := finance.ParseAmount(req.Principal)
	if err != nil || !principal.IsPositive() {
		return CreateInput{}, fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
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
		if end, err = finance.ParseDate(req.EndDate); err != nil {
			return CreateInput{}, fmt.Errorf("%w: end_date: %v", ErrInvalidInput, err)
		}
	}
	if end.Before(start) {
		return CreateInput{}, ErrInvalidPeriod
	}
	return CreateInput{
		CreditorID:   strings.TrimSpace(req.CreditorID),
		Reference:    strings.TrimSpace(req.Reference),
		Principal:    principal,
		InterestRate: rate,
		TenureMonths: req.TenureMonths,
		StartDate:    start,
		EndDate:      end,
	}, nil
}

func (s *Service) ListCredits(ctx context.Context, viewer auth.Principal, f ListFilter) ([]View, error) {
	switch {
	case viewer.Internal():
	case viewer.Role == auth.RoleCreditor:
		f.CreditorID = viewer.UserID
	default:
		return nil, ErrForbidden
	}
	if strings.TrimSpace(f.Status) != "" {
		st, err := finance.ParseCreditStatus(f.Status)
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

func (s *Service) GetCredit(ctx context.Context, viewer auth.Principal, creditID string) (*View, error) {
	item, err := s.load(ctx, viewer, creditID)
	if err != nil {
		return nil, err
	}
	return s.view(*item), nil
}

// Withdraw closes an active credit early.
func (s *Service) Withdraw(ctx context.Context, actor auth.Principal, creditID string) (*View, error) {
	if !actor.Internal() {
		return nil, ErrForbidden
	}
	item, err := s.load(ctx, actor, creditID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, finance.CreditWithdrawn) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, finance.CreditWithdrawn)
	}
	if err := s.repo.UpdateStatus(ctx, item.ID, item.Status, finance.CreditWithdrawn); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.UserID,
		Action:     audit.ActionCreditWithdrawn,
		TargetType: "credit",
		TargetID:   item.ID,
		Payload:    map[string]any{"from": item.Status},
	})
	s.invalidate(ctx, item.CreditorID)

	item.Status = finance.CreditWithdrawn
	item.UpdatedAt = s.now()
	return s.view(*item), nil
}

func (s *Service) RecordPayout(ctx context.Context, actor auth.Principal, creditID string, req PayoutRequest) (*Payout, *View, error) {
	if !actor.Internal() {
		return nil, nil, ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	kind, _ := ParsePayoutKind(req.Kind)
	amount, err := finance.ParseAmount(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	paidAt := s.now()
	if strings.TrimSpace(req.PaidAt) != "" {
		if paidAt, err = finance.ParseDate(req.PaidAt); err != nil {
			return nil, nil, fmt.Errorf("%w: paid_at: %v", ErrInvalidInput, err)
		}
	}

	item, err := s.load(ctx, actor, creditID)
	if err != nil {
		return nil, nil, err
	}
	if item.Status == finance.CreditWithdrawn {
		return nil, nil, fmt.Errorf("%w: credit is %s", ErrPayoutRejected, item.Status)
	}
	if kind == PayoutPrincipal {
		if remaining := item.Terms().Remaining(); amount.GreaterThan(remaining) {
			return nil, nil, fmt.Errorf("%w: remaining %s", ErrPayoutExceeds, remaining)
		}
	}

	payout, err := s.repo.RecordPayout(ctx, PayoutInput{
		CreditID:              item.ID,
		Kind:                  kind,
		Amount:                amount,
		PaidAt:                paidAt,
		RecordedBy:            actor.UserID,
		Note:                  strings.TrimSpace(req.Note),
		ExpectedPrincipalPaid: item.PrincipalPaid,
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.UserID,
		Action:     audit.ActionPayoutCreated,
		TargetType: "credit",
		TargetID:   item.ID,
		Payload:    map[string]any{"payout_id": payout.ID, "kind": kind, "amount": amount.String()},
	})
	s.invalidate(ctx, item.CreditorID)

	if kind == PayoutPrincipal {
		item.PrincipalPaid = item.PrincipalPaid.Add(amount)
	} else {
		item.InterestPaid = item.InterestPaid.Add(amount)
	}
	return payout, s.view(*item), nil
}

func (s *Service) ListPayouts(ctx context.Context, viewer auth.Principal, creditID string, limit, offset int32) ([]Payout, error) {
	item, err := s.load(ctx, viewer, creditID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayouts(ctx, item.ID, limit, offset)
}

// Summary aggregates one creditor's credits, or the whole book for internal
// viewers when creditorID is empty. Accrued interest is computed as of now.
func (s *Service) Summary(ctx context.Context, viewer auth.Principal, creditorID string) (finance.CreditStats, error) {
	switch {
	case viewer.Internal():
	case viewer.Role == auth.RoleCreditor:
		creditorID = viewer.UserID
	default:
		return finance.CreditStats{}, ErrForbidden
	}

	key := cache.KeyCreditBook
	if creditorID != "" {
		key = cache.KeyCreditorCredits(creditorID)
	}
	// positions are cached; accrual depends on now and is recomputed per call
	positions, err := cache.Remember(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]finance.CreditPosition, error) {
		return s.repo.ListPositions(ctx, creditorID)
	})
	if err != nil {
		return finance.CreditStats{}, err
	}
	return finance.SummarizeCredits(positions, s.now()), nil
}

// Valuate accrues the outstanding principal up to now, stopping at the end date.
func (s *Service) Valuate(item Entity) finance.Valuation {
	return finance.Value(item.Terms(), finance.AccrualEnd(item.EndDate, s.now()))
}

func (s *Service) load(ctx context.Context, viewer auth.Principal, creditID string) (*Entity, error) {
	creditID = strings.TrimSpace(creditID)
	if creditID == "" {
		return nil, ErrNotFound
	}
	item, err := s.repo.GetByID(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(item.CreditorID) {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) view(item Entity) *View {
	return &View{Entity: item, Valuation: s.Valuate(item)}
}

func (s *Service) invalidate(ctx context.Context, creditorID string) {
	_ = s.cache.Delete(ctx, cache.KeyCreditBook, cache.KeyCreditorCredits(creditorID))
}

package credit_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	"github.com/lendingdesk/backoffice/internal/finance"
)

const (
	creditorA = "3b0e6a52-0d6e-4bb1-9a55-2f5a3f3f2a10"
	creditorB = "d5f1c1a8-77a4-4c0e-b1f2-6c2f9d0b8e21"
)

var (
	staff      = auth.Principal{UserID: "staff-1", Role: auth.RoleStaff}
	asCreditor = auth.Principal{UserID: creditorA, Role: auth.RoleCreditor}
	fixedNow   = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
)

type creditRepoMock struct {
	items     map[string]*creditdomain.Entity
	payouts   []creditdomain.Payout
	positions int
	nextID    int
}

func newCreditRepoMock() *creditRepoMock {
	return &creditRepoMock{items: map[string]*creditdomain.Entity{}}
}

func (m *creditRepoMock) Create(_ context.Context, in creditdomain.CreateInput) (*creditdomain.Entity, error) {
	m.nextID++
	e := &creditdomain.Entity{
		ID:            "c-" + strconv.Itoa(m.nextID),
		CreditorID:    in.CreditorID,
		Reference:     in.Reference,
		Principal:     in.Principal,
		InterestRate:  in.InterestRate,
		TenureMonths:  in.TenureMonths,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		PrincipalPaid: decimal.Zero,
		InterestPaid:  decimal.Zero,
		Status:        finance.CreditActive,
	}
	m.items[e.ID] = e
	cp := *e
	return &cp, nil
}

func (m *creditRepoMock) GetByID(_ context.Context, id string) (*creditdomain.Entity, error) {
	if e, ok := m.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, creditdomain.ErrNotFound
}

func (m *creditRepoMock) List(_ context.Context, f creditdomain.ListFilter) ([]creditdomain.Entity, error) {
	out := []creditdomain.Entity{}
	for _, e := range m.items {
		if f.CreditorID != "" && e.CreditorID != f.CreditorID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *creditRepoMock) ListPositions(_ context.Context, creditorID string) ([]finance.CreditPosition, error) {
	m.positions++
	out := []finance.CreditPosition{}
	for _, e := range m.items {
		if creditorID == "" || e.CreditorID == creditorID {
			out = append(out, e.Position())
		}
	}
	return out, nil
}

func (m *creditRepoMock) UpdateStatus(_ context.Context, id string, from, to finance.CreditStatus) error {
	e := m.items[id]
	if e.Status != from {
		return creditdomain.ErrStaleState
	}
	e.Status = to
	return nil
}

func (m *creditRepoMock) RecordPayout(_ context.Context, in creditdomain.PayoutInput) (*creditdomain.Payout, error) {
	e := m.items[in.CreditID]
	if in.Kind == creditdomain.PayoutPrincipal {
		e.PrincipalPaid = e.PrincipalPaid.Add(in.Amount)
	} else {
		e.InterestPaid = e.InterestPaid.Add(in.Amount)
	}
	p := creditdomain.Payout{ID: int64(len(m.payouts) + 1), CreditID: in.CreditID, Kind: in.Kind, Amount: in.Amount, PaidAt: in.PaidAt}
	m.payouts = append(m.payouts, p)
	return &p, nil
}

func (m *creditRepoMock) ListPayouts(_ context.Context, creditID string, _, _ int32) ([]creditdomain.Payout, error) {
	out := []creditdomain.Payout{}
	for _, p := range m.payouts {
		if p.CreditID == creditID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *creditRepoMock) ListMatured(context.Context, time.Time, int32) ([]creditdomain.Entity, error) {
	return nil, nil
}

type auditMock struct {
	actions []string
}

func (m *auditMock) Record(_ context.Context, e audit.Entry) {
	m.actions = append(m.actions, e.Action)
}

func newService(t *testing.T, store cache.Store, now time.Time) (*creditdomain.Service, *creditRepoMock, *auditMock) {
	t.Helper()
	repo := newCreditRepoMock()
	rec := &auditMock{}
	svc := creditdomain.NewService(repo, rec, store, time.Minute, creditdomain.WithClock(func() time.Time { return now }))
	return svc, repo, rec
}

func createCredit(t *testing.T, svc *creditdomain.Service, creditor, principal string, months int32) *creditdomain.View {
	t.Helper()
	v, err := svc.CreateCredit(context.Background(), staff, creditdomain.CreateRequest{
		CreditorID:   creditor,
		Reference:    "CR-" + principal,
		Principal:    principal,
		InterestRate: 12.0,
		TenureMonths: months,
		StartDate:    "2024-01-01",
	})
	require.NoError(t, err)
	return v
}

func TestCreateCredit(t *testing.T) {
	svc, _, rec := newService(t, nil, fixedNow)

	v := createCredit(t, svc, creditorA, "100000", 12)
	assert.Equal(t, finance.CreditActive, v.Status)
	assert.Equal(t, "2025-01-01", v.EndDate.Format(finance.DateLayout))
	assert.Equal(t, "5983.56", v.Valuation.AccruedInterest.StringFixed(2))
	assert.Equal(t, []string{audit.ActionCreditCreated}, rec.actions)

	_, err := svc.CreateCredit(context.Background(), staff, creditdomain.CreateRequest{
		CreditorID: creditorA, Reference: "CR-0", Principal: "0", InterestRate: "5", TenureMonths: 6, StartDate: "2024-01-01",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidInput)

	_, err = svc.CreateCredit(context.Background(), staff, creditdomain.CreateRequest{
		CreditorID: creditorA, Reference: "CR-1", Principal: "10", InterestRate: "5", TenureMonths: 6,
		StartDate: "2024-01-01", EndDate: "2023-06-01",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidPeriod)

	_, err = svc.CreateCredit(context.Background(), asCreditor, creditdomain.CreateRequest{})
	assert.ErrorIs(t, err, creditdomain.ErrForbidden)
}

func TestValuationStopsAtEndDate(t *testing.T) {
	svc, _, _ := newService(t, nil, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))

	v := createCredit(t, svc, creditorA, "100000", 6)
	assert.Equal(t, "2024-07-01", v.EndDate.Format(finance.DateLayout))
	assert.Equal(t, int64(182), v.Valuation.DaysElapsed)
	assert.Equal(t, "5983.56", v.Valuation.AccruedInterest.StringFixed(2))
}

func TestCreditorsSeeOnlyTheirCredits(t *testing.T) {
	svc, _, _ := newService(t, nil, fixedNow)
	mine := createCredit(t, svc, creditorA, "1000", 12)
	other := createCredit(t, svc, creditorB, "2000", 12)

	items, err := svc.ListCredits(context.Background(), asCreditor, creditdomain.ListFilter{CreditorID: creditorB})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)

	_, err = svc.GetCredit(context.Background(), asCreditor, other.ID)
	assert.ErrorIs(t, err, creditdomain.ErrNotFound)

	_, err = svc.ListCredits(context.Background(), auth.Principal{UserID: "d", Role: auth.RoleDebtor}, creditdomain.ListFilter{})
	assert.ErrorIs(t, err, creditdomain.ErrForbidden)

	_, err = svc.ListCredits(context.Background(), staff, creditdomain.ListFilter{Status: "frozen"})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidInput)
}

func TestWithdraw(t *testing.T) {
	svc, _, rec := newService(t, nil, fixedNow)
	v := createCredit(t, svc, creditorA, "1000", 12)

	got, err := svc.Withdraw(context.Background(), staff, v.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.CreditWithdrawn, got.Status)
	assert.Contains(t, rec.actions, audit.ActionCreditWithdrawn)

	_, err = svc.Withdraw(context.Background(), staff, v.ID)
	assert.ErrorIs(t, err, creditdomain.ErrInvalidTransition)

	_, _, err = svc.RecordPayout(context.Background(), staff, v.ID, creditdomain.PayoutRequest{Kind: "interest", Amount: "5"})
	assert.ErrorIs(t, err, creditdomain.ErrPayoutRejected)
}

func TestRecordPayout(t *testing.T) {
	svc, _, _ := newService(t, nil, fixedNow)
	ctx := context.Background()
	v := createCredit(t, svc, creditorA, "1000", 12)

	_, got, err := svc.RecordPayout(ctx, staff, v.ID, creditdomain.PayoutRequest{Kind: "interest", Amount: "50"})
	require.NoError(t, err)
	assert.Equal(t, "50", got.InterestPaid.String())
	assert.Equal(t, "1000", got.Valuation.Remaining.String())

	_, got, err = svc.RecordPayout(ctx, staff, v.ID, creditdomain.PayoutRequest{Kind: "principal", Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, "600", got.Valuation.Remaining.String())

	_, _, err = svc.RecordPayout(ctx, staff, v.ID, creditdomain.PayoutRequest{Kind: "principal", Amount: "600.5"})
	assert.ErrorIs(t, err, creditdomain.ErrPayoutExceeds)

	_, _, err = svc.RecordPayout(ctx, staff, v.ID, creditdomain.PayoutRequest{Kind: "bonus", Amount: "1"})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidInput)

	_, _, err = svc.RecordPayout(ctx, staff, v.ID, creditdomain.PayoutRequest{Kind: "interest", Amount: "0"})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidInput)

	payouts, err := svc.ListPayouts(ctx, asCreditor, v.ID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, payouts, 2)
}

func TestSummaryCachesPositionsNotAccrual(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := fixedNow
	repo := newCreditRepoMock()
	svc := creditdomain.NewService(repo, nil, cache.NewRedisStore(client, "test"), time.Minute,
		creditdomain.WithClock(func() time.Time { return now }))
	createCredit(t, svc, creditorA, "100000", 12)
	createCredit(t, svc, creditorB, "2300", 12)
	ctx := context.Background()

	stats, err := svc.Summary(ctx, staff, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCredits)
	assert.Equal(t, "102300", stats.TotalInvested.String())

	now = now.AddDate(0, 1, 0)
	later, err := svc.Summary(ctx, staff, "")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.positions)
	assert.True(t, later.AccruedInterest.GreaterThan(stats.AccruedInterest))

	own, err := svc.Summary(ctx, asCreditor, "")
	require.NoError(t, err)
	assert.Equal(t, 1, own.TotalCredits)
	assert.Equal(t, "100000", own.TotalInvested.String())
}

func TestSummaryAccruesOnOutstandingPrincipal(t *testing.T) {
	svc, _, _ := newService(t, nil, fixedNow)
	ctx := context.Background()
	v := createCredit(t, svc, creditorA, "100000", 12)

	_, got, err := svc.RecordPayout(ctx, staff, v.ID, creditdomain.PayoutRequest{Kind: "principal", Amount: "50000"})
	require.NoError(t, err)
	assert.Equal(t, "2991.78", got.Valuation.AccruedInterest.StringFixed(2))

	stats, err := svc.Summary(ctx, asCreditor, "")
	require.NoError(t, err)
	assert.True(t, stats.AccruedInterest.Equal(got.Valuation.AccruedInterest))
	assert.Equal(t, "100000", stats.ActiveValue.String())
	assert.Equal(t, "12000", stats.ProjectedInterest.String())
}

package loan_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/finance"
)

const (
	debtorA = "8f7a0e4e-4b4e-4c64-9b7e-0f3c2b1a9d11"
	debtorB = "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
)

var (
	staff    = auth.Principal{UserID: "staff-1", Role: auth.RoleStaff}
	asDebtor = auth.Principal{UserID: debtorA, Role: auth.RoleDebtor}
	fixedNow = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
)

type loanRepoMock struct {
	items      map[string]*loandomain.Entity
	repayments []loandomain.Repayment
	lastFilter loandomain.ListFilter
	nextID     int
}

func newLoanRepoMock() *loanRepoMock {
	return &loanRepoMock{items: map[string]*loandomain.Entity{}}
}

func (m *loanRepoMock) Create(_ context.Context, in loandomain.CreateInput) (*loandomain.Entity, error) {
	m.nextID++
	e := &loandomain.Entity{
		ID:           "l-" + strconv.Itoa(m.nextID),
		DebtorID:     in.DebtorID,
		Reference:    in.Reference,
		Principal:    in.Principal,
		InterestRate: in.InterestRate,
		TenureMonths: in.TenureMonths,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		AmountRepaid: decimal.Zero,
		Status:       in.Status,
		CreatedBy:    in.CreatedBy,
	}
	m.items[e.ID] = e
	cp := *e
	return &cp, nil
}

func (m *loanRepoMock) GetByID(_ context.Context, id string) (*loandomain.Entity, error) {
	if e, ok := m.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, loandomain.ErrNotFound
}

func (m *loanRepoMock) List(_ context.Context, f loandomain.ListFilter) ([]loandomain.Entity, error) {
	m.lastFilter = f
	out := []loandomain.Entity{}
	for _, e := range m.items {
		if f.DebtorID != "" && e.DebtorID != f.DebtorID {
			continue
		}
		if f.Status != "" && string(e.Status) != f.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *loanRepoMock) ListPositions(_ context.Context, debtorID string) ([]finance.LoanPosition, error) {
	out := []finance.LoanPosition{}
	for _, e := range m.items {
		if debtorID == "" || e.DebtorID == debtorID {
			out = append(out, e.Position())
		}
	}
	return out, nil
}

func (m *loanRepoMock) UpdateStatus(_ context.Context, id string, from, to finance.LoanStatus) error {
	e, ok := m.items[id]
	if !ok {
		return loandomain.ErrNotFound
	}
	if e.Status != from {
		return loandomain.ErrStaleState
	}
	e.Status = to
	return nil
}

func (m *loanRepoMock) RecordRepayment(_ context.Context, in loandomain.RepaymentInput) (*loandomain.Repayment, error) {
	e := m.items[in.LoanID]
	if !e.AmountRepaid.Equal(in.ExpectedRepaid) {
		return nil, loandomain.ErrStaleState
	}
	e.AmountRepaid = e.AmountRepaid.Add(in.Amount)
	e.Status = in.NewStatus
	rep := loandomain.Repayment{ID: int64(len(m.repayments) + 1), LoanID: in.LoanID, Amount: in.Amount, PaidAt: in.PaidAt, RecordedBy: in.RecordedBy, Note: in.Note}
	m.repayments = append(m.repayments, rep)
	return &rep, nil
}

func (m *loanRepoMock) ListRepayments(_ context.Context, loanID string, _, _ int32) ([]loandomain.Repayment, error) {
	out := []loandomain.Repayment{}
	for _, r := range m.repayments {
		if r.LoanID == loanID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *loanRepoMock) ListMatured(_ context.Context, before time.Time, _ int32) ([]loandomain.Entity, error) {
	return nil, nil
}

type auditMock struct {
	entries []audit.Entry
}

func (m *auditMock) Record(_ context.Context, e audit.Entry) {
	m.entries = append(m.entries, e)
}

type cacheMock struct {
	cache.Nop
	deleted []string
}

func (m *cacheMock) Delete(_ context.Context, keys ...string) error {
	m.deleted = append(m.deleted, keys...)
	return nil
}

func newService() (*loandomain.Service, *loanRepoMock, *auditMock, *cacheMock) {
	repo := newLoanRepoMock()
	rec := &auditMock{}
	store := &cacheMock{}
	svc := loandomain.NewService(repo, rec, store, time.Minute, loandomain.WithClock(func() time.Time { return fixedNow }))
	return svc, repo, rec, store
}

func createLoan(t *testing.T, svc *loandomain.Service, debtor, principal string) *loandomain.View {
	t.Helper()
	v, err := svc.CreateLoan(context.Background(), staff, loandomain.CreateRequest{
		DebtorID:     debtor,
		Reference:    "LN-" + principal,
		Principal:    json.Number(principal),
		InterestRate: "12",
		TenureMonths: 12,
		StartDate:    "2024-01-01",
	})
	require.NoError(t, err)
	return v
}

func TestCreateLoanParsesAndValues(t *testing.T) {
	svc, _, rec, store := newService()

	v := createLoan(t, svc, debtorA, "100000")

	assert.Equal(t, finance.LoanPerforming, v.Status)
	assert.Equal(t, "2025-01-01", v.EndDate.Format(finance.DateLayout))
	assert.Equal(t, int64(182), v.Valuation.DaysElapsed)
	assert.Equal(t, "5983.56", v.Valuation.AccruedInterest.StringFixed(2))
	assert.Equal(t, "12000", v.Valuation.MaturityInterest.String())
	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionLoanCreated, rec.entries[0].Action)
	assert.Contains(t, store.deleted, cache.KeyLoanBook)
	assert.Contains(t, store.deleted, cache.KeyDebtorLoans(debtorA))
}

func TestCreateLoanValidation(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()
	base := loandomain.CreateRequest{DebtorID: debtorA, Reference: "LN-1", Principal: "1000", InterestRate: "10", TenureMonths: 6, StartDate: "2024-01-01"}

	bad := base
	bad.Principal = "12abc"
	_, err := svc.CreateLoan(ctx, staff, bad)
	assert.ErrorIs(t, err, loandomain.ErrInvalidInput)

	bad = base
	bad.Principal = "-1"
	_, err = svc.CreateLoan(ctx, staff, bad)
	assert.ErrorIs(t, err, loandomain.ErrInvalidInput)

	bad = base
	bad.StartDate = "yesterday"
	_, err = svc.CreateLoan(ctx, staff, bad)
	assert.ErrorIs(t, err, loandomain.ErrInvalidInput)

	bad = base
	bad.DebtorID = "not-a-uuid"
	_, err = svc.CreateLoan(ctx, staff, bad)
	assert.ErrorIs(t, err, loandomain.ErrInvalidInput)

	bad = base
	bad.EndDate = "2023-12-31"
	_, err = svc.CreateLoan(ctx, staff, bad)
	assert.ErrorIs(t, err, loandomain.ErrInvalidPeriod)

	bad = base
	bad.Status = "written_off"
	_, err = svc.CreateLoan(ctx, staff, bad)
	assert.ErrorIs(t, err, loandomain.ErrInvalidInput)

	_, err = svc.CreateLoan(ctx, asDebtor, base)
	assert.ErrorIs(t, err, loandomain.ErrForbidden)
}

func TestListLoansScopesDebtors(t *testing.T) {
	svc, repo, _, _ := newService()
	createLoan(t, svc, debtorA, "1000")
	createLoan(t, svc, debtorB, "2000")

	items, err := svc.ListLoans(context.Background(), asDebtor, loandomain.ListFilter{DebtorID: debtorB})
	require.NoError(t, err)
	assert.Equal(t, debtorA, repo.lastFilter.DebtorID)
	require.Len(t, items, 1)
	assert.Equal(t, debtorA, items[0].DebtorID)

	all, err := svc.ListLoans(context.Background(), staff, loandomain.ListFilter{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, "performing", repo.lastFilter.Status)
	assert.Len(t, all, 2)

	_, err = svc.ListLoans(context.Background(), auth.Principal{UserID: "c-1", Role: auth.RoleCreditor}, loandomain.ListFilter{})
	assert.ErrorIs(t, err, loandomain.ErrForbidden)
}

func TestGetLoanHidesOtherDebtorsLoans(t *testing.T) {
	svc, _, _, _ := newService()
	v := createLoan(t, svc, debtorB, "1000")

	_, err := svc.GetLoan(context.Background(), asDebtor, v.ID)
	assert.ErrorIs(t, err, loandomain.ErrNotFound)

	got, err := svc.GetLoan(context.Background(), staff, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
}

func TestRecordRepaymentPartialThenFull(t *testing.T) {
	svc, _, rec, _ := newService()
	ctx := context.Background()
	v := createLoan(t, svc, debtorA, "1000")

	rep, updated, err := svc.RecordRepayment(ctx, staff, v.ID, loandomain.RepaymentRequest{Amount: "400", PaidAt: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "400", rep.Amount.String())
	assert.Equal(t, finance.LoanPerforming, updated.Status)
	assert.Equal(t, "600", updated.Valuation.Remaining.String())

	_, _, err = svc.RecordRepayment(ctx, staff, v.ID, loandomain.RepaymentRequest{Amount: "600.01"})
	assert.ErrorIs(t, err, loandomain.ErrOverpayment)

	_, updated, err = svc.RecordRepayment(ctx, staff, v.ID, loandomain.RepaymentRequest{Amount: json.Number("600")})
	require.NoError(t, err)
	assert.Equal(t, finance.LoanPreliquidated, updated.Status)
	assert.True(t, updated.Valuation.CurrentValue.IsZero())

	_, _, err = svc.RecordRepayment(ctx, staff, v.ID, loandomain.RepaymentRequest{Amount: "1"})
	assert.ErrorIs(t, err, loandomain.ErrRepaymentRejected)

	reps, err := svc.ListRepayments(ctx, asDebtor, v.ID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, reps, 2)

	count := 0
	for _, e := range rec.entries {
		if e.Action == audit.ActionRepaymentCreated {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestRecordRepaymentRejectsNonPositiveAndDebtors(t *testing.T) {
	svc, _, _, _ := newService()
	v := createLoan(t, svc, debtorA, "1000")

	for _, amount := range []any{"0", "-5", "abc", nil} {
		_, _, err := svc.RecordRepayment(context.Background(), staff, v.ID, loandomain.RepaymentRequest{Amount: amount})
		assert.ErrorIs(t, err, loandomain.ErrInvalidInput, "amount %v", amount)
	}
	_, _, err := svc.RecordRepayment(context.Background(), asDebtor, v.ID, loandomain.RepaymentRequest{Amount: "10"})
	assert.ErrorIs(t, err, loandomain.ErrForbidden)
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()
	v := createLoan(t, svc, debtorA, "1000")

	updated, err := svc.UpdateStatus(ctx, staff, v.ID, "overdue")
	require.NoError(t, err)
	assert.Equal(t, finance.LoanNonPerforming, updated.Status)

	updated, err = svc.UpdateStatus(ctx, staff, v.ID, "archived")
	require.NoError(t, err)
	assert.Equal(t, finance.LoanArchived, updated.Status)

	_, err = svc.UpdateStatus(ctx, staff, v.ID, "performing")
	assert.ErrorIs(t, err, loandomain.ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, staff, v.ID, "bogus")
	assert.ErrorIs(t, err, loandomain.ErrInvalidInput)
}

func TestArchivedIsTerminal(t *testing.T) {
	for _, next := range finance.LoanStatuses {
		assert.False(t, loandomain.CanTransition(finance.LoanArchived, next), "archived -> %s", next)
	}
	assert.True(t, loandomain.CanTransition(finance.LoanPreliquidated, finance.LoanArchived))
}

func TestSummary(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()
	a := createLoan(t, svc, debtorA, "1000")
	b := createLoan(t, svc, debtorA, "500")
	createLoan(t, svc, debtorA, "200")
	createLoan(t, svc, debtorB, "9000")

	_, err := svc.UpdateStatus(ctx, staff, b.ID, "non_performing")
	require.NoError(t, err)
	_, _, err = svc.RecordRepayment(ctx, staff, a.ID, loandomain.RepaymentRequest{Amount: "1000"})
	require.NoError(t, err)

	stats, err := svc.Summary(ctx, asDebtor, debtorB)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalLoans)
	assert.Equal(t, 1, stats.ActiveLoans)
	assert.Equal(t, "1700", stats.TotalBorrowed.String())
	assert.Equal(t, "700", stats.TotalOutstanding.String())
	assert.Equal(t, "1000", stats.RepaidAmount.String())
	assert.Equal(t, "500", stats.OverdueAmount.String())

	book, err := svc.Summary(ctx, staff, "")
	require.NoError(t, err)
	assert.Equal(t, 4, book.TotalLoans)
	assert.Equal(t, "10700", book.TotalBorrowed.String())
}

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/finance"
)

type fakeLoanRepo struct {
	items   []loandomain.Entity
	stale   map[string]bool
	updated []string
	before  time.Time
	listErr error
}

func (r *fakeLoanRepo) ListMatured(_ context.Context, before time.Time, limit int32) ([]loandomain.Entity, error) {
	r.before = before
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []loandomain.Entity
	for _, it := range r.items {
		if it.Status == finance.LoanPerforming && it.EndDate.Before(before) && !r.stale[it.ID] {
			out = append(out, it)
		}
		if int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeLoanRepo) UpdateStatus(_ context.Context, id string, from, to finance.LoanStatus) error {
	if r.stale[id] {
		return loandomain.ErrStaleState
	}
	for i := range r.items {
		if r.items[i].ID == id {
			if r.items[i].Status != from {
				return loandomain.ErrStaleState
			}
			r.items[i].Status = to
			r.updated = append(r.updated, id)
			return nil
		}
	}
	return loandomain.ErrNotFound
}

type fakeCreditRepo struct {
	items   []creditdomain.Entity
	updated []string
}

func (r *fakeCreditRepo) ListMatured(_ context.Context, before time.Time, limit int32) ([]creditdomain.Entity, error) {
	var out []creditdomain.Entity
	for _, it := range r.items {
		if it.Status == finance.CreditActive && it.EndDate.Before(before) {
			out = append(out, it)
		}
		if int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) UpdateStatus(_ context.Context, id string, from, to finance.CreditStatus) error {
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].Status == from {
			r.items[i].Status = to
			r.updated = append(r.updated, id)
			return nil
		}
	}
	return creditdomain.ErrStaleState
}

type recordedAudit struct {
	entries []audit.Entry
}

func (r *recordedAudit) Record(_ context.Context, e audit.Entry) {
	r.entries = append(r.entries, e)
}

func day(s string) time.Time {
	t, err := finance.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestSweeper(loans LoanRepository, credits CreditRepository, rec audit.Recorder, store cache.Store) *Sweeper {
	s := NewSweeper(loans, credits, rec, store, nil)
	s.now = func() time.Time { return time.Date(2024, 7, 1, 15, 30, 0, 0, time.UTC) }
	return s
}

func TestSweeperMarksOverdueLoansAndMaturedCredits(t *testing.T) {
	loans := &fakeLoanRepo{items: []loandomain.Entity{
		{ID: "l-1", DebtorID: "d-1", Status: finance.LoanPerforming, EndDate: day("2024-06-30")},
		{ID: "l-2", DebtorID: "d-2", Status: finance.LoanPerforming, EndDate: day("2024-07-01")},
		{ID: "l-3", DebtorID: "d-1", Status: finance.LoanPreliquidated, EndDate: day("2024-01-01")},
	}}
	credits := &fakeCreditRepo{items: []creditdomain.Entity{
		{ID: "c-1", CreditorID: "cr-1", Status: finance.CreditActive, EndDate: day("2024-05-01")},
		{ID: "c-2", CreditorID: "cr-1", Status: finance.CreditWithdrawn, EndDate: day("2024-05-01")},
	}}
	rec := &recordedAudit{}

	res, err := newTestSweeper(loans, credits, rec, nil).RunOnce(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{LoansOverdue: 1, CreditsMatured: 1}, res)
	assert.Equal(t, []string{"l-1"}, loans.updated)
	assert.Equal(t, []string{"c-1"}, credits.updated)
	assert.Equal(t, day("2024-07-01"), loans.before)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, audit.SystemActor, rec.entries[0].ActorID)
	assert.Equal(t, audit.ActionLoanStatus, rec.entries[0].Action)
	assert.Equal(t, finance.LoanNonPerforming, rec.entries[0].Payload["to"])
	assert.Equal(t, audit.ActionCreditMatured, rec.entries[1].Action)
	assert.Equal(t, "c-1", rec.entries[1].TargetID)
}

func TestSweeperDrainsInBatches(t *testing.T) {
	loans := &fakeLoanRepo{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		loans.items = append(loans.items, loandomain.Entity{ID: id, Status: finance.LoanPerforming, EndDate: day("2024-01-31")})
	}

	res, err := newTestSweeper(loans, &fakeCreditRepo{}, nil, nil).RunOnce(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, res.LoansOverdue)
	assert.Len(t, loans.updated, 5)
}

func TestSweeperSkipsConcurrentlyChangedLoans(t *testing.T) {
	loans := &fakeLoanRepo{
		items: []loandomain.Entity{
			{ID: "l-1", Status: finance.LoanPerforming, EndDate: day("2024-01-31")},
			{ID: "l-2", Status: finance.LoanPerforming, EndDate: day("2024-01-31")},
		},
	}
	// l-2 is listed but repaid before the update lands.
	stale := &staleOnUpdate{fakeLoanRepo: loans, id: "l-2"}

	res, err := newTestSweeper(stale, &fakeCreditRepo{}, nil, nil).RunOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.LoansOverdue)
	assert.Equal(t, 1, res.Skipped)
}

type staleOnUpdate struct {
	*fakeLoanRepo
	id string
}

func (r *staleOnUpdate) UpdateStatus(ctx context.Context, id string, from, to finance.LoanStatus) error {
	if id == r.id {
		return loandomain.ErrStaleState
	}
	return r.fakeLoanRepo.UpdateStatus(ctx, id, from, to)
}

func TestSweeperReturnsListErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := newTestSweeper(&fakeLoanRepo{listErr: boom}, &fakeCreditRepo{}, nil, nil).RunOnce(context.Background(), 10)
	assert.ErrorIs(t, err, boom)
}

func TestSweeperInvalidatesStatsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedisStore(client, "bo:")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.KeyLoanBook, 1, time.Minute))
	require.NoError(t, store.Set(ctx, cache.KeyDebtorLoans("d-1"), 1, time.Minute))
	require.NoError(t, store.Set(ctx, cache.KeyCreditBook, 1, time.Minute))

	loans := &fakeLoanRepo{items: []loandomain.Entity{
		{ID: "l-1", DebtorID: "d-1", Status: finance.LoanPerforming, EndDate: day("2024-06-30")},
	}}

	_, err = newTestSweeper(loans, &fakeCreditRepo{}, nil, store).RunOnce(ctx, 10)
	require.NoError(t, err)

	var v int
	ok, _ := store.Get(ctx, cache.KeyLoanBook, &v)
	assert.False(t, ok)
	ok, _ = store.Get(ctx, cache.KeyDebtorLoans("d-1"), &v)
	assert.False(t, ok)
	ok, _ = store.Get(ctx, cache.KeyCreditBook, &v)
	assert.True(t, ok, "credit stats untouched when no credit moved")
}

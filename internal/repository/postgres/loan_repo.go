package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/finance"
)

const loanColumns = `id, debtor_id, reference, principal, interest_rate, tenure_months,
       start_date, end_date, amount_repaid, status, COALESCE(created_by::text, ''), created_at, updated_at`

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

func scanLoan(row pgx.Row, out *loan.Entity) error {
	return row.Scan(
		&out.ID, &out.DebtorID, &out.Reference, &out.Principal, &out.InterestRate, &out.TenureMonths,
		&out.StartDate, &out.EndDate, &out.AmountRepaid, &out.Status, &out.CreatedBy, &out.CreatedAt, &out.UpdatedAt,
	)
}

func collectLoans(rows pgx.Rows) ([]loan.Entity, error) {
	defer rows.Close()
	out := make([]loan.Entity, 0)
	for rows.Next() {
		var item loan.Entity
		if err := scanLoan(rows, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) Create(ctx context.Context, in loan.CreateInput) (*loan.Entity, error) {
	q := `
INSERT INTO loans (
  debtor_id, reference, principal, interest_rate, tenure_months,
  start_date, end_date, status, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid)
RETURNING ` + loanColumns
	out := &loan.Entity{}
	err := scanLoan(r.pool.QueryRow(ctx, q,
		in.DebtorID, in.Reference, in.Principal, in.InterestRate, in.TenureMonths,
		in.StartDate, in.EndDate, string(in.Status), in.CreatedBy,
	), out)
	if err != nil {
		return nil, mapErr(err, loan.ErrNotFound, loan.ErrInvalidInput)
	}
	return out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	if !validID(id) {
		return nil, loan.ErrNotFound
	}
	q := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	out := &loan.Entity{}
	if err := scanLoan(r.pool.QueryRow(ctx, q, id), out); err != nil {
		return nil, mapErr(err, loan.ErrNotFound, loan.ErrInvalidInput)
	}
	return out, nil
}

func (r *LoanRepository) List(ctx context.Context, f loan.ListFilter) ([]loan.Entity, error) {
	b := newFilterBuilder(`SELECT ` + loanColumns + ` FROM loans WHERE 1=1`)
	if strings.TrimSpace(f.DebtorID) != "" {
		if !validID(f.DebtorID) {
			return []loan.Entity{}, nil
		}
		b.where("debtor_id = $%d", f.DebtorID)
	}
	if strings.TrimSpace(f.Status) != "" {
		b.where("status = $%d", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		b.where("reference ILIKE '%%' || $%d || '%%'", s)
	}
	b.page("created_at DESC", f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

func (r *LoanRepository) ListPositions(ctx context.Context, debtorID string) ([]finance.LoanPosition, error) {
	q := `SELECT status, principal FROM loans WHERE ($1::text = '' OR debtor_id::text = $1::text)`
	rows, err := r.pool.Query(ctx, q, debtorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]finance.LoanPosition, 0)
	for rows.Next() {
		var p finance.LoanPosition
		if err := rows.Scan(&p.Status, &p.Principal); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on the current status.
func (r *LoanRepository) UpdateStatus(ctx context.Context, id string, from, to finance.LoanStatus) error {
	q := `UPDATE loans SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return loan.ErrStaleState
	}
	return nil
}

func (r *LoanRepository) RecordRepayment(ctx context.Context, in loan.RepaymentInput) (*loan.Repayment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := &loan.Repayment{LoanID: in.LoanID, Amount: in.Amount, PaidAt: in.PaidAt, RecordedBy: in.RecordedBy, Note: in.Note}
	err = tx.QueryRow(ctx, `
UPDATE loans
SET amount_repaid = amount_repaid + $2, status = $3, updated_at = NOW()
WHERE id = $1 AND amount_repaid = $4
RETURNING debtor_id`,
		in.LoanID, in.Amount, string(in.NewStatus), in.ExpectedRepaid,
	).Scan(&out.DebtorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, loan.ErrStaleState
	}
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
INSERT INTO repayments (loan_id, amount, paid_at, recorded_by, note)
VALUES ($1::uuid, $2, $3, NULLIF($4, '')::uuid, $5)
RETURNING id, created_at`,
		in.LoanID, in.Amount, in.PaidAt, in.RecordedBy, in.Note,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) ListRepayments(ctx context.Context, loanID string, limit, offset int32) ([]loan.Repayment, error) {
	b := newFilterBuilder(`
SELECT r.id, r.loan_id, l.debtor_id, r.amount, r.paid_at, COALESCE(r.recorded_by::text, ''), r.note, r.created_at
FROM repayments r
JOIN loans l ON l.id = r.loan_id
WHERE 1=1`)
	b.where("r.loan_id = $%d", loanID)
	b.page("r.id DESC", limit, offset)

	rows, err := r.pool.Query(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	return collectRepayments(rows)
}

func collectRepayments(rows pgx.Rows) ([]loan.Repayment, error) {
	defer rows.Close()
	out := make([]loan.Repayment, 0)
	for rows.Next() {
		var item loan.Repayment
		if err := rows.Scan(&item.ID, &item.LoanID, &item.DebtorID, &item.Amount, &item.PaidAt, &item.RecordedBy, &item.Note, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMatured returns performing loans past their end date that still carry
// an outstanding balance.
func (r *LoanRepository) ListMatured(ctx context.Context, before time.Time, limit int32) ([]loan.Entity, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + loanColumns + `
FROM loans
WHERE status = 'performing' AND end_date < $1 AND amount_repaid < principal
ORDER BY end_date ASC
LIMIT $2`
	rows, err := r.pool.Query(ctx, q, before, limit)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

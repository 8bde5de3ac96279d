package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lendingdesk/backoffice/internal/domain/credit"
	"github.com/lendingdesk/backoffice/internal/finance"
)

const creditColumns = `id, creditor_id, reference, principal, interest_rate, tenure_months,
       start_date, end_date, principal_paid, interest_paid, status, COALESCE(created_by::text, ''), created_at, updated_at`

const payoutColumns = `p.id, p.credit_id, c.creditor_id, p.kind, p.amount, p.paid_at, COALESCE(p.recorded_by::text, ''), p.note, p.created_at`

type CreditRepository struct {
	pool *pgxpool.Pool
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

func scanCredit(row pgx.Row, out *credit.Entity) error {
	return row.Scan(
		&out.ID, &out.CreditorID, &out.Reference, &out.Principal, &out.InterestRate, &out.TenureMonths,
		&out.StartDate, &out.EndDate, &out.PrincipalPaid, &out.InterestPaid, &out.Status, &out.CreatedBy, &out.CreatedAt, &out.UpdatedAt,
	)
}

func collectCredits(rows pgx.Rows) ([]credit.Entity, error) {
	defer rows.Close()
	out := make([]credit.Entity, 0)
	for rows.Next() {
		var item credit.Entity
		if err := scanCredit(rows, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CreditRepository) Create(ctx context.Context, in credit.CreateInput) (*credit.Entity, error) {
	q := `
INSERT INTO credits (
  creditor_id, reference, principal, interest_rate, tenure_months,
  start_date, end_date, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid)
RETURNING ` + creditColumns
	out := &credit.Entity{}
	err := scanCredit(r.pool.QueryRow(ctx, q,
		in.CreditorID, in.Reference, in.Principal, in.InterestRate, in.TenureMonths,
		in.StartDate, in.EndDate, in.CreatedBy,
	), out)
	if err != nil {
		return nil, mapErr(err, credit.ErrNotFound, credit.ErrInvalidInput)
	}
	return out, nil
}

func (r *CreditRepository) GetByID(ctx context.Context, id string) (*credit.Entity, error) {
	if !validID(id) {
		return nil, credit.ErrNotFound
	}
	out := &credit.Entity{}
	if err := scanCredit(r.pool.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = $1`, id), out); err != nil {
		return nil, mapErr(err, credit.ErrNotFound, credit.ErrInvalidInput)
	}
	return out, nil
}

func (r *CreditRepository) List(ctx context.Context, f credit.ListFilter) ([]credit.Entity, error) {
	b := newFilterBuilder(`SELECT ` + creditColumns + ` FROM credits WHERE 1=1`)
	if strings.TrimSpace(f.CreditorID) != "" {
		if !validID(f.CreditorID) {
			return []credit.Entity{}, nil
		}
		b.where("creditor_id = $%d", f.CreditorID)
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
	return collectCredits(rows)
}

func (r *CreditRepository) ListPositions(ctx context.Context, creditorID string) ([]finance.CreditPosition, error) {
	q := `
SELECT status, principal, principal_paid, interest_rate, tenure_months, start_date, end_date
FROM credits
WHERE ($1::text = '' OR creditor_id::text = $1::text)`
	rows, err := r.pool.Query(ctx, q, creditorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]finance.CreditPosition, 0)
	for rows.Next() {
		var p finance.CreditPosition
		var tenure int32
		if err := rows.Scan(&p.Status, &p.Principal, &p.PrincipalPaid, &p.RatePercent, &tenure, &p.StartDate, &p.EndDate); err != nil {
			return nil, err
		}
		p.TenureMonths = int(tenure)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CreditRepository) UpdateStatus(ctx context.Context, id string, from, to finance.CreditStatus) error {
	q := `UPDATE credits SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return credit.ErrStaleState
	}
	return nil
}

func (r *CreditRepository) RecordPayout(ctx context.Context, in credit.PayoutInput) (*credit.Payout, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := &credit.Payout{CreditID: in.CreditID, Kind: in.Kind, Amount: in.Amount, PaidAt: in.PaidAt, RecordedBy: in.RecordedBy, Note: in.Note}
	q := `
UPDATE credits
SET interest_paid = interest_paid + $2, updated_at = NOW()
WHERE id = $1 AND status <> 'withdrawn'
RETURNING creditor_id`
	args := []any{in.CreditID, in.Amount}
	if in.Kind == credit.PayoutPrincipal {
		q = `
UPDATE credits
SET principal_paid = principal_paid + $2, updated_at = NOW()
WHERE id = $1 AND status <> 'withdrawn' AND principal_paid = $3 AND principal_paid + $2 <= principal
RETURNING creditor_id`
		args = append(args, in.ExpectedPrincipalPaid)
	}
	err = tx.QueryRow(ctx, q, args...).Scan(&out.CreditorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, credit.ErrStaleState
	}
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
INSERT INTO payouts (credit_id, kind, amount, paid_at, recorded_by, note)
VALUES ($1::uuid, $2, $3, $4, NULLIF($5, '')::uuid, $6)
RETURNING id, created_at`,
		in.CreditID, string(in.Kind), in.Amount, in.PaidAt, in.RecordedBy, in.Note,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CreditRepository) ListPayouts(ctx context.Context, creditID string, limit, offset int32) ([]credit.Payout, error) {
	b := newFilterBuilder(`SELECT ` + payoutColumns + ` FROM payouts p JOIN credits c ON c.id = p.credit_id WHERE 1=1`)
	b.where("p.credit_id = $%d", creditID)
	b.page("p.id DESC", limit, offset)

	rows, err := r.pool.Query(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

func collectPayouts(rows pgx.Rows) ([]credit.Payout, error) {
	defer rows.Close()
	out := make([]credit.Payout, 0)
	for rows.Next() {
		var item credit.Payout
		if err := rows.Scan(&item.ID, &item.CreditID, &item.CreditorID, &item.Kind, &item.Amount, &item.PaidAt, &item.RecordedBy, &item.Note, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMatured returns active credits whose term ended before the cutoff.
func (r *CreditRepository) ListMatured(ctx context.Context, before time.Time, limit int32) ([]credit.Entity, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + creditColumns + `
FROM credits
WHERE status = 'active' AND end_date < $1
ORDER BY end_date ASC
LIMIT $2`
	rows, err := r.pool.Query(ctx, q, before, limit)
	if err != nil {
		return nil, err
	}
	return collectCredits(rows)
}

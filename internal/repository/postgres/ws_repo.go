package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lendingdesk/backoffice/internal/domain/audit"
	"github.com/lendingdesk/backoffice/internal/domain/credit"
	"github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/ws"
)

// WSRepository tails the append-only tables behind the live feed.
type WSRepository struct {
	pool *pgxpool.Pool
}

func NewWSRepository(pool *pgxpool.Pool) *WSRepository {
	return &WSRepository{pool: pool}
}

func (r *WSRepository) LatestCursor(ctx context.Context) (ws.Cursor, error) {
	q := `
SELECT
  (SELECT COALESCE(MAX(id), 0) FROM repayments),
  (SELECT COALESCE(MAX(id), 0) FROM payouts),
  (SELECT COALESCE(MAX(id), 0) FROM audit_logs)`
	var c ws.Cursor
	err := r.pool.QueryRow(ctx, q).Scan(&c.Repayment, &c.Payout, &c.Activity)
	return c, err
}

func (r *WSRepository) ListRepaymentsSince(ctx context.Context, lastID int64, limit int32) ([]loan.Repayment, error) {
	q := `
SELECT r.id, r.loan_id, l.debtor_id, r.amount, r.paid_at, COALESCE(r.recorded_by::text, ''), r.note, r.created_at
FROM repayments r
JOIN loans l ON l.id = r.loan_id
WHERE r.id > $1
ORDER BY r.id ASC
LIMIT $2`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	return collectRepayments(rows)
}

func (r *WSRepository) ListPayoutsSince(ctx context.Context, lastID int64, limit int32) ([]credit.Payout, error) {
	q := `SELECT ` + payoutColumns + `
FROM payouts p
JOIN credits c ON c.id = p.credit_id
WHERE p.id > $1
ORDER BY p.id ASC
LIMIT $2`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

func (r *WSRepository) ListActivitySince(ctx context.Context, lastID int64, limit int32) ([]audit.Log, error) {
	q := `
SELECT id, COALESCE(actor_id::text, ''), action, target_type, target_id, payload, created_at
FROM audit_logs
WHERE id > $1
ORDER BY id ASC
LIMIT $2`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	return collectAuditLogs(rows)
}

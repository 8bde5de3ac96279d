package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lendingdesk/backoffice/internal/domain/audit"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, actorID, action, targetType, targetID string, payload []byte) error {
	q := `
INSERT INTO audit_logs (actor_id, action, target_type, target_id, payload)
VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5::jsonb)
`
	_, err := r.pool.Exec(ctx, q, actorID, action, targetType, targetID, payload)
	return err
}

func (r *AuditRepository) List(ctx context.Context, f audit.Filter) ([]audit.Log, error) {
	b := newFilterBuilder(`
SELECT id, COALESCE(actor_id::text, ''), action, target_type, target_id, payload, created_at
FROM audit_logs
WHERE 1=1`)
	if strings.TrimSpace(f.ActorID) != "" {
		b.where("actor_id::text = $%d", f.ActorID)
	}
	if strings.TrimSpace(f.Action) != "" {
		b.where("action = $%d", f.Action)
	}
	if strings.TrimSpace(f.TargetType) != "" {
		b.where("target_type = $%d", f.TargetType)
	}
	if strings.TrimSpace(f.TargetID) != "" {
		b.where("target_id = $%d", f.TargetID)
	}
	b.page("id DESC", f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	return collectAuditLogs(rows)
}

func collectAuditLogs(rows pgx.Rows) ([]audit.Log, error) {
	defer rows.Close()
	out := make([]audit.Log, 0)
	for rows.Next() {
		var item audit.Log
		if err := rows.Scan(&item.ID, &item.ActorID, &item.Action, &item.TargetType, &item.TargetID, &item.Payload, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

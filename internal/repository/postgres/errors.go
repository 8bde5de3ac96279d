package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lendingdesk/backoffice/internal/db"
)

// validID rejects ids postgres would refuse to cast to uuid.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// mapErr translates driver errors into the calling domain's sentinels.
func mapErr(err, notFound, invalid error) error {
	if err == nil {
		return nil
	}
	switch mapped := db.MapError(err); {
	case errors.Is(mapped, db.ErrNotFound):
		return notFound
	case errors.Is(mapped, db.ErrReference), errors.Is(mapped, db.ErrDuplicate):
		return fmt.Errorf("%w: %v", invalid, mapped)
	default:
		return err
	}
}

// filterBuilder appends numbered predicates to a base query.
type filterBuilder struct {
	sql  []byte
	args []any
}

func newFilterBuilder(base string) *filterBuilder {
	return &filterBuilder{sql: []byte(base)}
}

func (b *filterBuilder) where(clause string, arg any) {
	b.args = append(b.args, arg)
	b.sql = fmt.Appendf(b.sql, " AND "+clause, len(b.args))
}

func (b *filterBuilder) page(orderBy string, limit, offset int32) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	b.args = append(b.args, limit, offset)
	b.sql = fmt.Appendf(b.sql, " ORDER BY %s LIMIT $%d OFFSET $%d", orderBy, len(b.args)-1, len(b.args))
}

func (b *filterBuilder) String() string {
	return string(b.sql)
}

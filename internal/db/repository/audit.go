package repository

import (
	"context"
	"fmt"
	"strings"

	"idstore/internal/domain"
)

type AuditRepo struct {
	q DBTX
}

func NewAuditRepo(q DBTX) *AuditRepo {
	return &AuditRepo{q: q}
}

func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEvent) error {
	data, err := encodeJSON(e.Data)
	if err != nil {
		return domain.ErrStorage(err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO audit_events (id, type, owner, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Owner, data, e.CreatedAt)
	return mapDBError(err)
}

func (r *AuditRepo) Count(ctx context.Context, q domain.SearchQuery) (int64, error) {
	where, args := auditConditions(q)
	var total int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&total)
	if err != nil {
		return 0, mapDBError(err)
	}
	return total, nil
}

func (r *AuditRepo) Search(ctx context.Context, q domain.SearchQuery, offset, limit int) ([]domain.AuditEvent, error) {
	where, args := auditConditions(q)
	query := fmt.Sprintf(`SELECT id, type, owner, data, created_at FROM audit_events%s
		ORDER BY created_at %s, id %s LIMIT ? OFFSET ?`, where, direction(q), direction(q))
	args = append(args, limit, offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var data string
		if err := rows.Scan(&e.ID, &e.Type, &e.Owner, &data, &e.CreatedAt); err != nil {
			return nil, mapDBError(err)
		}
		if e.Data, err = decodeMap(data); err != nil {
			return nil, domain.ErrStorage(err)
		}
		out = append(out, e)
	}
	return out, mapDBError(rows.Err())
}

// auditConditions builds the WHERE clause: a free-text filter matches the
// event type or owner, time bounds apply to created_at.
func auditConditions(q domain.SearchQuery) (string, []any) {
	var conds []string
	var args []any
	if q.Filter != "" {
		conds = append(conds, "(type LIKE ? OR owner LIKE ?)")
		args = append(args, "%"+q.Filter+"%", "%"+q.Filter+"%")
	}
	conds, args = timeRange(q, conds, args)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

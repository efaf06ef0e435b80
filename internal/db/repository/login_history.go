package repository

import (
	"context"

	"idstore/internal/domain"
)

type LoginHistoryRepo struct {
	q DBTX
}

func NewLoginHistoryRepo(q DBTX) *LoginHistoryRepo {
	return &LoginHistoryRepo{q: q}
}

func (r *LoginHistoryRepo) Insert(ctx context.Context, rec *domain.LoginRecord) error {
	metadata, err := encodeJSON(rec.Metadata)
	if err != nil {
		return domain.ErrStorage(err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO login_history (id, principal_id, host, user_agent, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PrincipalID, rec.Host, rec.UserAgent, metadata, rec.CreatedAt)
	return mapDBError(err)
}

package repository

import (
	"context"

	"idstore/internal/domain"
)

type BanRepo struct {
	q DBTX
}

func NewBanRepo(q DBTX) *BanRepo {
	return &BanRepo{q: q}
}

func (r *BanRepo) Create(ctx context.Context, b *domain.Ban) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO bans (id, principal_id, reason, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.PrincipalID, b.Reason, b.ExpiresAt, b.CreatedAt)
	return mapDBError(err)
}

func (r *BanRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM bans WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNonexistent("ban %s not found", id)
	}
	return nil
}

// ListForPrincipal returns every ban on the principal, newest first. Expiry
// filtering is the caller's concern: a past-expiry ban is inert, not deleted.
func (r *BanRepo) ListForPrincipal(ctx context.Context, principalID string) ([]domain.Ban, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, principal_id, reason, expires_at, created_at
		 FROM bans WHERE principal_id = ? ORDER BY created_at DESC`, principalID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.Ban
	for rows.Next() {
		var b domain.Ban
		if err := rows.Scan(&b.ID, &b.PrincipalID, &b.Reason, &b.ExpiresAt, &b.CreatedAt); err != nil {
			return nil, mapDBError(err)
		}
		out = append(out, b)
	}
	return out, mapDBError(rows.Err())
}

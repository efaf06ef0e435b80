package repository

import (
	"context"
	"encoding/json"
	"time"

	"idstore/internal/domain"
)

type SessionRepo struct {
	q DBTX
}

func NewSessionRepo(q DBTX) *SessionRepo {
	return &SessionRepo{q: q}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	cursors, err := encodeCursors(s.Cursors)
	if err != nil {
		return domain.ErrStorage(err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO sessions (id, principal_id, created_at, expires_at, cursors) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.PrincipalID, s.CreatedAt, s.ExpiresAt, cursors)
	return mapDBError(err)
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	var cursors string
	err := r.q.QueryRowContext(ctx,
		`SELECT id, principal_id, created_at, expires_at, cursors FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.PrincipalID, &s.CreatedAt, &s.ExpiresAt, &cursors)
	if err != nil {
		return nil, mapDBError(err)
	}
	if s.Cursors, err = decodeCursors(cursors); err != nil {
		return nil, domain.ErrStorage(err)
	}
	return &s, nil
}

func (r *SessionRepo) UpdateCursors(ctx context.Context, s *domain.Session) error {
	cursors, err := encodeCursors(s.Cursors)
	if err != nil {
		return domain.ErrStorage(err)
	}
	res, err := r.q.ExecContext(ctx, `UPDATE sessions SET cursors = ? WHERE id = ?`, cursors, s.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNonexistent("session %s not found", s.ID)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNonexistent("session %s not found", id)
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, mapDBError(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func encodeCursors(cursors map[domain.SearchKind]*domain.SearchCursor) (string, error) {
	if len(cursors) == 0 {
		return "{}", nil
	}
	return encodeJSON(cursors)
}

func decodeCursors(enc string) (map[domain.SearchKind]*domain.SearchCursor, error) {
	if enc == "" || enc == "{}" {
		return nil, nil
	}
	var m map[domain.SearchKind]*domain.SearchCursor
	if err := json.Unmarshal([]byte(enc), &m); err != nil {
		return nil, err
	}
	return m, nil
}

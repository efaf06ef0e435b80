package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"idstore/internal/credential"
	"idstore/internal/domain"
	"idstore/internal/permission"
)

type PrincipalRepo struct {
	q DBTX
}

func NewPrincipalRepo(q DBTX) *PrincipalRepo {
	return &PrincipalRepo{q: q}
}

func (r *PrincipalRepo) Create(ctx context.Context, p *domain.Principal) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO principals (id, kind, name, display_name, credential, permissions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Kind, p.Name, p.DisplayName,
		p.Credential.Encode(), p.Permissions.Format(),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapDBError(err)
	}
	return r.insertEmails(ctx, p)
}

func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	return r.get(ctx, `SELECT id, kind, name, display_name, credential, permissions, created_at, updated_at
		FROM principals WHERE id = ?`, id)
}

func (r *PrincipalRepo) GetByName(ctx context.Context, kind domain.Kind, name string) (*domain.Principal, error) {
	return r.get(ctx, `SELECT id, kind, name, display_name, credential, permissions, created_at, updated_at
		FROM principals WHERE kind = ? AND name = ?`, kind, name)
}

func (r *PrincipalRepo) Update(ctx context.Context, p *domain.Principal) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE principals SET name = ?, display_name = ?, credential = ?, permissions = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.DisplayName, p.Credential.Encode(), p.Permissions.Format(), p.UpdatedAt, p.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNonexistent("principal %s not found", p.ID)
	}
	// Email lists are small; rewrite rather than diff.
	if _, err := r.q.ExecContext(ctx, `DELETE FROM principal_emails WHERE principal_id = ?`, p.ID); err != nil {
		return mapDBError(err)
	}
	return r.insertEmails(ctx, p)
}

func (r *PrincipalRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM principals WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNonexistent("principal %s not found", id)
	}
	return nil
}

func (r *PrincipalRepo) CountByName(ctx context.Context, kind domain.Kind, q domain.SearchQuery) (int64, error) {
	where, args := r.nameConditions(kind, q)
	var total int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, mapDBError(err)
	}
	return total, nil
}

func (r *PrincipalRepo) SearchByName(ctx context.Context, kind domain.Kind, q domain.SearchQuery, offset, limit int) ([]domain.Principal, error) {
	where, args := r.nameConditions(kind, q)
	query := fmt.Sprintf(`SELECT id, kind, name, display_name, credential, permissions, created_at, updated_at
		FROM principals WHERE %s ORDER BY name %s LIMIT ? OFFSET ?`, where, direction(q))
	args = append(args, limit, offset)
	return r.list(ctx, query, args...)
}

func (r *PrincipalRepo) CountByEmail(ctx context.Context, kind domain.Kind, q domain.SearchQuery) (int64, error) {
	where, args := r.emailConditions(kind, q)
	var total int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT p.id) FROM principals p
		 JOIN principal_emails e ON e.principal_id = p.id WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, mapDBError(err)
	}
	return total, nil
}

func (r *PrincipalRepo) SearchByEmail(ctx context.Context, kind domain.Kind, q domain.SearchQuery, offset, limit int) ([]domain.Principal, error) {
	where, args := r.emailConditions(kind, q)
	query := fmt.Sprintf(`SELECT DISTINCT p.id, p.kind, p.name, p.display_name, p.credential, p.permissions, p.created_at, p.updated_at
		FROM principals p JOIN principal_emails e ON e.principal_id = p.id
		WHERE %s ORDER BY p.name %s LIMIT ? OFFSET ?`, where, direction(q))
	args = append(args, limit, offset)
	return r.list(ctx, query, args...)
}

func (r *PrincipalRepo) nameConditions(kind domain.Kind, q domain.SearchQuery) (string, []any) {
	conds := []string{"kind = ?"}
	args := []any{kind}
	if q.Filter != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+q.Filter+"%")
	}
	conds, args = timeRange(q, conds, args)
	return strings.Join(conds, " AND "), args
}

func (r *PrincipalRepo) emailConditions(kind domain.Kind, q domain.SearchQuery) (string, []any) {
	conds := []string{"p.kind = ?"}
	args := []any{kind}
	if q.Filter != "" {
		conds = append(conds, "e.email LIKE ?")
		args = append(args, "%"+q.Filter+"%")
	}
	if q.After != nil {
		conds = append(conds, "p.created_at >= ?")
		args = append(args, *q.After)
	}
	if q.Before != nil {
		conds = append(conds, "p.created_at < ?")
		args = append(args, *q.Before)
	}
	return strings.Join(conds, " AND "), args
}

func (r *PrincipalRepo) insertEmails(ctx context.Context, p *domain.Principal) error {
	for i, email := range p.Emails {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO principal_emails (principal_id, position, kind, email) VALUES (?, ?, ?, ?)`,
			p.ID, i, p.Kind, email)
		if err != nil {
			return mapDBError(err)
		}
	}
	return nil
}

func (r *PrincipalRepo) get(ctx context.Context, query string, args ...any) (*domain.Principal, error) {
	row := r.q.QueryRowContext(ctx, query, args...)
	p, err := r.scan(rowScanner{row})
	if err != nil {
		return nil, err
	}
	if err := r.loadEmails(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PrincipalRepo) list(ctx context.Context, query string, args ...any) ([]domain.Principal, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.Principal
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	for i := range out {
		if err := r.loadEmails(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// rowScanner adapts *sql.Row to the shared scanner interface.
type rowScanner struct {
	row interface{ Scan(dest ...any) error }
}

func (s rowScanner) Scan(dest ...any) error { return s.row.Scan(dest...) }

func (r *PrincipalRepo) scan(s scanner) (*domain.Principal, error) {
	var p domain.Principal
	var cred, perms string
	var createdAt, updatedAt time.Time
	if err := s.Scan(&p.ID, &p.Kind, &p.Name, &p.DisplayName, &cred, &perms, &createdAt, &updatedAt); err != nil {
		return nil, mapDBError(err)
	}
	c, err := credential.Parse(cred)
	if err != nil {
		return nil, domain.ErrCredentialFormat(err)
	}
	set, err := permission.ParseSet(perms)
	if err != nil {
		return nil, domain.ErrStorage(fmt.Errorf("decode permissions for %s: %w", p.ID, err))
	}
	p.Credential = c
	p.Permissions = set
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return &p, nil
}

func (r *PrincipalRepo) loadEmails(ctx context.Context, p *domain.Principal) error {
	rows, err := r.q.QueryContext(ctx,
		`SELECT email FROM principal_emails WHERE principal_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return mapDBError(err)
	}
	defer rows.Close()

	p.Emails = nil
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return mapDBError(err)
		}
		p.Emails = append(p.Emails, email)
	}
	return mapDBError(rows.Err())
}

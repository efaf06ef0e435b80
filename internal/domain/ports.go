package domain

import (
	"context"
	"time"
)

// PrincipalRepository persists users and admins.
type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, id string) (*Principal, error)
	GetByName(ctx context.Context, kind Kind, name string) (*Principal, error)
	Update(ctx context.Context, p *Principal) error
	Delete(ctx context.Context, id string) error

	CountByName(ctx context.Context, kind Kind, q SearchQuery) (int64, error)
	SearchByName(ctx context.Context, kind Kind, q SearchQuery, offset, limit int) ([]Principal, error)
	CountByEmail(ctx context.Context, kind Kind, q SearchQuery) (int64, error)
	SearchByEmail(ctx context.Context, kind Kind, q SearchQuery, offset, limit int) ([]Principal, error)
}

// SessionRepository persists sessions and their cursor slots.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	UpdateCursors(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// BanRepository persists bans.
type BanRepository interface {
	Create(ctx context.Context, b *Ban) error
	Delete(ctx context.Context, id string) error
	ListForPrincipal(ctx context.Context, principalID string) ([]Ban, error)
}

// AuditRepository appends and searches audit events.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEvent) error
	Count(ctx context.Context, q SearchQuery) (int64, error)
	Search(ctx context.Context, q SearchQuery, offset, limit int) ([]AuditEvent, error)
}

// LoginHistoryRepository appends login history records.
type LoginHistoryRepository interface {
	Insert(ctx context.Context, r *LoginRecord) error
}

// Tx bundles the repositories bound to one open transaction. Exactly one of
// Commit or Rollback is called per transaction.
type Tx interface {
	Principals() PrincipalRepository
	Sessions() SessionRepository
	Bans() BanRepository
	Audit() AuditRepository
	LoginHistory() LoginHistoryRepository
	Commit() error
	Rollback() error
}

// Store opens transactions against the backing database.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

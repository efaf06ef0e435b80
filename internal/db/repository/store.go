package repository

import (
	"context"
	"database/sql"
	"fmt"

	"idstore/internal/domain"
)

// Store opens transactions whose repositories all run on the same *sql.Tx.
type Store struct {
	db *sql.DB
}

// NewStore wraps the write pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &storeTx{tx: tx}, nil
}

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) Principals() domain.PrincipalRepository      { return NewPrincipalRepo(t.tx) }
func (t *storeTx) Sessions() domain.SessionRepository          { return NewSessionRepo(t.tx) }
func (t *storeTx) Bans() domain.BanRepository                  { return NewBanRepo(t.tx) }
func (t *storeTx) Audit() domain.AuditRepository               { return NewAuditRepo(t.tx) }
func (t *storeTx) LoginHistory() domain.LoginHistoryRepository { return NewLoginHistoryRepo(t.tx) }

func (t *storeTx) Commit() error   { return t.tx.Commit() }
func (t *storeTx) Rollback() error { return t.tx.Rollback() }

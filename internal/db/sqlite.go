// Package db opens the SQLite file backing the identity store and applies
// its schema migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// Every identity operation, searches included, runs inside a single write
// transaction, so the store keeps one serialized connection instead of a
// read/write pool split. The busy timeout absorbs login bursts that queue
// behind an open commit.
const (
	journalMode     = "WAL"
	synchronous     = "NORMAL"
	busyTimeoutMS   = "5000"
	connMaxLifetime = time.Hour
)

// Open opens the identity store at path. The pool is capped at one
// connection and every transaction takes the write lock up front, so a
// transaction never fails midway with a busy database.
func Open(path string) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_synchronous", synchronous)
	params.Set("_busy_timeout", busyTimeoutMS)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")

	store, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	store.SetMaxOpenConns(1)
	store.SetMaxIdleConns(1)
	store.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.PingContext(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping identity store: %w", err)
	}

	return store, nil
}

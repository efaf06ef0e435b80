// Package repository implements the domain repository ports using SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"idstore/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can run
// standalone or inside a pipeline transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNonexistent("resource not found")
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrUniqueViolation("resource already exists")
	}
	return domain.ErrStorage(err)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeMap(enc string) (map[string]string, error) {
	if enc == "" || enc == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(enc), &m); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return m, nil
}

// timeRange appends created_at bound conditions for a search query.
func timeRange(q domain.SearchQuery, conds []string, args []any) ([]string, []any) {
	if q.After != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *q.After)
	}
	if q.Before != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, *q.Before)
	}
	return conds, args
}

func direction(q domain.SearchQuery) string {
	if q.Descending {
		return "DESC"
	}
	return "ASC"
}

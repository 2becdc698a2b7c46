package postgres

import (
	"context"
	"database/sql"
)

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx, letting every
// per-entity repository run unmodified inside or outside a transaction.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

package sqlite

import (
	"context"
	"database/sql"
)

// querier is the common query surface of *sql.DB, *sql.Conn and *sql.Tx.
// Entity helpers are written against it once and shared by the store and by
// in-flight transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Conn)(nil)
	_ querier = (*sql.Tx)(nil)
)

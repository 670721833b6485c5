// Package postgres implements remote.Backend on PostgreSQL. Change events
// come from a LISTEN/NOTIFY trigger installed by the embedded migrations.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool the backend uses. pgxmock's
// PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Notifier is a dedicated connection that receives notifications.
// *pgx.Conn implements it.
type Notifier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// DB wraps a pool so the backend can be built against a mock.
type DB struct{ Pool PgxPool }

// New creates a new connection pool for the given DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Dialer opens a Notifier.
type Dialer func(ctx context.Context) (Notifier, error)

// DialDSN returns a Dialer connecting to dsn with pgx.Connect.
func DialDSN(dsn string) Dialer {
	return func(ctx context.Context) (Notifier, error) {
		return pgx.Connect(ctx, dsn)
	}
}

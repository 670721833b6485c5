package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/store"
)

// Channel is the NOTIFY channel the change trigger publishes on.
const Channel = "tasknotes_changes"

// Backend implements remote.Backend on a pgx pool.
type Backend struct {
	db   *DB
	dial Dialer
	hub  *remote.Hub
	log  *zap.Logger

	mu        gosync.Mutex
	listening bool
	stop      context.CancelFunc
	done      chan struct{}
}

var _ remote.Backend = (*Backend)(nil)

// NewBackend builds a backend on db. dial opens the LISTEN connection on
// the first Subscribe; nil disables change feeds.
func NewBackend(db *DB, dial Dialer, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{db: db, dial: dial, hub: remote.NewHub(), log: log}
}

// Open connects to dsn and returns a ready backend.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Backend, error) {
	db, err := New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewBackend(db, DialDSN(dsn), log), nil
}

// List implements remote.Backend.
func (b *Backend) List(ctx context.Context, collection, ownerID string, order remote.Order) ([]model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	orderBy, err := store.OrderBy(schema, order)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1%s",
		strings.Join(schema.Columns, ", "), collection, orderBy)

	rows, err := b.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}
	out := make([]model.Record, len(maps))
	for i, m := range maps {
		out[i] = model.Record(m)
	}
	return out, nil
}

// Insert implements remote.Backend. Ids and timestamps come from column defaults.
func (b *Backend) Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	owner := rec.String(model.ColUserID)
	if owner == "" {
		return nil, fmt.Errorf("inserting into %s: %w", collection, errs.ErrNotAuthenticated)
	}

	row := rec.Only(schema.Writable())
	row[model.ColUserID] = owner
	cols := store.Columns(row, schema.Columns)
	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		args[i] = row[c]
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		collection, strings.Join(cols, ", "), strings.Join(marks, ", "),
		strings.Join(schema.Columns, ", "))

	out, err := b.queryOne(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", collection, translate(err))
	}
	return out, nil
}

// Patch implements remote.Backend.
func (b *Backend) Patch(ctx context.Context, collection, ownerID, id string, fields model.Record) (model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	set := fields.Only(schema.Writable())
	cols := store.Columns(set, schema.Columns)

	assign := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		args = append(args, set[c])
		assign = append(assign, fmt.Sprintf("%s = $%d", c, len(args)))
	}
	if schema.Touch {
		assign = append(assign, "updated_at = clock_timestamp()")
	}
	if len(assign) == 0 {
		// Nothing to write; a no-op assignment still returns the row.
		assign = append(assign, "id = id")
	}
	args = append(args, id, ownerID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND user_id = $%d RETURNING %s",
		collection, strings.Join(assign, ", "), len(args)-1, len(args),
		strings.Join(schema.Columns, ", "))

	out, err := b.queryOne(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, b.missing(ctx, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", collection, id, translate(err))
	}
	return out, nil
}

// Remove implements remote.Backend.
func (b *Backend) Remove(ctx context.Context, collection, ownerID, id string) error {
	if _, err := remote.SchemaFor(collection); err != nil {
		return err
	}
	tag, err := b.db.Pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND user_id = $2", collection), id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, id, translate(err))
	}
	if tag.RowsAffected() == 0 {
		return b.missing(ctx, collection, id)
	}
	return nil
}

// Subscribe implements remote.Backend. The first call starts the listener.
func (b *Backend) Subscribe(ctx context.Context, collection, ownerID string, fn func(remote.RawEvent)) (remote.Subscription, error) {
	if _, err := remote.SchemaFor(collection); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, errors.New("subscribe requires an owner id")
	}
	if err := b.ensureListener(ctx); err != nil {
		return nil, err
	}
	return b.hub.Subscribe(collection, ownerID, fn), nil
}

// Close stops the listener, fails live subscriptions and closes the pool.
func (b *Backend) Close() error {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
	b.hub.Drop(errors.New("backend closed"))
	b.db.Close()
	return nil
}

func (b *Backend) queryOne(ctx context.Context, query string, args ...any) (model.Record, error) {
	rows, err := b.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	return model.Record(m), nil
}

// fetch reads one row by id regardless of owner. The listener uses it for
// notifications whose row did not fit in the payload.
func (b *Backend) fetch(ctx context.Context, collection, id string) (model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", strings.Join(schema.Columns, ", "), collection)
	return b.queryOne(ctx, query, id)
}

// missing tells a row that does not exist from one owned by someone else.
func (b *Backend) missing(ctx context.Context, collection, id string) error {
	var owner string
	err := b.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT user_id FROM %s WHERE id = $1", collection), id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", collection, id, errs.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("looking up %s %s: %w", collection, id, err)
	}
	return fmt.Errorf("%s %s: %w", collection, id, errs.ErrPermissionDenied)
}

// translate maps constraint violations to validation errors.
func translate(err error) error {
	var pg *pgconn.PgError
	if !errors.As(err, &pg) {
		return err
	}
	switch pg.Code {
	case "23514", "23502": // check_violation, not_null_violation
		return &errs.Error{Kind: errs.ErrValidation, Field: pg.ColumnName, Msg: pg.Message, Err: err}
	case "23503": // foreign_key_violation
		return &errs.Error{Kind: errs.ErrValidation, Field: model.ColCategoryID, Msg: "references a missing category", Err: err}
	default:
		return err
	}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
)

// timeFormat is fixed width so stored timestamps order correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements remote.Backend on a local SQLite database.
// Change events are published to an in-process hub after each commit.
type SQLiteStore struct {
	db    *sqlx.DB
	hub   *remote.Hub
	clock *Clock
	log   *zap.Logger
}

var _ remote.Backend = (*SQLiteStore)(nil)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithLogger sets the store's logger.
func WithLogger(log *zap.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.log = log }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) { s.clock = NewClock(now) }
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection: an in-memory database is per-connection, and a single
	// writer keeps commit order equal to publish order.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, hub: remote.NewHub(), clock: NewClock(nil), log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close terminates live subscriptions and closes the database.
func (s *SQLiteStore) Close() error {
	s.hub.Drop(errors.New("store closed"))
	return s.db.Close()
}

// Version returns the applied schema version.
func (s *SQLiteStore) Version() (int, error) {
	var v int
	if err := s.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if currentVersion, err = s.Version(); err != nil {
			return err
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.log.Debug("applied migration", zap.Int("version", m.version))
	}
	return nil
}

// List implements remote.Backend.
func (s *SQLiteStore) List(ctx context.Context, collection, ownerID string, order remote.Order) ([]model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	orderBy, err := OrderBy(schema, order)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ?%s",
		strings.Join(schema.Columns, ", "), collection, orderBy)
	rows, err := s.db.QueryxContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", collection, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Insert implements remote.Backend. The id and timestamps are assigned here.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	if rec.String(model.ColUserID) == "" {
		return nil, fmt.Errorf("inserting into %s: %w", collection, errs.ErrNotAuthenticated)
	}

	row := rec.Only(schema.Writable())
	now := s.clock.Tick()
	row[model.ColID] = uuid.New().String()
	row[model.ColUserID] = rec.String(model.ColUserID)
	row[model.ColCreatedAt] = now
	if schema.Touch {
		row[model.ColUpdatedAt] = now
	}

	cols := Columns(row, schema.Columns)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = bindValue(row[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		collection, strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(schema.Columns, ", "))

	out, err := s.queryOne(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", collection, err)
	}
	s.hub.Publish(remote.RawEvent{Collection: collection, Type: remote.EventInsert, New: out.Clone()})
	return out, nil
}

// Patch implements remote.Backend.
func (s *SQLiteStore) Patch(ctx context.Context, collection, ownerID, id string, fields model.Record) (model.Record, error) {
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		return nil, err
	}
	set := fields.Only(schema.Writable())
	if schema.Touch {
		set[model.ColUpdatedAt] = s.clock.Tick()
	}
	cols := Columns(set, schema.Columns)
	if len(cols) == 0 {
		// Nothing to write; return the current row.
		return s.get(ctx, schema, ownerID, id)
	}

	assign := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		assign[i] = c + " = ?"
		args = append(args, bindValue(set[c]))
	}
	args = append(args, id, ownerID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND user_id = ? RETURNING %s",
		collection, strings.Join(assign, ", "), strings.Join(schema.Columns, ", "))

	out, err := s.queryOne(ctx, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missing(ctx, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", collection, id, err)
	}
	s.hub.Publish(remote.RawEvent{Collection: collection, Type: remote.EventUpdate, New: out.Clone()})
	return out, nil
}

// Remove implements remote.Backend.
func (s *SQLiteStore) Remove(ctx context.Context, collection, ownerID, id string) error {
	if _, err := remote.SchemaFor(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ? AND user_id = ?", collection), id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, id, err)
	}
	if n == 0 {
		return s.missing(ctx, collection, id)
	}
	s.hub.Publish(remote.RawEvent{
		Collection: collection,
		Type:       remote.EventDelete,
		Old:        model.Record{model.ColID: id, model.ColUserID: ownerID},
	})
	return nil
}

// Subscribe implements remote.Backend.
func (s *SQLiteStore) Subscribe(ctx context.Context, collection, ownerID string, fn func(remote.RawEvent)) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := remote.SchemaFor(collection); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, errors.New("subscribe requires an owner id")
	}
	return s.hub.Subscribe(collection, ownerID, fn), nil
}

func (s *SQLiteStore) get(ctx context.Context, schema remote.Schema, ownerID, id string) (model.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND user_id = ?",
		strings.Join(schema.Columns, ", "), schema.Name)
	out, err := s.queryOne(ctx, query, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missing(ctx, schema.Name, id)
	}
	return out, err
}

// missing tells a row that does not exist from one owned by someone else.
func (s *SQLiteStore) missing(ctx context.Context, collection, id string) error {
	var n int
	err := s.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", collection), id)
	if err != nil {
		return fmt.Errorf("looking up %s %s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, errs.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", collection, id, errs.ErrPermissionDenied)
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...any) (model.Record, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanRecord(rows)
}

// scanRecord reads the current row into a Record.
func scanRecord(rows *sqlx.Rows) (model.Record, error) {
	m := make(map[string]any)
	if err := rows.MapScan(m); err != nil {
		return nil, err
	}
	return model.Record(m), nil
}

// bindValue converts Go values to their SQLite storage form.
func bindValue(v any) any {
	switch x := v.(type) {
	case bool:
		return boolToInt(x)
	case time.Time:
		return x.UTC().Format(timeFormat)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(timeFormat)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

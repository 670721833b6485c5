// Package memory provides an in-process remote.Backend. It backs the
// "memory" backend kind and the sync layer's tests, which use its fault
// injection and call counters.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
)

// Operation names used by FailNext and Calls.
const (
	OpList      = "list"
	OpInsert    = "insert"
	OpPatch     = "patch"
	OpRemove    = "remove"
	OpSubscribe = "subscribe"
)

// Backend stores rows in maps keyed by collection and id.
type Backend struct {
	mu     gosync.Mutex
	rows   map[string]map[string]model.Record
	faults map[string][]error
	calls  map[string]int
	hub    *remote.Hub
	now    func() time.Time
	last   time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New creates an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		rows:   make(map[string]map[string]model.Record),
		faults: make(map[string][]error),
		calls:  make(map[string]int),
		hub:    remote.NewHub(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

var _ remote.Backend = (*Backend)(nil)

// FailNext makes the next call of op on collection return err.
// Calls queue up: FailNext twice fails the next two calls.
func (b *Backend) FailNext(collection, op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := collection + "." + op
	b.faults[k] = append(b.faults[k], err)
}

// Calls returns how many times op was invoked on collection.
func (b *Backend) Calls(collection, op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[collection+"."+op]
}

// DropSubscriptions terminates every live feed with err.
func (b *Backend) DropSubscriptions(err error) { b.hub.Drop(err) }

// Subscribers returns the number of live feeds.
func (b *Backend) Subscribers() int { return b.hub.Len() }

// Seed stores rec as-is (no id or timestamp assignment, no event).
func (b *Backend) Seed(collection string, rec model.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.table(collection)[rec.String(model.ColID)] = rec.Clone()
}

// Emit publishes a raw event without touching stored rows. Tests use it to
// inject stale or duplicate deliveries.
func (b *Backend) Emit(ev remote.RawEvent) { b.hub.Publish(ev) }

// enter records a call and pops a pending fault. Caller holds b.mu.
func (b *Backend) enter(collection, op string) error {
	k := collection + "." + op
	b.calls[k]++
	if q := b.faults[k]; len(q) > 0 {
		b.faults[k] = q[1:]
		return q[0]
	}
	return nil
}

func (b *Backend) table(collection string) map[string]model.Record {
	t, ok := b.rows[collection]
	if !ok {
		t = make(map[string]model.Record)
		b.rows[collection] = t
	}
	return t
}

// tick returns a strictly increasing UTC timestamp. Caller holds b.mu.
func (b *Backend) tick() time.Time {
	t := b.now().UTC()
	if !t.After(b.last) {
		t = b.last.Add(time.Microsecond)
	}
	b.last = t
	return t
}

// List implements remote.Backend.
func (b *Backend) List(ctx context.Context, collection, ownerID string, order remote.Order) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(collection, OpList); err != nil {
		return nil, err
	}
	if _, err := remote.SchemaFor(collection); err != nil {
		return nil, err
	}

	var out []model.Record
	for _, r := range b.table(collection) {
		if r.String(model.ColUserID) == ownerID {
			out = append(out, r.Clone())
		}
	}
	sortRecords(out, order)
	return out, nil
}

// Insert implements remote.Backend.
func (b *Backend) Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if err := b.enter(collection, OpInsert); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if rec.String(model.ColUserID) == "" {
		b.mu.Unlock()
		return nil, fmt.Errorf("inserting into %s: %w", collection, errs.ErrNotAuthenticated)
	}

	row := rec.Only(schema.Columns)
	for _, c := range schema.Columns {
		if _, ok := row[c]; !ok {
			row[c] = nil
		}
	}
	now := b.tick()
	row[model.ColID] = uuid.New().String()
	row[model.ColCreatedAt] = now
	if schema.Touch {
		row[model.ColUpdatedAt] = now
	}
	b.table(collection)[row.String(model.ColID)] = row
	out := row.Clone()
	b.mu.Unlock()

	b.hub.Publish(remote.RawEvent{Collection: collection, Type: remote.EventInsert, New: out.Clone()})
	return out, nil
}

// Patch implements remote.Backend.
func (b *Backend) Patch(ctx context.Context, collection, ownerID, id string, fields model.Record) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if err := b.enter(collection, OpPatch); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	schema, err := remote.SchemaFor(collection)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	row, ok := b.table(collection)[id]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%s %s: %w", collection, id, errs.ErrNotFound)
	}
	if row.String(model.ColUserID) != ownerID {
		b.mu.Unlock()
		return nil, fmt.Errorf("%s %s: %w", collection, id, errs.ErrPermissionDenied)
	}

	for k, v := range fields.Only(schema.Writable()) {
		row[k] = v
	}
	if schema.Touch {
		row[model.ColUpdatedAt] = b.tick()
	}
	out := row.Clone()
	b.mu.Unlock()

	b.hub.Publish(remote.RawEvent{Collection: collection, Type: remote.EventUpdate, New: out.Clone()})
	return out, nil
}

// Remove implements remote.Backend.
func (b *Backend) Remove(ctx context.Context, collection, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if err := b.enter(collection, OpRemove); err != nil {
		b.mu.Unlock()
		return err
	}
	t := b.table(collection)
	row, ok := t[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%s %s: %w", collection, id, errs.ErrNotFound)
	}
	if row.String(model.ColUserID) != ownerID {
		b.mu.Unlock()
		return fmt.Errorf("%s %s: %w", collection, id, errs.ErrPermissionDenied)
	}
	delete(t, id)
	b.mu.Unlock()

	b.hub.Publish(remote.RawEvent{
		Collection: collection,
		Type:       remote.EventDelete,
		Old:        model.Record{model.ColID: id, model.ColUserID: ownerID},
	})
	return nil
}

// Subscribe implements remote.Backend.
func (b *Backend) Subscribe(ctx context.Context, collection, ownerID string, fn func(remote.RawEvent)) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	err := b.enter(collection, OpSubscribe)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, errors.New("subscribe requires an owner id")
	}
	return b.hub.Subscribe(collection, ownerID, fn), nil
}

// Close implements remote.Backend.
func (b *Backend) Close() error {
	b.hub.Drop(errors.New("backend closed"))
	return nil
}

func sortRecords(rs []model.Record, order remote.Order) {
	if order.Field == "" {
		return
	}
	sort.SliceStable(rs, func(i, j int) bool {
		c := compare(rs[i], rs[j], order.Field)
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b model.Record, field string) int {
	ta, okA := a.TimeOK(field)
	tb, okB := b.TimeOK(field)
	if okA && okB {
		return ta.Compare(tb)
	}
	sa, sb := a.String(field), b.String(field)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

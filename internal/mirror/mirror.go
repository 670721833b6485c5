// Package mirror holds the client's ordered in-memory copy of one remote
// collection for the current owner.
package mirror

import (
	"sort"
	gosync "sync"
	"time"
)

// Entity is what a Mirror stores. Revision is the server's version of the
// row (its updated_at); the zero time means the row carries no version.
type Entity interface {
	EntityID() string
	Revision() time.Time
}

// Meta describes the bookkeeping kept for one entry.
type Meta struct {
	// Revision increases on every local write to the entry.
	Revision uint64
	// Confirmed is the last server version folded into the entry.
	Confirmed time.Time
	// Dirty is set by Patch and cleared when a server copy is accepted.
	Dirty bool
}

type entry[E Entity] struct {
	item E
	meta Meta
}

// Mirror is an ordered, id-unique collection safe for concurrent use.
// Without an ordering function new entries go to the front and existing
// entries keep their position; with one, entries are sorted on every write.
type Mirror[E Entity] struct {
	mu      gosync.RWMutex
	entries []*entry[E]
	less    func(a, b E) bool
	rev     uint64
}

// Option configures a Mirror.
type Option[E Entity] func(*Mirror[E])

// WithOrder keeps entries sorted by less.
func WithOrder[E Entity](less func(a, b E) bool) Option[E] {
	return func(m *Mirror[E]) { m.less = less }
}

// New creates an empty Mirror.
func New[E Entity](opts ...Option[E]) *Mirror[E] {
	m := &Mirror[E]{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ReplaceAll swaps the contents for items, a full server snapshot.
// Duplicate ids collapse to the last occurrence.
func (m *Mirror[E]) ReplaceAll(items []E) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := make(map[string]int, len(items))
	out := make([]*entry[E], 0, len(items))
	for _, it := range items {
		m.rev++
		e := &entry[E]{item: it, meta: Meta{Revision: m.rev, Confirmed: it.Revision()}}
		if i, ok := pos[it.EntityID()]; ok {
			out[i] = e
			continue
		}
		pos[it.EntityID()] = len(out)
		out = append(out, e)
	}
	m.entries = out
	m.sort()
}

// Upsert stores item unconditionally as a server copy.
func (m *Mirror[E]) Upsert(item E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(item, item.Revision())
}

// Reconcile folds in a server snapshot of item at version. It is ignored,
// returning false, when the entry already holds a newer confirmed version,
// or the same version while a local patch is outstanding.
func (m *Mirror[E]) Reconcile(item E, version time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.find(item.EntityID()); i >= 0 && !version.IsZero() {
		meta := m.entries[i].meta
		if version.Before(meta.Confirmed) || (version.Equal(meta.Confirmed) && meta.Dirty) {
			return false
		}
	}
	m.put(item, version)
	return true
}

// ReconcileExisting is Reconcile restricted to entries already present. A
// snapshot of a row the mirror no longer holds is dropped.
func (m *Mirror[E]) ReconcileExisting(item E, version time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(item.EntityID())
	if i < 0 {
		return false
	}
	if !version.IsZero() {
		meta := m.entries[i].meta
		if version.Before(meta.Confirmed) || (version.Equal(meta.Confirmed) && meta.Dirty) {
			return false
		}
	}
	m.put(item, version)
	return true
}

// Remove deletes the entry with id. It reports whether one existed.
func (m *Mirror[E]) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(id)
	if i < 0 {
		return false
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return true
}

// Patch replaces the entry with id by fn applied to it, returning the
// value before the change. It is a no-op when id is absent.
func (m *Mirror[E]) Patch(id string, fn func(E) E) (before E, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(id)
	if i < 0 {
		return before, false
	}
	e := m.entries[i]
	before = e.item
	m.rev++
	e.item = fn(e.item)
	e.meta.Revision = m.rev
	e.meta.Dirty = true
	m.sort()
	return before, true
}

// Get returns the entry with id.
func (m *Mirror[E]) Get(id string) (E, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.find(id); i >= 0 {
		return m.entries[i].item, true
	}
	var zero E
	return zero, false
}

// Meta returns the bookkeeping for id.
func (m *Mirror[E]) Meta(id string) (Meta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.find(id); i >= 0 {
		return m.entries[i].meta, true
	}
	return Meta{}, false
}

// List returns a copy of the entries in order.
func (m *Mirror[E]) List() []E {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]E, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.item
	}
	return out
}

// Len returns the number of entries.
func (m *Mirror[E]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset empties the mirror.
func (m *Mirror[E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// put writes a server copy. Caller holds m.mu.
func (m *Mirror[E]) put(item E, version time.Time) {
	m.rev++
	meta := Meta{Revision: m.rev, Confirmed: version}
	if i := m.find(item.EntityID()); i >= 0 {
		m.entries[i] = &entry[E]{item: item, meta: meta}
	} else {
		m.entries = append([]*entry[E]{{item: item, meta: meta}}, m.entries...)
	}
	m.sort()
}

func (m *Mirror[E]) find(id string) int {
	for i, e := range m.entries {
		if e.item.EntityID() == id {
			return i
		}
	}
	return -1
}

func (m *Mirror[E]) sort() {
	if m.less == nil {
		return
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.less(m.entries[i].item, m.entries[j].item)
	})
}

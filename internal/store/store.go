// Package store holds the SQL-backed remote.Backend implementations and
// the query helpers they share.
package store

import (
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
)

// Columns returns the keys of rec that appear in allowed, sorted so that
// generated statements are stable.
func Columns(rec model.Record, allowed []string) []string {
	cols := make([]string, 0, len(rec))
	for k := range rec.Only(allowed) {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// OrderBy returns an ORDER BY clause for o, or "" when no field is set.
// The field must be a column of s.
func OrderBy(s remote.Schema, o remote.Order) (string, error) {
	if o.Field == "" {
		return "", nil
	}
	if !s.Has(o.Field) {
		return "", fmt.Errorf("cannot order %s by unknown column %q", s.Name, o.Field)
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", o.Field, dir), nil
}

// Clock hands out strictly increasing UTC timestamps, so two writes in the
// same instant still order by updated_at.
type Clock struct {
	mu   gosync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock wraps now; nil means time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Tick returns the next timestamp.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

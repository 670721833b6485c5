package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
)

func TestColumnsSortedAndFiltered(t *testing.T) {
	rec := model.Record{"status": "done", "bogus": 1, "name": "x"}
	assert.Equal(t, []string{"name", "status"}, Columns(rec, model.TaskColumns))
}

func TestOrderBy(t *testing.T) {
	s, err := remote.SchemaFor(remote.Notes)
	require.NoError(t, err)

	clause, err := OrderBy(s, remote.Order{Field: model.ColUpdatedAt, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY updated_at DESC", clause)

	clause, err = OrderBy(s, remote.Order{})
	require.NoError(t, err)
	assert.Empty(t, clause)

	_, err = OrderBy(s, remote.Order{Field: "1; DROP TABLE notes"})
	assert.Error(t, err)
}

func TestClockStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return fixed })
	a, b := c.Tick(), c.Tick()
	assert.Equal(t, fixed, a)
	assert.True(t, b.After(a))
}

func TestBindValue(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC)
	assert.Equal(t, 1, bindValue(true))
	assert.Equal(t, "2026-03-01T12:00:00.000000005Z", bindValue(ts))
	assert.Nil(t, bindValue((*string)(nil)))
	assert.Equal(t, "x", bindValue("x"))

	parsed, ok := model.Record{"t": bindValue(ts)}.TimeOK("t")
	require.True(t, ok)
	assert.True(t, parsed.Equal(ts))
}

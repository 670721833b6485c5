package remote

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/tasknotes/internal/model"
)

func TestHub_RoutesByCollectionAndOwner(t *testing.T) {
	h := NewHub()
	var mine, other int
	s1 := h.Subscribe(Tasks, "u1", func(RawEvent) { mine++ })
	h.Subscribe(Tasks, "u2", func(RawEvent) { other++ })

	h.Publish(RawEvent{Collection: Tasks, Type: EventInsert, New: model.Record{model.ColUserID: "u1"}})
	h.Publish(RawEvent{Collection: Notes, Type: EventInsert, New: model.Record{model.ColUserID: "u1"}})
	h.Publish(RawEvent{Collection: Tasks, Type: EventDelete, Old: model.Record{model.ColID: "x"}})

	assert.Equal(t, 2, mine)
	assert.Equal(t, 1, other)

	assert.NoError(t, s1.Close())
	h.Publish(RawEvent{Collection: Tasks, Type: EventInsert, New: model.Record{model.ColUserID: "u1"}})
	assert.Equal(t, 2, mine)
	assert.Equal(t, 1, h.Len())
}

func TestHub_DropSignalsOnce(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(Tasks, "u1", func(RawEvent) {})
	h.Drop(errors.New("gone"))
	h.Drop(errors.New("again"))

	assert.EqualError(t, <-s.Err(), "gone")
	assert.Zero(t, h.Len())
	assert.NoError(t, s.Close())
}

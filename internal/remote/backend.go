// Package remote defines the contract between the sync layer and a hosted
// backend, and the typed adapter that decodes backend rows and change events
// at that boundary.
package remote

import (
	"context"

	"github.com/nhle/tasknotes/internal/model"
)

// Collection names.
const (
	Tasks      = "tasks"
	Categories = "categories"
	Notes      = "notes"
)

// Order controls the sort of a full list query.
type Order struct {
	Field string
	Desc  bool
}

// EventType is the kind of a raw change-feed event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// RawEvent is an undecoded change-feed event as produced by a backend.
// New is set for inserts and updates, Old for deletes (it may hold only the id).
type RawEvent struct {
	Collection string
	Type       EventType
	New        model.Record
	Old        model.Record
}

// Subscription is a live change feed. Err delivers at most one error when the
// feed drops; after that no more events arrive.
type Subscription interface {
	Err() <-chan error
	Close() error
}

// Backend is the Remote Store Client: authenticated CRUD plus a live change
// feed over named collections, scoped by owner id.
type Backend interface {
	// List returns every row of collection owned by ownerID.
	List(ctx context.Context, collection, ownerID string, order Order) ([]model.Record, error)

	// Insert stores rec and returns the stored row. The backend assigns
	// id and the timestamps.
	Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error)

	// Patch merges fields into the row and refreshes updated_at where the
	// collection has one. Returns the stored row.
	Patch(ctx context.Context, collection, ownerID, id string, fields model.Record) (model.Record, error)

	// Remove deletes the row.
	Remove(ctx context.Context, collection, ownerID, id string) error

	// Subscribe opens a change feed filtered to ownerID. fn is called from a
	// single goroutine per subscription, in delivery order.
	Subscribe(ctx context.Context, collection, ownerID string, fn func(RawEvent)) (Subscription, error)

	// Close releases backend resources.
	Close() error
}

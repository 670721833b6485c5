// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...store.SQLiteOption) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// TaskRecord returns an insertable task row for owner.
func TaskRecord(owner, name string) model.Record {
	return model.TaskInsert{Name: name, Priority: model.PriorityMedium}.Record(owner)
}

// NoteRecord returns an insertable note row for owner.
func NoteRecord(owner, title string) model.Record {
	return model.NoteInsert{Title: title}.Record(owner)
}

// CategoryRecord returns an insertable category row for owner.
func CategoryRecord(owner, name string) model.Record {
	return model.CategoryInsert{Name: name}.Record(owner)
}

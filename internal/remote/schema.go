package remote

import (
	"fmt"

	"github.com/nhle/tasknotes/internal/model"
)

// Schema describes the columns a backend accepts for one collection.
type Schema struct {
	Name    string
	Columns []string
	// Touch is true when the collection has an updated_at column that
	// every patch refreshes.
	Touch bool
}

// Writable returns the columns a patch may change.
func (s Schema) Writable() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		switch c {
		case model.ColID, model.ColUserID, model.ColCreatedAt, model.ColUpdatedAt:
			continue
		}
		out = append(out, c)
	}
	return out
}

// Has reports whether col belongs to the collection.
func (s Schema) Has(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

var schemas = map[string]Schema{
	Tasks:      {Name: Tasks, Columns: model.TaskColumns, Touch: true},
	Categories: {Name: Categories, Columns: model.CategoryColumns},
	Notes:      {Name: Notes, Columns: model.NoteColumns, Touch: true},
}

// SchemaFor returns the schema of a known collection.
func SchemaFor(collection string) (Schema, error) {
	s, ok := schemas[collection]
	if !ok {
		return Schema{}, fmt.Errorf("unknown collection %q", collection)
	}
	return s, nil
}

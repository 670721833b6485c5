package collection

import (
	"context"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
)

// Notes is the note collection, pinned first then most recently updated.
type Notes struct {
	*Collection[model.Note, model.NoteInsert, model.NoteUpdate]
}

// NewNotes creates the note collection.
func NewNotes(b remote.Backend, sess session.Context, opts ...Option) *Notes {
	return &Notes{
		Collection: New[model.Note, model.NoteInsert, model.NoteUpdate](b, sess, Config[model.Note]{
			Name:   remote.Notes,
			Order:  remote.Order{Field: model.ColUpdatedAt, Desc: true},
			Decode: model.NoteFromRecord,
			Less:   model.NoteLess,
			Touch:  model.Note.Touch,
		}, opts...),
	}
}

// TogglePin flips the note's pinned flag.
func (n *Notes) TogglePin(ctx context.Context, id string) (model.Note, error) {
	cur, ok := n.Get(id)
	if !ok {
		if n.sess.OwnerID() == "" {
			return model.Note{}, n.record(errs.NotAuthenticated(n.name + ".pin"))
		}
		return model.Note{}, n.record(errs.NotFound(n.name+".pin", id))
	}
	pinned := !cur.IsPinned
	return n.Update(ctx, id, model.NoteUpdate{IsPinned: &pinned})
}

// Filter narrows Notes.View. Zero fields match everything.
type Filter struct {
	// Query matches title or content, case-insensitively.
	Query        string
	CategoryID   string
	PersonalOnly bool
}

func (f Filter) match(n model.Note) bool {
	if f.CategoryID != "" && (n.CategoryID == nil || *n.CategoryID != f.CategoryID) {
		return false
	}
	if f.PersonalOnly && !n.IsPersonal {
		return false
	}
	return f.Query == "" || containsFold(n.Title, f.Query) || containsFold(n.Content, f.Query)
}

// View returns the notes matching f, in list order. The mirror is untouched.
func (n *Notes) View(f Filter) []model.Note {
	var out []model.Note
	for _, note := range n.List() {
		if f.match(note) {
			out = append(out, note)
		}
	}
	return out
}

package model

import (
	"errors"
	"time"
)

// Note columns.
const (
	ColTitle    = "title"
	ColContent  = "content"
	ColIsPinned = "is_pinned"
)

// NoteColumns lists every column of the notes collection.
var NoteColumns = []string{
	ColID, ColUserID, ColTitle, ColContent, ColCategoryID,
	ColIsPersonal, ColIsPinned, ColCreatedAt, ColUpdatedAt,
}

// Note is a free-form text entry.
type Note struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	CategoryID *string   `json:"category_id,omitempty" db:"category_id"`
	IsPersonal bool      `json:"is_personal" db:"is_personal"`
	IsPinned   bool      `json:"is_pinned" db:"is_pinned"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func (n Note) EntityID() string    { return n.ID }
func (n Note) OwnerID() string     { return n.UserID }
func (n Note) Revision() time.Time { return n.UpdatedAt }
func (n Note) Touch(now time.Time) Note {
	n.UpdatedAt = now
	return n
}

// NoteLess orders pinned notes first, then most recently updated.
func NoteLess(a, b Note) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// NoteFromRecord decodes a backend row.
func NoteFromRecord(r Record) (Note, error) {
	id := r.String(ColID)
	if id == "" {
		return Note{}, errors.New("note record has no id")
	}
	return Note{
		ID:         id,
		UserID:     r.String(ColUserID),
		Title:      r.String(ColTitle),
		Content:    r.String(ColContent),
		CategoryID: r.NullableString(ColCategoryID),
		IsPersonal: r.Bool(ColIsPersonal),
		IsPinned:   r.Bool(ColIsPinned),
		CreatedAt:  r.Time(ColCreatedAt),
		UpdatedAt:  r.Time(ColUpdatedAt),
	}, nil
}

// NoteInsert is the create shape.
type NoteInsert struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	CategoryID *string `json:"category_id,omitempty"`
	IsPersonal bool    `json:"is_personal"`
	IsPinned   bool    `json:"is_pinned"`
}

func (in NoteInsert) Validate() error { return requireText(ColTitle, in.Title) }

func (in NoteInsert) Record(owner string) Record {
	r := Record{
		ColUserID:     owner,
		ColTitle:      in.Title,
		ColContent:    in.Content,
		ColIsPersonal: in.IsPersonal,
		ColIsPinned:   in.IsPinned,
	}
	if in.CategoryID != nil && *in.CategoryID != "" {
		r[ColCategoryID] = *in.CategoryID
	} else {
		r[ColCategoryID] = nil
	}
	return r
}

// NoteUpdate is a partial update.
type NoteUpdate struct {
	Title      *string
	Content    *string
	CategoryID OptionalText
	IsPersonal *bool
	IsPinned   *bool
}

func (u NoteUpdate) Validate() error {
	if u.Title != nil {
		return requireText(ColTitle, *u.Title)
	}
	return nil
}

func (u NoteUpdate) Apply(n Note) Note {
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	n.CategoryID = u.CategoryID.apply(n.CategoryID)
	if u.IsPersonal != nil {
		n.IsPersonal = *u.IsPersonal
	}
	if u.IsPinned != nil {
		n.IsPinned = *u.IsPinned
	}
	return n
}

func (u NoteUpdate) Capture(n Note) NoteUpdate {
	var c NoteUpdate
	if u.Title != nil {
		c.Title = Ptr(n.Title)
	}
	if u.Content != nil {
		c.Content = Ptr(n.Content)
	}
	if u.CategoryID.Set {
		c.CategoryID = captureText(n.CategoryID)
	}
	if u.IsPersonal != nil {
		c.IsPersonal = Ptr(n.IsPersonal)
	}
	if u.IsPinned != nil {
		c.IsPinned = Ptr(n.IsPinned)
	}
	return c
}

func (u NoteUpdate) Record() Record {
	r := Record{}
	if u.Title != nil {
		r[ColTitle] = *u.Title
	}
	if u.Content != nil {
		r[ColContent] = *u.Content
	}
	u.CategoryID.put(r, ColCategoryID)
	if u.IsPersonal != nil {
		r[ColIsPersonal] = *u.IsPersonal
	}
	if u.IsPinned != nil {
		r[ColIsPinned] = *u.IsPinned
	}
	return r
}

func (u NoteUpdate) IsEmpty() bool { return len(u.Record()) == 0 }

package model

import (
	"errors"
	"time"
)

// Category columns.
const ColColor = "color"

// DefaultCategoryColor is assigned when a category is created without one.
const DefaultCategoryColor = "#8B5CF6"

// CategoryColumns lists every column of the categories collection.
var CategoryColumns = []string{ColID, ColUserID, ColName, ColColor, ColCreatedAt}

// Category is a colored label that tasks and notes may reference.
type Category struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (c Category) EntityID() string { return c.ID }
func (c Category) OwnerID() string  { return c.UserID }

// Revision is zero: categories carry no updated_at, so every snapshot is
// accepted by the reconciler.
func (c Category) Revision() time.Time { return time.Time{} }

// CategoryFromRecord decodes a backend row.
func CategoryFromRecord(r Record) (Category, error) {
	id := r.String(ColID)
	if id == "" {
		return Category{}, errors.New("category record has no id")
	}
	return Category{
		ID:        id,
		UserID:    r.String(ColUserID),
		Name:      r.String(ColName),
		Color:     r.String(ColColor),
		CreatedAt: r.Time(ColCreatedAt),
	}, nil
}

// CategoryInsert is the create shape.
type CategoryInsert struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Validate checks the name and, when given, the color.
func (in CategoryInsert) Validate() error {
	if err := requireText(ColName, in.Name); err != nil {
		return err
	}
	if in.Color != "" {
		return requireColor(ColColor, in.Color)
	}
	return nil
}

// Record encodes the insert for owner.
func (in CategoryInsert) Record(owner string) Record {
	color := in.Color
	if color == "" {
		color = DefaultCategoryColor
	}
	return Record{ColUserID: owner, ColName: in.Name, ColColor: color}
}

// CategoryUpdate is a partial update.
type CategoryUpdate struct {
	Name  *string
	Color *string
}

func (u CategoryUpdate) Validate() error {
	if u.Name != nil {
		if err := requireText(ColName, *u.Name); err != nil {
			return err
		}
	}
	if u.Color != nil {
		return requireColor(ColColor, *u.Color)
	}
	return nil
}

func (u CategoryUpdate) Apply(c Category) Category {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Color != nil {
		c.Color = *u.Color
	}
	return c
}

func (u CategoryUpdate) Capture(c Category) CategoryUpdate {
	var out CategoryUpdate
	if u.Name != nil {
		out.Name = Ptr(c.Name)
	}
	if u.Color != nil {
		out.Color = Ptr(c.Color)
	}
	return out
}

func (u CategoryUpdate) Record() Record {
	r := Record{}
	if u.Name != nil {
		r[ColName] = *u.Name
	}
	if u.Color != nil {
		r[ColColor] = *u.Color
	}
	return r
}

func (u CategoryUpdate) IsEmpty() bool { return u.Name == nil && u.Color == nil }

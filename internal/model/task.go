package model

import (
	"errors"
	"time"
)

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Status is the closed set of Kanban columns.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists the Kanban columns in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Priorities lists priorities from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// CompletionType selects how CompletionValue is interpreted.
type CompletionType string

const (
	CompletionDone       CompletionType = "done"
	CompletionPercentage CompletionType = "percentage"
	CompletionStages     CompletionType = "stages"
)

// Task columns.
const (
	ColName            = "name"
	ColDescription     = "description"
	ColPriority        = "priority"
	ColIsPersonal      = "is_personal"
	ColCompletionType  = "completion_type"
	ColCompletionValue = "completion_value"
	ColStatus          = "status"
	ColCategoryID      = "category_id"
)

// TaskColumns lists every column of the tasks collection.
var TaskColumns = []string{
	ColID, ColUserID, ColName, ColDescription, ColPriority, ColIsPersonal,
	ColCompletionType, ColCompletionValue, ColStatus, ColCategoryID,
	ColCreatedAt, ColUpdatedAt,
}

// Task is a single Kanban card owned by one user.
type Task struct {
	ID              string         `json:"id" db:"id"`
	UserID          string         `json:"user_id" db:"user_id"`
	Name            string         `json:"name" db:"name"`
	Description     *string        `json:"description,omitempty" db:"description"`
	Priority        Priority       `json:"priority" db:"priority"`
	IsPersonal      bool           `json:"is_personal" db:"is_personal"`
	CompletionType  CompletionType `json:"completion_type" db:"completion_type"`
	CompletionValue *string        `json:"completion_value,omitempty" db:"completion_value"`
	Status          Status         `json:"status" db:"status"`
	CategoryID      *string        `json:"category_id,omitempty" db:"category_id"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

func (t Task) EntityID() string     { return t.ID }
func (t Task) OwnerID() string      { return t.UserID }
func (t Task) Revision() time.Time  { return t.UpdatedAt }
func (t Task) IsCompleted() bool    { return t.Status == StatusDone }
func (t Task) Touch(now time.Time) Task {
	t.UpdatedAt = now
	return t
}

// TaskFromRecord decodes a backend row.
func TaskFromRecord(r Record) (Task, error) {
	id := r.String(ColID)
	if id == "" {
		return Task{}, errors.New("task record has no id")
	}
	return Task{
		ID:              id,
		UserID:          r.String(ColUserID),
		Name:            r.String(ColName),
		Description:     r.NullableString(ColDescription),
		Priority:        Priority(r.String(ColPriority)),
		IsPersonal:      r.Bool(ColIsPersonal),
		CompletionType:  CompletionType(r.String(ColCompletionType)),
		CompletionValue: r.NullableString(ColCompletionValue),
		Status:          Status(r.String(ColStatus)),
		CategoryID:      r.NullableString(ColCategoryID),
		CreatedAt:       r.Time(ColCreatedAt),
		UpdatedAt:       r.Time(ColUpdatedAt),
	}, nil
}

// TaskInsert is the create shape. Owner and server-assigned fields are excluded.
type TaskInsert struct {
	Name            string         `json:"name"`
	Description     *string        `json:"description,omitempty"`
	Priority        Priority       `json:"priority"`
	IsPersonal      bool           `json:"is_personal"`
	CompletionType  CompletionType `json:"completion_type,omitempty"`
	CompletionValue *string        `json:"completion_value,omitempty"`
	Status          Status         `json:"status,omitempty"`
	CategoryID      *string        `json:"category_id,omitempty"`
}

// Validate checks required text and enumerations.
func (in TaskInsert) Validate() error {
	if err := requireText(ColName, in.Name); err != nil {
		return err
	}
	if err := requireEnum(ColPriority, in.Priority, Priorities...); err != nil {
		return err
	}
	if in.CompletionType != "" {
		if err := requireEnum(ColCompletionType, in.CompletionType,
			CompletionDone, CompletionPercentage, CompletionStages); err != nil {
			return err
		}
	}
	if in.Status != "" {
		if err := requireEnum(ColStatus, in.Status, Statuses...); err != nil {
			return err
		}
	}
	return nil
}

// Record encodes the insert for owner, applying creation defaults.
func (in TaskInsert) Record(owner string) Record {
	status := in.Status
	if status == "" {
		status = StatusTodo
	}
	ct := in.CompletionType
	if ct == "" {
		ct = CompletionDone
	}
	r := Record{
		ColUserID:         owner,
		ColName:           in.Name,
		ColPriority:       string(in.Priority),
		ColIsPersonal:     in.IsPersonal,
		ColCompletionType: string(ct),
		ColStatus:         string(status),
	}
	putText(r, ColDescription, in.Description)
	putText(r, ColCompletionValue, in.CompletionValue)
	putText(r, ColCategoryID, in.CategoryID)
	return r
}

// TaskUpdate is a partial update. Nil pointers and unset slots are left alone.
type TaskUpdate struct {
	Name            *string
	Description     OptionalText
	Priority        *Priority
	IsPersonal      *bool
	CompletionType  *CompletionType
	CompletionValue OptionalText
	Status          *Status
	CategoryID      OptionalText
}

// Validate rejects empty names and out-of-enum values.
func (u TaskUpdate) Validate() error {
	if u.Name != nil {
		if err := requireText(ColName, *u.Name); err != nil {
			return err
		}
	}
	if u.Priority != nil {
		if err := requireEnum(ColPriority, *u.Priority, Priorities...); err != nil {
			return err
		}
	}
	if u.CompletionType != nil {
		if err := requireEnum(ColCompletionType, *u.CompletionType,
			CompletionDone, CompletionPercentage, CompletionStages); err != nil {
			return err
		}
	}
	if u.Status != nil {
		if err := requireEnum(ColStatus, *u.Status, Statuses...); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns t with the set fields merged in.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Name != nil {
		t.Name = *u.Name
	}
	t.Description = u.Description.apply(t.Description)
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.IsPersonal != nil {
		t.IsPersonal = *u.IsPersonal
	}
	if u.CompletionType != nil {
		t.CompletionType = *u.CompletionType
	}
	t.CompletionValue = u.CompletionValue.apply(t.CompletionValue)
	if u.Status != nil {
		t.Status = *u.Status
	}
	t.CategoryID = u.CategoryID.apply(t.CategoryID)
	return t
}

// Capture returns an update restoring t's current values for exactly the
// fields u sets.
func (u TaskUpdate) Capture(t Task) TaskUpdate {
	var c TaskUpdate
	if u.Name != nil {
		c.Name = Ptr(t.Name)
	}
	if u.Description.Set {
		c.Description = captureText(t.Description)
	}
	if u.Priority != nil {
		c.Priority = Ptr(t.Priority)
	}
	if u.IsPersonal != nil {
		c.IsPersonal = Ptr(t.IsPersonal)
	}
	if u.CompletionType != nil {
		c.CompletionType = Ptr(t.CompletionType)
	}
	if u.CompletionValue.Set {
		c.CompletionValue = captureText(t.CompletionValue)
	}
	if u.Status != nil {
		c.Status = Ptr(t.Status)
	}
	if u.CategoryID.Set {
		c.CategoryID = captureText(t.CategoryID)
	}
	return c
}

// Record encodes the set fields.
func (u TaskUpdate) Record() Record {
	r := Record{}
	if u.Name != nil {
		r[ColName] = *u.Name
	}
	u.Description.put(r, ColDescription)
	if u.Priority != nil {
		r[ColPriority] = string(*u.Priority)
	}
	if u.IsPersonal != nil {
		r[ColIsPersonal] = *u.IsPersonal
	}
	if u.CompletionType != nil {
		r[ColCompletionType] = string(*u.CompletionType)
	}
	u.CompletionValue.put(r, ColCompletionValue)
	if u.Status != nil {
		r[ColStatus] = string(*u.Status)
	}
	u.CategoryID.put(r, ColCategoryID)
	return r
}

// IsEmpty reports whether no field is set.
func (u TaskUpdate) IsEmpty() bool { return len(u.Record()) == 0 }

func putText(r Record, col string, v *string) {
	if v != nil {
		r[col] = *v
	}
}

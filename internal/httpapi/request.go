package httpapi

import (
	"encoding/json"

	"github.com/nhle/tasknotes/internal/model"
)

// optText distinguishes an absent key from an explicit null.
type optText struct {
	model.OptionalText
}

func (o *optText) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

type taskPatch struct {
	Name            *string               `json:"name"`
	Description     optText               `json:"description"`
	Priority        *model.Priority       `json:"priority"`
	IsPersonal      *bool                 `json:"is_personal"`
	CompletionType  *model.CompletionType `json:"completion_type"`
	CompletionValue optText               `json:"completion_value"`
	Status          *model.Status         `json:"status"`
	CategoryID      optText               `json:"category_id"`
}

func (p taskPatch) update() model.TaskUpdate {
	return model.TaskUpdate{
		Name:            p.Name,
		Description:     p.Description.OptionalText,
		Priority:        p.Priority,
		IsPersonal:      p.IsPersonal,
		CompletionType:  p.CompletionType,
		CompletionValue: p.CompletionValue.OptionalText,
		Status:          p.Status,
		CategoryID:      p.CategoryID.OptionalText,
	}
}

type categoryPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (p categoryPatch) update() model.CategoryUpdate {
	return model.CategoryUpdate{Name: p.Name, Color: p.Color}
}

type notePatch struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	CategoryID optText `json:"category_id"`
	IsPersonal *bool   `json:"is_personal"`
	IsPinned   *bool   `json:"is_pinned"`
}

func (p notePatch) update() model.NoteUpdate {
	return model.NoteUpdate{
		Title:      p.Title,
		Content:    p.Content,
		CategoryID: p.CategoryID.OptionalText,
		IsPersonal: p.IsPersonal,
		IsPinned:   p.IsPinned,
	}
}

package collection

import (
	"time"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
)

// Categories is the category collection. Categories carry no updated_at, so
// optimistic patches are not stamped.
type Categories struct {
	*Collection[model.Category, model.CategoryInsert, model.CategoryUpdate]
}

// NewCategories creates the category collection, newest first.
func NewCategories(b remote.Backend, sess session.Context, opts ...Option) *Categories {
	return &Categories{
		Collection: New[model.Category, model.CategoryInsert, model.CategoryUpdate](b, sess, Config[model.Category]{
			Name:   remote.Categories,
			Order:  remote.Order{Field: model.ColCreatedAt, Desc: true},
			Decode: model.CategoryFromRecord,
			Less:   createdDesc[model.Category](func(c model.Category) time.Time { return c.CreatedAt }),
		}, opts...),
	}
}

// Lookup indexes the mirror by id.
func (c *Categories) Lookup() map[string]model.Category {
	list := c.List()
	out := make(map[string]model.Category, len(list))
	for _, cat := range list {
		out[cat.ID] = cat
	}
	return out
}

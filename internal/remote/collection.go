package remote

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
)

// Kind is the variant tag of a decoded ChangeEvent.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeEvent is a decoded feed event: Insert(Record), Update(Record) or
// Delete(ID). Record is the zero value for deletes.
type ChangeEvent[E any] struct {
	Kind   Kind
	Record E
	ID     string
}

// Decoder turns a backend row into an entity.
type Decoder[E any] func(model.Record) (E, error)

// Collection is a typed view over one backend collection.
type Collection[E any] struct {
	backend Backend
	name    string
	order   Order
	decode  Decoder[E]
	log     *zap.Logger
}

// NewCollection binds a backend collection to a decoder and default order.
func NewCollection[E any](b Backend, name string, order Order, decode Decoder[E], log *zap.Logger) *Collection[E] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collection[E]{backend: b, name: name, order: order, decode: decode, log: log}
}

// Name returns the backend collection name.
func (c *Collection[E]) Name() string { return c.name }

// List fetches every row owned by ownerID. Rows that fail to decode are
// skipped and logged.
func (c *Collection[E]) List(ctx context.Context, ownerID string) ([]E, error) {
	recs, err := c.backend.List(ctx, c.name, ownerID, c.order)
	if err != nil {
		return nil, errs.Remote(c.name+".list", err)
	}
	out := make([]E, 0, len(recs))
	for _, r := range recs {
		e, err := c.decode(r)
		if err != nil {
			c.log.Warn("skipping undecodable row", zap.String("collection", c.name), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Insert creates a row and returns the decoded server copy.
func (c *Collection[E]) Insert(ctx context.Context, rec model.Record) (E, error) {
	var zero E
	stored, err := c.backend.Insert(ctx, c.name, rec)
	if err != nil {
		return zero, errs.Remote(c.name+".insert", err)
	}
	e, err := c.decode(stored)
	if err != nil {
		return zero, errs.Remote(c.name+".insert", err)
	}
	return e, nil
}

// Patch updates a row and returns the decoded server copy.
func (c *Collection[E]) Patch(ctx context.Context, ownerID, id string, fields model.Record) (E, error) {
	var zero E
	stored, err := c.backend.Patch(ctx, c.name, ownerID, id, fields)
	if err != nil {
		return zero, errs.Remote(c.name+".update", err)
	}
	e, err := c.decode(stored)
	if err != nil {
		return zero, errs.Remote(c.name+".update", err)
	}
	return e, nil
}

// Remove deletes a row.
func (c *Collection[E]) Remove(ctx context.Context, ownerID, id string) error {
	if err := c.backend.Remove(ctx, c.name, ownerID, id); err != nil {
		return errs.Remote(c.name+".delete", err)
	}
	return nil
}

// Subscribe opens the change feed for ownerID and delivers decoded events.
// Events that cannot be decoded, or that belong to another owner, never reach fn.
func (c *Collection[E]) Subscribe(ctx context.Context, ownerID string, fn func(ChangeEvent[E])) (Subscription, error) {
	sub, err := c.backend.Subscribe(ctx, c.name, ownerID, func(raw RawEvent) {
		ev, ok := c.DecodeEvent(ownerID, raw)
		if !ok {
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, &errs.Error{Kind: errs.ErrSubscription, Op: c.name + ".subscribe", Err: err}
	}
	return sub, nil
}

// DecodeEvent validates and decodes a raw event for ownerID.
func (c *Collection[E]) DecodeEvent(ownerID string, raw RawEvent) (ChangeEvent[E], bool) {
	switch raw.Type {
	case EventInsert, EventUpdate:
		if raw.New == nil {
			c.log.Warn("change event without row", zap.String("collection", c.name), zap.String("type", string(raw.Type)))
			return ChangeEvent[E]{}, false
		}
		if owner := raw.New.String(model.ColUserID); owner != "" && owner != ownerID {
			return ChangeEvent[E]{}, false
		}
		e, err := c.decode(raw.New)
		if err != nil {
			c.log.Warn("dropping undecodable change event", zap.String("collection", c.name), zap.Error(err))
			return ChangeEvent[E]{}, false
		}
		kind := KindInsert
		if raw.Type == EventUpdate {
			kind = KindUpdate
		}
		return ChangeEvent[E]{Kind: kind, Record: e, ID: raw.New.String(model.ColID)}, true
	case EventDelete:
		id := raw.Old.String(model.ColID)
		if id == "" {
			c.log.Warn("delete event without id", zap.String("collection", c.name))
			return ChangeEvent[E]{}, false
		}
		if owner := raw.Old.String(model.ColUserID); owner != "" && owner != ownerID {
			return ChangeEvent[E]{}, false
		}
		return ChangeEvent[E]{Kind: KindDelete, ID: id}, true
	default:
		c.log.Warn("unknown change event type", zap.String("collection", c.name), zap.String("type", string(raw.Type)))
		return ChangeEvent[E]{}, false
	}
}

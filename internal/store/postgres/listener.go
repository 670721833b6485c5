package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
)

// notification is the JSON payload written by the tasknotes_notify trigger.
type notification struct {
	Table  string         `json:"table"`
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
	Record map[string]any `json:"record"`
}

// decodeNotification parses a payload into a raw event. Old always carries
// the row's id and owner; New is nil for rows too large for NOTIFY, which
// the caller refetches.
func decodeNotification(payload string) (remote.RawEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return remote.RawEvent{}, fmt.Errorf("decoding notification: %w", err)
	}
	if _, err := remote.SchemaFor(n.Table); err != nil {
		return remote.RawEvent{}, err
	}
	if n.ID == "" {
		return remote.RawEvent{}, errors.New("notification has no id")
	}

	ev := remote.RawEvent{
		Collection: n.Table,
		Type:       remote.EventType(n.Type),
		Old:        model.Record{model.ColID: n.ID, model.ColUserID: n.UserID},
	}
	switch ev.Type {
	case remote.EventInsert, remote.EventUpdate:
		if n.Record != nil {
			ev.New = model.Record(n.Record)
		}
	case remote.EventDelete:
	default:
		return remote.RawEvent{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
	return ev, nil
}

func (b *Backend) ensureListener(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listening {
		return nil
	}
	if b.dial == nil {
		return errors.New("change feed not configured")
	}

	conn, err := b.dial(ctx)
	if err != nil {
		return fmt.Errorf("opening listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		_ = conn.Close(context.Background())
		return fmt.Errorf("listening on %s: %w", Channel, err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	b.listening = true
	b.stop = cancel
	b.done = make(chan struct{})
	go b.listen(lctx, conn, b.done)
	b.log.Debug("listener started", zap.String("channel", Channel))
	return nil
}

func (b *Backend) listen(ctx context.Context, conn Notifier, done chan struct{}) {
	defer close(done)
	defer conn.Close(context.Background())

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			b.mu.Lock()
			b.listening = false
			b.stop = nil
			b.mu.Unlock()
			if ctx.Err() == nil {
				b.log.Warn("listener stopped", zap.Error(err))
				b.hub.Drop(fmt.Errorf("change feed: %w", err))
			}
			return
		}
		b.dispatch(ctx, n)
	}
}

func (b *Backend) dispatch(ctx context.Context, n *pgconn.Notification) {
	ev, err := decodeNotification(n.Payload)
	if err != nil {
		b.log.Warn("dropping notification", zap.Error(err))
		return
	}
	if ev.Type != remote.EventDelete && ev.New == nil {
		id := ev.Old.String(model.ColID)
		rec, err := b.fetch(ctx, ev.Collection, id)
		if err != nil {
			// Row deleted since, or unreachable; the next full fetch catches up.
			b.log.Debug("refetch after notification failed", zap.String("id", id), zap.Error(err))
			return
		}
		ev.New = rec
	}
	b.hub.Publish(ev)
}

package remote

import (
	gosync "sync"

	"github.com/nhle/tasknotes/internal/model"
)

// Hub fans change events out to in-process subscribers. Backends without a
// native change feed publish to a Hub after each committed write.
type Hub struct {
	mu   gosync.Mutex
	subs map[*HubSubscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*HubSubscription]struct{})}
}

// HubSubscription is a Subscription registered on a Hub.
type HubSubscription struct {
	hub        *Hub
	collection string
	owner      string
	fn         func(RawEvent)

	mu     gosync.Mutex // serializes delivery against Close
	closed bool
	errCh  chan error
}

// Subscribe registers fn for events of collection owned by owner.
func (h *Hub) Subscribe(collection, owner string, fn func(RawEvent)) *HubSubscription {
	s := &HubSubscription{
		hub:        h,
		collection: collection,
		owner:      owner,
		fn:         fn,
		errCh:      make(chan error, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish delivers ev synchronously to every matching subscriber.
func (h *Hub) Publish(ev RawEvent) {
	owner := eventOwner(ev)
	for _, s := range h.matching(ev.Collection, owner) {
		s.deliver(ev)
	}
}

// Drop terminates every subscription with err, as a transport failure would.
func (h *Hub) Drop(err error) {
	h.mu.Lock()
	subs := make([]*HubSubscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[*HubSubscription]struct{})
	h.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) matching(collection, owner string) []*HubSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*HubSubscription
	for s := range h.subs {
		if s.collection == collection && (owner == "" || s.owner == owner) {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) remove(s *HubSubscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

func eventOwner(ev RawEvent) string {
	if ev.New != nil {
		if o := ev.New.String(model.ColUserID); o != "" {
			return o
		}
	}
	if ev.Old != nil {
		return ev.Old.String(model.ColUserID)
	}
	return ""
}

func (s *HubSubscription) deliver(ev RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(ev)
}

func (s *HubSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.errCh <- err
}

// Err implements Subscription.
func (s *HubSubscription) Err() <-chan error { return s.errCh }

// Close implements Subscription.
func (s *HubSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.remove(s)
	return nil
}

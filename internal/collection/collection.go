// Package collection is the entry point consumed by front-ends: one
// synchronized, optimistically mutated collection per entity type.
//
// A Collection owns its mirror and reconciler. It follows the session: an
// owner change discards the mirror and loads the new owner's rows.
package collection

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/mirror"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
	"github.com/nhle/tasknotes/internal/sync"
)

// Phase is the lifecycle position of a Collection.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	// PhaseReady follows the first successful population. Later errors
	// leave the phase alone.
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// State is a snapshot of a Collection's status fields.
type State struct {
	Phase   Phase
	Loading bool
	// Err is the last operation's error, cleared by the next success.
	Err  error
	Sync sync.Stats
}

// Insert is the create shape of an entity.
type Insert interface {
	Validate() error
	Record(ownerID string) model.Record
}

// Update is the partial-update shape of an entity E. Capture returns the
// update that restores E's current values for the fields this one sets.
type Update[E any, U any] interface {
	Validate() error
	Apply(E) E
	Capture(E) U
	Record() model.Record
}

// Config describes one collection.
type Config[E mirror.Entity] struct {
	Name   string
	Order  remote.Order
	Decode remote.Decoder[E]
	// Less keeps the mirror sorted. Nil means newest first by arrival.
	Less func(a, b E) bool
	// Touch stamps a synthetic updated_at on optimistic patches. Nil for
	// entities without one.
	Touch func(E, time.Time) E
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	sync   sync.Config
	log    *zap.Logger
	now    func() time.Time
	policy CompletionPolicy
}

// WithSyncConfig tunes the reconciler.
func WithSyncConfig(c sync.Config) Option { return func(o *options) { o.sync = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithClock overrides the clock used for optimistic timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithCompletionPolicy selects the task toggle cycle. Other collections ignore it.
func WithCompletionPolicy(p CompletionPolicy) Option { return func(o *options) { o.policy = p } }

func buildOptions(opts []Option) options {
	o := options{sync: sync.DefaultConfig(), log: zap.NewNop(), now: time.Now, policy: TwoState}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Collection synchronizes one entity type for the session owner.
// Listeners registered with Subscribe must not call Close.
type Collection[E mirror.Entity, I Insert, U Update[E, U]] struct {
	name   string
	remote *remote.Collection[E]
	mirror *mirror.Mirror[E]
	rec    *sync.Reconciler[E]
	sess   session.Context
	touch  func(E, time.Time) E
	now    func() time.Time
	log    *zap.Logger

	ctx           context.Context
	cancel        context.CancelFunc
	cancelSession func()
	wg            gosync.WaitGroup
	loadMu        gosync.Mutex // serializes owner loads

	mu        gosync.Mutex
	gen       uint64
	owner     string
	state     State
	listeners map[int]func()
	next      int
	closed    bool
}

// New creates a Collection bound to sess. It stays uninitialized until
// Start or the next sign-in.
func New[E mirror.Entity, I Insert, U Update[E, U]](b remote.Backend, sess session.Context, cfg Config[E], opts ...Option) *Collection[E, I, U] {
	o := buildOptions(opts)
	log := o.log.With(zap.String("collection", cfg.Name))

	var mopts []mirror.Option[E]
	if cfg.Less != nil {
		mopts = append(mopts, mirror.WithOrder(cfg.Less))
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Collection[E, I, U]{
		name:      cfg.Name,
		remote:    remote.NewCollection(b, cfg.Name, cfg.Order, cfg.Decode, log),
		mirror:    mirror.New(mopts...),
		sess:      sess,
		touch:     cfg.Touch,
		now:       o.now,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func()),
	}
	c.rec = sync.New[E](c.remote, c.mirror,
		sync.WithConfig(o.sync),
		sync.WithLogger(log),
		sync.WithOnChange(c.notify),
	)
	c.cancelSession = sess.OnChange(c.ownerChanged)
	return c
}

// Name returns the backend collection name.
func (c *Collection[E, I, U]) Name() string { return c.name }

// Start loads the current owner's rows and opens the live feed. It is a
// no-op while signed out.
func (c *Collection[E, I, U]) Start(ctx context.Context) error {
	owner := c.sess.OwnerID()
	if owner == "" {
		return nil
	}
	c.mu.Lock()
	c.owner = owner
	gen := c.gen
	c.mu.Unlock()
	return c.load(ctx, owner, gen)
}

// Close stops the reconciler and detaches from the session. No listener is
// called after Close returns.
func (c *Collection[E, I, U]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.listeners = map[int]func(){}
	c.mu.Unlock()

	c.cancelSession()
	c.cancel()
	c.wg.Wait()
	c.rec.Stop()
}

// State returns the current status fields.
func (c *Collection[E, I, U]) State() State {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()
	s.Sync = c.rec.Stats()
	return s
}

// List returns the mirror contents in display order.
func (c *Collection[E, I, U]) List() []E { return c.mirror.List() }

// Get returns one entity from the mirror.
func (c *Collection[E, I, U]) Get(id string) (E, bool) { return c.mirror.Get(id) }

// Subscribe registers fn to run after every change to the mirror or state.
func (c *Collection[E, I, U]) Subscribe(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Create validates in and inserts it for the session owner. With a live
// feed the mirror gains the row from its insert event and the response only
// refreshes an entry already there; without one the response is folded in.
func (c *Collection[E, I, U]) Create(ctx context.Context, in I) (E, error) {
	var zero E
	op := c.name + ".create"
	owner := c.sess.OwnerID()
	if owner == "" {
		return zero, c.record(errs.NotAuthenticated(op))
	}
	if err := in.Validate(); err != nil {
		return zero, c.record(errs.WithOp(op, err))
	}
	gen := c.generation()

	created, err := c.remote.Insert(ctx, in.Record(owner))
	if err != nil {
		return zero, c.record(err)
	}
	if c.current(gen) {
		var folded bool
		if c.rec.Stats().Mode == sync.ModeLive {
			folded = c.mirror.ReconcileExisting(created, created.Revision())
		} else {
			folded = c.mirror.Reconcile(created, created.Revision())
		}
		if folded {
			c.notify()
		}
	}
	c.record(nil)
	return created, nil
}

// Update patches id optimistically. A rejected request restores exactly the
// fields u touched.
func (c *Collection[E, I, U]) Update(ctx context.Context, id string, u U) (E, error) {
	var zero E
	op := c.name + ".update"
	owner := c.sess.OwnerID()
	if owner == "" {
		return zero, c.record(errs.NotAuthenticated(op))
	}
	if err := u.Validate(); err != nil {
		return zero, c.record(errs.WithOp(op, err))
	}
	cur, ok := c.mirror.Get(id)
	if !ok {
		return zero, c.record(errs.NotFound(op, id))
	}

	gen := c.generation()
	restore := u.Capture(cur)
	prev := cur.Revision()
	c.mirror.Patch(id, func(e E) E {
		e = u.Apply(e)
		if c.touch != nil {
			e = c.touch(e, c.now().UTC())
		}
		return e
	})
	c.notify()

	stored, err := c.remote.Patch(ctx, owner, id, u.Record())
	if err != nil {
		if !c.current(gen) {
			return zero, c.record(err)
		}
		c.mirror.Patch(id, func(e E) E {
			e = restore.Apply(e)
			if c.touch != nil {
				e = c.touch(e, prev)
			}
			return e
		})
		c.log.Debug("optimistic update rolled back", zap.String("id", id), zap.Error(err))
		c.notify()
		return zero, c.record(err)
	}

	// A row deleted while the request was in flight stays deleted.
	if c.current(gen) && c.mirror.ReconcileExisting(stored, stored.Revision()) {
		c.notify()
	}
	c.record(nil)
	return stored, nil
}

// Delete removes id remotely. With a live feed the mirror drops the row when
// the delete event arrives; otherwise it is dropped after confirmation.
func (c *Collection[E, I, U]) Delete(ctx context.Context, id string) error {
	op := c.name + ".delete"
	owner := c.sess.OwnerID()
	if owner == "" {
		return c.record(errs.NotAuthenticated(op))
	}
	gen := c.generation()
	if err := c.remote.Remove(ctx, owner, id); err != nil {
		return c.record(err)
	}
	if c.current(gen) && c.rec.Stats().Mode != sync.ModeLive && c.mirror.Remove(id) {
		c.notify()
	}
	c.record(nil)
	return nil
}

// Refresh replaces the mirror with a full fetch.
func (c *Collection[E, I, U]) Refresh(ctx context.Context) error {
	if c.sess.OwnerID() == "" {
		return c.record(errs.NotAuthenticated(c.name + ".refresh"))
	}
	err := c.rec.Refresh(ctx)
	c.mu.Lock()
	if err == nil {
		c.state.Phase = PhaseReady
		c.state.Loading = false
	}
	c.mu.Unlock()
	return c.record(err)
}

// Retry makes one attempt to bring the live feed back.
func (c *Collection[E, I, U]) Retry(ctx context.Context) error {
	err := c.rec.Retry(ctx)
	c.notify()
	return err
}

// DisableLive switches the collection to polling.
func (c *Collection[E, I, U]) DisableLive() {
	c.rec.Disable()
	c.notify()
}

// load populates the mirror for owner as run gen.
func (c *Collection[E, I, U]) load(ctx context.Context, owner string, gen uint64) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	if c.state.Phase == PhaseUninitialized {
		c.state.Phase = PhaseLoading
	}
	c.state.Loading = true
	c.mu.Unlock()
	c.notify()

	err := c.rec.Start(ctx, owner)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		// A newer owner is waiting on loadMu; it restarts the reconciler.
		c.rec.Stop()
		return nil
	}
	c.state.Loading = false
	if err == nil {
		c.state.Phase = PhaseReady
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("initial load failed", zap.Error(err))
	}
	return c.record(err)
}

// ownerChanged resets the collection for a new session owner.
func (c *Collection[E, I, U]) ownerChanged(owner string) {
	c.mu.Lock()
	if c.closed || (owner == c.owner && c.state.Phase != PhaseUninitialized) {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.owner = owner
	c.state = State{}
	c.mu.Unlock()

	c.rec.Stop()
	c.mirror.Reset()
	c.notify()
	if owner == "" {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.load(c.ctx, owner, gen)
	}()
}

// generation returns the owner generation a request starts under.
func (c *Collection[E, I, U]) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// current reports whether the mirror still belongs to generation gen. A
// response that arrives after an owner change must not touch it.
func (c *Collection[E, I, U]) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// record stores err as the last operation error and returns it.
func (c *Collection[E, I, U]) record(err error) error {
	c.mu.Lock()
	changed := c.state.Err != nil || err != nil
	c.state.Err = err
	c.mu.Unlock()
	if changed {
		c.notify()
	}
	return err
}

func (c *Collection[E, I, U]) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

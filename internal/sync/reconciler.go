package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/mirror"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
)

// Mode is the single refresh strategy active at a time.
type Mode int

const (
	// ModeDisabled means no refresh runs: not started, stopped, or signed out.
	ModeDisabled Mode = iota
	// ModeLive folds change-feed events into the mirror.
	ModeLive
	// ModePolling replaces the mirror with a full fetch every poll interval.
	ModePolling
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModePolling:
		return "polling"
	default:
		return "disabled"
	}
}

// Status is the connection state of the live feed.
type Status int

const (
	// StatusIdle means the feed was never connected.
	StatusIdle Status = iota
	StatusConnected
	// StatusDisconnected follows a feed error; retries may be pending.
	StatusDisconnected
	// StatusDisabled means the error budget ran out and the feed is off.
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusDisabled:
		return "disabled"
	default:
		return "idle"
	}
}

// Stats is a snapshot of reconciler diagnostics.
type Stats struct {
	Mode        Mode      `json:"mode"`
	Status      Status    `json:"status"`
	LastUpdate  time.Time `json:"last_update"`
	UpdateCount int       `json:"update_count"`
	Retries     int       `json:"retries"`
	Errors      int       `json:"errors"`
}

// Config tunes retry and polling behavior.
type Config struct {
	PollInterval     time.Duration
	MaxRetries       int
	MaxErrors        int
	ResubscribeEvery int
	// Backoff is the first retry delay; later delays double.
	Backoff time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval:     10 * time.Second,
		MaxRetries:       3,
		MaxErrors:        5,
		ResubscribeEvery: 6,
		Backoff:          500 * time.Millisecond,
	}
}

// ConfigFrom converts the application sync settings.
func ConfigFrom(c model.SyncConfig) Config {
	cfg := DefaultConfig()
	if c.PollIntervalSec > 0 {
		cfg.PollInterval = c.PollInterval()
	}
	cfg.MaxRetries = c.MaxRetries
	if c.MaxErrors > 0 {
		cfg.MaxErrors = c.MaxErrors
	}
	cfg.ResubscribeEvery = c.ResubscribeEvery
	return cfg
}

// Source is the typed remote collection a Reconciler reads from.
// *remote.Collection satisfies it.
type Source[E any] interface {
	Name() string
	List(ctx context.Context, ownerID string) ([]E, error)
	Subscribe(ctx context.Context, ownerID string, fn func(remote.ChangeEvent[E])) (remote.Subscription, error)
}

// Target is the mirror a Reconciler writes to. *mirror.Mirror satisfies it.
type Target[E any] interface {
	ReplaceAll(items []E)
	Reconcile(item E, version time.Time) bool
	Remove(id string) bool
}

var (
	errStopped = errors.New("reconciler stopped")
	errBudget  = errors.New("error budget exhausted")
)

// Reconciler keeps a Target convergent with a Source for one owner.
type Reconciler[E mirror.Entity] struct {
	src      Source[E]
	dst      Target[E]
	cfg      Config
	log      *zap.Logger
	onChange func()
	now      func() time.Time

	ctl gosync.Mutex // serializes Start, Stop, Retry and Disable
	wg  gosync.WaitGroup

	mu        gosync.Mutex
	gen       uint64
	owner     string
	cancel    context.CancelFunc
	sub       remote.Subscription
	buffering bool
	pending   []remote.ChangeEvent[E]
	stats     Stats
}

// Option configures a Reconciler.
type Option func(*options)

type options struct {
	cfg      Config
	log      *zap.Logger
	onChange func()
	now      func() time.Time
}

// WithConfig overrides DefaultConfig.
func WithConfig(c Config) Option { return func(o *options) { o.cfg = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithOnChange registers fn to run after every change folded into the target.
func WithOnChange(fn func()) Option { return func(o *options) { o.onChange = fn } }

// WithClock overrides the clock used for LastUpdate.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New creates a stopped Reconciler.
func New[E mirror.Entity](src Source[E], dst Target[E], opts ...Option) *Reconciler[E] {
	o := options{cfg: DefaultConfig(), log: zap.NewNop(), onChange: func() {}, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.cfg.Backoff <= 0 {
		o.cfg.Backoff = DefaultConfig().Backoff
	}
	if o.cfg.PollInterval <= 0 {
		o.cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Reconciler[E]{
		src:      src,
		dst:      dst,
		cfg:      o.cfg,
		log:      o.log.With(zap.String("collection", src.Name())),
		onChange: o.onChange,
		now:      o.now,
	}
}

// Start stops any current run, opens the live feed for ownerID and loads
// the first snapshot. It returns once that snapshot is in or has failed.
// A feed that cannot be opened is retried in the background.
func (r *Reconciler[E]) Start(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return errs.NotAuthenticated(r.src.Name() + ".start")
	}
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.halt()
	gen, runCtx := r.begin(ownerID, ModeLive)
	r.mu.Lock()
	r.stats = Stats{Mode: ModeLive, Status: StatusIdle}
	r.mu.Unlock()

	subErr := r.subscribe(ctx, gen, runCtx)
	loadErr := r.load(ctx, gen)
	if subErr != nil && !errors.Is(subErr, errStopped) {
		r.fail(gen, subErr)
		r.goRecover(gen, runCtx)
	}
	return loadErr
}

// Stop cancels the feed and any poller and waits for them to exit.
func (r *Reconciler[E]) Stop() {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.halt()
	r.mu.Lock()
	r.owner = ""
	r.stats.Mode = ModeDisabled
	r.mu.Unlock()
}

// Retry resets the counters and makes one attempt to go live again.
// On failure the reconciler keeps polling and the error is returned.
func (r *Reconciler[E]) Retry(ctx context.Context) error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	owner := r.owner
	r.mu.Unlock()
	if owner == "" {
		return errs.NotAuthenticated(r.src.Name() + ".retry")
	}

	r.halt()
	gen, runCtx := r.begin(owner, ModeLive)
	r.mu.Lock()
	r.stats.Retries, r.stats.Errors = 0, 0
	r.mu.Unlock()

	if err := r.subscribe(ctx, gen, runCtx); err != nil {
		r.fail(gen, err)
		r.goPoll(gen, runCtx)
		return err
	}
	if err := r.load(ctx, gen); err != nil {
		r.log.Warn("refetch after retry failed", zap.Error(err))
	}
	return nil
}

// Disable turns the live feed off and switches to polling.
func (r *Reconciler[E]) Disable() {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	owner, mode := r.owner, r.stats.Mode
	r.mu.Unlock()
	if owner == "" || mode == ModePolling {
		return
	}
	r.halt()
	gen, runCtx := r.begin(owner, ModePolling)
	r.goPoll(gen, runCtx)
}

// Refresh replaces the target with a full fetch, whatever the mode.
func (r *Reconciler[E]) Refresh(ctx context.Context) error {
	r.mu.Lock()
	gen, owner := r.gen, r.owner
	r.mu.Unlock()
	if owner == "" {
		return errs.NotAuthenticated(r.src.Name() + ".refresh")
	}
	return r.load(ctx, gen)
}

// Stats returns current diagnostics.
func (r *Reconciler[E]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// halt ends the current run. Caller holds r.ctl.
func (r *Reconciler[E]) halt() {
	r.mu.Lock()
	r.gen++
	cancel, sub := r.cancel, r.sub
	r.cancel, r.sub = nil, nil
	r.buffering, r.pending = false, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		_ = sub.Close()
	}
	r.wg.Wait()
}

// begin opens a new run for owner. Caller holds r.ctl.
func (r *Reconciler[E]) begin(owner string, mode Mode) (uint64, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.owner = owner
	r.cancel = cancel
	r.stats.Mode = mode
	if mode == ModePolling {
		r.stats.Status = StatusDisabled
	}
	return r.gen, ctx
}

// subscribe opens the feed for run gen. Events received before the next
// load completes are buffered and replayed after its snapshot.
func (r *Reconciler[E]) subscribe(ctx context.Context, gen uint64, runCtx context.Context) error {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return errStopped
	}
	owner := r.owner
	r.buffering, r.pending = true, nil
	r.mu.Unlock()

	sub, err := r.src.Subscribe(ctx, owner, func(ev remote.ChangeEvent[E]) { r.apply(gen, ev) })
	if err != nil {
		r.mu.Lock()
		if r.gen == gen {
			r.buffering, r.pending = false, nil
		}
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		_ = sub.Close()
		return errStopped
	}
	r.sub = sub
	r.stats.Mode = ModeLive
	r.stats.Status = StatusConnected
	r.stats.Retries, r.stats.Errors = 0, 0
	r.mu.Unlock()
	r.log.Debug("live feed connected")

	r.wg.Add(1)
	go r.watch(gen, runCtx, sub)
	return nil
}

// load fetches a snapshot, replaces the target and replays buffered events.
func (r *Reconciler[E]) load(ctx context.Context, gen uint64) error {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return errStopped
	}
	owner := r.owner
	if r.sub != nil && !r.buffering {
		r.buffering, r.pending = true, nil
	}
	r.mu.Unlock()

	items, err := r.src.List(ctx, owner)

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return errStopped
	}
	if err == nil {
		r.dst.ReplaceAll(items)
	}
	changed := err == nil || len(r.pending) > 0
	for _, ev := range r.pending {
		r.fold(ev)
	}
	r.buffering, r.pending = false, nil
	if changed {
		r.touch()
	}
	r.mu.Unlock()

	if changed {
		r.onChange()
	}
	return err
}

// apply folds one feed event for run gen.
func (r *Reconciler[E]) apply(gen uint64, ev remote.ChangeEvent[E]) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	if r.buffering {
		r.pending = append(r.pending, ev)
		r.mu.Unlock()
		return
	}
	r.fold(ev)
	r.touch()
	r.mu.Unlock()

	r.log.Debug("change applied", zap.Stringer("kind", ev.Kind), zap.String("id", ev.ID))
	r.onChange()
}

// fold applies ev to the target. Caller holds r.mu.
func (r *Reconciler[E]) fold(ev remote.ChangeEvent[E]) {
	switch ev.Kind {
	case remote.KindInsert, remote.KindUpdate:
		if !r.dst.Reconcile(ev.Record, ev.Record.Revision()) {
			r.log.Debug("stale snapshot ignored", zap.String("id", ev.ID))
		}
	case remote.KindDelete:
		r.dst.Remove(ev.ID)
	}
}

// touch records an update. Caller holds r.mu.
func (r *Reconciler[E]) touch() {
	r.stats.UpdateCount++
	r.stats.LastUpdate = r.now()
}

// fail counts a feed error.
func (r *Reconciler[E]) fail(gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	r.stats.Errors++
	if r.stats.Mode == ModeLive {
		r.stats.Status = StatusDisconnected
	}
	r.log.Warn("live feed error", zap.Int("errors", r.stats.Errors), zap.Error(err))
}

func (r *Reconciler[E]) watch(gen uint64, ctx context.Context, sub remote.Subscription) {
	defer r.wg.Done()

	select {
	case <-ctx.Done():
		return
	case err := <-sub.Err():
		r.mu.Lock()
		if r.gen != gen || r.sub != sub {
			r.mu.Unlock()
			return
		}
		r.sub = nil
		r.mu.Unlock()
		_ = sub.Close()

		r.fail(gen, err)
		r.recover(gen, ctx)
	}
}

func (r *Reconciler[E]) goRecover(gen uint64, ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.recover(gen, ctx)
	}()
}

// recover retries the feed with exponential backoff and falls back to
// polling once retries or the error budget run out.
func (r *Reconciler[E]) recover(gen uint64, ctx context.Context) {
	err := errBudget
	if r.cfg.MaxRetries > 0 {
		// Do makes one attempt plus one per allowed retry.
		b := retry.WithMaxRetries(uint64(r.cfg.MaxRetries-1), retry.NewExponential(r.cfg.Backoff))
		err = retry.Do(ctx, b, func(ctx context.Context) error {
			r.mu.Lock()
			if r.gen != gen {
				r.mu.Unlock()
				return errStopped
			}
			if r.stats.Errors >= r.cfg.MaxErrors {
				r.mu.Unlock()
				return errBudget
			}
			r.stats.Retries++
			attempt := r.stats.Retries
			r.mu.Unlock()

			r.log.Info("retrying live feed", zap.Int("attempt", attempt), zap.Int("max", r.cfg.MaxRetries))
			if err := r.subscribe(ctx, gen, ctx); err != nil {
				if errors.Is(err, errStopped) {
					return err
				}
				r.fail(gen, err)
				return retry.RetryableError(err)
			}
			return nil
		})
	}
	if err == nil {
		if lerr := r.load(ctx, gen); lerr != nil && !errors.Is(lerr, errStopped) {
			r.log.Warn("refetch after reconnect failed", zap.Error(lerr))
		}
		r.log.Info("live feed restored")
		return
	}
	if errors.Is(err, errStopped) || ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	r.stats.Mode = ModePolling
	r.stats.Status = StatusDisabled
	r.mu.Unlock()
	r.log.Warn("live feed disabled, falling back to polling", zap.Duration("interval", r.cfg.PollInterval))
	r.poll(gen, ctx)
}

func (r *Reconciler[E]) goPoll(gen uint64, ctx context.Context) {
	r.mu.Lock()
	if r.gen == gen {
		r.stats.Mode = ModePolling
		r.stats.Status = StatusDisabled
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.poll(gen, ctx)
	}()
}

// poll runs the polling loop until ctx ends or the feed comes back.
func (r *Reconciler[E]) poll(gen uint64, ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := r.load(ctx, gen); err != nil {
			if errors.Is(err, errStopped) || ctx.Err() != nil {
				return
			}
			r.mu.Lock()
			r.stats.Errors++
			r.mu.Unlock()
			r.log.Warn("poll failed", zap.Error(err))
		}

		polls++
		if r.cfg.ResubscribeEvery <= 0 || polls%r.cfg.ResubscribeEvery != 0 {
			continue
		}
		err := r.subscribe(ctx, gen, ctx)
		if err == nil {
			if lerr := r.load(ctx, gen); lerr != nil && !errors.Is(lerr, errStopped) {
				r.log.Warn("refetch after reconnect failed", zap.Error(lerr))
			}
			r.log.Info("live feed restored from polling")
			return
		}
		if errors.Is(err, errStopped) {
			return
		}
		r.fail(gen, err)
	}
}

// Package workspace composes one session, one backend and the three
// synchronized collections an application works with.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/tasknotes/internal/collection"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
	"github.com/nhle/tasknotes/internal/store"
	"github.com/nhle/tasknotes/internal/store/memory"
	"github.com/nhle/tasknotes/internal/store/postgres"
	"github.com/nhle/tasknotes/internal/sync"
)

// Workspace is the set of collections sharing one session and backend.
type Workspace struct {
	Session    *session.Manager
	Backend    remote.Backend
	Tasks      *collection.Tasks
	Categories *collection.Categories
	Notes      *collection.Notes

	log *zap.Logger
}

// Status summarizes every collection.
type Status struct {
	Owner      string           `json:"owner"`
	Tasks      CollectionStatus `json:"tasks"`
	Categories CollectionStatus `json:"categories"`
	Notes      CollectionStatus `json:"notes"`
}

// CollectionStatus is the serializable form of collection.State.
type CollectionStatus struct {
	Phase   string     `json:"phase"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
	Count   int        `json:"count"`
	Mode    string     `json:"mode"`
	Status  string     `json:"connection"`
	Sync    sync.Stats `json:"sync"`
}

// OpenBackend connects to the backend cfg selects.
func OpenBackend(ctx context.Context, cfg model.BackendConfig, log *zap.Logger) (remote.Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Kind {
	case model.BackendMemory:
		return memory.New(), nil
	case model.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); cfg.SQLitePath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		s, err := store.NewSQLiteStore(cfg.SQLitePath, store.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return s, nil
	case model.BackendPostgres:
		b, err := postgres.Open(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// New builds a workspace over b. Collections follow sess from here on.
func New(b remote.Backend, sess *session.Manager, cfg *model.AppConfig, log *zap.Logger) (*Workspace, error) {
	if log == nil {
		log = zap.NewNop()
	}
	policy, err := collection.PolicyNamed(cfg.Sync.CompletionPolicy)
	if err != nil {
		return nil, err
	}
	opts := []collection.Option{
		collection.WithSyncConfig(sync.ConfigFrom(cfg.Sync)),
		collection.WithLogger(log),
		collection.WithCompletionPolicy(policy),
	}
	return &Workspace{
		Session:    sess,
		Backend:    b,
		Tasks:      collection.NewTasks(b, sess, opts...),
		Categories: collection.NewCategories(b, sess, opts...),
		Notes:      collection.NewNotes(b, sess, opts...),
		log:        log,
	}, nil
}

// Open connects the configured backend and builds a workspace on it.
func Open(ctx context.Context, cfg *model.AppConfig, sess *session.Manager, log *zap.Logger) (*Workspace, error) {
	b, err := OpenBackend(ctx, cfg.Backend, log)
	if err != nil {
		return nil, err
	}
	w, err := New(b, sess, cfg, log)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return w, nil
}

// Start loads all collections concurrently.
func (w *Workspace) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Tasks.Start(ctx) })
	g.Go(func() error { return w.Categories.Start(ctx) })
	g.Go(func() error { return w.Notes.Start(ctx) })
	return g.Wait()
}

// Refresh refetches all collections concurrently.
func (w *Workspace) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Tasks.Refresh(ctx) })
	g.Go(func() error { return w.Categories.Refresh(ctx) })
	g.Go(func() error { return w.Notes.Refresh(ctx) })
	return g.Wait()
}

// Retry asks every collection to bring its live feed back.
func (w *Workspace) Retry(ctx context.Context) error {
	return errors.Join(
		w.Tasks.Retry(ctx),
		w.Categories.Retry(ctx),
		w.Notes.Retry(ctx),
	)
}

// DisableLive switches every collection to polling.
func (w *Workspace) DisableLive() {
	w.Tasks.DisableLive()
	w.Categories.DisableLive()
	w.Notes.DisableLive()
}

// Subscribe registers fn on every collection.
func (w *Workspace) Subscribe(fn func()) (cancel func()) {
	cancels := []func(){w.Tasks.Subscribe(fn), w.Categories.Subscribe(fn), w.Notes.Subscribe(fn)}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Status reports every collection's state.
func (w *Workspace) Status() Status {
	return Status{
		Owner:      w.Session.OwnerID(),
		Tasks:      statusOf(w.Tasks.State(), len(w.Tasks.List())),
		Categories: statusOf(w.Categories.State(), len(w.Categories.List())),
		Notes:      statusOf(w.Notes.State(), len(w.Notes.List())),
	}
}

func statusOf(s collection.State, n int) CollectionStatus {
	cs := CollectionStatus{
		Phase:   s.Phase.String(),
		Loading: s.Loading,
		Count:   n,
		Mode:    s.Sync.Mode.String(),
		Status:  s.Sync.Status.String(),
		Sync:    s.Sync,
	}
	if s.Err != nil {
		cs.Error = s.Err.Error()
	}
	return cs
}

// Close stops every collection and closes the backend.
func (w *Workspace) Close() error {
	w.Tasks.Close()
	w.Categories.Close()
	w.Notes.Close()
	if err := w.Backend.Close(); err != nil {
		return fmt.Errorf("closing backend: %w", err)
	}
	w.log.Debug("workspace closed")
	return nil
}

package collection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
	"github.com/nhle/tasknotes/internal/store/memory"
	"github.com/nhle/tasknotes/internal/sync"
)

const waitFor = 2 * time.Second

var ctx = context.Background()

func newSession(t *testing.T, owner string) *session.Manager {
	t.Helper()
	m := session.NewManager(session.NewIssuer([]byte("k"), time.Hour))
	if owner != "" {
		_, err := m.SignIn(owner)
		require.NoError(t, err)
	}
	return m
}

func testOpts() []Option {
	return []Option{WithSyncConfig(sync.Config{
		PollInterval:     10 * time.Millisecond,
		MaxRetries:       1,
		MaxErrors:        5,
		ResubscribeEvery: 1000,
		Backoff:          time.Millisecond,
	})}
}

func startTasks(t *testing.T, b remote.Backend, sess session.Context, opts ...Option) *Tasks {
	t.Helper()
	tasks := NewTasks(b, sess, append(testOpts(), opts...)...)
	t.Cleanup(tasks.Close)
	require.NoError(t, tasks.Start(ctx))
	return tasks
}

func TestCategories_ScopedPerOwner(t *testing.T) {
	b := memory.New()
	c1 := NewCategories(b, newSession(t, "u1"), testOpts()...)
	c2 := NewCategories(b, newSession(t, "u2"), testOpts()...)
	t.Cleanup(c1.Close)
	t.Cleanup(c2.Close)
	require.NoError(t, c1.Start(ctx))
	require.NoError(t, c2.Start(ctx))

	created, err := c1.Create(ctx, model.CategoryInsert{Name: "Work", Color: "#8B5CF6"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	list := c1.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Work", list[0].Name)
	assert.Equal(t, "#8B5CF6", list[0].Color)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Empty(t, c2.List())
	assert.Nil(t, c1.State().Err)
}

func TestCategories_DefaultColor(t *testing.T) {
	b := memory.New()
	c := NewCategories(b, newSession(t, "u1"), testOpts()...)
	t.Cleanup(c.Close)
	require.NoError(t, c.Start(ctx))

	created, err := c.Create(ctx, model.CategoryInsert{Name: "Home"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCategoryColor, created.Color)
	assert.Contains(t, c.Lookup(), created.ID)
}

func TestCreate_ValidationNeverCallsBackend(t *testing.T) {
	b := memory.New()
	sess := newSession(t, "u1")
	cats := NewCategories(b, sess, testOpts()...)
	notes := NewNotes(b, sess, testOpts()...)
	t.Cleanup(cats.Close)
	t.Cleanup(notes.Close)
	tasks := startTasks(t, b, sess)

	cases := []struct {
		name  string
		field string
		call  func() error
	}{
		{"empty task name", model.ColName, func() error {
			_, err := tasks.Create(ctx, model.TaskInsert{Name: "  ", Priority: model.PriorityLow})
			return err
		}},
		{"bad priority", model.ColPriority, func() error {
			_, err := tasks.Create(ctx, model.TaskInsert{Name: "x", Priority: "urgent"})
			return err
		}},
		{"empty note title", model.ColTitle, func() error {
			_, err := notes.Create(ctx, model.NoteInsert{Content: "body"})
			return err
		}},
		{"bad color", model.ColColor, func() error {
			_, err := cats.Create(ctx, model.CategoryInsert{Name: "x", Color: "purple"})
			return err
		}},
		{"short hex color", model.ColColor, func() error {
			_, err := cats.Create(ctx, model.CategoryInsert{Name: "x", Color: "#12"})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.ErrorIs(t, err, errs.ErrValidation)
			assert.Equal(t, tc.field, errs.FieldOf(err))
		})
	}
	for _, coll := range []string{remote.Tasks, remote.Notes, remote.Categories} {
		assert.Zero(t, b.Calls(coll, memory.OpInsert), coll)
	}
}

func TestCreate_DefaultsAndFeedRace(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))

	created, err := tasks.Create(ctx, model.TaskInsert{Name: "Ship report", Priority: model.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, created.Status)
	assert.Equal(t, model.CompletionDone, created.CompletionType)
	assert.False(t, created.IsPersonal)

	// The feed delivered the insert before Create returned; still one entry.
	require.Len(t, tasks.List(), 1)
}

func TestUpdate_RollbackOnRemoteFailure(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))

	created, err := tasks.Create(ctx, model.TaskInsert{Name: "Ship report", Priority: model.PriorityHigh})
	require.NoError(t, err)

	var optimistic model.Status
	cancel := tasks.Subscribe(func() {
		if cur, ok := tasks.Get(created.ID); ok && optimistic == "" {
			optimistic = cur.Status
		}
	})
	b.FailNext(remote.Tasks, memory.OpPatch, errors.New("network unreachable"))
	_, err = tasks.Update(ctx, created.ID, model.TaskUpdate{Status: model.Ptr(model.StatusDone)})
	cancel()

	require.ErrorIs(t, err, errs.ErrRemoteRejected)
	assert.Contains(t, err.Error(), "network unreachable")
	assert.Equal(t, model.StatusDone, optimistic)

	got, ok := tasks.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusTodo, got.Status)
	assert.Equal(t, created.UpdatedAt, got.UpdatedAt)
	assert.Equal(t, created, got)
	assert.ErrorIs(t, tasks.State().Err, errs.ErrRemoteRejected)
}

func TestUpdate_RollbackRestoresOnlyCapturedFields(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))

	created, err := tasks.Create(ctx, model.TaskInsert{
		Name: "a", Priority: model.PriorityLow, Description: model.Ptr("keep me"),
	})
	require.NoError(t, err)

	b.FailNext(remote.Tasks, memory.OpPatch, errors.New("denied"))
	_, err = tasks.Update(ctx, created.ID, model.TaskUpdate{
		Description: model.ClearText(),
		Priority:    model.Ptr(model.PriorityHigh),
	})
	require.Error(t, err)

	got, _ := tasks.Get(created.ID)
	require.NotNil(t, got.Description)
	assert.Equal(t, "keep me", *got.Description)
	assert.Equal(t, model.PriorityLow, got.Priority)
}

func TestUpdate_SuccessTakesServerCopy(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))
	created, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
	require.NoError(t, err)

	updated, err := tasks.Update(ctx, created.ID, model.TaskUpdate{Name: model.Ptr("b")})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Name)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, _ := tasks.Get(created.ID)
	assert.Equal(t, updated, got)
	assert.Nil(t, tasks.State().Err)
}

// gatedBackend holds one armed Insert or Patch after the write is stored
// and before its response is returned.
type gatedBackend struct {
	*memory.Backend
	armed   atomic.Value // op name, "" when disarmed
	reached chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	g := &gatedBackend{Backend: memory.New(), reached: make(chan struct{}), release: make(chan struct{})}
	g.armed.Store("")
	return g
}

func (g *gatedBackend) arm(op string) { g.armed.Store(op) }

func (g *gatedBackend) hold(op string) {
	if g.armed.CompareAndSwap(op, "") {
		g.reached <- struct{}{}
		<-g.release
	}
}

func (g *gatedBackend) Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	out, err := g.Backend.Insert(ctx, collection, rec)
	g.hold(memory.OpInsert)
	return out, err
}

func (g *gatedBackend) Patch(ctx context.Context, collection, ownerID, id string, fields model.Record) (model.Record, error) {
	out, err := g.Backend.Patch(ctx, collection, ownerID, id, fields)
	g.hold(memory.OpPatch)
	return out, err
}

func TestCreate_ResponseAfterOwnerChangeIsDropped(t *testing.T) {
	b := newGatedBackend()
	sess := newSession(t, "u1")
	tasks := startTasks(t, b, sess)

	b.arm(memory.OpInsert)
	done := make(chan error, 1)
	go func() {
		_, err := tasks.Create(ctx, model.TaskInsert{Name: "secret of u1", Priority: model.PriorityLow})
		done <- err
	}()
	<-b.reached

	_, err := sess.SignIn("u2")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tasks.State().Phase == PhaseReady }, waitFor, time.Millisecond)

	b.release <- struct{}{}
	require.NoError(t, <-done)
	assert.Empty(t, tasks.List())
}

func TestUpdate_ResponseAfterOwnerChangeIsDropped(t *testing.T) {
	b := newGatedBackend()
	sess := newSession(t, "u1")
	tasks := startTasks(t, b, sess)
	_, err := b.Backend.Insert(ctx, remote.Tasks, model.TaskInsert{Name: "theirs", Priority: model.PriorityLow}.Record("u2"))
	require.NoError(t, err)
	created, err := tasks.Create(ctx, model.TaskInsert{Name: "mine", Priority: model.PriorityLow})
	require.NoError(t, err)

	b.arm(memory.OpPatch)
	done := make(chan error, 1)
	go func() {
		_, err := tasks.Update(ctx, created.ID, model.TaskUpdate{Name: model.Ptr("renamed")})
		done <- err
	}()
	<-b.reached

	_, err = sess.SignIn("u2")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return tasks.State().Phase == PhaseReady && len(tasks.List()) == 1
	}, waitFor, time.Millisecond)

	b.release <- struct{}{}
	require.NoError(t, <-done)
	list := tasks.List()
	require.Len(t, list, 1)
	assert.Equal(t, "theirs", list[0].Name)
}

func TestUpdate_DeletedInFlightStaysDeleted(t *testing.T) {
	b := newGatedBackend()
	tasks := startTasks(t, b, newSession(t, "u1"))
	created, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
	require.NoError(t, err)

	b.arm(memory.OpPatch)
	done := make(chan error, 1)
	go func() {
		_, err := tasks.Update(ctx, created.ID, model.TaskUpdate{Name: model.Ptr("b")})
		done <- err
	}()
	<-b.reached

	require.NoError(t, b.Backend.Remove(ctx, remote.Tasks, "u1", created.ID))
	_, ok := tasks.Get(created.ID)
	require.False(t, ok)

	b.release <- struct{}{}
	require.NoError(t, <-done)
	_, ok = tasks.Get(created.ID)
	assert.False(t, ok)
	assert.Empty(t, tasks.List())
}

func TestCreate_DeletedInFlightStaysDeleted(t *testing.T) {
	b := newGatedBackend()
	tasks := startTasks(t, b, newSession(t, "u1"))

	b.arm(memory.OpInsert)
	done := make(chan model.Task, 1)
	go func() {
		created, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
		assert.NoError(t, err)
		done <- created
	}()
	<-b.reached

	list := tasks.List()
	require.Len(t, list, 1)
	require.NoError(t, b.Backend.Remove(ctx, remote.Tasks, "u1", list[0].ID))

	b.release <- struct{}{}
	created := <-done
	_, ok := tasks.Get(created.ID)
	assert.False(t, ok)
	assert.Empty(t, tasks.List())
}

func TestCreate_PollingModeFoldsResponse(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))
	tasks.DisableLive()
	require.Zero(t, b.Subscribers())

	created, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
	require.NoError(t, err)
	got, ok := tasks.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, created, got)
}

func TestUpdate_Errors(t *testing.T) {
	b := memory.New()
	sess := newSession(t, "u1")
	tasks := startTasks(t, b, sess)

	_, err := tasks.Update(ctx, "missing", model.TaskUpdate{Name: model.Ptr("x")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = tasks.Update(ctx, "missing", model.TaskUpdate{Status: model.Ptr(model.Status("archived"))})
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Zero(t, b.Calls(remote.Tasks, memory.OpPatch))
}

func TestOperations_RequireSession(t *testing.T) {
	b := memory.New()
	tasks := NewTasks(b, newSession(t, ""), testOpts()...)
	t.Cleanup(tasks.Close)
	require.NoError(t, tasks.Start(ctx))
	assert.Equal(t, PhaseUninitialized, tasks.State().Phase)

	_, err := tasks.Create(ctx, model.TaskInsert{Name: "x", Priority: model.PriorityLow})
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	_, err = tasks.Update(ctx, "t1", model.TaskUpdate{})
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	assert.ErrorIs(t, tasks.Delete(ctx, "t1"), errs.ErrNotAuthenticated)
	_, err = tasks.ToggleCompletion(ctx, "t1")
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	assert.ErrorIs(t, tasks.Refresh(ctx), errs.ErrNotAuthenticated)

	assert.Zero(t, b.Calls(remote.Tasks, memory.OpInsert))
	assert.Zero(t, b.Calls(remote.Tasks, memory.OpRemove))
}

func TestToggleCompletion_TwoState(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))

	for _, tc := range []struct{ from, to model.Status }{
		{model.StatusDone, model.StatusTodo},
		{model.StatusTodo, model.StatusDone},
		{model.StatusInProgress, model.StatusDone},
	} {
		created, err := tasks.Create(ctx, model.TaskInsert{Name: "t", Priority: model.PriorityLow, Status: tc.from})
		require.NoError(t, err)
		got, err := tasks.ToggleCompletion(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.to, got.Status, "from %s", tc.from)
	}

	_, err := tasks.ToggleCompletion(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestToggleCompletion_ThreeState(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"), WithCompletionPolicy(ThreeState))

	created, err := tasks.Create(ctx, model.TaskInsert{Name: "t", Priority: model.PriorityLow})
	require.NoError(t, err)
	var seen []model.Status
	for i := 0; i < 3; i++ {
		got, err := tasks.ToggleCompletion(ctx, created.ID)
		require.NoError(t, err)
		seen = append(seen, got.Status)
	}
	assert.Equal(t, []model.Status{model.StatusInProgress, model.StatusDone, model.StatusTodo}, seen)
}

func TestPolicyNamed(t *testing.T) {
	p, err := PolicyNamed(model.CompletionPolicyThreeState)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, p(model.StatusTodo))
	p, err = PolicyNamed("")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, p(model.StatusTodo))
	_, err = PolicyNamed("random")
	assert.Error(t, err)
}

func TestDelete_LiveAndPolling(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))
	a, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
	require.NoError(t, err)
	c, err := tasks.Create(ctx, model.TaskInsert{Name: "c", Priority: model.PriorityLow})
	require.NoError(t, err)

	require.NoError(t, tasks.Delete(ctx, a.ID))
	_, ok := tasks.Get(a.ID)
	assert.False(t, ok)

	tasks.DisableLive()
	assert.Equal(t, sync.ModePolling, tasks.State().Sync.Mode)
	require.NoError(t, tasks.Delete(ctx, c.ID))
	_, ok = tasks.Get(c.ID)
	assert.False(t, ok)

	err = tasks.Delete(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrRemoteRejected)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, tasks.Retry(ctx))
	assert.Equal(t, sync.ModeLive, tasks.State().Sync.Mode)
}

func TestFeed_DeleteOfAbsentTask(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))
	_, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
	require.NoError(t, err)
	before := tasks.List()

	b.Emit(remote.RawEvent{Collection: remote.Tasks, Type: remote.EventDelete, Old: model.Record{model.ColID: "t1"}})
	assert.Equal(t, before, tasks.List())
	assert.Nil(t, tasks.State().Err)
}

func TestNotes_PinnedFirstThenRecent(t *testing.T) {
	b := memory.New()
	t0 := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	b.Seed(remote.Notes, model.Record{
		model.ColID: "n1", model.ColUserID: "u1", model.ColTitle: "one",
		model.ColIsPinned: false, model.ColUpdatedAt: t1, model.ColCreatedAt: t1,
	})
	b.Seed(remote.Notes, model.Record{
		model.ColID: "n2", model.ColUserID: "u1", model.ColTitle: "two",
		model.ColIsPinned: true, model.ColUpdatedAt: t0, model.ColCreatedAt: t0,
	})

	notes := NewNotes(b, newSession(t, "u1"), testOpts()...)
	t.Cleanup(notes.Close)
	require.NoError(t, notes.Start(ctx))
	assert.Equal(t, []string{"n2", "n1"}, noteIDs(notes.List()))

	created, err := notes.Create(ctx, model.NoteInsert{Title: "three"})
	require.NoError(t, err)
	assert.False(t, created.IsPinned)
	assert.Nil(t, created.CategoryID)
	assert.Equal(t, []string{"n2", created.ID, "n1"}, noteIDs(notes.List()))

	pinned, err := notes.TogglePin(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	assert.Equal(t, []string{"n1", "n2", created.ID}, noteIDs(notes.List()))

	assertNoteOrder(t, notes.List())
}

func assertNoteOrder(t *testing.T, list []model.Note) {
	t.Helper()
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.IsPinned != cur.IsPinned {
			require.True(t, prev.IsPinned, "unpinned before pinned at %d", i)
			continue
		}
		require.False(t, cur.UpdatedAt.After(prev.UpdatedAt), "updated_at not descending at %d", i)
	}
}

func noteIDs(list []model.Note) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func TestNotes_View(t *testing.T) {
	b := memory.New()
	notes := NewNotes(b, newSession(t, "u1"), testOpts()...)
	t.Cleanup(notes.Close)
	require.NoError(t, notes.Start(ctx))

	work := "cat-work"
	_, err := notes.Create(ctx, model.NoteInsert{Title: "Groceries", Content: "milk, EGGS", IsPersonal: true})
	require.NoError(t, err)
	_, err = notes.Create(ctx, model.NoteInsert{Title: "Standup", Content: "eggs are not a topic", CategoryID: &work})
	require.NoError(t, err)
	_, err = notes.Create(ctx, model.NoteInsert{Title: "Retro"})
	require.NoError(t, err)

	titles := func(list []model.Note) []string {
		var out []string
		for _, n := range list {
			out = append(out, n.Title)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"Groceries", "Standup"}, titles(notes.View(Filter{Query: "eggs"})))
	assert.Equal(t, []string{"Standup"}, titles(notes.View(Filter{CategoryID: work})))
	assert.Equal(t, []string{"Groceries"}, titles(notes.View(Filter{Query: "EGG", PersonalOnly: true})))
	assert.Len(t, notes.View(Filter{}), 3)
	assert.Len(t, notes.List(), 3)
}

func TestTasks_GroupingsAndView(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))

	_, err := tasks.Create(ctx, model.TaskInsert{Name: "Write tests", Priority: model.PriorityHigh, IsPersonal: false})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, model.TaskInsert{Name: "Gym", Priority: model.PriorityLow, IsPersonal: true, Status: model.StatusDone})
	require.NoError(t, err)

	byStatus := tasks.ByStatus()
	assert.Len(t, byStatus[model.StatusTodo], 1)
	assert.Empty(t, byStatus[model.StatusInProgress])
	assert.Len(t, byStatus[model.StatusDone], 1)
	assert.Len(t, tasks.ByPriority()[model.PriorityHigh], 1)
	assert.Empty(t, tasks.ByPriority()[model.PriorityMedium])

	personal := tasks.View(TaskFilter{Personal: model.Ptr(true)})
	require.Len(t, personal, 1)
	assert.Equal(t, "Gym", personal[0].Name)
	assert.Len(t, tasks.View(TaskFilter{Query: "TESTS"}), 1)
	assert.Empty(t, tasks.View(TaskFilter{Priority: model.PriorityMedium}))
}

func TestOwnerChange_ResetsAndReloads(t *testing.T) {
	b := memory.New()
	_, err := b.Insert(ctx, remote.Tasks, model.TaskInsert{Name: "mine", Priority: model.PriorityLow}.Record("u1"))
	require.NoError(t, err)
	_, err = b.Insert(ctx, remote.Tasks, model.TaskInsert{Name: "theirs", Priority: model.PriorityLow}.Record("u2"))
	require.NoError(t, err)

	sess := newSession(t, "u1")
	tasks := startTasks(t, b, sess)
	require.Len(t, tasks.List(), 1)
	assert.Equal(t, PhaseReady, tasks.State().Phase)

	_, err = sess.SignIn("u2")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		list := tasks.List()
		return tasks.State().Phase == PhaseReady && len(list) == 1 && list[0].Name == "theirs"
	}, waitFor, time.Millisecond)

	require.NoError(t, sess.SignOut())
	st := tasks.State()
	assert.Equal(t, PhaseUninitialized, st.Phase)
	assert.Empty(t, tasks.List())
	assert.Equal(t, sync.ModeDisabled, st.Sync.Mode)
	assert.Zero(t, b.Subscribers())
}

func TestRefresh_PicksUpMissedRows(t *testing.T) {
	b := memory.New()
	tasks := startTasks(t, b, newSession(t, "u1"))
	b.Seed(remote.Tasks, model.Record{model.ColID: "quiet", model.ColUserID: "u1", model.ColName: "quiet"})
	_, ok := tasks.Get("quiet")
	require.False(t, ok)

	require.NoError(t, tasks.Refresh(ctx))
	_, ok = tasks.Get("quiet")
	assert.True(t, ok)
}

func TestStart_LoadFailureKeepsLoadingPhase(t *testing.T) {
	b := memory.New()
	b.FailNext(remote.Tasks, memory.OpList, errors.New("503 unavailable"))
	tasks := NewTasks(b, newSession(t, "u1"), testOpts()...)
	t.Cleanup(tasks.Close)

	err := tasks.Start(ctx)
	require.ErrorIs(t, err, errs.ErrRemoteRejected)
	st := tasks.State()
	assert.Equal(t, PhaseLoading, st.Phase)
	assert.False(t, st.Loading)
	assert.Error(t, st.Err)

	require.NoError(t, tasks.Refresh(ctx))
	st = tasks.State()
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Nil(t, st.Err)
}

func TestSubscribeAndClose(t *testing.T) {
	b := memory.New()
	tasks := NewTasks(b, newSession(t, "u1"), testOpts()...)
	require.NoError(t, tasks.Start(ctx))

	var calls atomic.Int32
	cancel := tasks.Subscribe(func() { calls.Add(1) })
	_, err := tasks.Create(ctx, model.TaskInsert{Name: "a", Priority: model.PriorityLow})
	require.NoError(t, err)
	assert.Positive(t, calls.Load())

	cancel()
	n := calls.Load()
	_, err = tasks.Create(ctx, model.TaskInsert{Name: "b", Priority: model.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, n, calls.Load())

	tasks.Subscribe(func() { calls.Add(1) })
	tasks.Close()
	tasks.Close()
	assert.Zero(t, b.Subscribers())
	n = calls.Load()
	_, err = b.Insert(ctx, remote.Tasks, model.TaskInsert{Name: "c", Priority: model.PriorityLow}.Record("u1"))
	require.NoError(t, err)
	assert.Equal(t, n, calls.Load())
}

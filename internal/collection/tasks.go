package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
)

// CompletionPolicy maps a task's status to the status a toggle moves it to.
type CompletionPolicy func(model.Status) model.Status

// TwoState moves done to todo and everything else to done.
func TwoState(s model.Status) model.Status {
	if s == model.StatusDone {
		return model.StatusTodo
	}
	return model.StatusDone
}

// ThreeState cycles todo, in_progress, done.
func ThreeState(s model.Status) model.Status {
	switch s {
	case model.StatusTodo:
		return model.StatusInProgress
	case model.StatusInProgress:
		return model.StatusDone
	default:
		return model.StatusTodo
	}
}

// PolicyNamed resolves a configured policy name.
func PolicyNamed(name string) (CompletionPolicy, error) {
	switch name {
	case "", model.CompletionPolicyTwoState:
		return TwoState, nil
	case model.CompletionPolicyThreeState:
		return ThreeState, nil
	default:
		return nil, fmt.Errorf("unknown completion policy %q", name)
	}
}

// Tasks is the task collection.
type Tasks struct {
	*Collection[model.Task, model.TaskInsert, model.TaskUpdate]
	policy CompletionPolicy
}

// NewTasks creates the task collection, newest first.
func NewTasks(b remote.Backend, sess session.Context, opts ...Option) *Tasks {
	o := buildOptions(opts)
	return &Tasks{
		Collection: New[model.Task, model.TaskInsert, model.TaskUpdate](b, sess, Config[model.Task]{
			Name:   remote.Tasks,
			Order:  remote.Order{Field: model.ColCreatedAt, Desc: true},
			Decode: model.TaskFromRecord,
			Less:   createdDesc[model.Task](func(t model.Task) time.Time { return t.CreatedAt }),
			Touch:  model.Task.Touch,
		}, opts...),
		policy: o.policy,
	}
}

// ToggleCompletion moves the task to the status its policy picks.
func (t *Tasks) ToggleCompletion(ctx context.Context, id string) (model.Task, error) {
	cur, ok := t.Get(id)
	if !ok {
		if t.sess.OwnerID() == "" {
			return model.Task{}, t.record(errs.NotAuthenticated(t.name + ".toggle"))
		}
		return model.Task{}, t.record(errs.NotFound(t.name+".toggle", id))
	}
	next := t.policy(cur.Status)
	return t.Update(ctx, id, model.TaskUpdate{Status: &next})
}

// Move sets the task's Kanban column.
func (t *Tasks) Move(ctx context.Context, id string, status model.Status) (model.Task, error) {
	return t.Update(ctx, id, model.TaskUpdate{Status: &status})
}

// ByStatus groups the mirror by Kanban column, every column present.
func (t *Tasks) ByStatus() map[model.Status][]model.Task {
	out := make(map[model.Status][]model.Task, len(model.Statuses))
	for _, s := range model.Statuses {
		out[s] = []model.Task{}
	}
	for _, task := range t.List() {
		out[task.Status] = append(out[task.Status], task)
	}
	return out
}

// ByPriority groups the mirror by priority, every priority present.
func (t *Tasks) ByPriority() map[model.Priority][]model.Task {
	out := make(map[model.Priority][]model.Task, len(model.Priorities))
	for _, p := range model.Priorities {
		out[p] = []model.Task{}
	}
	for _, task := range t.List() {
		out[task.Priority] = append(out[task.Priority], task)
	}
	return out
}

// TaskFilter narrows Tasks.View. Zero fields match everything.
type TaskFilter struct {
	Query      string
	CategoryID string
	Priority   model.Priority
	// Personal selects personal (true) or work (false) tasks when set.
	Personal *bool
}

func (f TaskFilter) match(t model.Task) bool {
	if f.CategoryID != "" && (t.CategoryID == nil || *t.CategoryID != f.CategoryID) {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Personal != nil && t.IsPersonal != *f.Personal {
		return false
	}
	if f.Query == "" {
		return true
	}
	desc := ""
	if t.Description != nil {
		desc = *t.Description
	}
	return containsFold(t.Name, f.Query) || containsFold(desc, f.Query)
}

// View returns the tasks matching f, in list order.
func (t *Tasks) View(f TaskFilter) []model.Task {
	var out []model.Task
	for _, task := range t.List() {
		if f.match(task) {
			out = append(out, task)
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func createdDesc[E any](created func(E) time.Time) func(a, b E) bool {
	return func(a, b E) bool { return created(a).After(created(b)) }
}

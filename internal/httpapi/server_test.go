package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/remote"
	"github.com/nhle/tasknotes/internal/session"
	"github.com/nhle/tasknotes/internal/store/memory"
	"github.com/nhle/tasknotes/internal/workspace"
)

type fixture struct {
	backend *memory.Backend
	ws      *workspace.Workspace
	srv     *Server
}

func newFixture(t *testing.T, owner string) *fixture {
	t.Helper()
	sess := session.NewManager(session.NewIssuer([]byte("k"), time.Hour))
	if owner != "" {
		_, err := sess.SignIn(owner)
		require.NoError(t, err)
	}
	b := memory.New()
	ws, err := workspace.New(b, sess, model.DefaultAppConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	require.NoError(t, ws.Start(context.Background()))
	return &fixture{backend: b, ws: ws, srv: New(ws, nil)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t, "u1")

	rec, body := f.do(t, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = f.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", body["owner"])
	tasks := body["tasks"].(map[string]any)
	assert.Equal(t, "ready", tasks["phase"])
	assert.Equal(t, "live", tasks["mode"])
}

func TestTasksCRUD(t *testing.T) {
	f := newFixture(t, "u1")

	rec, body := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"name":        "Write report",
		"priority":    "high",
		"description": "quarterly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	task := body["task"].(map[string]any)
	id := task["id"].(string)
	assert.Equal(t, "todo", task["status"])

	rec, body = f.do(t, http.MethodPatch, "/api/tasks/"+id, map[string]any{
		"name":        "Write annual report",
		"description": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	task = body["task"].(map[string]any)
	assert.Equal(t, "Write annual report", task["name"])
	assert.NotContains(t, task, "description")

	rec, body = f.do(t, http.MethodPost, "/api/tasks/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", body["task"].(map[string]any)["status"])

	rec, body = f.do(t, http.MethodGet, "/api/tasks?q=annual&priority=high", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["tasks"], 1)

	rec, body = f.do(t, http.MethodGet, "/api/tasks?personal=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["tasks"])

	rec, _ = f.do(t, http.MethodGet, "/api/tasks?personal=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/tasks/board", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cols := body["columns"].(map[string]any)
	assert.Len(t, cols["done"], 1)
	assert.Empty(t, cols["todo"])

	rec, _ = f.do(t, http.MethodDelete, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Eventually(t, func() bool { return len(f.ws.Tasks.List()) == 0 }, time.Second, time.Millisecond)
}

func TestTasks_ValidationError(t *testing.T) {
	f := newFixture(t, "u1")

	rec, body := f.do(t, http.MethodPost, "/api/tasks", map[string]any{"name": "", "priority": "high"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", body["field"])
	assert.Zero(t, f.backend.Calls(remote.Tasks, memory.OpInsert))

	rec, _ = f.do(t, http.MethodPatch, "/api/tasks/missing", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasks_RemoteFailure(t *testing.T) {
	f := newFixture(t, "u1")
	f.backend.FailNext(remote.Tasks, memory.OpInsert, errors.New("rate limited"))

	rec, body := f.do(t, http.MethodPost, "/api/tasks", map[string]any{"name": "a", "priority": "low"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "rate limited")
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t, "")

	rec, _ := f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Work"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/session", map[string]any{"owner_id": "u9"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "u9", f.ws.Session.OwnerID())

	require.Eventually(t, func() bool {
		return f.ws.Categories.State().Phase.String() == "ready"
	}, 2*time.Second, time.Millisecond)

	rec, _ = f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Work"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.ws.Session.OwnerID())

	rec, _ = f.do(t, http.MethodPost, "/api/session", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategoriesAndNotes(t *testing.T) {
	f := newFixture(t, "u1")

	rec, body := f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Work"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := body["category"].(map[string]any)
	assert.Equal(t, model.DefaultCategoryColor, cat["color"])
	catID := cat["id"].(string)

	rec, body = f.do(t, http.MethodPatch, "/api/categories/"+catID, map[string]any{"color": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "color", body["field"])

	rec, _ = f.do(t, http.MethodPatch, "/api/categories/"+catID, map[string]any{"name": "Office"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["categories"], 1)

	rec, body = f.do(t, http.MethodPost, "/api/notes", map[string]any{
		"title": "Standup", "content": "blockers", "category_id": catID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	noteID := body["note"].(map[string]any)["id"].(string)

	rec, body = f.do(t, http.MethodPost, "/api/notes/"+noteID+"/pin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["note"].(map[string]any)["is_pinned"])

	rec, body = f.do(t, http.MethodGet, "/api/notes?q=BLOCK&category="+catID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["notes"], 1)

	rec, body = f.do(t, http.MethodPatch, "/api/notes/"+noteID, map[string]any{"category_id": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body["note"], "category_id")

	rec, _ = f.do(t, http.MethodDelete, "/api/notes/"+noteID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/api/categories/"+catID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSyncEndpoints(t *testing.T) {
	f := newFixture(t, "u1")

	rec, _ := f.do(t, http.MethodPost, "/api/sync/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/sync/retry", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "connected", body["notes"].(map[string]any)["connection"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(errs.NotAuthenticated("x")))
	assert.Equal(t, http.StatusBadRequest, statusFor(errs.Validation("name", "empty")))
	assert.Equal(t, http.StatusNotFound, statusFor(errs.NotFound("x", "1")))
	assert.Equal(t, http.StatusForbidden, statusFor(errs.Remote("x", errs.ErrPermissionDenied)))
	assert.Equal(t, http.StatusBadGateway, statusFor(errs.Remote("x", errors.New("boom"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

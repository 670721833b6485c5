package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasknotes/internal/session"
)

type cli struct {
	t    *testing.T
	deps deps
	cfg  string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TASKNOTES_BACKEND_KIND", "sqlite")
	t.Setenv("TASKNOTES_BACKEND_SQLITE_PATH", filepath.Join(dir, "data", "tasknotes.db"))
	t.Setenv("TASKNOTES_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("TASKNOTES_LOG_LEVEL", "error")

	ring := keyring.NewArrayKeyring(nil)
	return &cli{
		t:   t,
		cfg: filepath.Join(dir, "config.yaml"),
		deps: deps{openTokens: func(string) (session.TokenStore, error) {
			return session.NewKeyringStore(ring), nil
		}},
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd(c.deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", c.cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) json(args ...string) map[string]any {
	c.t.Helper()
	var v map[string]any
	require.NoError(c.t, json.Unmarshal([]byte(c.must(append(args, "--json")...)), &v))
	return v
}

func TestCLI_EndToEnd(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("tasks")
	assert.ErrorContains(t, err, "not signed in")

	assert.Contains(t, c.must("login", "alice"), "Signed in as alice")

	cat := c.json("categories", "add", "Work")
	assert.Equal(t, "#8B5CF6", cat["color"])
	catID := cat["id"].(string)

	task := c.json("tasks", "add", "Write docs", "--priority", "high", "--category", catID)
	assert.Equal(t, "todo", task["status"])
	taskID := task["id"].(string)

	toggled := c.json("tasks", "toggle", taskID)
	assert.Equal(t, "done", toggled["status"])

	moved := c.json("tasks", "move", taskID, "in_progress")
	assert.Equal(t, "in_progress", moved["status"])

	edited := c.json("tasks", "edit", taskID, "--description", "api pages", "--clear-category")
	assert.Equal(t, "api pages", edited["description"])
	assert.NotContains(t, edited, "category_id")

	out := c.must("tasks", "--query", "DOCS")
	assert.Contains(t, out, "Write docs")
	assert.Contains(t, c.must("tasks", "board"), "in_progress (1)")

	_, err = c.run("tasks", "add", " ")
	assert.ErrorContains(t, err, "name")
	_, err = c.run("tasks", "move", taskID, "archived")
	assert.ErrorContains(t, err, "status")

	note := c.json("notes", "add", "Ideas", "-m", "ship faster", "--pin")
	assert.Equal(t, true, note["is_pinned"])
	unpinned := c.json("notes", "pin", note["id"].(string))
	assert.Equal(t, false, unpinned["is_pinned"])
	assert.Contains(t, c.must("notes", "-q", "faster"), "Ideas")

	st := c.json("status")
	assert.Equal(t, "alice", st["owner"])
	assert.Equal(t, float64(1), st["tasks"].(map[string]any)["count"])

	assert.Contains(t, c.must("tasks", "rm", taskID), "Deleted task")
	assert.Contains(t, c.must("categories", "rm", catID), "Deleted category")
	assert.Contains(t, c.must("tasks"), "No tasks")

	assert.Contains(t, c.must("logout"), "Signed out")
	_, err = c.run("notes")
	assert.ErrorContains(t, err, "not signed in")
}

func TestCLI_OwnersAreIsolated(t *testing.T) {
	c := newCLI(t)
	c.must("login", "alice")
	c.must("notes", "add", "Alice only")

	c.must("login", "bob")
	assert.Contains(t, c.must("notes"), "No notes")
}

func TestCLI_Migrate(t *testing.T) {
	c := newCLI(t)
	assert.Contains(t, c.must("migrate"), "Migrated sqlite backend")

	t.Setenv("TASKNOTES_BACKEND_KIND", "memory")
	assert.Contains(t, c.must("migrate"), "Nothing to migrate")
}

func TestCLI_RequiresSecret(t *testing.T) {
	c := newCLI(t)
	t.Setenv("TASKNOTES_AUTH_JWT_SECRET", "")
	_, err := c.run("login", "alice")
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestTextFlag(t *testing.T) {
	assert.False(t, textFlag(false, "", false).Set)
	assert.Equal(t, "x", *textFlag(true, "x", false).Value)
	cleared := textFlag(true, "x", true)
	assert.True(t, cleared.Set)
	assert.Nil(t, cleared.Value)
}

package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, def.Sync, cfg.Sync)
	assert.Equal(t, BackendSQLite, cfg.Backend.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, CompletionPolicyTwoState, cfg.Sync.CompletionPolicy)
	assert.Equal(t, 10, cfg.Sync.PollIntervalSec)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  kind: memory
sync:
  max_retries: 7
  completion_policy: three_state
`), 0o600))
	t.Setenv("TASKNOTES_SYNC_POLL_INTERVAL_SEC", "30")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, 7, cfg.Sync.MaxRetries)
	assert.Equal(t, 5, cfg.Sync.MaxErrors)
	assert.Equal(t, CompletionPolicyThreeState, cfg.Sync.CompletionPolicy)
	assert.Equal(t, 30, cfg.Sync.PollIntervalSec)
	assert.Equal(t, "30s", cfg.Sync.PollInterval().String())
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := LoadConfig(write("kind.yaml", "backend:\n  kind: firebase\n"))
	assert.ErrorContains(t, err, "backend.kind")

	_, err = LoadConfig(write("pg.yaml", "backend:\n  kind: postgres\n"))
	assert.ErrorContains(t, err, "postgres_dsn")

	_, err = LoadConfig(write("policy.yaml", "sync:\n  completion_policy: random\n"))
	assert.ErrorContains(t, err, "completion_policy")

	_, err = LoadConfig(write("broken.yaml", "sync: [unclosed\n"))
	assert.ErrorContains(t, err, "reading config")
}

func TestAppConfig_Validate(t *testing.T) {
	cfg := DefaultAppConfig()
	require.NoError(t, cfg.Validate())

	cfg.Sync.PollIntervalSec = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultAppConfig()
	cfg.Sync.MaxErrors = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Backend = BackendConfig{Kind: BackendPostgres, PostgresDSN: "postgres://localhost/tasknotes"}
	cfg.Sync.ResubscribeEvery = 3
	cfg.HTTP.Addr = "127.0.0.1:9999"

	require.NoError(t, SaveConfig(path, cfg))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, got.Backend)
	assert.Equal(t, 3, got.Sync.ResubscribeEvery)
	assert.Equal(t, "127.0.0.1:9999", got.HTTP.Addr)
}

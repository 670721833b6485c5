package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Completion policies for Tasks.ToggleCompletion.
const (
	CompletionPolicyTwoState   = "two_state"
	CompletionPolicyThreeState = "three_state"
)

// BackendConfig selects and configures the remote store.
type BackendConfig struct {
	// Kind is one of "memory", "sqlite", "postgres".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// SQLitePath is the database file for the sqlite kind.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	// PostgresDSN is the connection string for the postgres kind.
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// SyncConfig tunes the reconciler.
type SyncConfig struct {
	// PollIntervalSec is the full-refetch period once live updates are disabled.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// MaxRetries bounds consecutive re-subscribe attempts after a drop.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// MaxErrors is the error budget before falling back to polling.
	MaxErrors int `mapstructure:"max_errors" yaml:"max_errors"`

	// ResubscribeEvery is how many polls pass between attempts to go live again.
	ResubscribeEvery int `mapstructure:"resubscribe_every" yaml:"resubscribe_every"`

	// CompletionPolicy is "two_state" (done <-> todo) or "three_state".
	CompletionPolicy string `mapstructure:"completion_policy" yaml:"completion_policy"`
}

// PollInterval returns PollIntervalSec as a duration.
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLMin int    `mapstructure:"token_ttl_min" yaml:"token_ttl_min"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// HTTPConfig holds the local API listener settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// configDir returns ~/.config/tasknotes, or "." when home is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tasknotes")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tasknotes/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			Kind:       BackendSQLite,
			SQLitePath: filepath.Join(configDir(), "tasknotes.db"),
		},
		Sync: SyncConfig{
			PollIntervalSec:  10,
			MaxRetries:       3,
			MaxErrors:        5,
			ResubscribeEvery: 6,
			CompletionPolicy: CompletionPolicyTwoState,
		},
		Auth: AuthConfig{TokenTTLMin: 60 * 24},
		Log:  LogConfig{Level: "info"},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8787"},
	}
}

func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("backend.kind", d.Backend.Kind)
	v.SetDefault("backend.sqlite_path", d.Backend.SQLitePath)
	v.SetDefault("backend.postgres_dsn", d.Backend.PostgresDSN)
	v.SetDefault("sync.poll_interval_sec", d.Sync.PollIntervalSec)
	v.SetDefault("sync.max_retries", d.Sync.MaxRetries)
	v.SetDefault("sync.max_errors", d.Sync.MaxErrors)
	v.SetDefault("sync.resubscribe_every", d.Sync.ResubscribeEvery)
	v.SetDefault("sync.completion_policy", d.Sync.CompletionPolicy)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl_min", d.Auth.TokenTTLMin)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed TASKNOTES_ (e.g. TASKNOTES_BACKEND_KIND)
// override file values. A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tasknotes")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects unknown backend kinds and policies and non-positive sync tuning.
func (c *AppConfig) Validate() error {
	switch c.Backend.Kind {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Backend.PostgresDSN == "" {
			return errors.New("backend.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown backend.kind %q", c.Backend.Kind)
	}
	switch c.Sync.CompletionPolicy {
	case CompletionPolicyTwoState, CompletionPolicyThreeState:
	default:
		return fmt.Errorf("unknown sync.completion_policy %q", c.Sync.CompletionPolicy)
	}
	if c.Sync.PollIntervalSec <= 0 {
		return errors.New("sync.poll_interval_sec must be positive")
	}
	if c.Sync.MaxRetries < 0 || c.Sync.MaxErrors <= 0 {
		return errors.New("sync.max_retries must be >= 0 and sync.max_errors > 0")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("sync", cfg.Sync)
	v.Set("auth", cfg.Auth)
	v.Set("log", cfg.Log)
	v.Set("http", cfg.HTTP)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/logging"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/session"
	"github.com/nhle/tasknotes/internal/workspace"
)

// deps are the process-level resources tests replace.
type deps struct {
	openTokens func(dir string) (session.TokenStore, error)
}

func defaultDeps() deps {
	return deps{
		openTokens: func(dir string) (session.TokenStore, error) {
			return session.OpenKeyring(dir)
		},
	}
}

// app carries state shared by every subcommand of one invocation.
type app struct {
	deps    deps
	cfgPath string
	jsonOut bool

	cfg  *model.AppConfig
	log  *zap.Logger
	sess *session.Manager
}

func newRootCmd(d deps) *cobra.Command {
	a := &app{deps: d}
	root := &cobra.Command{
		Use:           "tasknotes",
		Short:         "Tasks and notes kept in sync with a shared backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", model.DefaultConfigPath(), "config file")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.tasksCmd(),
		a.categoriesCmd(),
		a.notesCmd(),
		a.statusCmd(),
		a.watchCmd(),
		a.serveCmd(),
		a.migrateCmd(),
	)
	return root
}

// setup loads config, the logger and the session. A stored token that no
// longer parses is dropped with a warning.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := model.LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set (config file or TASKNOTES_AUTH_JWT_SECRET)")
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	tokens, err := a.deps.openTokens(filepath.Dir(a.cfgPath))
	if err != nil {
		return err
	}

	issuer := session.NewIssuer([]byte(cfg.Auth.JWTSecret), time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
	sess := session.NewManager(issuer, session.WithTokenStore(tokens), session.WithLogger(log))
	if _, err := sess.Resume(""); err != nil {
		log.Warn("discarding stored session", zap.Error(err))
		_ = tokens.Clear()
	}

	a.cfg, a.log, a.sess = cfg, log, sess
	return nil
}

// withWorkspace opens and loads a workspace, runs fn, then closes it.
func (a *app) withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, ws *workspace.Workspace) error) error {
	if err := a.setup(); err != nil {
		return err
	}
	ctx := cmd.Context()
	ws, err := workspace.Open(ctx, a.cfg, a.sess, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			a.log.Warn("closing workspace", zap.Error(err))
		}
	}()
	if a.sess.OwnerID() == "" {
		return errors.New("not signed in; run tasknotes login")
	}
	if err := ws.Start(ctx); err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}
	return fn(ctx, ws)
}

// emit prints v as JSON when --json is set, otherwise the rendered table.
func (a *app) emit(w io.Writer, v any, table func() string) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, table())
	return err
}

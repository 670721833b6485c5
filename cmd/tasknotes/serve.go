package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/httpapi"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/store/postgres"
	"github.com/nhle/tasknotes/internal/ui"
	"github.com/nhle/tasknotes/internal/workspace"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync diagnostics for every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withWorkspace(cmd, func(_ context.Context, ws *workspace.Workspace) error {
				st := ws.Status()
				return a.emit(cmd.OutOrStdout(), st, func() string { return ui.StatusTable(st) })
			})
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open a live dashboard that follows remote changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				d := ui.NewDashboard(ctx, ws)
				defer d.Close()
				_, err := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
				if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace as a local JSON API",
		Long: `Serve tasks, categories and notes over HTTP under /api.

Examples:
  tasknotes serve
  tasknotes serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			ctx := cmd.Context()
			ws, err := workspace.Open(ctx, a.cfg, a.sess, a.log)
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()
			// Signed-out collections stay uninitialized until POST /api/session.
			if err := ws.Start(ctx); err != nil {
				return fmt.Errorf("loading workspace: %w", err)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.New(ws, a.log).Engine(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.Info("listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serving: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error("failed to shutdown server", zap.Error(err))
			}
			a.log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from http.addr)")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(a.cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch cfg.Backend.Kind {
			case model.BackendPostgres:
				if err := postgres.Migrate(cmd.Context(), cfg.Backend.PostgresDSN); err != nil {
					return err
				}
			case model.BackendSQLite:
				// Opening the store applies pending migrations.
				b, err := workspace.OpenBackend(cmd.Context(), cfg.Backend, nil)
				if err != nil {
					return err
				}
				if err := b.Close(); err != nil {
					return err
				}
			default:
				fmt.Fprintf(out, "Nothing to migrate for the %s backend\n", cfg.Backend.Kind)
				return nil
			}
			fmt.Fprintf(out, "Migrated %s backend\n", cfg.Backend.Kind)
			return nil
		},
	}
}

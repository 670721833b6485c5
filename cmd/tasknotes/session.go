package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [owner-id]",
		Short: "Sign in as owner-id and store the session token",
		Long: `Sign in as owner-id. The access token is kept in the system keyring
and reused by later commands until it expires.

Examples:
  tasknotes login alice
  tasknotes login        # prompts for the owner id`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			var owner string
			if len(args) == 1 {
				owner = args[0]
			} else if err := promptOwner(&owner); err != nil {
				return err
			}
			owner = strings.TrimSpace(owner)
			if _, err := a.sess.SignIn(owner); err != nil {
				return fmt.Errorf("signing in: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", owner)
			return nil
		},
	}
}

func promptOwner(owner *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Owner id").
				Value(owner).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("owner id is required")
					}
					return nil
				}),
		),
	).Run()
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			if err := a.sess.SignOut(); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

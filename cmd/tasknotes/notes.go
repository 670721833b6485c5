package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/tasknotes/internal/collection"
	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/ui"
	"github.com/nhle/tasknotes/internal/workspace"
)

func (a *app) notesCmd() *cobra.Command {
	var f collection.Filter
	cmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note", "n"},
		Short:   "List and manage notes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withWorkspace(cmd, func(_ context.Context, ws *workspace.Workspace) error {
				notes := ws.Notes.View(f)
				return a.emit(cmd.OutOrStdout(), notes, func() string {
					return ui.NoteTable(notes, ws.Categories.Lookup())
				})
			})
		},
	}
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "match title or content")
	cmd.Flags().StringVar(&f.CategoryID, "category", "", "category id")
	cmd.Flags().BoolVar(&f.PersonalOnly, "personal", false, "only personal notes")

	cmd.AddCommand(a.noteAddCmd(), a.noteEditCmd(), a.notePinCmd(), a.noteRemoveCmd())
	return cmd
}

func (a *app) printNote(cmd *cobra.Command, ws *workspace.Workspace, n model.Note) error {
	return a.emit(cmd.OutOrStdout(), n, func() string {
		return ui.NoteTable([]model.Note{n}, ws.Categories.Lookup())
	})
}

func (a *app) noteAddCmd() *cobra.Command {
	var (
		in       model.NoteInsert
		category string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			if category != "" {
				in.CategoryID = &category
			}
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				n, err := ws.Notes.Create(ctx, in)
				if err != nil {
					return err
				}
				return a.printNote(cmd, ws, n)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Content, "content", "m", "", "note body")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().BoolVar(&in.IsPersonal, "personal", false, "mark as personal")
	cmd.Flags().BoolVar(&in.IsPinned, "pin", false, "pin to the top")
	return cmd
}

func (a *app) noteEditCmd() *cobra.Command {
	var (
		title, content, category string
		clearCategory, personal  bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var u model.NoteUpdate
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("content") {
				u.Content = &content
			}
			if flags.Changed("personal") {
				u.IsPersonal = &personal
			}
			u.CategoryID = textFlag(flags.Changed("category"), category, clearCategory)
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				n, err := ws.Notes.Update(ctx, args[0], u)
				if err != nil {
					return err
				}
				return a.printNote(cmd, ws, n)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&content, "content", "m", "", "new body")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().BoolVar(&clearCategory, "clear-category", false, "remove the category")
	cmd.Flags().BoolVar(&personal, "personal", false, "mark as personal")
	return cmd
}

func (a *app) notePinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Pin or unpin a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				n, err := ws.Notes.TogglePin(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printNote(cmd, ws, n)
			})
		},
	}
}

func (a *app) noteRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				if err := ws.Notes.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[0])
				return nil
			})
		},
	}
}

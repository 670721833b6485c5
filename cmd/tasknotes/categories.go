package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/ui"
	"github.com/nhle/tasknotes/internal/workspace"
)

func (a *app) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "c"},
		Short:   "List and manage categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withWorkspace(cmd, func(_ context.Context, ws *workspace.Workspace) error {
				cats := ws.Categories.List()
				return a.emit(cmd.OutOrStdout(), cats, func() string { return ui.CategoryTable(cats) })
			})
		},
	}
	cmd.AddCommand(a.categoryAddCmd(), a.categoryEditCmd(), a.categoryRemoveCmd())
	return cmd
}

func (a *app) printCategory(cmd *cobra.Command, c model.Category) error {
	return a.emit(cmd.OutOrStdout(), c, func() string { return ui.CategoryTable([]model.Category{c}) })
}

func (a *app) categoryAddCmd() *cobra.Command {
	var in model.CategoryInsert
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				c, err := ws.Categories.Create(ctx, in)
				if err != nil {
					return err
				}
				return a.printCategory(cmd, c)
			})
		},
	}
	cmd.Flags().StringVar(&in.Color, "color", "", "hex color, default "+model.DefaultCategoryColor)
	return cmd
}

func (a *app) categoryEditCmd() *cobra.Command {
	var name, color string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename or recolor a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u model.CategoryUpdate
			if cmd.Flags().Changed("name") {
				u.Name = &name
			}
			if cmd.Flags().Changed("color") {
				u.Color = &color
			}
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				c, err := ws.Categories.Update(ctx, args[0], u)
				if err != nil {
					return err
				}
				return a.printCategory(cmd, c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&color, "color", "", "new hex color")
	return cmd
}

func (a *app) categoryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a category; tasks and notes keep a dangling reference",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				if err := ws.Categories.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
				return nil
			})
		},
	}
}

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

func (a *app) tasksCmd() *cobra.Command {
	var (
		query, category, priority string
		personal                  bool
	)
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "List and manage tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := collection.TaskFilter{Query: query, CategoryID: category, Priority: model.Priority(priority)}
			if cmd.Flags().Changed("personal") {
				f.Personal = &personal
			}
			return a.withWorkspace(cmd, func(_ context.Context, ws *workspace.Workspace) error {
				tasks := ws.Tasks.View(f)
				return a.emit(cmd.OutOrStdout(), tasks, func() string {
					return ui.TaskTable(tasks, ws.Categories.Lookup())
				})
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "match name or description")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium or low")
	cmd.Flags().BoolVar(&personal, "personal", false, "only personal (or, with =false, only shared) tasks")

	cmd.AddCommand(
		a.taskAddCmd(),
		a.taskEditCmd(),
		a.taskToggleCmd(),
		a.taskMoveCmd(),
		a.taskRemoveCmd(),
		a.taskBoardCmd(),
	)
	return cmd
}

func (a *app) printTask(cmd *cobra.Command, ws *workspace.Workspace, t model.Task) error {
	return a.emit(cmd.OutOrStdout(), t, func() string {
		return ui.TaskTable([]model.Task{t}, ws.Categories.Lookup())
	})
}

func (a *app) taskAddCmd() *cobra.Command {
	var (
		in                           model.TaskInsert
		priority, status, completion string
		description, category        string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			in.Priority = model.Priority(priority)
			in.Status = model.Status(status)
			in.CompletionType = model.CompletionType(completion)
			if description != "" {
				in.Description = &description
			}
			if category != "" {
				in.CategoryID = &category
			}
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				t, err := ws.Tasks.Create(ctx, in)
				if err != nil {
					return err
				}
				return a.printTask(cmd, ws, t)
			})
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "high, medium or low")
	cmd.Flags().StringVar(&status, "status", "", "todo, in_progress or done")
	cmd.Flags().StringVar(&completion, "completion", "", "done, percentage or stages")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().BoolVar(&in.IsPersonal, "personal", false, "mark as personal")
	return cmd
}

func (a *app) taskEditCmd() *cobra.Command {
	var (
		name, description, priority, category, completionValue string
		clearDescription, clearCategory, personal              bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var u model.TaskUpdate
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("priority") {
				p := model.Priority(priority)
				u.Priority = &p
			}
			if flags.Changed("personal") {
				u.IsPersonal = &personal
			}
			u.Description = textFlag(flags.Changed("description"), description, clearDescription)
			u.CategoryID = textFlag(flags.Changed("category"), category, clearCategory)
			if flags.Changed("completion-value") {
				u.CompletionValue = model.SetText(completionValue)
			}
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				t, err := ws.Tasks.Update(ctx, args[0], u)
				if err != nil {
					return err
				}
				return a.printTask(cmd, ws, t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "remove the description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "high, medium or low")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().BoolVar(&clearCategory, "clear-category", false, "remove the category")
	cmd.Flags().StringVar(&completionValue, "completion-value", "", "progress value, e.g. 40 for percentage tasks")
	cmd.Flags().BoolVar(&personal, "personal", false, "mark as personal")
	return cmd
}

// textFlag builds an update slot for a nullable column from a value flag
// and its --clear-* companion.
func textFlag(set bool, value string, clear bool) model.OptionalText {
	switch {
	case clear:
		return model.ClearText()
	case set:
		return model.SetText(value)
	default:
		return model.OptionalText{}
	}
}

func (a *app) taskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "toggle <id>",
		Aliases: []string{"done"},
		Short:   "Advance a task's completion status",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				t, err := ws.Tasks.ToggleCompletion(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printTask(cmd, ws, t)
			})
		},
	}
}

func (a *app) taskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another board column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				t, err := ws.Tasks.Move(ctx, args[0], model.Status(args[1]))
				if err != nil {
					return err
				}
				return a.printTask(cmd, ws, t)
			})
		},
	}
}

func (a *app) taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ctx context.Context, ws *workspace.Workspace) error {
				if err := ws.Tasks.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) taskBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show tasks as a Kanban board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withWorkspace(cmd, func(_ context.Context, ws *workspace.Workspace) error {
				cols := ws.Tasks.ByStatus()
				return a.emit(cmd.OutOrStdout(), cols, func() string { return ui.Board(cols, 0) })
			})
		},
	}
}

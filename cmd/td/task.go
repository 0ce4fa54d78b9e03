package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/models"
	"github.com/zulandar/taskdesk/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskCommentCmd())
	cmd.AddCommand(newTaskUnassignedCmd())
	return cmd
}

func parseTaskID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return uint(id), nil
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath string
		as         string
		in         task.CreateInput
		priority   string
		urgency    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long:  "Creates a task in status \"новая\" with the next TASK-YYMMDD-NNNN number. Without --as the author is recorded as anonymous.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Priority = models.Level(priority)
			in.Urgency = models.Level(urgency)
			return runTaskCreate(cmd, configPath, as, in)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "username to act as")
	cmd.Flags().StringVar(&in.Title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "detailed description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (critical, high, medium, low)")
	cmd.Flags().StringVar(&urgency, "urgency", "medium", "urgency (critical, high, medium, low)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runTaskCreate(cmd *cobra.Command, configPath, as string, in task.CreateInput) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if as != "" {
		u, err := a.login(cmd, newPrompter(cmd), as)
		if err != nil {
			return err
		}
		in.CreatedBy = u.Name
	}
	t, err := a.tasks.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (id %d)\n", t.Number, t.ID)
	return nil
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Long:  "Lists tasks newest first. Completed and cancelled tasks are hidden unless --all is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			tasks, err := a.tasks.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			printTaskTable(cmd, tasks)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&all, "all", false, "include completed and cancelled tasks")
	return cmd
}

func printTaskTable(cmd *cobra.Command, tasks []models.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tTITLE\tSTATUS\tPRIORITY\tURGENCY\tPROGRESS\tASSIGNEE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d%%\t%s\n",
			t.ID, t.Number, truncate(t.Title, 40), t.Status.Label(),
			t.Priority.PriorityLabel(), t.Urgency.UrgencyLabel(), t.Progress, dash(t.Assignee()))
	}
	w.Flush()
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its history and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			t, err := a.tasks.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printTask(cmd, t)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printTask(cmd *cobra.Command, t *models.Task) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", t.Number, t.Title)
	fmt.Fprintf(out, "Status:      %s\n", t.Status.Label())
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority.PriorityLabel())
	fmt.Fprintf(out, "Urgency:     %s\n", t.Urgency.UrgencyLabel())
	fmt.Fprintf(out, "Progress:    %d%%\n", t.Progress)
	fmt.Fprintf(out, "Assignee:    %s\n", dash(t.Assignee()))
	fmt.Fprintf(out, "Created by:  %s at %s\n", t.CreatedBy, formatTime(t.CreatedAt))
	fmt.Fprintf(out, "Updated:     %s\n", formatTime(t.UpdatedAt))
	if t.Description != "" {
		fmt.Fprintf(out, "\n%s\n", t.Description)
	}

	fmt.Fprintln(out, "\nHistory:")
	for _, h := range t.History {
		line := fmt.Sprintf("  %s  %s  %s", formatTime(h.CreatedAt), dash(h.Actor), actionLabel(h.Action))
		if !h.Changes.Empty() {
			line += "  " + formatChanges(h.Changes)
		}
		fmt.Fprintln(out, line)
	}

	if len(t.Comments) > 0 {
		fmt.Fprintln(out, "\nComments:")
		for _, c := range t.Comments {
			fmt.Fprintf(out, "  %s  %s: %s\n", formatTime(c.CreatedAt), dash(c.Author), c.Text)
		}
	}
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath string
		as         string
		status     string
		priority   string
		urgency    string
		progress   int
		assign     string
		unassign   bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change status, priority, urgency, progress or assignee",
		Long:  "Applies only the given flags. Values equal to the current ones are ignored; when nothing changes no history entry is written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			payload := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("status") {
				payload[task.FieldStatus] = status
			}
			if flags.Changed("priority") {
				payload[task.FieldPriority] = priority
			}
			if flags.Changed("urgency") {
				payload[task.FieldUrgency] = urgency
			}
			if flags.Changed("progress") {
				payload[task.FieldProgress] = progress
			}
			if flags.Changed("assign") {
				payload[task.FieldAssignedTo] = assign
			}
			if unassign {
				if flags.Changed("assign") {
					return errors.New("--assign and --unassign are mutually exclusive")
				}
				payload[task.FieldAssignedTo] = nil
			}
			return runTaskUpdate(cmd, configPath, as, id, payload)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "username to act as (required)")
	cmd.Flags().StringVar(&status, "status", "", "new status (новая, в_работе, тестирование, завершена, отменена)")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&urgency, "urgency", "", "new urgency")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percentage (0-100)")
	cmd.Flags().StringVar(&assign, "assign", "", "assignee display name")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "clear the assignee")
	return cmd
}

func runTaskUpdate(cmd *cobra.Command, configPath, as string, id uint, payload map[string]any) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	u, err := a.login(cmd, newPrompter(cmd), as)
	if err != nil {
		return err
	}
	changes, err := task.ParseChanges(cmd.Context(), payload, a.users)
	if err != nil {
		return err
	}
	before, err := a.tasks.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	t, err := a.tasks.Update(cmd.Context(), id, changes, u.Name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(t.History) == len(before.History) {
		fmt.Fprintf(out, "No changes to %s.\n", t.Number)
		return nil
	}
	fmt.Fprintf(out, "Updated %s: %s\n", t.Number, formatChanges(t.History[len(t.History)-1].Changes))
	return nil
}

func newTaskCommentCmd() *cobra.Command {
	var (
		configPath string
		as         string
		text       string
	)

	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Add a comment to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			u, err := a.login(cmd, newPrompter(cmd), as)
			if err != nil {
				return err
			}
			t, err := a.tasks.AddComment(cmd.Context(), id, text, u.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Commented on %s (%d comments)\n", t.Number, len(t.Comments))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "username to act as (required)")
	cmd.Flags().StringVarP(&text, "message", "m", "", "comment text (required)")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newTaskUnassignedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "unassigned",
		Short: "List active tasks nobody has taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			tasks, err := a.tasks.UnassignedActive(cmd.Context())
			if err != nil {
				return err
			}
			printTaskTable(cmd, tasks)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

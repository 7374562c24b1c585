package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/schedule"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// setFlags holds the flag values for the set command. Only flags the user
// actually passed are applied.
type setFlags struct {
	Start      string
	ClearStart bool
	Duration   int
	Progress   int
	Milestone  bool
	SortOrder  int
	JSON       bool
}

// newSetCmd creates the "pacer set" command.
func newSetCmd() *cobra.Command {
	var flags setFlags

	cmd := &cobra.Command{
		Use:   "set <task>",
		Short: "Change a task's schedule fields",
		Long: `Update a task's start date, duration, progress, milestone flag or sort
order. The task is given by ID, or by code within the default project.

A duration below one day becomes one day and progress is clamped into 0-100.
When the task takes part in any dependency, the whole project is recalculated
so its dependents move with it.`,
		Example: `  # Move a task and stretch it
  pacer set WEB-1 --start 2024-02-01 --duration 5

  # Unschedule a task
  pacer set WEB-3 --clear-start`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := flags.update(cmd)
			if err != nil {
				return err
			}
			return runSet(cmd, args[0], update, flags.JSON)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.Start, "start", "", "Start date (YYYY-MM-DD)")
	f.BoolVar(&flags.ClearStart, "clear-start", false, "Remove the start date")
	f.IntVar(&flags.Duration, "duration", 1, "Duration in days")
	f.IntVar(&flags.Progress, "progress", 0, "Progress percent (0-100)")
	f.BoolVar(&flags.Milestone, "milestone", false, "Mark the task as a milestone (--milestone=false to clear)")
	f.IntVar(&flags.SortOrder, "sort-order", 0, "Display position within the project")
	f.BoolVar(&flags.JSON, "json", false, "Output the updated task as JSON")
	cmd.MarkFlagsMutuallyExclusive("start", "clear-start")

	return cmd
}

func init() {
	rootCmd.AddCommand(newSetCmd())
}

// update maps the flags the user set onto a ScheduleUpdate.
func (f setFlags) update(cmd *cobra.Command) (schedule.ScheduleUpdate, error) {
	var u schedule.ScheduleUpdate
	flags := cmd.Flags()
	if flags.Changed("start") {
		d, err := task.ParseDate(f.Start)
		if err != nil {
			return u, fmt.Errorf("invalid --start: %w", err)
		}
		u.StartDate = &d
	}
	u.ClearStart = f.ClearStart
	if flags.Changed("duration") {
		u.DurationDays = &f.Duration
	}
	if flags.Changed("progress") {
		u.ProgressPercent = &f.Progress
	}
	if flags.Changed("milestone") {
		u.IsMilestone = &f.Milestone
	}
	if flags.Changed("sort-order") {
		u.SortOrder = &f.SortOrder
	}
	if u.IsEmpty() {
		return u, fmt.Errorf("nothing to change: pass at least one of --start, --clear-start, --duration, --progress, --milestone, --sort-order")
	}
	return u, nil
}

func runSet(cmd *cobra.Command, ref string, update schedule.ScheduleUpdate, asJSON bool) error {
	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	t, err := d.resolveTask(ctx, ref)
	if err != nil {
		return err
	}
	if flagDryRun {
		fmt.Fprintf(cmd.ErrOrStderr(), "Would update %s; no changes written (--dry-run)\n", t.DisplayCode())
		return nil
	}

	updated, err := d.scheduler.UpdateTaskSchedule(ctx, t.ID, update)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), updated)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Updated %s: start %s, end %s, %d day(s), %d%%\n",
		updated.DisplayCode(),
		task.FormatDate(updated.StartDate),
		task.FormatDate(updated.EndDate()),
		updated.DurationDays,
		updated.ProgressPercent,
	)
	return nil
}

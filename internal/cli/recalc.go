package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/propagate"
)

// recalcFlags holds the flag values for the recalc command.
type recalcFlags struct {
	All         bool // --all, every project in the store
	Concurrency int  // --concurrency, 0 uses schedule.recalc_concurrency
	JSON        bool
}

// newRecalcCmd creates the "pacer recalc" command.
func newRecalcCmd() *cobra.Command {
	var flags recalcFlags

	cmd := &cobra.Command{
		Use:   "recalc [project]",
		Short: "Push start dates later so no task starts before its predecessors allow",
		Long: `Recalculate a project's schedule. Each task that depends on others is
moved to the earliest date its predecessors allow (the day after the
predecessor ends, plus lag) when it currently starts earlier or has no start
date yet. Start dates are never moved earlier, and a task with neither a
start date nor a scheduled predecessor stays unscheduled.

With --all every project in the store is recalculated, several at a time.
With --dry-run the changes are computed and shown but not written.`,
		Example: `  # Recalculate the default project
  pacer recalc

  # Show what would move
  pacer recalc web --dry-run

  # Every project, eight at a time
  pacer recalc --all --concurrency 8`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.All && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with a project argument")
			}
			return runRecalc(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.All, "all", false, "Recalculate every project in the store")
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "Projects recalculated at once with --all (default: schedule.recalc_concurrency)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output structured JSON to stdout")

	return cmd
}

func init() {
	rootCmd.AddCommand(newRecalcCmd())
}

func runRecalc(cmd *cobra.Command, args []string, flags recalcFlags) error {
	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	var results []*propagate.Result
	switch {
	case flags.All && flagDryRun:
		ids, err := d.store.ProjectIDs(ctx)
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		for _, id := range ids {
			res, err := d.scheduler.PreviewProject(ctx, id)
			if err != nil {
				return fmt.Errorf("project %s: %w", id, err)
			}
			results = append(results, res)
		}
	case flags.All:
		results, err = d.scheduler.RecalculateAll(ctx, nil, flags.Concurrency)
		if err != nil {
			return err
		}
	default:
		projectID, err := d.projectID(args)
		if err != nil {
			return err
		}
		var res *propagate.Result
		if flagDryRun {
			res, err = d.scheduler.PreviewProject(ctx, projectID)
		} else {
			res, err = d.scheduler.RecalculateProject(ctx, projectID)
		}
		if err != nil {
			return err
		}
		results = []*propagate.Result{res}
	}

	if flags.JSON {
		if !flags.All {
			return writeJSON(cmd.OutOrStdout(), results[0])
		}
		return writeJSON(cmd.OutOrStdout(), results)
	}

	w := cmd.ErrOrStderr()
	if len(results) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}
	for _, res := range results {
		renderResult(w, res)
	}
	return nil
}

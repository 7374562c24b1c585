package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// linkFlags holds the flag values for the link command.
type linkFlags struct {
	Type string
	Lag  int
	JSON bool
}

// newLinkCmd creates the "pacer link" command.
func newLinkCmd() *cobra.Command {
	var flags linkFlags

	types := make([]string, 0, 4)
	for _, dt := range task.DependencyTypes() {
		types = append(types, string(dt))
	}

	cmd := &cobra.Command{
		Use:   "link <task> <depends-on>",
		Short: "Make a task depend on another task",
		Long: `Add a dependency so <task> cannot start before <depends-on> allows it.
Both tasks are given by ID, or by code within the default project, and must
belong to the same project.

The link is refused when it would make a task depend on itself, duplicate an
existing link between the same pair, or close a cycle. Dates are not touched
unless schedule.recalc_on_link is enabled; run "pacer recalc" afterwards.`,
		Example: `  # WEB-2 starts after WEB-1 finishes
  pacer link WEB-2 WEB-1

  # With two days of lag
  pacer link WEB-3 WEB-2 --lag 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Type, "type", "t", string(task.FinishToStart),
		"Dependency type: "+strings.Join(types, ", "))
	cmd.Flags().IntVar(&flags.Lag, "lag", 0, "Extra days between the tasks (negative values become 0)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the new dependency as JSON")
	_ = cmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return types, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// newUnlinkCmd creates the "pacer unlink" command.
func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <edge-id> | <task> <depends-on>",
		Short: "Remove a dependency",
		Long: `Remove a dependency, given either by its edge ID or by the pair of
tasks it links. Dates are not touched unless schedule.recalc_on_unlink is
enabled.`,
		Example: `  pacer unlink 5f0c3c6e-8d55-4f0b-9a55-0d6c5a0e7b11
  pacer unlink WEB-2 WEB-1`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runUnlink,
	}
}

func init() {
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newUnlinkCmd())
}

func runLink(cmd *cobra.Command, succRef, predRef string, flags linkFlags) error {
	depType, err := task.ParseDependencyType(flags.Type)
	if err != nil {
		return err
	}

	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	succ, err := d.resolveTask(ctx, succRef)
	if err != nil {
		return err
	}
	pred, err := d.resolveTask(ctx, predRef)
	if err != nil {
		return err
	}
	if flagDryRun {
		fmt.Fprintf(cmd.ErrOrStderr(), "Would link %s -> %s (%s); no changes written (--dry-run)\n",
			succ.DisplayCode(), pred.DisplayCode(), depType)
		return nil
	}

	dep, err := d.scheduler.CreateDependency(ctx, succ.ID, pred.ID, depType, flags.Lag)
	if err != nil {
		return err
	}
	if flags.JSON {
		return writeJSON(cmd.OutOrStdout(), dep)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Linked %s -> %s (%s, lag %d) as %s\n",
		succ.DisplayCode(), pred.DisplayCode(), dep.Type, dep.LagDays, dep.ID)
	return nil
}

func runUnlink(cmd *cobra.Command, args []string) error {
	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	edgeID := args[0]
	label := edgeID
	if len(args) == 2 {
		succ, err := d.resolveTask(ctx, args[0])
		if err != nil {
			return err
		}
		pred, err := d.resolveTask(ctx, args[1])
		if err != nil {
			return err
		}
		g, err := d.manager.GraphForProject(ctx, succ.ProjectID)
		if err != nil {
			return err
		}
		dep, ok := g.Between(succ.ID, pred.ID)
		if !ok {
			return fmt.Errorf("%s does not depend on %s", succ.DisplayCode(), pred.DisplayCode())
		}
		edgeID = dep.ID
		label = fmt.Sprintf("%s -> %s", succ.DisplayCode(), pred.DisplayCode())
	}

	if flagDryRun {
		fmt.Fprintf(cmd.ErrOrStderr(), "Would unlink %s; no changes written (--dry-run)\n", label)
		return nil
	}

	removed, err := d.scheduler.DeleteDependency(ctx, edgeID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("dependency %s not found", edgeID)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Unlinked %s\n", label)
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
)

// checkFlags holds the flag values for the check command.
type checkFlags struct {
	All   bool // --all, every project in the store
	Order bool // --order prints the topological order
	JSON  bool
}

// checkReport is the JSON output for one project.
type checkReport struct {
	ProjectID    string `json:"project_id"`
	Tasks        int    `json:"tasks"`
	Dependencies int    `json:"dependencies"`
	*graph.Validation

	codes map[string]string // task ID -> display code
}

// newCheckCmd creates the "pacer check" command.
func newCheckCmd() *cobra.Command {
	var flags checkFlags

	cmd := &cobra.Command{
		Use:   "check [project]",
		Short: "Check a project's dependency graph for problems",
		Long: `Validate the stored dependency graph: edges pointing at missing tasks,
tasks depending on themselves, duplicate links and cycles are all reported.
A valid graph also reports its longest dependency chain, and --order prints
the order in which tasks are scheduled.

The command exits non-zero when any checked project has problems.`,
		Example: `  pacer check
  pacer check web --order
  pacer check --all --json`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.All && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with a project argument")
			}
			return runCheck(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.All, "all", false, "Check every project in the store")
	cmd.Flags().BoolVar(&flags.Order, "order", false, "Print the topological order of valid graphs")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output structured JSON to stdout")

	return cmd
}

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func runCheck(cmd *cobra.Command, args []string, flags checkFlags) error {
	d, err := loadRuntimeDeps(depsOptions{skipGraphCheck: true})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	var ids []string
	if flags.All {
		ids, err = d.store.ProjectIDs(ctx)
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
	} else {
		id, err := d.projectID(args)
		if err != nil {
			return err
		}
		ids = []string{id}
	}

	reports := make([]checkReport, 0, len(ids))
	invalid := 0
	for _, id := range ids {
		tasks, err := d.store.GetTasksForProject(ctx, id)
		if err != nil {
			return fmt.Errorf("loading tasks for project %s: %w", id, err)
		}
		edges, err := d.store.GetEdgesForProject(ctx, id)
		if err != nil {
			return fmt.Errorf("loading dependencies for project %s: %w", id, err)
		}
		codes := make(map[string]string, len(tasks))
		for i := range tasks {
			codes[tasks[i].ID] = tasks[i].DisplayCode()
		}
		v := graph.Validate(tasks, edges)
		if !v.Valid {
			invalid++
		}
		reports = append(reports, checkReport{
			ProjectID:    id,
			Tasks:        len(tasks),
			Dependencies: len(edges),
			Validation:   v,
			codes:        codes,
		})
	}

	if flags.JSON {
		var err error
		if flags.All {
			err = writeJSON(cmd.OutOrStdout(), reports)
		} else {
			err = writeJSON(cmd.OutOrStdout(), reports[0])
		}
		if err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprint(cmd.OutOrStdout(), renderCheckReport(r, flags.Order))
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d project(s) have dependency graph problems", invalid, len(reports))
	}
	return nil
}

// renderCheckReport formats one project's validation.
func renderCheckReport(r checkReport, order bool) string {
	var sb strings.Builder
	if r.Valid {
		fmt.Fprintf(&sb, "%s project %s: %d task(s), %d dependenc(ies), longest chain %d\n",
			styleSuccess.Render("ok"), r.ProjectID, r.Tasks, r.Dependencies, r.MaxDepth)
		if order && len(r.TopologicalOrder) > 0 {
			labels := make([]string, len(r.TopologicalOrder))
			for i, id := range r.TopologicalOrder {
				labels[i] = r.codes[id]
			}
			fmt.Fprintf(&sb, "  order: %s\n", strings.Join(labels, ", "))
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "%s project %s: %d problem(s)\n",
		styleErrorLbl.Render("invalid"), r.ProjectID, len(r.Problems))
	for _, p := range r.Problems {
		fmt.Fprintf(&sb, "  [%s] %s\n", p.Kind, p.Details)
	}
	return sb.String()
}

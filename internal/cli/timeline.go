package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/schedule"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// timelineFlags holds the flag values for the timeline command.
type timelineFlags struct {
	JSON bool // --json for structured output
	Deps bool // --deps lists each task's predecessors
}

// newTimelineCmd creates the "pacer timeline" command.
func newTimelineCmd() *cobra.Command {
	var flags timelineFlags

	cmd := &cobra.Command{
		Use:   "timeline [project]",
		Short: "Show a project's tasks with dates and progress bars",
		Long: `Display the project's tasks in display order with start and end dates,
duration, and a progress bar, plus an overall summary.

Use --deps to list what each task waits on. Use --json for structured output
suitable for rendering a Gantt chart.`,
		Example: `  # Default project
  pacer timeline

  # With predecessors
  pacer timeline web --deps

  # Structured JSON output
  pacer timeline --json`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output structured JSON to stdout")
	cmd.Flags().BoolVar(&flags.Deps, "deps", false, "List each task's predecessors")

	return cmd
}

func init() {
	rootCmd.AddCommand(newTimelineCmd())
}

func runTimeline(cmd *cobra.Command, args []string, flags timelineFlags) error {
	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	projectID, err := d.projectID(args)
	if err != nil {
		return err
	}
	tl, err := d.scheduler.Timeline(cmd.Context(), projectID)
	if err != nil {
		return err
	}

	if flags.JSON {
		return writeJSON(cmd.OutOrStdout(), tl)
	}

	out := cmd.OutOrStdout()
	if len(tl.Tasks) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No tasks found in project %s.\n", projectID)
		return nil
	}
	fmt.Fprintln(out, renderTimelineSummary(tl))
	fmt.Fprint(out, renderTimelineTasks(tl, flags.Deps))
	return nil
}

// overallProgress returns the duration-weighted progress of all tasks in
// [0, 1].
func overallProgress(tl *schedule.Timeline) float64 {
	var done, total int
	for _, t := range tl.Tasks {
		total += t.DurationDays
		done += t.DurationDays * t.ProgressPercent
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) / 100
}

// renderTimelineSummary returns the header block.
//
//	Pacer Timeline - web
//	====================
//	Span: 2024-01-01 .. 2024-01-11 (11 days)
//	Progress: ████████░░░░ 40%
//	Tasks: 3 (1 unscheduled), 1 milestone(s), 2 dependenc(ies)
func renderTimelineSummary(tl *schedule.Timeline) string {
	const progressBarWidth = 40

	headerStyle := lipgloss.NewStyle().Bold(true)
	title := fmt.Sprintf("Pacer Timeline - %s", tl.ProjectID)

	unscheduled, milestones := 0, 0
	for _, t := range tl.Tasks {
		if t.StartDate == nil {
			unscheduled++
		}
		if t.IsMilestone {
			milestones++
		}
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", len(title)))
	sb.WriteString("\n")

	if tl.Start != nil {
		fmt.Fprintf(&sb, "Span: %s .. %s (%d days)\n", tl.Start, tl.End, tl.SpanDays())
	} else {
		sb.WriteString("Span: nothing scheduled\n")
	}

	pct := overallProgress(tl)
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)
	fmt.Fprintf(&sb, "Progress: %s %.0f%%\n", bar.ViewAs(pct), pct*100)

	fmt.Fprintf(&sb, "Tasks: %d", len(tl.Tasks))
	if unscheduled > 0 {
		fmt.Fprintf(&sb, " (%d unscheduled)", unscheduled)
	}
	fmt.Fprintf(&sb, ", %d milestone(s), %d dependenc(ies)\n", milestones, len(tl.Dependencies))
	return sb.String()
}

// renderTimelineTasks returns one line per task.
//
//	WEB-1  Kickoff        2024-01-01 .. 2024-01-02   2d  ██████░░░░  60%
func renderTimelineTasks(tl *schedule.Timeline, showDeps bool) string {
	const progressBarWidth = 20

	doneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))      // green
	milestoneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("13")) // magenta
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))        // dark gray

	codes := make(map[string]string, len(tl.Tasks))
	for _, t := range tl.Tasks {
		codes[t.ID] = timelineCode(t)
	}
	waitingOn := make(map[string][]string)
	if showDeps {
		for _, dep := range tl.Dependencies {
			label := codes[dep.DependsOnTaskID]
			if dep.Type != task.FinishToStart {
				label += " " + string(dep.Type)
			}
			if dep.LagDays > 0 {
				label += fmt.Sprintf(" +%dd", dep.LagDays)
			}
			waitingOn[dep.TaskID] = append(waitingOn[dep.TaskID], label)
		}
	}

	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)

	var sb strings.Builder
	for _, t := range tl.Tasks {
		title := t.Title
		if len(title) > 30 {
			title = title[:27] + "..."
		}

		dates := dimStyle.Render("unscheduled")
		if t.StartDate != nil {
			dates = fmt.Sprintf("%s .. %s", t.StartDate, t.EndDate)
		}

		pct := fmt.Sprintf("%3d%%", t.ProgressPercent)
		if t.ProgressPercent == 100 {
			pct = doneStyle.Render(pct)
		}

		line := fmt.Sprintf("  %-10s %-30s %-24s %3dd  %s %s",
			codes[t.ID], title, dates, t.DurationDays, bar.ViewAs(float64(t.ProgressPercent)/100), pct)
		if t.IsMilestone {
			line += " " + milestoneStyle.Render("◆ milestone")
		}
		if preds := waitingOn[t.ID]; len(preds) > 0 {
			line += fmt.Sprintf("  [after: %s]", strings.Join(preds, ", "))
		}

		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// timelineCode returns the task's code, or its ID when uncoded.
func timelineCode(t schedule.TimelineTask) string {
	if t.Code != "" {
		return t.Code
	}
	return t.ID
}

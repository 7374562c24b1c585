package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/propagate"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

var (
	styleMoved   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	styleDimText = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dark gray
)

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult writes a recalculation summary followed by one line per moved
// task.
//
//	Project web: 3 task(s), 2 moved
//	  WEB-2  2024-01-03 -> 2024-01-04
func renderResult(w io.Writer, res *propagate.Result) {
	verb := "moved"
	if res.DryRun {
		verb = "would move"
	}
	fmt.Fprintf(w, "Project %s: %d task(s), %d %s\n", res.ProjectID, res.Tasks, len(res.Changes), verb)
	for _, c := range res.Changes {
		fmt.Fprintf(w, "  %-12s %s -> %s\n", c.Code, task.FormatDate(c.From), styleMoved.Render(task.FormatDate(c.To)))
	}
	if res.Unscheduled > 0 {
		fmt.Fprintln(w, styleDimText.Render(fmt.Sprintf("  %d unscheduled task(s) left without a start date", res.Unscheduled)))
	}
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

var styleErrorPrefix = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

// formatError renders err for the terminal. Rejected graph edits and broken
// project graphs get a kind label and one line per problem.
func formatError(err error) string {
	prefix := styleErrorPrefix.Render("Error:")

	var ig *graph.InvalidGraphError
	if errors.As(err, &ig) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s project %s has an invalid dependency graph\n", prefix, ig.ProjectID)
		for _, p := range ig.Problems {
			fmt.Fprintf(&sb, "  [%s] %s\n", p.Kind, p.Details)
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	if kind := errorKind(err); kind != "" {
		return fmt.Sprintf("%s %s: %v", prefix, kind, err)
	}
	return fmt.Sprintf("%s %v", prefix, err)
}

// errorKind names the caller-input error class of err, or "" for
// infrastructure failures.
func errorKind(err error) string {
	switch {
	case errors.Is(err, task.ErrSelfDependency):
		return "self dependency"
	case errors.Is(err, task.ErrDuplicateDependency):
		return "duplicate dependency"
	case errors.Is(err, task.ErrCyclicDependency):
		return "cyclic dependency"
	case errors.Is(err, task.ErrTaskNotFound):
		return "not found"
	case errors.Is(err, task.ErrInvalidDependencyType):
		return "invalid dependency type"
	default:
		return ""
	}
}

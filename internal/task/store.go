// Package task defines the task and dependency model and the stores that
// persist it.
package task

import (
	"context"
	"sort"
)

// Store is the persistence contract the scheduling core depends on. It holds
// Task records and dependency edges; implementations must be safe for
// concurrent use but need not serialise multi-call sequences (callers hold a
// per-project exclusive section for that).
type Store interface {
	// GetTask returns a copy of the task with the given ID, or a
	// *TaskNotFoundError when it does not exist.
	GetTask(ctx context.Context, id string) (*Task, error)

	// GetTasksForProject returns copies of all tasks in the project. An
	// unknown project yields an empty slice.
	GetTasksForProject(ctx context.Context, projectID string) ([]Task, error)

	// SaveTask inserts or replaces a task and returns the stored copy.
	SaveTask(ctx context.Context, t Task) (*Task, error)

	// GetEdgesForProject returns copies of all dependency edges in the project.
	GetEdgesForProject(ctx context.Context, projectID string) ([]Dependency, error)

	// SaveEdge inserts or replaces an edge and returns the stored copy.
	SaveEdge(ctx context.Context, d Dependency) (*Dependency, error)

	// DeleteEdge removes the edge with the given ID and reports whether one
	// was removed.
	DeleteEdge(ctx context.Context, id string) (bool, error)
}

// EdgeGetter is implemented by stores that can look up a single edge. GetEdge
// returns nil without error when the edge does not exist.
type EdgeGetter interface {
	GetEdge(ctx context.Context, id string) (*Dependency, error)
}

// ProjectLister is implemented by stores that can enumerate their projects.
type ProjectLister interface {
	ProjectIDs(ctx context.Context) ([]string, error)
}

// SortTasks orders tasks for display and deterministic iteration: by
// SortOrder, then by ID.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].SortOrder != tasks[j].SortOrder {
			return tasks[i].SortOrder < tasks[j].SortOrder
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// SortEdges orders edges by successor, then predecessor, then ID.
func SortEdges(edges []Dependency) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if a.DependsOnTaskID != b.DependsOnTaskID {
			return a.DependsOnTaskID < b.DependsOnTaskID
		}
		return a.ID < b.ID
	})
}

package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// Manager owns structural correctness of the dependency edge set. Every
// mutation it applies keeps each project's graph free of self edges,
// duplicate pairs, and cycles. Manager does not trigger date propagation;
// callers decide when to recalculate.
//
// Manager does not lock. Callers serialise mutations per project.
type Manager struct {
	store  task.Store
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

// NewManager creates a Manager backed by store. logger may be nil.
func NewManager(store task.Store, logger *log.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// AddEdge makes successorID depend on predecessorID.
//
// Both tasks must exist and belong to the same project; otherwise a
// *task.TaskNotFoundError is returned. The request is rejected with
// *task.SelfDependencyError when the IDs are equal, with
// *task.DuplicateDependencyError when the ordered pair is already linked
// (whatever its type or lag), and with *task.CyclicDependencyError when the
// predecessor already depends on the successor, directly or transitively.
// A structurally valid request with an unknown depType gets
// *task.InvalidDependencyTypeError. An empty depType selects
// finish_to_start; a negative lag is coerced to 0.
//
// On rejection nothing is written.
func (m *Manager) AddEdge(ctx context.Context, successorID, predecessorID string, depType task.DependencyType, lagDays int) (*task.Dependency, error) {
	successor, err := m.store.GetTask(ctx, successorID)
	if err != nil {
		return nil, err
	}
	predecessor, err := m.store.GetTask(ctx, predecessorID)
	if err != nil {
		return nil, err
	}
	if predecessor.ProjectID != successor.ProjectID {
		return nil, &task.TaskNotFoundError{TaskID: predecessorID, ProjectID: successor.ProjectID}
	}

	if successorID == predecessorID {
		return nil, &task.SelfDependencyError{Task: task.RefOf(successor)}
	}

	projectID := successor.ProjectID
	edges, err := m.store.GetEdgesForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies for project %s: %w", projectID, err)
	}
	g := New(edges)

	if existing, dup := g.Between(successorID, predecessorID); dup {
		return nil, &task.DuplicateDependencyError{
			Successor:   task.RefOf(successor),
			Predecessor: task.RefOf(predecessor),
			ExistingID:  existing.ID,
		}
	}

	// Adding successor -> predecessor closes a loop exactly when the
	// predecessor already reaches the successor through predecessor links.
	if path, cyclic := g.DependencyPath(predecessorID, successorID); cyclic {
		refs, err := m.refsFor(ctx, path)
		if err != nil {
			return nil, err
		}
		return nil, &task.CyclicDependencyError{
			Successor:   task.RefOf(successor),
			Predecessor: task.RefOf(predecessor),
			Path:        refs,
		}
	}

	if depType == "" {
		depType = task.FinishToStart
	}
	if !depType.IsValid() {
		return nil, &task.InvalidDependencyTypeError{Value: string(depType)}
	}

	edge := task.Dependency{
		ID:              m.newID(),
		ProjectID:       projectID,
		TaskID:          successorID,
		DependsOnTaskID: predecessorID,
		Type:            depType,
		LagDays:         task.ClampLag(lagDays),
		CreatedAt:       m.now(),
	}
	saved, err := m.store.SaveEdge(ctx, edge)
	if err != nil {
		return nil, fmt.Errorf("saving dependency %s -> %s: %w", successor.DisplayCode(), predecessor.DisplayCode(), err)
	}

	if m.logger != nil {
		m.logger.Debug("dependency added",
			"project", projectID,
			"edge", saved.ID,
			"successor", successor.DisplayCode(),
			"predecessor", predecessor.DisplayCode(),
			"type", saved.Type,
			"lag_days", saved.LagDays,
		)
	}
	return saved, nil
}

// RemoveEdge deletes the edge with the given ID and reports whether one was
// removed. It never touches task dates.
func (m *Manager) RemoveEdge(ctx context.Context, edgeID string) (bool, error) {
	removed, err := m.store.DeleteEdge(ctx, edgeID)
	if err != nil {
		return false, fmt.Errorf("deleting dependency %s: %w", edgeID, err)
	}
	if m.logger != nil {
		m.logger.Debug("dependency removed", "edge", edgeID, "removed", removed)
	}
	return removed, nil
}

// EdgesForProject returns the project's edges in deterministic order.
func (m *Manager) EdgesForProject(ctx context.Context, projectID string) ([]task.Dependency, error) {
	edges, err := m.store.GetEdgesForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies for project %s: %w", projectID, err)
	}
	task.SortEdges(edges)
	return edges, nil
}

// GraphForProject loads the project's edges and builds a Graph.
func (m *Manager) GraphForProject(ctx context.Context, projectID string) (*Graph, error) {
	edges, err := m.EdgesForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return New(edges), nil
}

// refsFor resolves task IDs into TaskRefs for error payloads.
func (m *Manager) refsFor(ctx context.Context, ids []string) ([]task.TaskRef, error) {
	refs := make([]task.TaskRef, 0, len(ids))
	for _, id := range ids {
		t, err := m.store.GetTask(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving task %s in cycle path: %w", id, err)
		}
		refs = append(refs, task.RefOf(t))
	}
	return refs, nil
}

// Package schedule is the entry point the surrounding application calls to
// change a project's schedule. It composes the graph manager and the
// propagation engine, applies field-level coercion, and serialises every
// mutation and recalculation per project.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/propagate"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// ErrConflictingUpdate is returned when a ScheduleUpdate both sets and clears
// the start date.
var ErrConflictingUpdate = errors.New("start date cannot be both set and cleared")

// ScheduleUpdate is a partial update of a task's schedule fields. Nil fields
// are left unchanged.
type ScheduleUpdate struct {
	StartDate *task.Date
	// ClearStart unschedules the task.
	ClearStart      bool
	DurationDays    *int
	ProgressPercent *int
	IsMilestone     *bool
	SortOrder       *int
}

// IsEmpty reports whether the update changes nothing.
func (u ScheduleUpdate) IsEmpty() bool {
	return u.StartDate == nil && !u.ClearStart && u.DurationDays == nil &&
		u.ProgressPercent == nil && u.IsMilestone == nil && u.SortOrder == nil
}

// apply writes the update into t, coercing duration to at least one day and
// progress into [0, 100].
func (u ScheduleUpdate) apply(t *task.Task) {
	switch {
	case u.ClearStart:
		t.StartDate = nil
	case u.StartDate != nil:
		t.StartDate = task.DatePtr(*u.StartDate)
	}
	if u.DurationDays != nil {
		t.DurationDays = task.ClampDuration(*u.DurationDays)
	}
	if u.ProgressPercent != nil {
		t.ProgressPercent = task.ClampProgress(*u.ProgressPercent)
	}
	if u.IsMilestone != nil {
		t.IsMilestone = *u.IsMilestone
	}
	if u.SortOrder != nil {
		t.SortOrder = *u.SortOrder
	}
}

// Options tunes Scheduler behaviour.
type Options struct {
	// RecalcOnLink recalculates the project after CreateDependency.
	RecalcOnLink bool
	// RecalcOnUnlink recalculates the project after DeleteDependency.
	RecalcOnUnlink bool
	// Concurrency bounds RecalculateAll when the caller passes 0.
	Concurrency int
}

// Scheduler is the schedule mutation façade. Every public operation holds
// the affected project's exclusive section for its whole duration, so a graph
// edit and the recalculation that follows it are never interleaved with
// another writer on the same project. Different projects proceed in parallel.
type Scheduler struct {
	store   task.Store
	manager *graph.Manager
	engine  *propagate.Engine
	opts    Options
	locks   *projectLocks
	logger  *log.Logger
	events  chan<- Event
}

// NewScheduler creates a Scheduler. logger and events may be nil; events are
// dropped when the channel is nil or full.
func NewScheduler(
	store task.Store,
	manager *graph.Manager,
	engine *propagate.Engine,
	opts Options,
	logger *log.Logger,
	events chan<- Event,
) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Scheduler{
		store:   store,
		manager: manager,
		engine:  engine,
		opts:    opts,
		locks:   newProjectLocks(),
		logger:  logger,
		events:  events,
	}
}

// UpdateTaskSchedule applies update to the task, persists it, and
// recalculates the task's project when the task participates in any
// dependency edge. It returns the task as stored after recalculation.
// An empty update returns the current task without writing.
func (s *Scheduler) UpdateTaskSchedule(ctx context.Context, taskID string, update ScheduleUpdate) (*task.Task, error) {
	if update.ClearStart && update.StartDate != nil {
		return nil, ErrConflictingUpdate
	}

	current, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return current, nil
	}

	projectID := current.ProjectID
	unlock := s.locks.lock(projectID)
	defer unlock()

	// Re-read inside the exclusive section.
	current, err = s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	updated := current.Clone()
	update.apply(&updated)

	if _, err := s.store.SaveTask(ctx, updated); err != nil {
		return nil, fmt.Errorf("saving task %s: %w", updated.DisplayCode(), err)
	}
	if err := s.recalculateIfLinked(ctx, projectID, taskID); err != nil {
		s.restoreTask(ctx, *current)
		return nil, err
	}

	s.emit(Event{
		Type:      EventTaskUpdated,
		ProjectID: projectID,
		TaskID:    taskID,
		Message:   fmt.Sprintf("task %s schedule updated", updated.DisplayCode()),
	})
	if s.logger != nil {
		s.logger.Debug("task schedule updated",
			"task", updated.DisplayCode(),
			"start", task.FormatDate(updated.StartDate),
			"duration_days", updated.DurationDays,
			"progress", updated.ProgressPercent,
		)
	}

	return s.store.GetTask(ctx, taskID)
}

// recalculateIfLinked recalculates projectID when taskID has any edge.
func (s *Scheduler) recalculateIfLinked(ctx context.Context, projectID, taskID string) error {
	g, err := s.manager.GraphForProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !g.HasLinks(taskID) {
		return nil
	}
	_, err = s.recalculateLocked(ctx, projectID)
	return err
}

// restoreTask writes prev back after a failed update. The engine has
// already undone its own writes.
func (s *Scheduler) restoreTask(ctx context.Context, prev task.Task) {
	if _, err := s.store.SaveTask(context.WithoutCancel(ctx), prev); err != nil && s.logger != nil {
		s.logger.Warn("restoring task failed", "task", prev.DisplayCode(), "error", err)
	}
}

// CreateDependency makes successorID depend on predecessorID. Graph errors
// from the manager are returned unchanged. The project is recalculated
// afterwards only when Options.RecalcOnLink is set.
func (s *Scheduler) CreateDependency(ctx context.Context, successorID, predecessorID string, depType task.DependencyType, lagDays int) (*task.Dependency, error) {
	successor, err := s.store.GetTask(ctx, successorID)
	if err != nil {
		return nil, err
	}
	projectID := successor.ProjectID
	unlock := s.locks.lock(projectID)
	defer unlock()

	dep, err := s.manager.AddEdge(ctx, successorID, predecessorID, depType, lagDays)
	if err != nil {
		return nil, err
	}
	s.emit(Event{
		Type:      EventDependencyCreated,
		ProjectID: projectID,
		TaskID:    successorID,
		EdgeID:    dep.ID,
		Message:   fmt.Sprintf("%s now depends on %s", successorID, predecessorID),
	})

	if s.opts.RecalcOnLink {
		if _, err := s.recalculateLocked(ctx, projectID); err != nil {
			return dep, err
		}
	}
	return dep, nil
}

// DeleteDependency removes the edge and reports whether one was removed. It
// never changes task dates unless Options.RecalcOnUnlink is set.
func (s *Scheduler) DeleteDependency(ctx context.Context, edgeID string) (bool, error) {
	projectID, err := s.projectOfEdge(ctx, edgeID)
	if err != nil {
		return false, err
	}
	if projectID != "" {
		unlock := s.locks.lock(projectID)
		defer unlock()
	}

	removed, err := s.manager.RemoveEdge(ctx, edgeID)
	if err != nil || !removed {
		return removed, err
	}
	s.emit(Event{
		Type:      EventDependencyDeleted,
		ProjectID: projectID,
		EdgeID:    edgeID,
		Message:   fmt.Sprintf("dependency %s removed", edgeID),
	})

	if s.opts.RecalcOnUnlink {
		if projectID == "" {
			if s.logger != nil {
				s.logger.Warn("store cannot resolve edge project; skipping recalculation", "edge", edgeID)
			}
			return true, nil
		}
		if _, err := s.recalculateLocked(ctx, projectID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// projectOfEdge returns the project owning edgeID, or "" when the store
// cannot look edges up or the edge does not exist.
func (s *Scheduler) projectOfEdge(ctx context.Context, edgeID string) (string, error) {
	getter, ok := s.store.(task.EdgeGetter)
	if !ok {
		return "", nil
	}
	dep, err := getter.GetEdge(ctx, edgeID)
	if err != nil {
		return "", fmt.Errorf("looking up dependency %s: %w", edgeID, err)
	}
	if dep == nil {
		return "", nil
	}
	return dep.ProjectID, nil
}

// RecalculateProject recomputes and persists every start date in the
// project.
func (s *Scheduler) RecalculateProject(ctx context.Context, projectID string) (*propagate.Result, error) {
	unlock := s.locks.lock(projectID)
	defer unlock()
	return s.recalculateLocked(ctx, projectID)
}

// PreviewProject computes what RecalculateProject would change without
// writing.
func (s *Scheduler) PreviewProject(ctx context.Context, projectID string) (*propagate.Result, error) {
	unlock := s.locks.lock(projectID)
	defer unlock()
	return s.engine.Preview(ctx, projectID)
}

func (s *Scheduler) recalculateLocked(ctx context.Context, projectID string) (*propagate.Result, error) {
	res, err := s.engine.RecalculateProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	s.emit(Event{
		Type:      EventProjectRecalculated,
		ProjectID: projectID,
		Changed:   len(res.Changes),
		Message:   fmt.Sprintf("recalculated %d task(s), %d moved", res.Tasks, len(res.Changes)),
	})
	if s.logger != nil && res.Changed() {
		s.logger.Info("project recalculated",
			"project", projectID,
			"moved", len(res.Changes),
			"duration", res.Duration,
		)
	}
	return res, nil
}

// RecalculateAll recalculates each project concurrently, at most concurrency
// at a time (Options.Concurrency when concurrency <= 0). An empty projectIDs
// selects every project when the store implements task.ProjectLister.
// Results are returned in the order of projectIDs. The first failure cancels
// the remaining work.
func (s *Scheduler) RecalculateAll(ctx context.Context, projectIDs []string, concurrency int) ([]*propagate.Result, error) {
	start := time.Now()
	if len(projectIDs) == 0 {
		lister, ok := s.store.(task.ProjectLister)
		if !ok {
			return nil, fmt.Errorf("recalculating all projects: store cannot list projects")
		}
		ids, err := lister.ProjectIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		projectIDs = ids
	}
	if concurrency <= 0 {
		concurrency = s.opts.Concurrency
	}

	results := make([]*propagate.Result, len(projectIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	moved := 0
	for i, id := range projectIDs {
		g.Go(func() error {
			res, err := s.RecalculateProject(gctx, id)
			if err != nil {
				return fmt.Errorf("project %s: %w", id, err)
			}
			results[i] = res
			mu.Lock()
			moved += len(res.Changes)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recalculating projects: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("all projects recalculated",
			"projects", len(projectIDs),
			"moved", moved,
			"concurrency", concurrency,
			"duration", time.Since(start),
		)
	}
	return results, nil
}

// Package propagate recomputes task start dates across a project's
// dependency graph. A task starts no earlier than its own declared start and
// no earlier than the boundary each predecessor edge imposes; tasks with
// neither stay unscheduled.
package propagate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// DateChange records one task whose start date moved during a pass.
type DateChange struct {
	TaskID string     `json:"task_id"`
	Code   string     `json:"code"`
	From   *task.Date `json:"from"`
	To     *task.Date `json:"to"`
}

// Result summarises one recalculation pass.
type Result struct {
	ProjectID string       `json:"project_id"`
	Changes   []DateChange `json:"changes"`
	// Tasks is the number of tasks considered.
	Tasks       int `json:"tasks"`
	Scheduled   int `json:"scheduled"`
	Unscheduled int `json:"unscheduled"`
	// Fingerprint hashes every task's resulting start date. Two passes over
	// an unchanged project produce the same value.
	Fingerprint uint64        `json:"fingerprint"`
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
}

// Changed reports whether the pass moved any start date.
func (r *Result) Changed() bool { return len(r.Changes) > 0 }

// Option configures an Engine.
type Option func(*Engine)

// WithDependencyTypes makes the engine pick each edge's boundary by its type
// instead of treating every edge as finish-to-start.
func WithDependencyTypes(enabled bool) Option {
	return func(e *Engine) { e.honorTypes = enabled }
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine recalculates project schedules over a task.Store. It holds no
// per-project state between calls; callers serialise passes per project.
type Engine struct {
	store      task.Store
	logger     *log.Logger
	honorTypes bool
}

// NewEngine creates an Engine backed by store.
func NewEngine(store task.Store, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HonorsDependencyTypes reports whether per-type boundaries are enabled.
func (e *Engine) HonorsDependencyTypes() bool { return e.honorTypes }

// RecalculateProject recomputes every task's start date in the project and
// persists the tasks whose date changed. All dates are computed before the
// first write, so an error during computation leaves the store untouched.
func (e *Engine) RecalculateProject(ctx context.Context, projectID string) (*Result, error) {
	return e.run(ctx, projectID, false)
}

// Preview computes the same result as RecalculateProject without writing.
func (e *Engine) Preview(ctx context.Context, projectID string) (*Result, error) {
	return e.run(ctx, projectID, true)
}

func (e *Engine) run(ctx context.Context, projectID string, dryRun bool) (*Result, error) {
	start := time.Now()

	tasks, err := e.store.GetTasksForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks for project %s: %w", projectID, err)
	}
	edges, err := e.store.GetEdgesForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies for project %s: %w", projectID, err)
	}
	task.SortTasks(tasks)

	starts, err := e.Compute(ctx, tasks, edges)
	if err != nil {
		return nil, fmt.Errorf("recalculating project %s: %w", projectID, err)
	}

	res := &Result{ProjectID: projectID, Tasks: len(tasks), DryRun: dryRun}
	var changed []task.Task
	for _, t := range tasks {
		next := starts[t.ID]
		if next == nil {
			res.Unscheduled++
		} else {
			res.Scheduled++
		}
		if task.SameDate(t.StartDate, next) {
			continue
		}
		res.Changes = append(res.Changes, DateChange{
			TaskID: t.ID,
			Code:   t.DisplayCode(),
			From:   t.StartDate,
			To:     next,
		})
		updated := t.Clone()
		updated.StartDate = next
		changed = append(changed, updated)
	}
	res.Fingerprint = fingerprint(tasks, starts)

	if !dryRun {
		if err := e.persist(ctx, tasks, changed); err != nil {
			return nil, fmt.Errorf("saving recalculated dates for project %s: %w", projectID, err)
		}
	}

	res.Duration = time.Since(start)
	if e.logger != nil {
		e.logger.Debug("project recalculated",
			"project", projectID,
			"tasks", res.Tasks,
			"changed", len(res.Changes),
			"unscheduled", res.Unscheduled,
			"dry_run", dryRun,
			"duration", res.Duration,
		)
	}
	return res, nil
}

// persist writes changed tasks in order. When a write fails, tasks already
// written are restored to their previous start dates on a best-effort basis.
func (e *Engine) persist(ctx context.Context, original []task.Task, changed []task.Task) error {
	if len(changed) == 0 {
		return nil
	}
	before := make(map[string]task.Task, len(original))
	for _, t := range original {
		before[t.ID] = t
	}

	for i, t := range changed {
		if _, err := e.store.SaveTask(ctx, t); err != nil {
			for _, written := range changed[:i] {
				if _, rerr := e.store.SaveTask(context.WithoutCancel(ctx), before[written.ID]); rerr != nil && e.logger != nil {
					e.logger.Warn("restoring start date failed", "task", written.ID, "error", rerr)
				}
			}
			return fmt.Errorf("saving task %s: %w", t.DisplayCode(), err)
		}
	}
	return nil
}

// Compute returns the propagated start date for every task in tasks, keyed by
// task ID. A nil entry means the task stays unscheduled. tasks and edges must
// belong to one project; edges whose successor is not in tasks are ignored and
// an edge whose predecessor is missing yields a *task.TaskNotFoundError.
//
// Compute does not read or write the store.
func (e *Engine) Compute(ctx context.Context, tasks []task.Task, edges []task.Dependency) (map[string]*task.Date, error) {
	p := &pass{
		engine: e,
		g:      graph.New(edges),
		tasks:  make(map[string]*task.Task, len(tasks)),
		memo:   make(map[string]*task.Date, len(tasks)),
		state:  make(map[string]visitState, len(tasks)),
	}
	for i := range tasks {
		p.tasks[tasks[i].ID] = &tasks[i]
	}

	ordered := make([]task.Task, len(tasks))
	copy(ordered, tasks)
	task.SortTasks(ordered)

	for _, t := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := p.computeStart(t.ID); err != nil {
			return nil, err
		}
	}
	return p.memo, nil
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	done
)

// pass holds the memo for one recalculation.
type pass struct {
	engine *Engine
	g      *graph.Graph
	tasks  map[string]*task.Task
	memo   map[string]*task.Date
	state  map[string]visitState
	stack  []string
}

// computeStart returns the earliest start for id: its own declared start,
// pushed later by each predecessor's boundary plus lag.
func (p *pass) computeStart(id string) (*task.Date, error) {
	switch p.state[id] {
	case done:
		return p.memo[id], nil
	case visiting:
		return nil, p.cycleError(id)
	}

	t, ok := p.tasks[id]
	if !ok {
		return nil, &task.TaskNotFoundError{TaskID: id}
	}

	p.state[id] = visiting
	p.stack = append(p.stack, id)

	var earliest *task.Date
	if t.StartDate != nil {
		earliest = task.DatePtr(*t.StartDate)
	}

	for _, dep := range p.g.Incoming(id) {
		predStart, err := p.computeStart(dep.DependsOnTaskID)
		if err != nil {
			return nil, err
		}
		if predStart == nil {
			continue
		}
		pred := p.tasks[dep.DependsOnTaskID]
		candidate := p.engine.boundary(dep, *predStart, pred.DurationDays, t.DurationDays)
		if earliest == nil || candidate.After(*earliest) {
			earliest = &candidate
		}
	}

	p.stack = p.stack[:len(p.stack)-1]
	p.state[id] = done
	p.memo[id] = earliest
	return earliest, nil
}

// cycleError builds a CyclicDependencyError from the recursion stack when id
// is reached again before its own computation finished.
func (p *pass) cycleError(id string) error {
	idx := 0
	for i, s := range p.stack {
		if s == id {
			idx = i
			break
		}
	}
	loop := p.stack[idx:]
	ref := func(id string) task.TaskRef {
		if t, ok := p.tasks[id]; ok {
			return task.RefOf(t)
		}
		return task.TaskRef{ID: id}
	}
	cerr := &task.CyclicDependencyError{Successor: ref(loop[0])}
	if len(loop) > 1 {
		cerr.Predecessor = ref(loop[1])
	} else {
		cerr.Predecessor = cerr.Successor
	}
	for _, s := range loop[1:] {
		cerr.Path = append(cerr.Path, ref(s))
	}
	return cerr
}

// boundary returns the earliest start the edge allows for a successor of
// duration succDur, given the predecessor's computed start and duration.
func (e *Engine) boundary(dep task.Dependency, predStart task.Date, predDur, succDur int) task.Date {
	lag := task.ClampLag(dep.LagDays)
	predEnd := predStart.AddDays(task.ClampDuration(predDur) - 1)
	if !e.honorTypes {
		return predEnd.AddDays(1 + lag)
	}

	span := task.ClampDuration(succDur) - 1
	switch dep.Type {
	case task.StartToStart:
		return predStart.AddDays(lag)
	case task.FinishToFinish:
		return predEnd.AddDays(lag - span)
	case task.StartToFinish:
		return predStart.AddDays(lag - span)
	default:
		return predEnd.AddDays(1 + lag)
	}
}

// fingerprint hashes each task's resulting start in ID order.
func fingerprint(tasks []task.Task, starts map[string]*task.Date) uint64 {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)

	h := xxhash.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(task.FormatDate(starts[id]))
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}

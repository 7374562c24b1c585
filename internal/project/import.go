package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// ImportResult summarises what an import changed.
type ImportResult struct {
	ProjectID string `json:"project_id"`
	// Created and Updated hold task references (code, or ID when uncoded).
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	// EdgesAdded counts new dependencies; EdgesKept counts document edges
	// that already existed between the same pair.
	EdgesAdded int `json:"edges_added"`
	EdgesKept  int `json:"edges_kept"`
}

// Importer merges documents into a store. Tasks are matched to existing ones
// by ID, then by code; edges are added through the graph Manager. Importing
// the same document twice changes nothing the second time.
//
// Importer does not lock. Callers serialise imports per project.
type Importer struct {
	store   task.Store
	manager *graph.Manager
	logger  *log.Logger
	newID   func() string
}

// NewImporter creates an Importer. logger may be nil.
func NewImporter(store task.Store, manager *graph.Manager, logger *log.Logger) *Importer {
	return &Importer{
		store:   store,
		manager: manager,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// plannedEdge is a document edge resolved to task IDs.
type plannedEdge struct {
	successor   string
	predecessor string
	depType     task.DependencyType
	lagDays     int
}

// Import validates doc against itself and against the project's current
// graph, then saves its tasks and adds its missing edges. Validation
// failures leave the store untouched; a *graph.InvalidGraphError reports
// graph problems such as cycles the document would introduce.
func (im *Importer) Import(ctx context.Context, doc *Document) (*ImportResult, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project document: %w", err)
	}
	projectID := doc.Project

	existing, err := im.store.GetTasksForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks for project %s: %w", projectID, err)
	}
	existingEdges, err := im.manager.EdgesForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*task.Task, len(existing))
	byCode := make(map[string]*task.Task, len(existing))
	for i := range existing {
		t := &existing[i]
		byID[t.ID] = t
		if t.Code != "" {
			byCode[t.Code] = t
		}
	}

	result := &ImportResult{ProjectID: projectID}
	planned := make([]task.Task, 0, len(doc.Tasks))
	idOf := make(map[string]string, len(doc.Tasks)) // ref -> task ID
	for _, spec := range doc.Tasks {
		t, isNew, err := im.resolveTask(ctx, projectID, spec, byID, byCode)
		if err != nil {
			return nil, err
		}
		idOf[spec.ref()] = t.ID
		planned = append(planned, t)
		if isNew {
			result.Created = append(result.Created, spec.ref())
		} else {
			result.Updated = append(result.Updated, spec.ref())
		}
	}

	g := graph.New(existingEdges)
	var edges []plannedEdge
	for _, dep := range doc.Dependencies {
		depType, _ := task.ParseDependencyType(string(dep.Type))
		e := plannedEdge{
			successor:   idOf[dep.Task],
			predecessor: idOf[dep.DependsOn],
			depType:     depType,
			lagDays:     dep.LagDays,
		}
		if _, ok := g.Between(e.successor, e.predecessor); ok {
			result.EdgesKept++
			continue
		}
		edges = append(edges, e)
	}

	if err := checkMerged(projectID, existing, planned, existingEdges, edges); err != nil {
		return nil, err
	}

	for _, t := range planned {
		if _, err := im.store.SaveTask(ctx, t); err != nil {
			return nil, fmt.Errorf("saving task %s: %w", t.DisplayCode(), err)
		}
	}
	for _, e := range edges {
		if _, err := im.manager.AddEdge(ctx, e.successor, e.predecessor, e.depType, e.lagDays); err != nil {
			return nil, fmt.Errorf("adding dependency: %w", err)
		}
		result.EdgesAdded++
	}

	if im.logger != nil {
		im.logger.Info("project imported",
			"project", projectID,
			"created", len(result.Created),
			"updated", len(result.Updated),
			"edges_added", result.EdgesAdded,
			"edges_kept", result.EdgesKept,
		)
	}
	return result, nil
}

// resolveTask builds the task to save for spec and reports whether it is new.
func (im *Importer) resolveTask(
	ctx context.Context,
	projectID string,
	spec TaskSpec,
	byID, byCode map[string]*task.Task,
) (task.Task, bool, error) {
	var current *task.Task
	switch {
	case spec.ID != "":
		current = byID[spec.ID]
		if current == nil {
			// IDs are global: refuse one that already lives in another project.
			other, err := im.store.GetTask(ctx, spec.ID)
			var nf *task.TaskNotFoundError
			switch {
			case err == nil:
				return task.Task{}, false, fmt.Errorf("task id %s already belongs to project %s", spec.ID, other.ProjectID)
			case !errors.As(err, &nf):
				return task.Task{}, false, err
			}
		}
		if owner := byCode[spec.Code]; spec.Code != "" && owner != nil && owner.ID != spec.ID {
			return task.Task{}, false, fmt.Errorf("code %s is already used by task %s", spec.Code, owner.ID)
		}
	case spec.Code != "":
		current = byCode[spec.Code]
	}

	t := task.Task{
		ID:              spec.ID,
		ProjectID:       projectID,
		SprintID:        spec.SprintID,
		Code:            spec.Code,
		Title:           spec.Title,
		StartDate:       spec.StartDate,
		DurationDays:    spec.DurationDays,
		ProgressPercent: spec.ProgressPercent,
		IsMilestone:     spec.IsMilestone,
		SortOrder:       spec.SortOrder,
	}
	if current != nil {
		t.ID = current.ID
	}
	if t.ID == "" {
		t.ID = im.newID()
	}
	t.Normalize()
	return t, current == nil, nil
}

// checkMerged validates the graph the project would have after the import.
func checkMerged(
	projectID string,
	existing, planned []task.Task,
	existingEdges []task.Dependency,
	edges []plannedEdge,
) error {
	tasks := make([]task.Task, 0, len(existing)+len(planned))
	seen := make(map[string]bool, len(planned))
	for _, t := range planned {
		seen[t.ID] = true
		tasks = append(tasks, t)
	}
	for _, t := range existing {
		if !seen[t.ID] {
			tasks = append(tasks, t)
		}
	}

	merged := make([]task.Dependency, 0, len(existingEdges)+len(edges))
	merged = append(merged, existingEdges...)
	for i, e := range edges {
		merged = append(merged, task.Dependency{
			ID:              fmt.Sprintf("import-%d", i),
			ProjectID:       projectID,
			TaskID:          e.successor,
			DependsOnTaskID: e.predecessor,
			Type:            e.depType,
			LagDays:         e.lagDays,
		})
	}

	v := graph.Validate(tasks, merged)
	if v.Valid {
		return nil
	}
	return &graph.InvalidGraphError{ProjectID: projectID, Problems: v.Problems}
}

package project

import (
	"context"
	"fmt"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// Export builds the document for projectID. Tasks appear in display order
// with their IDs, so re-importing the document updates the same tasks.
// Dependencies refer to tasks by code when the code is unique in the
// project, and by ID otherwise.
func Export(ctx context.Context, store task.Store, projectID string) (*Document, error) {
	tasks, err := store.GetTasksForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks for project %s: %w", projectID, err)
	}
	edges, err := store.GetEdgesForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies for project %s: %w", projectID, err)
	}
	task.SortTasks(tasks)
	task.SortEdges(edges)

	codeCount := make(map[string]int, len(tasks))
	for _, t := range tasks {
		if t.Code != "" {
			codeCount[t.Code]++
		}
	}

	doc := &Document{
		Project: projectID,
		Tasks:   make([]TaskSpec, 0, len(tasks)),
	}
	refOf := make(map[string]string, len(tasks))
	for _, t := range tasks {
		spec := TaskSpec{
			ID:              t.ID,
			Code:            t.Code,
			Title:           t.Title,
			SprintID:        t.SprintID,
			StartDate:       t.StartDate,
			DurationDays:    t.DurationDays,
			ProgressPercent: t.ProgressPercent,
			IsMilestone:     t.IsMilestone,
			SortOrder:       t.SortOrder,
		}
		if codeCount[t.Code] > 1 {
			// An ambiguous code cannot be a reference; keep it as the ID.
			spec.Code = ""
		}
		refOf[t.ID] = spec.ref()
		doc.Tasks = append(doc.Tasks, spec)
	}

	for _, e := range edges {
		succ, ok := refOf[e.TaskID]
		if !ok {
			return nil, &task.TaskNotFoundError{TaskID: e.TaskID, ProjectID: projectID}
		}
		pred, ok := refOf[e.DependsOnTaskID]
		if !ok {
			return nil, &task.TaskNotFoundError{TaskID: e.DependsOnTaskID, ProjectID: projectID}
		}
		doc.Dependencies = append(doc.Dependencies, DependencySpec{
			Task:      succ,
			DependsOn: pred,
			Type:      e.Type,
			LagDays:   e.LagDays,
		})
	}
	return doc, nil
}

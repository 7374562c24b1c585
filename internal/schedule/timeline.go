package schedule

import (
	"context"
	"fmt"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// TimelineTask is the read view of one task for timeline rendering.
type TimelineTask struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	StartDate       *task.Date `json:"start_date"`
	EndDate         *task.Date `json:"end_date"`
	DurationDays    int        `json:"duration_days"`
	ProgressPercent int        `json:"progress_percent"`
	IsMilestone     bool       `json:"is_milestone"`
	SortOrder       int        `json:"sort_order"`
}

// Timeline is a project's tasks in display order plus its full edge list.
type Timeline struct {
	ProjectID    string            `json:"project_id"`
	Tasks        []TimelineTask    `json:"tasks"`
	Dependencies []task.Dependency `json:"dependencies"`
	// Start and End span every scheduled task; nil when none is scheduled.
	Start *task.Date `json:"start,omitempty"`
	End   *task.Date `json:"end,omitempty"`
}

// Task returns the timeline entry for id.
func (tl *Timeline) Task(id string) (TimelineTask, bool) {
	for _, t := range tl.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TimelineTask{}, false
}

// SpanDays returns the inclusive number of days between Start and End, or 0
// when nothing is scheduled.
func (tl *Timeline) SpanDays() int {
	if tl.Start == nil || tl.End == nil {
		return 0
	}
	return tl.Start.DaysUntil(*tl.End) + 1
}

// Timeline returns the project's tasks ordered by SortOrder then ID, each
// with its derived end date, and every dependency edge.
func (s *Scheduler) Timeline(ctx context.Context, projectID string) (*Timeline, error) {
	unlock := s.locks.lock(projectID)
	defer unlock()

	tasks, err := s.store.GetTasksForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks for project %s: %w", projectID, err)
	}
	edges, err := s.manager.EdgesForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	task.SortTasks(tasks)

	tl := &Timeline{
		ProjectID:    projectID,
		Tasks:        make([]TimelineTask, 0, len(tasks)),
		Dependencies: edges,
	}
	for i := range tasks {
		t := &tasks[i]
		end := t.EndDate()
		tl.Tasks = append(tl.Tasks, TimelineTask{
			ID:              t.ID,
			Code:            t.Code,
			Title:           t.Title,
			StartDate:       t.StartDate,
			EndDate:         end,
			DurationDays:    task.ClampDuration(t.DurationDays),
			ProgressPercent: task.ClampProgress(t.ProgressPercent),
			IsMilestone:     t.IsMilestone,
			SortOrder:       t.SortOrder,
		})
		if t.StartDate == nil {
			continue
		}
		if tl.Start == nil || t.StartDate.Before(*tl.Start) {
			tl.Start = task.DatePtr(*t.StartDate)
		}
		if tl.End == nil || end.After(*tl.End) {
			tl.End = task.DatePtr(*end)
		}
	}
	return tl, nil
}

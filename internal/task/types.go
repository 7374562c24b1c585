package task

import (
	"fmt"
	"time"
)

// DependencyType selects which boundaries of the predecessor and successor a
// dependency constrains.
type DependencyType string

const (
	// FinishToStart means the successor may start once the predecessor has
	// finished. It is the only type the default propagation math honours.
	FinishToStart DependencyType = "finish_to_start"

	// StartToStart means the successor may start once the predecessor has
	// started.
	StartToStart DependencyType = "start_to_start"

	// FinishToFinish means the successor may finish once the predecessor has
	// finished.
	FinishToFinish DependencyType = "finish_to_finish"

	// StartToFinish means the successor may finish once the predecessor has
	// started.
	StartToFinish DependencyType = "start_to_finish"
)

// validDependencyTypes is the set of all known DependencyType values.
var validDependencyTypes = map[DependencyType]bool{
	FinishToStart:  true,
	StartToStart:   true,
	FinishToFinish: true,
	StartToFinish:  true,
}

// DependencyTypes returns all valid dependency type values.
func DependencyTypes() []DependencyType {
	return []DependencyType{FinishToStart, StartToStart, FinishToFinish, StartToFinish}
}

// IsValid returns true if the type is a recognized value.
func (dt DependencyType) IsValid() bool {
	return validDependencyTypes[dt]
}

// ParseDependencyType normalises user input into a DependencyType. An empty
// string selects FinishToStart; unknown values yield an
// InvalidDependencyTypeError.
func ParseDependencyType(s string) (DependencyType, error) {
	if s == "" {
		return FinishToStart, nil
	}
	dt := DependencyType(s)
	if !dt.IsValid() {
		return "", &InvalidDependencyTypeError{Value: s}
	}
	return dt, nil
}

// Task is the schedule-relevant subset of a project task. The task entity
// itself is owned by the surrounding application; this package only reads and
// writes the fields below.
type Task struct {
	ID              string `json:"id" yaml:"id"`
	ProjectID       string `json:"project_id" yaml:"project_id"`
	SprintID        string `json:"sprint_id,omitempty" yaml:"sprint_id,omitempty"`
	Code            string `json:"code" yaml:"code"`
	Title           string `json:"title" yaml:"title"`
	StartDate       *Date  `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	DurationDays    int    `json:"duration_days" yaml:"duration_days"`
	ProgressPercent int    `json:"progress_percent" yaml:"progress_percent"`
	IsMilestone     bool   `json:"is_milestone" yaml:"is_milestone"`
	SortOrder       int    `json:"sort_order" yaml:"sort_order"`
}

// EndDate returns the inclusive last day of the task: StartDate plus
// DurationDays minus one. A one-day task starts and ends on the same day.
// Returns nil for unscheduled tasks.
func (t *Task) EndDate() *Date {
	if t.StartDate == nil {
		return nil
	}
	end := t.StartDate.AddDays(ClampDuration(t.DurationDays) - 1)
	return &end
}

// DisplayCode returns Code, or ID when no code was assigned.
func (t *Task) DisplayCode() string {
	if t.Code != "" {
		return t.Code
	}
	return t.ID
}

// Normalize applies the field coercion policy in place: duration is raised to
// at least one day and progress is clamped into [0, 100]. A zero start date,
// which an empty date string decodes to, means unscheduled.
func (t *Task) Normalize() {
	if t.StartDate != nil && t.StartDate.IsZero() {
		t.StartDate = nil
	}
	t.DurationDays = ClampDuration(t.DurationDays)
	t.ProgressPercent = ClampProgress(t.ProgressPercent)
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	if t.StartDate != nil {
		t.StartDate = DatePtr(*t.StartDate)
	}
	return t
}

// String implements fmt.Stringer for log and error output.
func (t *Task) String() string {
	return fmt.Sprintf("%s (%s)", t.DisplayCode(), t.ID)
}

// Dependency is a directed precedence edge: TaskID (the successor) may not
// begin until DependsOnTaskID (the predecessor) allows it.
type Dependency struct {
	ID              string         `json:"id" yaml:"id"`
	ProjectID       string         `json:"project_id" yaml:"project_id"`
	TaskID          string         `json:"task_id" yaml:"task_id"`
	DependsOnTaskID string         `json:"depends_on_task_id" yaml:"depends_on_task_id"`
	Type            DependencyType `json:"type" yaml:"type"`
	LagDays         int            `json:"lag_days" yaml:"lag_days"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at"`
}

// ClampDuration coerces a duration to at least one day.
func ClampDuration(days int) int {
	if days < 1 {
		return 1
	}
	return days
}

// ClampProgress coerces a progress percentage into [0, 100].
func ClampProgress(pct int) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// ClampLag coerces a lag to zero or more days.
func ClampLag(days int) int {
	if days < 0 {
		return 0
	}
	return days
}

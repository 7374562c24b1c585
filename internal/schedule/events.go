package schedule

import "time"

// EventType identifies what a Scheduler event announces.
type EventType string

const (
	// EventTaskUpdated follows a successful UpdateTaskSchedule, after any
	// recalculation it triggered.
	EventTaskUpdated EventType = "task_updated"
	// EventDependencyCreated follows a successful CreateDependency.
	EventDependencyCreated EventType = "dependency_created"
	// EventDependencyDeleted follows a DeleteDependency that removed an edge.
	EventDependencyDeleted EventType = "dependency_deleted"
	// EventProjectRecalculated follows every completed recalculation pass,
	// including passes that moved nothing.
	EventProjectRecalculated EventType = "project_recalculated"
)

// Event is emitted after a Scheduler mutation completes so the surrounding
// application can drive notifications. TaskID and EdgeID are empty when they
// do not apply.
type Event struct {
	Type      EventType
	ProjectID string
	TaskID    string
	EdgeID    string
	// Changed is the number of start dates moved (project_recalculated only).
	Changed   int
	Message   string
	Timestamp time.Time
}

// emit sends ev without blocking. Events are dropped when the channel is nil
// or full.
func (s *Scheduler) emit(ev Event) {
	if s.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case s.events <- ev:
	default:
	}
}

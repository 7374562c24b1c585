package task

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for the caller-input error taxonomy. Every typed error below
// unwraps to exactly one of these, so callers may test with errors.Is and
// extract the payload with errors.As.
var (
	ErrSelfDependency        = errors.New("self dependency")
	ErrDuplicateDependency   = errors.New("duplicate dependency")
	ErrCyclicDependency      = errors.New("cyclic dependency")
	ErrTaskNotFound          = errors.New("task not found")
	ErrInvalidDependencyType = errors.New("invalid dependency type")
)

// TaskRef identifies a task in error payloads by its stable ID and its
// human-readable code.
type TaskRef struct {
	ID   string
	Code string
}

// RefOf builds a TaskRef from a task.
func RefOf(t *Task) TaskRef {
	return TaskRef{ID: t.ID, Code: t.DisplayCode()}
}

func (r TaskRef) String() string {
	if r.Code != "" {
		return r.Code
	}
	return r.ID
}

// SelfDependencyError is returned when a task is asked to depend on itself.
type SelfDependencyError struct {
	Task TaskRef
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.Task)
}

func (e *SelfDependencyError) Unwrap() error { return ErrSelfDependency }

// DuplicateDependencyError is returned when the ordered (successor,
// predecessor) pair already has an edge, whatever its type or lag.
type DuplicateDependencyError struct {
	Successor   TaskRef
	Predecessor TaskRef
	// ExistingID is the ID of the edge already linking the pair.
	ExistingID string
}

func (e *DuplicateDependencyError) Error() string {
	return fmt.Sprintf("task %s already depends on %s", e.Successor, e.Predecessor)
}

func (e *DuplicateDependencyError) Unwrap() error { return ErrDuplicateDependency }

// CyclicDependencyError is returned when adding the requested edge would close
// a loop. Path lists the existing chain from the predecessor back to the
// successor, so the cycle reads Successor -> Path[0] -> ... -> Successor.
type CyclicDependencyError struct {
	Successor   TaskRef
	Predecessor TaskRef
	Path        []TaskRef
}

func (e *CyclicDependencyError) Error() string {
	msg := fmt.Sprintf("making %s depend on %s would create a cycle", e.Successor, e.Predecessor)
	if len(e.Path) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Path)+2)
	parts = append(parts, e.Successor.String())
	for _, r := range e.Path {
		parts = append(parts, r.String())
	}
	if last := e.Path[len(e.Path)-1]; last.ID != e.Successor.ID {
		parts = append(parts, e.Successor.String())
	}
	return msg + ": " + strings.Join(parts, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// TaskNotFoundError is returned when a referenced task does not exist, or
// exists outside the project the operation is scoped to.
type TaskNotFoundError struct {
	TaskID    string
	ProjectID string
}

func (e *TaskNotFoundError) Error() string {
	if e.ProjectID != "" {
		return fmt.Sprintf("task %s not found in project %s", e.TaskID, e.ProjectID)
	}
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func (e *TaskNotFoundError) Unwrap() error { return ErrTaskNotFound }

// InvalidDependencyTypeError is returned for an unrecognised dependency type.
type InvalidDependencyTypeError struct {
	Value string
}

func (e *InvalidDependencyTypeError) Error() string {
	names := make([]string, 0, len(validDependencyTypes))
	for _, dt := range DependencyTypes() {
		names = append(names, string(dt))
	}
	return fmt.Sprintf("unknown dependency type %q; must be one of: %s", e.Value, strings.Join(names, ", "))
}

func (e *InvalidDependencyTypeError) Unwrap() error { return ErrInvalidDependencyType }

// IsClientError reports whether err belongs to the caller-input taxonomy (as
// opposed to a storage or infrastructure failure).
func IsClientError(err error) bool {
	return errors.Is(err, ErrSelfDependency) ||
		errors.Is(err, ErrDuplicateDependency) ||
		errors.Is(err, ErrCyclicDependency) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrInvalidDependencyType)
}

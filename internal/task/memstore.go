package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store backed by maps. A RWMutex guards all
// access; returned values are copies so callers cannot mutate stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task       // task ID -> task
	edges map[string]Dependency // edge ID -> edge
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]Task),
		edges: make(map[string]Dependency),
	}
}

// GetTask implements Store.
func (s *MemoryStore) GetTask(ctx context.Context, id string) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, &TaskNotFoundError{TaskID: id}
	}
	c := t.Clone()
	return &c, nil
}

// GetTasksForProject implements Store. Tasks are returned in SortTasks order.
func (s *MemoryStore) GetTasksForProject(ctx context.Context, projectID string) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Task{}
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	SortTasks(out)
	return out, nil
}

// SaveTask implements Store.
func (s *MemoryStore) SaveTask(ctx context.Context, t Task) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, fmt.Errorf("saving task: task ID must not be empty")
	}
	if t.ProjectID == "" {
		return nil, fmt.Errorf("saving task %s: project ID must not be empty", t.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tasks[t.ID]; ok && prev.ProjectID != t.ProjectID {
		return nil, fmt.Errorf("saving task %s: already belongs to project %s", t.ID, prev.ProjectID)
	}
	s.tasks[t.ID] = t.Clone()
	c := t.Clone()
	return &c, nil
}

// GetEdgesForProject implements Store. Edges are returned in SortEdges order.
func (s *MemoryStore) GetEdgesForProject(ctx context.Context, projectID string) ([]Dependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Dependency{}
	for _, e := range s.edges {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	SortEdges(out)
	return out, nil
}

// SaveEdge implements Store.
func (s *MemoryStore) SaveEdge(ctx context.Context, d Dependency) (*Dependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ID == "" {
		return nil, fmt.Errorf("saving dependency: edge ID must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges[d.ID] = d
	return &d, nil
}

// DeleteEdge implements Store.
func (s *MemoryStore) DeleteEdge(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[id]; !ok {
		return false, nil
	}
	delete(s.edges, id)
	return true, nil
}

// GetEdge implements EdgeGetter.
func (s *MemoryStore) GetEdge(ctx context.Context, id string) (*Dependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.edges[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// ProjectIDs implements ProjectLister. IDs are sorted.
func (s *MemoryStore) ProjectIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, t := range s.tasks {
		seen[t.ProjectID] = true
	}
	for _, e := range s.edges {
		seen[e.ProjectID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// replaceProject swaps in the full task and edge set for one project. Used by
// FileStore when loading documents from disk.
func (s *MemoryStore) replaceProject(projectID string, tasks []Task, edges []Dependency) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tasks {
		if t.ProjectID == projectID {
			delete(s.tasks, id)
		}
	}
	for id, e := range s.edges {
		if e.ProjectID == projectID {
			delete(s.edges, id)
		}
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t.Clone()
	}
	for _, e := range edges {
		s.edges[e.ID] = e
	}
}

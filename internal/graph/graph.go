// Package graph maintains the per-project dependency graph between tasks and
// enforces its structural invariants: no self edges, at most one edge per
// ordered (successor, predecessor) pair, and no cycles.
//
// Graph is an immutable in-memory adjacency structure built once from a
// project's edge list. Manager applies validated mutations through a
// task.Store, and Validate checks an entire stored edge set at once.
package graph

import (
	"sort"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// pairKey identifies an ordered (successor, predecessor) pair.
type pairKey struct {
	successor   string
	predecessor string
}

// Graph is an adjacency view over one project's dependency edges. The
// forward index maps a successor to the edges pointing at its predecessors;
// the reverse index maps a predecessor to the edges of its dependents.
type Graph struct {
	incoming map[string][]task.Dependency // successor -> edges to its predecessors
	outgoing map[string][]task.Dependency // predecessor -> edges from its successors
	pairs    map[pairKey]task.Dependency
	byID     map[string]task.Dependency
}

// New builds a Graph from edges. Edge slices in both indexes are sorted so
// every traversal is deterministic regardless of input order. When edges
// contain duplicate pairs, the first edge in sorted order wins the pair index.
func New(edges []task.Dependency) *Graph {
	sorted := make([]task.Dependency, len(edges))
	copy(sorted, edges)
	task.SortEdges(sorted)

	g := &Graph{
		incoming: make(map[string][]task.Dependency),
		outgoing: make(map[string][]task.Dependency),
		pairs:    make(map[pairKey]task.Dependency, len(sorted)),
		byID:     make(map[string]task.Dependency, len(sorted)),
	}
	for _, e := range sorted {
		g.incoming[e.TaskID] = append(g.incoming[e.TaskID], e)
		g.outgoing[e.DependsOnTaskID] = append(g.outgoing[e.DependsOnTaskID], e)
		key := pairKey{e.TaskID, e.DependsOnTaskID}
		if _, dup := g.pairs[key]; !dup {
			g.pairs[key] = e
		}
		g.byID[e.ID] = e
	}
	return g
}

// Len returns the number of edges in the graph.
func (g *Graph) Len() int { return len(g.byID) }

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id string) (task.Dependency, bool) {
	e, ok := g.byID[id]
	return e, ok
}

// Incoming returns the edges whose successor is taskID, i.e. the task's
// predecessor links, ordered by predecessor then edge ID.
func (g *Graph) Incoming(taskID string) []task.Dependency {
	return g.incoming[taskID]
}

// Outgoing returns the edges whose predecessor is taskID, i.e. the links of
// the tasks that depend on it.
func (g *Graph) Outgoing(taskID string) []task.Dependency {
	return g.outgoing[taskID]
}

// Between returns the edge making successor depend on predecessor, if any.
func (g *Graph) Between(successor, predecessor string) (task.Dependency, bool) {
	e, ok := g.pairs[pairKey{successor, predecessor}]
	return e, ok
}

// HasLinks reports whether taskID appears in any edge, as successor or
// predecessor.
func (g *Graph) HasLinks(taskID string) bool {
	return len(g.incoming[taskID]) > 0 || len(g.outgoing[taskID]) > 0
}

// DependencyPath reports whether from transitively depends on target by
// walking predecessor links depth-first. When it does, the returned path
// lists the tasks visited from `from` to `target`, inclusive of both ends.
// from == target yields the single-element path.
func (g *Graph) DependencyPath(from, target string) ([]string, bool) {
	visited := make(map[string]bool)
	var path []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		path = append(path, node)
		if node == target {
			return true
		}
		visited[node] = true
		for _, e := range g.incoming[node] {
			if visited[e.DependsOnTaskID] {
				continue
			}
			if dfs(e.DependsOnTaskID) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if dfs(from) {
		return path, true
	}
	return nil, false
}

// Dependents returns every task that transitively depends on taskID, sorted.
// taskID itself is not included.
func (g *Graph) Dependents(taskID string) []string {
	seen := make(map[string]bool)
	stack := []string{taskID}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.outgoing[node] {
			if !seen[e.TaskID] && e.TaskID != taskID {
				seen[e.TaskID] = true
				stack = append(stack, e.TaskID)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

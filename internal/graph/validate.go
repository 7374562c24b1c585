package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// maxGraphTasks is the upper bound on tasks accepted by Validate. Larger
// projects are rejected immediately to prevent pathological run times.
const maxGraphTasks = 10_000

// ProblemType enumerates the kinds of structural problems Validate reports.
type ProblemType int

const (
	// DanglingReference means an edge references a task that does not exist
	// in the project.
	DanglingReference ProblemType = iota
	// SelfReference means an edge links a task to itself.
	SelfReference
	// DuplicatePair means more than one edge links the same ordered pair.
	DuplicatePair
	// CycleDetected means a cycle exists in the dependency graph.
	CycleDetected
	// TooLarge means the project exceeds the task limit.
	TooLarge
)

func (p ProblemType) String() string {
	switch p {
	case DanglingReference:
		return "dangling_reference"
	case SelfReference:
		return "self_reference"
	case DuplicatePair:
		return "duplicate_pair"
	case CycleDetected:
		return "cycle"
	case TooLarge:
		return "too_large"
	default:
		return fmt.Sprintf("ProblemType(%d)", int(p))
	}
}

// sentinel maps a problem to the task error kind it corresponds to.
func (p ProblemType) sentinel() error {
	switch p {
	case DanglingReference:
		return task.ErrTaskNotFound
	case SelfReference:
		return task.ErrSelfDependency
	case DuplicatePair:
		return task.ErrDuplicateDependency
	case CycleDetected:
		return task.ErrCyclicDependency
	default:
		return nil
	}
}

// Problem describes one structural defect in a stored edge set.
type Problem struct {
	// Type classifies the problem.
	Type ProblemType `json:"-"`
	// Kind is the string form of Type, used in JSON output.
	Kind string `json:"kind"`
	// TaskID is the task with the problem (or the first task in a cycle).
	TaskID string `json:"task_id,omitempty"`
	// EdgeID is the offending edge, when one edge is to blame.
	EdgeID string `json:"edge_id,omitempty"`
	// Details is a human-readable description.
	Details string `json:"details"`
	// Cycle holds the task IDs forming a cycle, sorted (CycleDetected only).
	Cycle []string `json:"cycle,omitempty"`

	// walk is the cycle in traversal order: each task depends on the next.
	walk []string
}

func newProblem(t ProblemType, taskID, edgeID, details string) Problem {
	return Problem{Type: t, Kind: t.String(), TaskID: taskID, EdgeID: edgeID, Details: details}
}

// Validation holds the result of validating a project's graph.
type Validation struct {
	// Valid is true when the edge set satisfies every structural invariant.
	Valid bool `json:"valid"`
	// TopologicalOrder lists task IDs so that every predecessor precedes its
	// successors; empty when invalid.
	TopologicalOrder []string `json:"topological_order,omitempty"`
	// Depths maps task ID to its topological depth (0 = no predecessors).
	Depths map[string]int `json:"depths,omitempty"`
	// MaxDepth is the longest predecessor chain in the graph.
	MaxDepth int `json:"max_depth"`
	// Problems lists every defect found.
	Problems []Problem `json:"problems,omitempty"`
}

// Validate checks a project's tasks and edges for:
//  1. Dangling references (edges to tasks outside the task list)
//  2. Self-references
//  3. Duplicate ordered pairs
//  4. Cycles (using Kahn's algorithm)
//
// When the graph is valid it also computes a deterministic topological order
// and per-task depths. Ties between ready tasks are broken by task ID.
func Validate(tasks []task.Task, edges []task.Dependency) *Validation {
	if len(tasks) > maxGraphTasks {
		return &Validation{
			Problems: []Problem{newProblem(TooLarge, "", "",
				fmt.Sprintf("graph too large: %d tasks exceed maximum of %d", len(tasks), maxGraphTasks))},
		}
	}

	taskSet := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		taskSet[t.ID] = true
	}

	sorted := make([]task.Dependency, len(edges))
	copy(sorted, edges)
	task.SortEdges(sorted)

	var problems []Problem
	seenPair := make(map[pairKey]string, len(sorted))
	valid := make([]task.Dependency, 0, len(sorted))

	// First pass: reject self, dangling and duplicate edges so the Kahn pass
	// only sees well-formed links.
	for _, e := range sorted {
		switch {
		case e.TaskID == e.DependsOnTaskID:
			problems = append(problems, newProblem(SelfReference, e.TaskID, e.ID,
				fmt.Sprintf("task %s depends on itself", e.TaskID)))
			continue
		case !taskSet[e.TaskID]:
			problems = append(problems, newProblem(DanglingReference, e.TaskID, e.ID,
				fmt.Sprintf("edge %s has unknown successor %s", e.ID, e.TaskID)))
			continue
		case !taskSet[e.DependsOnTaskID]:
			problems = append(problems, newProblem(DanglingReference, e.TaskID, e.ID,
				fmt.Sprintf("task %s has dangling dependency on %s (task does not exist)", e.TaskID, e.DependsOnTaskID)))
			continue
		}
		key := pairKey{e.TaskID, e.DependsOnTaskID}
		if first, dup := seenPair[key]; dup {
			problems = append(problems, newProblem(DuplicatePair, e.TaskID, e.ID,
				fmt.Sprintf("task %s depends on %s more than once (edges %s and %s)", e.TaskID, e.DependsOnTaskID, first, e.ID)))
			continue
		}
		seenPair[key] = e.ID
		valid = append(valid, e)
	}

	// Second pass: in-degree and dependents over the well-formed edges.
	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	depsOf := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] += 0
	}
	for _, e := range valid {
		inDegree[e.TaskID]++
		dependents[e.DependsOnTaskID] = append(dependents[e.DependsOnTaskID], e.TaskID)
		depsOf[e.TaskID] = append(depsOf[e.TaskID], e.DependsOnTaskID)
	}

	topoOrder := kahn(inDegree, dependents)

	if len(topoOrder) < len(inDegree) {
		problems = append(problems, extractCycles(inDegree, topoOrder, depsOf)...)
	}

	v := &Validation{
		Valid:    len(problems) == 0,
		Problems: problems,
	}
	if !v.Valid {
		return v
	}

	depths := make(map[string]int, len(topoOrder))
	for _, id := range topoOrder {
		d := 0
		for _, dep := range depsOf[id] {
			if depths[dep]+1 > d {
				d = depths[dep] + 1
			}
		}
		depths[id] = d
		if d > v.MaxDepth {
			v.MaxDepth = d
		}
	}
	v.TopologicalOrder = topoOrder
	v.Depths = depths
	return v
}

// kahn runs Kahn's algorithm, always taking the smallest ready ID next.
func kahn(inDegree map[string]int, dependents map[string][]string) []string {
	remaining := make(map[string]int, len(inDegree))
	var queue []string
	for id, deg := range inDegree {
		remaining[id] = deg
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(inDegree))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, dep := range dependents[current] {
			remaining[dep]--
			if remaining[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}
	return order
}

// extractCycles reports one Problem per distinct cycle among the tasks Kahn
// could not order.
func extractCycles(inDegree map[string]int, ordered []string, depsOf map[string][]string) []Problem {
	done := make(map[string]bool, len(ordered))
	for _, id := range ordered {
		done[id] = true
	}
	inCycle := make(map[string]bool)
	for id := range inDegree {
		if !done[id] {
			inCycle[id] = true
		}
	}

	cycleDeps := make(map[string][]string, len(inCycle))
	for id := range inCycle {
		for _, dep := range depsOf[id] {
			if inCycle[dep] {
				cycleDeps[id] = append(cycleDeps[id], dep)
			}
		}
		sort.Strings(cycleDeps[id])
	}

	nodes := make([]string, 0, len(inCycle))
	for id := range inCycle {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	var problems []Problem
	reported := make(map[string]bool)
	for _, start := range nodes {
		if reported[start] {
			continue
		}

		var path []string
		onPath := make(map[string]int)
		var dfs func(node string) []string
		dfs = func(node string) []string {
			if idx, seen := onPath[node]; seen {
				return path[idx:]
			}
			onPath[node] = len(path)
			path = append(path, node)
			for _, next := range cycleDeps[node] {
				if reported[next] {
					continue
				}
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
			path = path[:len(path)-1]
			delete(onPath, node)
			return nil
		}

		cycle := dfs(start)
		if cycle == nil {
			// Downstream of a reported cycle with no loop of its own.
			reported[start] = true
			continue
		}

		members := make([]string, len(cycle))
		copy(members, cycle)
		sort.Strings(members)
		p := newProblem(CycleDetected, members[0], "",
			fmt.Sprintf("cycle detected involving tasks: %s", strings.Join(members, ", ")))
		p.Cycle = members
		p.walk = append([]string(nil), cycle...)
		problems = append(problems, p)

		for _, id := range cycle {
			reported[id] = true
		}
	}
	return problems
}

// TopologicalOrder orders every task mentioned by edges so that each
// predecessor precedes its successors, breaking ties by task ID. It returns a
// *task.CyclicDependencyError when the edges contain a cycle.
func TopologicalOrder(edges []task.Dependency) ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	depsOf := make(map[string][]string)
	for _, e := range edges {
		inDegree[e.DependsOnTaskID] += 0
		inDegree[e.TaskID]++
		dependents[e.DependsOnTaskID] = append(dependents[e.DependsOnTaskID], e.TaskID)
		depsOf[e.TaskID] = append(depsOf[e.TaskID], e.DependsOnTaskID)
	}

	order := kahn(inDegree, dependents)
	if len(order) == len(inDegree) {
		return order, nil
	}

	cycles := extractCycles(inDegree, order, depsOf)
	cerr := &task.CyclicDependencyError{}
	if len(cycles) > 0 {
		walk := cycles[0].walk
		cerr.Successor = task.TaskRef{ID: walk[0]}
		cerr.Predecessor = task.TaskRef{ID: walk[1%len(walk)]}
		for _, id := range walk[1:] {
			cerr.Path = append(cerr.Path, task.TaskRef{ID: id})
		}
	}
	return nil, cerr
}

// InvalidGraphError reports that a stored project graph violates structural
// invariants. It unwraps to the task error kinds of its problems.
type InvalidGraphError struct {
	ProjectID string
	Problems  []Problem
}

func (e *InvalidGraphError) Error() string {
	details := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		details = append(details, p.Details)
	}
	return fmt.Sprintf("project %s has an invalid dependency graph: %s", e.ProjectID, strings.Join(details, "; "))
}

func (e *InvalidGraphError) Unwrap() []error {
	seen := make(map[error]bool)
	var out []error
	for _, p := range e.Problems {
		if s := p.Type.sentinel(); s != nil && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ValidateProject validates a loaded project and returns an
// *InvalidGraphError when the graph is broken. Its signature matches
// task.LoadValidator.
func ValidateProject(projectID string, tasks []task.Task, edges []task.Dependency) error {
	v := Validate(tasks, edges)
	if v.Valid {
		return nil
	}
	return &InvalidGraphError{ProjectID: projectID, Problems: v.Problems}
}

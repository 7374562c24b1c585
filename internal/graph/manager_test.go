package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// newTestManager returns a Manager over a MemoryStore seeded with tasks in
// project "p" plus one task "other" in project "q". Edge IDs are e1, e2, ...
func newTestManager(t *testing.T, ids ...string) (*Manager, *task.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := task.NewMemoryStore()
	for _, id := range ids {
		_, err := store.SaveTask(ctx, task.Task{ID: id, ProjectID: "p", Code: "P-" + id, DurationDays: 1})
		require.NoError(t, err)
	}
	_, err := store.SaveTask(ctx, task.Task{ID: "other", ProjectID: "q", DurationDays: 1})
	require.NoError(t, err)

	m := NewManager(store, nil)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
	m.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return m, store
}

func TestManager_AddEdge_Success(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, "a", "b")
	ctx := context.Background()

	dep, err := m.AddEdge(ctx, "b", "a", "", 2)
	require.NoError(t, err)
	assert.Equal(t, "e1", dep.ID)
	assert.Equal(t, "p", dep.ProjectID)
	assert.Equal(t, "b", dep.TaskID)
	assert.Equal(t, "a", dep.DependsOnTaskID)
	assert.Equal(t, task.FinishToStart, dep.Type, "empty type defaults to finish_to_start")
	assert.Equal(t, 2, dep.LagDays)
	assert.False(t, dep.CreatedAt.IsZero())

	edges, err := m.EdgesForProject(ctx, "p")
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestManager_AddEdge_NegativeLagCoerced(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, "a", "b")
	dep, err := m.AddEdge(context.Background(), "b", "a", task.StartToStart, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, dep.LagDays)
	assert.Equal(t, task.StartToStart, dep.Type)
}

func TestManager_AddEdge_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    [][2]string
		succ     string
		pred     string
		depType  task.DependencyType
		sentinel error
		check    func(t *testing.T, err error)
	}{
		{
			name:     "self dependency",
			succ:     "a",
			pred:     "a",
			sentinel: task.ErrSelfDependency,
		},
		{
			name:     "duplicate pair",
			setup:    [][2]string{{"b", "a"}},
			succ:     "b",
			pred:     "a",
			depType:  task.FinishToFinish,
			sentinel: task.ErrDuplicateDependency,
			check: func(t *testing.T, err error) {
				var dup *task.DuplicateDependencyError
				require.True(t, errors.As(err, &dup))
				assert.Equal(t, "e1", dup.ExistingID)
			},
		},
		{
			name:     "direct reverse cycle",
			setup:    [][2]string{{"b", "a"}},
			succ:     "a",
			pred:     "b",
			sentinel: task.ErrCyclicDependency,
		},
		{
			name:     "transitive cycle",
			setup:    [][2]string{{"b", "a"}, {"c", "b"}},
			succ:     "a",
			pred:     "c",
			sentinel: task.ErrCyclicDependency,
			check: func(t *testing.T, err error) {
				var cyc *task.CyclicDependencyError
				require.True(t, errors.As(err, &cyc))
				ids := make([]string, len(cyc.Path))
				for i, r := range cyc.Path {
					ids[i] = r.ID
				}
				assert.Equal(t, []string{"c", "b", "a"}, ids)
				assert.Contains(t, err.Error(), "P-a -> P-c -> P-b -> P-a")
			},
		},
		{
			name:     "missing successor",
			succ:     "missing",
			pred:     "a",
			sentinel: task.ErrTaskNotFound,
		},
		{
			name:     "missing predecessor",
			succ:     "a",
			pred:     "missing",
			sentinel: task.ErrTaskNotFound,
		},
		{
			name:     "cross project",
			succ:     "a",
			pred:     "other",
			sentinel: task.ErrTaskNotFound,
		},
		{
			name:     "unknown type",
			succ:     "b",
			pred:     "a",
			depType:  "lead_to_lag",
			sentinel: task.ErrInvalidDependencyType,
		},
		{
			name:     "missing task checked before type",
			succ:     "missing",
			pred:     "a",
			depType:  "lead_to_lag",
			sentinel: task.ErrTaskNotFound,
		},
		{
			name:     "self link checked before type",
			succ:     "a",
			pred:     "a",
			depType:  "lead_to_lag",
			sentinel: task.ErrSelfDependency,
		},
		{
			name:     "cycle checked before type",
			setup:    [][2]string{{"b", "a"}},
			succ:     "a",
			pred:     "b",
			depType:  "lead_to_lag",
			sentinel: task.ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, store := newTestManager(t, "a", "b", "c")
			ctx := context.Background()
			for _, pair := range tt.setup {
				_, err := m.AddEdge(ctx, pair[0], pair[1], task.FinishToStart, 0)
				require.NoError(t, err)
			}

			_, err := m.AddEdge(ctx, tt.succ, tt.pred, tt.depType, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			if tt.check != nil {
				tt.check(t, err)
			}

			edges, err := store.GetEdgesForProject(ctx, "p")
			require.NoError(t, err)
			assert.Len(t, edges, len(tt.setup), "a rejected request must not write")
		})
	}
}

func TestManager_RemoveEdge(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t, "a", "b")
	ctx := context.Background()
	start := task.MustParseDate("2024-03-04")
	_, err := store.SaveTask(ctx, task.Task{ID: "b", ProjectID: "p", StartDate: &start, DurationDays: 1})
	require.NoError(t, err)

	dep, err := m.AddEdge(ctx, "b", "a", task.FinishToStart, 0)
	require.NoError(t, err)

	removed, err := m.RemoveEdge(ctx, dep.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.RemoveEdge(ctx, dep.ID)
	require.NoError(t, err)
	assert.False(t, removed, "removing an unknown edge reports false")

	b, err := store.GetTask(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", b.StartDate.String(), "removal never touches dates")

	// The pair can be linked again once removed.
	_, err = m.AddEdge(ctx, "b", "a", task.FinishToStart, 0)
	assert.NoError(t, err)
}

func TestManager_GraphForProject(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, "a", "b", "c")
	ctx := context.Background()
	_, err := m.AddEdge(ctx, "b", "a", "", 0)
	require.NoError(t, err)
	_, err = m.AddEdge(ctx, "c", "b", "", 0)
	require.NoError(t, err)

	g, err := m.GraphForProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))
}

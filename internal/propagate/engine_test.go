package propagate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// fixture builds a MemoryStore for project "p".
type fixture struct {
	t     *testing.T
	store *task.MemoryStore
	n     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, store: task.NewMemoryStore()}
}

func (f *fixture) task(id, start string, dur int) {
	f.t.Helper()
	tk := task.Task{ID: id, ProjectID: "p", Code: "P-" + id, DurationDays: dur, SortOrder: f.n}
	f.n++
	if start != "" {
		d := task.MustParseDate(start)
		tk.StartDate = &d
	}
	_, err := f.store.SaveTask(context.Background(), tk)
	require.NoError(f.t, err)
}

func (f *fixture) link(id, successor, predecessor string, typ task.DependencyType, lag int) {
	f.t.Helper()
	_, err := f.store.SaveEdge(context.Background(), task.Dependency{
		ID: id, ProjectID: "p", TaskID: successor, DependsOnTaskID: predecessor, Type: typ, LagDays: lag,
	})
	require.NoError(f.t, err)
}

func (f *fixture) start(id string) string {
	f.t.Helper()
	tk, err := f.store.GetTask(context.Background(), id)
	require.NoError(f.t, err)
	return task.FormatDate(tk.StartDate)
}

func TestRecalculateProject_WorkedExample(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("t1", "2024-01-01", 2)
	f.task("t2", "", 3)
	f.link("e1", "t2", "t1", task.FinishToStart, 0)

	res, err := NewEngine(f.store).RecalculateProject(context.Background(), "p")
	require.NoError(t, err)

	t1, err := f.store.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", t1.EndDate().String())

	t2, err := f.store.GetTask(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", t2.StartDate.String())
	assert.Equal(t, "2024-01-05", t2.EndDate().String())

	require.Len(t, res.Changes, 1)
	assert.Equal(t, "t2", res.Changes[0].TaskID)
	assert.Equal(t, "P-t2", res.Changes[0].Code)
	assert.Nil(t, res.Changes[0].From)
	assert.Equal(t, "2024-01-03", res.Changes[0].To.String())
	assert.Equal(t, 2, res.Scheduled)
	assert.Equal(t, 0, res.Unscheduled)
	assert.True(t, res.Changed())
}

func TestRecalculateProject_Chain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lagAB int
		wantB string
		wantC string
	}{
		{name: "no lag", lagAB: 0, wantB: "2024-05-02", wantC: "2024-05-03"},
		{name: "lag on first link", lagAB: 3, wantB: "2024-05-05", wantC: "2024-05-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.task("c", "", 1)
			f.task("b", "", 1)
			f.task("a", "2024-05-01", 1)
			f.link("e1", "b", "a", task.FinishToStart, tt.lagAB)
			f.link("e2", "c", "b", task.FinishToStart, 0)

			_, err := NewEngine(f.store).RecalculateProject(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, "2024-05-01", f.start("a"))
			assert.Equal(t, tt.wantB, f.start("b"))
			assert.Equal(t, tt.wantC, f.start("c"))
		})
	}
}

func TestRecalculateProject_DeclaredStartOnlyPushedLater(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("a", "2024-01-01", 1)
	f.task("late", "2024-03-01", 1)
	f.task("early", "2023-12-01", 1)
	f.link("e1", "late", "a", task.FinishToStart, 0)
	f.link("e2", "early", "a", task.FinishToStart, 0)

	_, err := NewEngine(f.store).RecalculateProject(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", f.start("late"), "a later declared start wins")
	assert.Equal(t, "2024-01-02", f.start("early"), "an earlier declared start is pushed")
}

func TestRecalculateProject_LatestPredecessorWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("a", "2024-01-01", 5)
	f.task("b", "2024-01-01", 1)
	f.task("c", "", 1)
	f.link("e1", "c", "a", task.FinishToStart, 0)
	f.link("e2", "c", "b", task.FinishToStart, 10)

	_, err := NewEngine(f.store).RecalculateProject(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-12", f.start("c"))
}

func TestRecalculateProject_UnscheduledTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("loose", "", 1)
	f.task("root", "", 2)
	f.task("child", "", 2)
	f.link("e1", "child", "root", task.FinishToStart, 0)

	res, err := NewEngine(f.store).RecalculateProject(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "-", f.start("loose"), "unconstrained tasks stay unscheduled")
	assert.Equal(t, "-", f.start("child"), "an unscheduled predecessor contributes no candidate")
	assert.Equal(t, 3, res.Unscheduled)
	assert.Empty(t, res.Changes)
}

func TestRecalculateProject_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("a", "2024-01-01", 3)
	f.task("b", "", 2)
	f.task("c", "2024-01-02", 1)
	f.task("d", "", 4)
	f.link("e1", "b", "a", task.FinishToStart, 1)
	f.link("e2", "d", "b", task.FinishToStart, 0)
	f.link("e3", "d", "c", task.FinishToStart, 0)

	eng := NewEngine(f.store)
	first, err := eng.RecalculateProject(context.Background(), "p")
	require.NoError(t, err)
	snapshot := []string{f.start("a"), f.start("b"), f.start("c"), f.start("d")}

	second, err := eng.RecalculateProject(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, snapshot, []string{f.start("a"), f.start("b"), f.start("c"), f.start("d")})
	assert.Empty(t, second.Changes)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestPreview_DoesNotWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("a", "2024-01-01", 1)
	f.task("b", "", 1)
	f.link("e1", "b", "a", task.FinishToStart, 0)

	eng := NewEngine(f.store)
	preview, err := eng.Preview(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, preview.DryRun)
	require.Len(t, preview.Changes, 1)
	assert.Equal(t, "-", f.start("b"))

	res, err := eng.RecalculateProject(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, preview.Fingerprint, res.Fingerprint, "preview predicts the applied result")
	assert.Equal(t, "2024-01-02", f.start("b"))
}

func TestRecalculateProject_DependencyTypes(t *testing.T) {
	t.Parallel()

	// Predecessor a runs 2024-01-10..2024-01-13 (4 days); successor b lasts 3 days.
	tests := []struct {
		name  string
		typ   task.DependencyType
		lag   int
		honor bool
		wantB string
	}{
		{name: "fs default", typ: task.FinishToStart, wantB: "2024-01-14"},
		{name: "ss ignored by default", typ: task.StartToStart, wantB: "2024-01-14"},
		{name: "ff ignored by default", typ: task.FinishToFinish, wantB: "2024-01-14"},
		{name: "fs honoured", typ: task.FinishToStart, honor: true, wantB: "2024-01-14"},
		{name: "ss honoured", typ: task.StartToStart, honor: true, wantB: "2024-01-10"},
		{name: "ss honoured with lag", typ: task.StartToStart, lag: 2, honor: true, wantB: "2024-01-12"},
		{name: "ff honoured", typ: task.FinishToFinish, honor: true, wantB: "2024-01-11"},
		{name: "sf honoured", typ: task.StartToFinish, lag: 5, honor: true, wantB: "2024-01-13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.task("a", "2024-01-10", 4)
			f.task("b", "2024-01-01", 3)
			f.link("e1", "b", "a", tt.typ, tt.lag)

			eng := NewEngine(f.store, WithDependencyTypes(tt.honor))
			assert.Equal(t, tt.honor, eng.HonorsDependencyTypes())
			_, err := eng.RecalculateProject(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, tt.wantB, f.start("b"))
		})
	}
}

func TestCompute_CorruptedCycle(t *testing.T) {
	t.Parallel()

	tasks := []task.Task{
		{ID: "a", ProjectID: "p", Code: "A", DurationDays: 1},
		{ID: "b", ProjectID: "p", Code: "B", DurationDays: 1},
	}
	edges := []task.Dependency{
		{ID: "e1", TaskID: "b", DependsOnTaskID: "a"},
		{ID: "e2", TaskID: "a", DependsOnTaskID: "b"},
	}

	_, err := NewEngine(task.NewMemoryStore()).Compute(context.Background(), tasks, edges)
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrCyclicDependency)
	assert.Contains(t, err.Error(), "A -> B -> A")
}

func TestCompute_DanglingPredecessor(t *testing.T) {
	t.Parallel()

	tasks := []task.Task{{ID: "a", ProjectID: "p", DurationDays: 1}}
	edges := []task.Dependency{{ID: "e1", TaskID: "a", DependsOnTaskID: "ghost"}}

	_, err := NewEngine(task.NewMemoryStore()).Compute(context.Background(), tasks, edges)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestCompute_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(task.NewMemoryStore()).Compute(ctx, []task.Task{{ID: "a"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// flakyStore fails SaveTask after a fixed number of successful writes.
type flakyStore struct {
	*task.MemoryStore
	allowed int32
	writes  atomic.Int32
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) SaveTask(ctx context.Context, t task.Task) (*task.Task, error) {
	if s.writes.Add(1) > s.allowed {
		return nil, errDiskFull
	}
	return s.MemoryStore.SaveTask(ctx, t)
}

func TestRecalculateProject_WriteFailureRestores(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.task("a", "2024-01-01", 1)
	f.task("b", "", 1)
	f.task("c", "", 1)
	f.link("e1", "b", "a", task.FinishToStart, 0)
	f.link("e2", "c", "b", task.FinishToStart, 0)

	// One write succeeds (b), the second (c) fails, then the restore of b is
	// let through by raising the allowance.
	store := &flakyStore{MemoryStore: f.store, allowed: 1}
	eng := NewEngine(&restoringStore{flakyStore: store})

	_, err := eng.RecalculateProject(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, "-", f.start("b"), "partial writes are rolled back")
	assert.Equal(t, "-", f.start("c"))
}

// restoringStore lets writes through again once the first failure occurred.
type restoringStore struct {
	*flakyStore
	failed atomic.Bool
}

func (s *restoringStore) SaveTask(ctx context.Context, t task.Task) (*task.Task, error) {
	if s.failed.Load() {
		return s.MemoryStore.SaveTask(ctx, t)
	}
	saved, err := s.flakyStore.SaveTask(ctx, t)
	if err != nil {
		s.failed.Store(true)
	}
	return saved, err
}

package task

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDoc writes a project document fixture into dir.
func writeDoc(t *testing.T, dir, rel string, doc projectDoc) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestOpenFileStore_MissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "does-not-exist")
	s, err := OpenFileStore(dir)
	require.NoError(t, err)

	ids, err := s.ProjectIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOpenFileStore_NotADirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := OpenFileStore(path)
	assert.Error(t, err)
}

func TestOpenFileStore_LoadsNestedDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	start := MustParseDate("2024-01-01")
	writeDoc(t, dir, "web.json", projectDoc{
		Version:   1,
		ProjectID: "web",
		Tasks: []Task{
			{ID: "t1", Code: "WEB-1", StartDate: &start, DurationDays: 2},
			{ID: "t2", Code: "WEB-2", DurationDays: 0, ProgressPercent: 140},
		},
		Dependencies: []Dependency{{ID: "e1", TaskID: "t2", DependsOnTaskID: "t1", LagDays: -2}},
	})
	writeDoc(t, dir, "team/api.json", projectDoc{
		Version: 1,
		Tasks:   []Task{{ID: "a1", DurationDays: 1}},
	})

	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	ids, err := s.ProjectIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"team/api", "web"}, ids, "project ID defaults to the relative path")

	t2, err := s.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "web", t2.ProjectID)
	assert.Equal(t, 1, t2.DurationDays, "duration is normalised on load")
	assert.Equal(t, 100, t2.ProgressPercent, "progress is normalised on load")

	edges, err := s.GetEdgesForProject(ctx, "web")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0, edges[0].LagDays)
	assert.Equal(t, FinishToStart, edges[0].Type)
	assert.Equal(t, "web", edges[0].ProjectID)
}

func TestOpenFileStore_EmptyStartDateLoadsUnscheduled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	raw := `{"version":1,"project_id":"web","tasks":[{"id":"t1","project_id":"web","start_date":"","duration_days":2}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "web.json"), []byte(raw), 0o644))

	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	got, err := s.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, got.StartDate)
}

func TestOpenFileStore_DuplicateTaskAcrossProjects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDoc(t, dir, "a.json", projectDoc{ProjectID: "a", Tasks: []Task{{ID: "t1"}}})
	writeDoc(t, dir, "b.json", projectDoc{ProjectID: "b", Tasks: []Task{{ID: "t1"}}})

	_, err := OpenFileStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined")
}

func TestOpenFileStore_CorruptDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := OpenFileStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestOpenFileStore_ValidatorRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDoc(t, dir, "web.json", projectDoc{ProjectID: "web", Tasks: []Task{{ID: "t1"}}})

	sentinel := errors.New("graph is broken")
	var seen string
	_, err := OpenFileStore(dir, WithLoadValidator(func(projectID string, tasks []Task, edges []Dependency) error {
		seen = projectID
		return sentinel
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "web", seen)
}

func TestFileStore_SaveTask_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	start := MustParseDate("2024-02-01")
	_, err = s.SaveTask(ctx, Task{ID: "t1", ProjectID: "web", Code: "WEB-1", StartDate: &start, DurationDays: 3})
	require.NoError(t, err)
	_, err = s.SaveEdge(ctx, Dependency{ID: "e1", ProjectID: "web", TaskID: "t1", DependsOnTaskID: "t0", Type: FinishToStart})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "web.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "web.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	reopened, err := OpenFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", got.StartDate.String())
	assert.Equal(t, 3, got.DurationDays)

	edges, err := reopened.GetEdgesForProject(ctx, "web")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e1", edges[0].ID)
}

func TestFileStore_DeleteEdge(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	_, err = s.SaveEdge(ctx, Dependency{ID: "e1", ProjectID: "web", TaskID: "b", DependsOnTaskID: "a"})
	require.NoError(t, err)

	removed, err := s.DeleteEdge(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteEdge(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, removed)

	reopened, err := OpenFileStore(dir)
	require.NoError(t, err)
	edges, err := reopened.GetEdgesForProject(ctx, "web")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestFileStore_RejectsUnsafeProjectID(t *testing.T) {
	t.Parallel()

	s, err := OpenFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"../escape", "/abs", "a/../b", ""} {
		_, err := s.SaveTask(ctx, Task{ID: "t1", ProjectID: id})
		assert.Error(t, err, "project %q", id)
	}
}

func TestFileStore_FailedFlushRollsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	s, err := OpenFileStore(dir)
	require.NoError(t, err)

	_, err = s.SaveTask(ctx, Task{ID: "t1", ProjectID: "web", DurationDays: 1})
	require.NoError(t, err)

	// Block the document path with a directory so the rename fails.
	blocked := filepath.Join(dir, "web.json")
	require.NoError(t, os.Remove(blocked))
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))

	_, err = s.SaveTask(ctx, Task{ID: "t1", ProjectID: "web", DurationDays: 9})
	require.Error(t, err)

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.DurationDays, "in-memory state must match the last persisted state")

	_, err = s.SaveEdge(ctx, Dependency{ID: "e1", ProjectID: "web", TaskID: "t1", DependsOnTaskID: "t0"})
	require.Error(t, err)
	edges, err := s.GetEdgesForProject(ctx, "web")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

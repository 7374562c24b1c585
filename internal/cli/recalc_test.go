package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/propagate"
)

// apiPlan is a second project: API-2 waits on API-1 (Feb 1-2).
const apiPlan = `project: api
tasks:
  - code: API-1
    start_date: 2024-02-01
    duration_days: 2
  - code: API-2
dependencies:
  - task: API-2
    depends_on: API-1
`

// brokenProject is a stored project whose two tasks depend on each other.
const brokenProject = `{
  "version": 1,
  "project_id": "bad",
  "tasks": [
    {"id": "bad-a", "project_id": "bad", "code": "A", "title": "", "duration_days": 1, "progress_percent": 0, "is_milestone": false, "sort_order": 0},
    {"id": "bad-b", "project_id": "bad", "code": "B", "title": "", "duration_days": 1, "progress_percent": 0, "is_milestone": false, "sort_order": 0}
  ],
  "dependencies": [
    {"id": "e1", "project_id": "bad", "task_id": "bad-a", "depends_on_task_id": "bad-b", "type": "finish_to_start", "lag_days": 0, "created_at": "2024-01-01T00:00:00Z"},
    {"id": "e2", "project_id": "bad", "task_id": "bad-b", "depends_on_task_id": "bad-a", "type": "finish_to_start", "lag_days": 0, "created_at": "2024-01-01T00:00:00Z"}
  ]
}
`

func TestRecalcCmd_DefaultProject(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)

	_, stderr, err := ws.run(t, "recalc")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Project web: 3 task(s), 2 moved")
	assert.Contains(t, stderr, "2024-01-01 -> 2024-01-04")
	assert.Contains(t, stderr, "2024-01-01 -> 2024-01-08")

	assert.Equal(t, "2024-01-04", ws.startOf(t, "WEB-2"))
	assert.Equal(t, "2024-01-08", ws.startOf(t, "WEB-3"))

	_, stderr, err = ws.run(t, "recalc", "web")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Project web: 3 task(s), 0 moved", "a second pass changes nothing")
}

func TestRecalcCmd_DryRun(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)

	stdout := ws.mustRun(t, "recalc", "--dry-run", "--json")

	var res propagate.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.DryRun)
	assert.Len(t, res.Changes, 2)
	assert.Equal(t, 3, res.Scheduled)

	assert.Equal(t, "2024-01-01", ws.startOf(t, "WEB-2"), "dry run writes nothing")

	_, stderr, err := ws.run(t, "recalc", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stderr, "2 would move")
}

func TestRecalcCmd_UnscheduledNote(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, `project: web
tasks:
  - code: A
  - code: B
dependencies:
  - task: B
    depends_on: A
`)

	_, stderr, err := ws.run(t, "recalc")
	require.NoError(t, err)
	assert.Contains(t, stderr, "0 moved")
	assert.Contains(t, stderr, "2 unscheduled task(s) left without a start date")
}

func TestRecalcCmd_All(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)
	ws.importPlan(t, apiPlan)

	stdout := ws.mustRun(t, "recalc", "--all", "--concurrency", "2", "--json")

	var results []propagate.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "api", results[0].ProjectID)
	assert.Len(t, results[0].Changes, 1)
	assert.Equal(t, "web", results[1].ProjectID)
	assert.Len(t, results[1].Changes, 2)

	assert.Equal(t, "2024-01-08", ws.startOf(t, "WEB-3"))
}

func TestRecalcCmd_AllDryRun(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)
	ws.importPlan(t, apiPlan)

	_, stderr, err := ws.run(t, "recalc", "--all", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Project api: 2 task(s), 1 would move")
	assert.Contains(t, stderr, "Project web: 3 task(s), 2 would move")
	assert.Equal(t, "2024-01-01", ws.startOf(t, "WEB-2"))
}

func TestRecalcCmd_AllEmptyStore(t *testing.T) {
	ws := newTestWorkspace(t)

	_, stderr, err := ws.run(t, "recalc", "--all")
	require.NoError(t, err)
	assert.Contains(t, stderr, "No projects found.")
}

func TestRecalcCmd_Errors(t *testing.T) {
	t.Run("all with project", func(t *testing.T) {
		ws := newTestWorkspace(t)
		_, _, err := ws.run(t, "recalc", "web", "--all")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--all cannot be combined")
	})

	t.Run("no default project", func(t *testing.T) {
		ws := newTestWorkspace(t)
		ws.writeFile(t, "pacer.toml", fmt.Sprintf("[project]\nstore_dir = %q\n", ws.StoreDir))
		_, _, err := ws.run(t, "recalc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no project given")
	})

	t.Run("broken stored graph", func(t *testing.T) {
		ws := newTestWorkspace(t)
		ws.writeFile(t, "store/bad.json", brokenProject)
		_, _, err := ws.run(t, "recalc", "bad")
		require.Error(t, err)
		var ig *graph.InvalidGraphError
		require.True(t, errors.As(err, &ig))
		assert.Equal(t, "bad", ig.ProjectID)
	})
}

package main_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace is an isolated directory with a freshly built pacer binary.
type workspace struct {
	Dir        string
	BinaryPath string
	t          *testing.T
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	return &workspace{Dir: t.TempDir(), BinaryPath: buildPacer(t), t: t}
}

func (w *workspace) run(args ...string) *exec.Cmd {
	cmd := exec.Command(w.BinaryPath, args...)
	cmd.Dir = w.Dir
	cmd.Env = append(os.Environ(),
		"NO_COLOR=1",
		"PACER_LOG_FORMAT=json",
	)
	return cmd
}

// runExpectSuccess runs pacer, asserts exit code 0 and returns stdout.
func (w *workspace) runExpectSuccess(args ...string) string {
	w.t.Helper()
	cmd := w.run(args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	require.NoError(w.t, err, "pacer %v failed:\n%s%s", args, out, stderr.String())
	return string(out)
}

// runExpectFailure runs pacer, asserts a non-zero exit code and returns the
// combined output.
func (w *workspace) runExpectFailure(args ...string) (string, int) {
	w.t.Helper()
	out, err := w.run(args...).CombinedOutput()
	require.Error(w.t, err, "pacer %v expected to fail but succeeded:\n%s", args, out)
	var exitErr *exec.ExitError
	require.True(w.t, errors.As(err, &exitErr), "expected *exec.ExitError, got %T: %v", err, err)
	return string(out), exitErr.ExitCode()
}

func (w *workspace) writeFile(rel, content string) {
	w.t.Helper()
	path := filepath.Join(w.Dir, rel)
	require.NoError(w.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(w.t, os.WriteFile(path, []byte(content), 0o644))
}

// timelineTask mirrors the JSON emitted by "pacer timeline --json".
type timelineTask struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// starts returns code -> start date from "pacer timeline --json".
func (w *workspace) starts(project string) map[string]string {
	w.t.Helper()
	out := w.runExpectSuccess("timeline", project, "--json")
	var tl struct {
		Tasks []timelineTask `json:"tasks"`
	}
	require.NoError(w.t, json.Unmarshal([]byte(out), &tl), "timeline output: %s", out)
	got := make(map[string]string, len(tl.Tasks))
	for _, task := range tl.Tasks {
		got[task.Code] = task.StartDate
	}
	return got
}

// chainPlan returns a YAML plan of n one-day tasks, each depending on the
// previous one. Only the first task is scheduled.
func chainPlan(project string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "project: %s\ntasks:\n", project)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "  - code: T-%d\n    duration_days: 1\n    sort_order: %d\n", i, i)
		if i == 1 {
			sb.WriteString("    start_date: 2024-01-01\n")
		} else {
			sb.WriteString("    start_date: 2023-12-01\n")
		}
	}
	sb.WriteString("dependencies:\n")
	for i := 2; i <= n; i++ {
		fmt.Fprintf(&sb, "  - task: T-%d\n    depends_on: T-%d\n", i, i-1)
	}
	return sb.String()
}

func TestE2E_VersionJSON(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out := w.runExpectSuccess("version", "--json")
	assert.Contains(t, out, `"version"`)
	assert.Contains(t, out, `"commit"`)
}

func TestE2E_InitImportRecalcTimeline(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	w.runExpectSuccess("init", "--name", "demo")
	require.FileExists(t, filepath.Join(w.Dir, "pacer.toml"))
	require.FileExists(t, filepath.Join(w.Dir, "plan.yaml"))

	out := w.runExpectSuccess("import", "plan.yaml", "--recalc", "--json")
	var res struct {
		Import struct {
			Created    []string `json:"created"`
			EdgesAdded int      `json:"edges_added"`
		} `json:"import"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"PLAN-1", "PLAN-2", "PLAN-3"}, res.Import.Created)
	assert.Equal(t, 2, res.Import.EdgesAdded)
	require.FileExists(t, filepath.Join(w.Dir, ".pacer", "projects", "demo.json"))

	// PLAN-1 covers Jan 1-2, so the unscheduled PLAN-2 lands on Jan 3 and
	// runs to Jan 7; one day of lag puts PLAN-3 on Jan 9.
	starts := w.starts("demo")
	assert.Equal(t, "2024-01-01", starts["PLAN-1"])
	assert.Equal(t, "2024-01-03", starts["PLAN-2"])
	assert.Equal(t, "2024-01-09", starts["PLAN-3"])

	// Stretching the root pushes everything after it.
	w.runExpectSuccess("set", "PLAN-1", "--duration", "4")
	starts = w.starts("demo")
	assert.Equal(t, "2024-01-05", starts["PLAN-2"])
	assert.Equal(t, "2024-01-11", starts["PLAN-3"])

	// Shrinking it back never pulls dependents earlier.
	w.runExpectSuccess("set", "PLAN-1", "--duration", "1")
	starts = w.starts("demo")
	assert.Equal(t, "2024-01-05", starts["PLAN-2"])
	assert.Equal(t, "2024-01-11", starts["PLAN-3"])
}

func TestE2E_LinkRejections(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeFile("plan.yaml", chainPlan("chain", 3))
	w.runExpectSuccess("import", "plan.yaml")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "cycle", args: []string{"link", "T-1", "T-3", "-p", "chain"}, want: "cyclic dependency"},
		{name: "self", args: []string{"link", "T-2", "T-2", "-p", "chain"}, want: "self dependency"},
		{name: "duplicate", args: []string{"link", "T-2", "T-1", "-p", "chain"}, want: "duplicate dependency"},
		{name: "bad type", args: []string{"link", "T-3", "T-1", "-p", "chain", "--type", "sometimes"}, want: "invalid dependency type"},
		{name: "unknown task", args: []string{"link", "T-9", "T-1", "-p", "chain"}, want: "not found"},
	}
	for _, tt := range tests {
		out, code := w.runExpectFailure(tt.args...)
		assert.Equal(t, 1, code, tt.name)
		assert.Contains(t, out, tt.want, tt.name)
	}

	out := w.runExpectSuccess("check", "chain", "--json")
	assert.Contains(t, out, `"valid": true`)
}

func TestE2E_LinkUnlinkAndRecalc(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeFile("plan.yaml", `project: web
tasks:
  - code: A
    start_date: 2024-03-01
    duration_days: 3
  - code: B
    start_date: 2024-03-01
    duration_days: 2
`)
	w.runExpectSuccess("import", "plan.yaml")
	w.runExpectSuccess("link", "B", "A", "--lag", "1", "-p", "web")

	// Linking does not move dates on its own.
	assert.Equal(t, "2024-03-01", w.starts("web")["B"])

	w.runExpectSuccess("recalc", "web", "--dry-run")
	assert.Equal(t, "2024-03-01", w.starts("web")["B"])

	w.runExpectSuccess("recalc", "web")
	assert.Equal(t, "2024-03-05", w.starts("web")["B"])

	// Removing the link keeps the pushed date.
	w.runExpectSuccess("unlink", "B", "A", "-p", "web")
	assert.Equal(t, "2024-03-05", w.starts("web")["B"])
	out := w.runExpectSuccess("timeline", "web", "--json")
	assert.Contains(t, out, `"dependencies": []`)
}

func TestE2E_ExportRoundTrip(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeFile("plan.yaml", chainPlan("rt", 4))
	w.runExpectSuccess("import", "plan.yaml", "--recalc")

	exported := w.runExpectSuccess("export", "rt")
	assert.Contains(t, exported, "project: rt")
	assert.Contains(t, exported, "depends_on: T-3")

	w.writeFile("export.yaml", exported)
	out := w.runExpectSuccess("import", "export.yaml", "--json")
	var res struct {
		Import struct {
			Created    []string `json:"created"`
			Updated    []string `json:"updated"`
			EdgesAdded int      `json:"edges_added"`
			EdgesKept  int      `json:"edges_kept"`
		} `json:"import"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Import.Created)
	assert.Len(t, res.Import.Updated, 4)
	assert.Zero(t, res.Import.EdgesAdded)
	assert.Equal(t, 3, res.Import.EdgesKept)
}

func TestE2E_CheckReportsBrokenStore(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeFile(".pacer/projects/bad.json", `{
  "version": 1,
  "project_id": "bad",
  "tasks": [
    {"id": "a", "project_id": "bad", "code": "A", "title": "", "duration_days": 1, "progress_percent": 0, "is_milestone": false, "sort_order": 0},
    {"id": "b", "project_id": "bad", "code": "B", "title": "", "duration_days": 1, "progress_percent": 0, "is_milestone": false, "sort_order": 0}
  ],
  "dependencies": [
    {"id": "e1", "project_id": "bad", "task_id": "a", "depends_on_task_id": "b", "type": "finish_to_start", "lag_days": 0, "created_at": "2024-01-01T00:00:00Z"},
    {"id": "e2", "project_id": "bad", "task_id": "b", "depends_on_task_id": "a", "type": "finish_to_start", "lag_days": 0, "created_at": "2024-01-01T00:00:00Z"}
  ]
}
`)

	out, code := w.runExpectFailure("check", "bad")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "[cycle]")

	// Everything else refuses to open a store with a broken graph.
	out, _ = w.runExpectFailure("timeline", "bad")
	assert.Contains(t, out, "invalid dependency graph")
}

func TestE2E_RecalcAllLargeChain(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeFile("a.yaml", chainPlan("alpha", 50))
	w.writeFile("b.yaml", chainPlan("beta", 20))
	w.runExpectSuccess("import", "a.yaml")
	w.runExpectSuccess("import", "b.yaml")

	out := w.runExpectSuccess("recalc", "--all", "--json", "--concurrency", "2")
	var results []struct {
		ProjectID string `json:"project_id"`
		Changes   []any  `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].ProjectID)
	assert.Len(t, results[0].Changes, 49)
	assert.Len(t, results[1].Changes, 19)

	assert.Equal(t, "2024-02-19", w.starts("alpha")["T-50"])
}

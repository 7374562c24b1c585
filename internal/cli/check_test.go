package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
)

func TestCheckCmd_Valid(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)

	stdout, _, err := ws.run(t, "check", "--order")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok project web: 3 task(s), 2 dependenc(ies), longest chain 2")
	assert.Contains(t, stdout, "  order: WEB-1, WEB-2, WEB-3")
}

func TestCheckCmd_OrderOnlyWhenAsked(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)

	stdout := ws.mustRun(t, "check", "web")
	assert.NotContains(t, stdout, "order:")
}

func TestCheckCmd_ReportsBrokenProject(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.writeFile(t, "store/bad.json", brokenProject)

	stdout, _, err := ws.run(t, "check", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 project(s) have dependency graph problems")
	assert.Contains(t, stdout, "invalid project bad:")
	assert.Contains(t, stdout, "[cycle]")
}

func TestCheckCmd_AllJSON(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.importPlan(t, webPlan)
	ws.writeFile(t, "store/bad.json", brokenProject)

	stdout, _, err := ws.run(t, "check", "--all", "--json")
	require.Error(t, err, "an invalid project still fails the command")

	var reports []struct {
		ProjectID        string   `json:"project_id"`
		Tasks            int      `json:"tasks"`
		Dependencies     int      `json:"dependencies"`
		Valid            bool     `json:"valid"`
		TopologicalOrder []string `json:"topological_order"`
		Problems         []struct {
			Kind  string   `json:"kind"`
			Cycle []string `json:"cycle"`
		} `json:"problems"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 2)

	assert.Equal(t, "bad", reports[0].ProjectID)
	assert.False(t, reports[0].Valid)
	require.NotEmpty(t, reports[0].Problems)
	assert.Equal(t, "cycle", reports[0].Problems[0].Kind)
	assert.ElementsMatch(t, []string{"bad-a", "bad-b"}, reports[0].Problems[0].Cycle)

	assert.Equal(t, "web", reports[1].ProjectID)
	assert.True(t, reports[1].Valid)
	assert.Equal(t, 3, reports[1].Tasks)
	assert.Equal(t, 2, reports[1].Dependencies)
	assert.Len(t, reports[1].TopologicalOrder, 3)
}

func TestCheckCmd_AllWithProjectArg(t *testing.T) {
	ws := newTestWorkspace(t)

	_, _, err := ws.run(t, "check", "web", "--all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all cannot be combined")
}

func TestRenderCheckReport_EmptyValidProject(t *testing.T) {
	t.Parallel()

	r := checkReport{ProjectID: "empty", Validation: graph.Validate(nil, nil)}
	out := renderCheckReport(r, true)

	assert.Equal(t, "ok project empty: 0 task(s), 0 dependenc(ies), longest chain 0\n", out)
}

package cli

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/buildinfo"
)

// runVersion executes "pacer version [args...]" and returns stdout and stderr.
func runVersion(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetRootCmd(t)
	versionJSON = false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"version"}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd_Text(t *testing.T) {
	stdout, stderr, err := runVersion(t)
	require.NoError(t, err)

	assert.Equal(t, buildinfo.GetInfo().String()+"\n", stdout)
	assert.True(t, strings.HasPrefix(stdout, "pacer v"))
	assert.Empty(t, stderr)
}

func TestVersionCmd_JSON(t *testing.T) {
	stdout, _, err := runVersion(t, "--json")
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &fields))
	assert.Len(t, fields, 4)
	assert.Equal(t, buildinfo.GetInfo().Version, fields["version"])
	assert.Equal(t, buildinfo.Commit, fields["commit"])
	assert.Equal(t, buildinfo.Date, fields["date"])
	assert.Equal(t, runtime.Version(), fields["go_version"])
	assert.Contains(t, stdout, "\n  \"commit\"", "output is indented")
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	_, _, err := runVersion(t, "extra")
	assert.Error(t, err)
}

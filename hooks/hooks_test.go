package hooks

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSetupCIRendersValidWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".github", "workflows", "regression.yaml")
	require.NoError(t, SetupCI(zerolog.Nop(), path, CIParams{
		PullRequestBudget: "45m",
		OutputPath:        "out/report.json",
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "--max-duration 45m")
	assert.Contains(t, string(raw), "--output out/report.json")

	var workflow map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &workflow))
	assert.Contains(t, workflow, "jobs")
}

func TestSetupCIDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regression.yaml")
	require.NoError(t, SetupCI(zerolog.Nop(), path, CIParams{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "--max-duration 30m")
	assert.Contains(t, string(raw), "regression-report.json")
}

func TestInstallPreCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	init := exec.Command("git", "init")
	init.Dir = dir
	require.NoError(t, init.Run())

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, InstallPreCommit(zerolog.Nop()))

	raw, err := os.ReadFile(filepath.Join(dir, ".git", "hooks", "pre-commit"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "regrun pre-commit")

	info, err := os.Stat(filepath.Join(dir, ".git", "hooks", "pre-commit"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)
}

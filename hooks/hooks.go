// Package hooks installs the git pre-commit hook and generates a starter
// CI workflow. Both are thin templating conveniences over the real entry
// points, not part of the core pipeline.
package hooks

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const preCommitHook = `#!/bin/sh
# Installed by regrun. Runs the time-boxed pre-commit selection.
exec regrun pre-commit
`

const ciWorkflowTemplate = `name: regression
on:
  pull_request:
  schedule:
    - cron: "0 3 * * *"

jobs:
  pull-request:
    if: github.event_name == 'pull_request'
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
        with:
          fetch-depth: 0
      - name: Run regression selection
        run: regrun pull-request --max-duration {{ .PullRequestBudget }} --output {{ .OutputPath }}

  nightly:
    if: github.event_name == 'schedule'
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Run nightly sweep
        run: regrun nightly --output {{ .OutputPath }}
`

// CIParams fills the workflow template.
type CIParams struct {
	PullRequestBudget string
	OutputPath        string
}

// InstallPreCommit writes the pre-commit hook into the repository's
// .git/hooks directory.
func InstallPreCommit(logger zerolog.Logger) error {
	out, err := exec.Command("git", "rev-parse", "--git-dir").Output()
	if err != nil {
		return fmt.Errorf("not in a git repository: %w", err)
	}
	gitDir := strings.TrimSpace(string(out))

	hookPath := filepath.Join(gitDir, "hooks", "pre-commit")
	if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}
	if err := os.WriteFile(hookPath, []byte(preCommitHook), 0o755); err != nil {
		return fmt.Errorf("failed to write pre-commit hook: %w", err)
	}

	logger.Info().Str("path", hookPath).Msg("Installed pre-commit hook")
	return nil
}

// SetupCI renders the starter workflow to path, validating that the
// rendered template is well-formed YAML before writing it.
func SetupCI(logger zerolog.Logger, path string, params CIParams) error {
	if params.PullRequestBudget == "" {
		params.PullRequestBudget = "30m"
	}
	if params.OutputPath == "" {
		params.OutputPath = "regression-report.json"
	}

	tmpl, err := template.New("ci").Parse(ciWorkflowTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse CI template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return fmt.Errorf("failed to render CI template: %w", err)
	}

	var check map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &check); err != nil {
		return fmt.Errorf("rendered CI workflow is not valid YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create workflow directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write workflow: %w", err)
	}

	logger.Info().Str("path", path).Msg("Wrote CI workflow")
	return nil
}

package impact

// This file contains the version-control collaborator: resolving the set
// of changed files between a base reference and the working tree.

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangedFiles returns the files changed between baseRef and the working
// tree. When the primary diff fails it falls back to the staged changes,
// and finally to an empty set. It never returns an error: no changes is a
// valid selection input, not a failure.
func (a *Analyzer) ChangedFiles(baseRef string) []string {
	if out, err := a.gitDiff(baseRef); err == nil {
		return parseChangedPaths(out)
	} else {
		a.logger.Debug().Err(err).Str("base", baseRef).Msg("Diff against base failed, trying staged changes")
	}

	if out, err := a.gitDiff("--cached"); err == nil {
		return parseChangedPaths(out)
	} else {
		a.logger.Debug().Err(err).Msg("Staged diff failed, assuming no changes")
	}

	return nil
}

func (a *Analyzer) gitDiff(arg string) ([]byte, error) {
	cmd := exec.Command("git", "diff", arg)
	cmd.Dir = a.root
	return cmd.Output()
}

// parseChangedPaths extracts the post-change file paths from a unified
// diff. Deleted files contribute their original path so tests covering
// the deleted module are still considered affected.
func parseChangedPaths(raw []byte) []string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(raw)).ReadAllFiles()
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var paths []string
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "/dev/null" || name == "" {
			name = fd.OrigName
		}
		name = strings.TrimPrefix(name, "a/")
		name = strings.TrimPrefix(name, "b/")
		if name == "" || name == "/dev/null" || seen[name] {
			continue
		}
		seen[name] = true
		paths = append(paths, name)
	}
	return paths
}

// Package catalog discovers the project's test files by matching the
// declarative suite configurations against the tree, and enriches each
// discovered test with its historical statistics.
package catalog

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/regrun/regrun/history"
	"github.com/regrun/regrun/model"
)

// defaultEstimate is assumed for tests with no recorded history.
const defaultEstimate = 60 * time.Second

// Discover walks the tree under root and returns every file matched by a
// suite configuration, sorted by path. Matching is plain field comparison
// against the static suite list; nothing is inferred from file contents.
func Discover(logger zerolog.Logger, root string, suites []model.SuiteConfig) []model.TestFile {
	seen := map[string]bool{}
	var tests []model.TestFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			return nil
		}
		for _, s := range suites {
			if !matchesSuite(rel, s) {
				continue
			}
			seen[rel] = true
			tests = append(tests, model.TestFile{
				Path:     rel,
				Category: s.Category,
				Priority: s.Priority,
			})
			break
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Str("root", root).Msg("Test discovery walk failed")
	}

	sort.Slice(tests, func(i, j int) bool { return tests[i].Path < tests[j].Path })
	logger.Debug().Int("tests", len(tests)).Msg("Discovered test files")
	return tests
}

// Enrich fills in success rate, average duration, and run count from the
// history store. Unknown tests default to a perfect success rate and a
// fixed duration estimate so new tests are neither excluded nor free.
func Enrich(tests []model.TestFile, store *history.Store) []model.TestFile {
	out := make([]model.TestFile, len(tests))
	for i, t := range tests {
		t.Runs = store.RunCount(t.Path)
		t.SuccessRate = store.SuccessRate(t.Path)
		t.AvgDuration = store.AvgDuration(t.Path)
		if t.AvgDuration == 0 {
			t.AvgDuration = defaultEstimate
		}
		out[i] = t
	}
	return out
}

func matchesSuite(rel string, s model.SuiteConfig) bool {
	return s.Matches(model.TestFile{Path: rel, Category: s.Category})
}

func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__", ".regrun":
		return true
	}
	return false
}

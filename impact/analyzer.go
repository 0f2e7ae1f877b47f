// Package impact maps changed source files to the test files they affect,
// using naming conventions, path hierarchy, and a reverse import graph.
package impact

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/regrun/regrun/model"
)

// Analyzer computes the affected-test set for a change set.
type Analyzer struct {
	logger     zerolog.Logger
	root       string
	extractors []Extractor
}

// New returns an analyzer rooted at the project directory. The default
// extractors cover Go and Python sources; more can be supplied for other
// languages.
func New(logger zerolog.Logger, root string, extractors ...Extractor) *Analyzer {
	if len(extractors) == 0 {
		extractors = []Extractor{GoExtractor{}, PythonExtractor{}}
	}
	return &Analyzer{logger: logger, root: root, extractors: extractors}
}

// AffectedTests returns the union of (a) changed files that are themselves
// known test files, (b) test files whose names mirror a changed module by
// naming convention, and (c) test files matching the tail segments of a
// changed file's module path, widened by one level of reverse imports.
// An empty result is a valid answer, never an error.
func (a *Analyzer) AffectedTests(changed []string, catalog []model.TestFile) []model.TestFile {
	if len(changed) == 0 {
		return nil
	}

	byPath := make(map[string]model.TestFile, len(catalog))
	for _, t := range catalog {
		byPath[t.Path] = t
	}

	graph := a.BuildGraph()

	selected := map[string]bool{}
	for _, file := range changed {
		// Rule (a): the changed file is itself a test file.
		if _, ok := byPath[file]; ok {
			selected[file] = true
			continue
		}

		stems := []string{stem(file)}
		for _, importer := range graph.Importers(ModuleName(file)) {
			if seg := lastSegment(importer); seg != "" {
				stems = append(stems, seg)
			}
		}

		for _, t := range catalog {
			// Rule (b): naming conventions mirroring a changed module.
			for _, s := range stems {
				if matchesConvention(t.Path, s) {
					selected[t.Path] = true
				}
			}
			// Rule (c): path tail segments of the changed file appear
			// in the test path.
			for _, seg := range tailSegments(file) {
				if strings.Contains(t.Path, seg) {
					selected[t.Path] = true
				}
			}
		}
	}

	paths := make([]string, 0, len(selected))
	for p := range selected {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	affected := make([]model.TestFile, 0, len(paths))
	for _, p := range paths {
		affected = append(affected, byPath[p])
	}

	a.logger.Debug().
		Int("changed", len(changed)).
		Int("affected", len(affected)).
		Msg("Computed change impact")
	return affected
}

// matchesConvention reports whether a test file name mirrors a source
// module stem via the usual prefix/suffix variants.
func matchesConvention(testPath, moduleStem string) bool {
	if moduleStem == "" {
		return false
	}
	base := stem(testPath)
	switch base {
	case "test_" + moduleStem,
		moduleStem + "_test",
		moduleStem + "_tests",
		"test" + moduleStem,
		moduleStem + "test":
		return true
	}
	return false
}

// tailSegments returns the trailing directory segments of a path, deepest
// first, excluding the file itself.
func tailSegments(path string) []string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(dir, "/")
	segments := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" && parts[i] != "." {
			segments = append(segments, parts[i])
		}
	}
	return segments
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func lastSegment(module string) string {
	if i := strings.LastIndex(module, "."); i >= 0 {
		return module[i+1:]
	}
	return module
}

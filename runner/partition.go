package runner

// This file contains selection partitioning: tests are grouped by their
// governing suite, balanced with a longest-processing-time sort, and cut
// into batches sized for the worker pool.

import (
	"sort"

	"github.com/regrun/regrun/model"
)

// SuiteResolver maps a test file to its governing suite configuration.
type SuiteResolver func(model.TestFile) model.SuiteConfig

// Partition splits a selection into batches: one group per matched suite,
// each group sorted by descending estimated duration and chunked into
// ceil(len/workers)-sized batches. The union of the batches equals the
// selection and the batches are pairwise disjoint.
func Partition(selection model.TestSelection, resolve SuiteResolver, workers int) []model.TestBatch {
	if workers < 1 {
		workers = 1
	}

	groups := map[string][]model.TestFile{}
	suites := map[string]model.SuiteConfig{}
	var order []string
	for _, t := range selection.Tests {
		suite := resolve(t)
		if _, ok := suites[suite.Name]; !ok {
			suites[suite.Name] = suite
			order = append(order, suite.Name)
		}
		groups[suite.Name] = append(groups[suite.Name], t)
	}

	var batches []model.TestBatch
	id := 0
	for _, name := range order {
		group := groups[name]
		// Longest-processing-time first balances the chunks.
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].AvgDuration != group[j].AvgDuration {
				return group[i].AvgDuration > group[j].AvgDuration
			}
			return group[i].Path < group[j].Path
		})

		size := (len(group) + workers - 1) / workers
		for start := 0; start < len(group); start += size {
			end := start + size
			if end > len(group) {
				end = len(group)
			}
			batches = append(batches, model.TestBatch{
				ID:    id,
				Tests: group[start:end:end],
				Suite: suites[name],
			})
			id++
		}
	}
	return batches
}

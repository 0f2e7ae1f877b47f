// Package selector turns a trigger, a catalog snapshot, and a change set
// into a bounded TestSelection. Every strategy is a pure function of its
// inputs: identical inputs always produce identical selections.
package selector

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/regrun/regrun/model"
)

// Default time budgets per trigger.
const (
	DefaultCommitBudget      = 300 * time.Second
	DefaultPullRequestBudget = 1800 * time.Second
)

const (
	// maxCriticalFallback caps the minimal critical subset selected
	// when a commit introduces no detectable changes.
	maxCriticalFallback = 5
	// nightlyStabilityFloor excludes unstable tests from nightly sweeps.
	nightlyStabilityFloor = 0.8
	// auditSuccessCeiling selects candidates for a flakiness audit.
	auditSuccessCeiling = 0.9
	// auditMinRuns is the history depth required before a test can be
	// audited for flakiness.
	auditMinRuns = 5
)

// CommitTime selects a time-boxed set for local pre-commit validation.
// With no detected changes it falls back to a minimal critical subset;
// otherwise it greedily fills the budget with affected tests, discarding
// any single test that would eat more than a quarter of the budget.
func CommitTime(catalog, affected []model.TestFile, budget time.Duration) model.TestSelection {
	if budget <= 0 {
		budget = DefaultCommitBudget
	}

	if len(affected) == 0 {
		critical := filter(catalog, func(t model.TestFile) bool {
			return t.Priority == model.PriorityCritical
		})
		sort.SliceStable(critical, func(i, j int) bool {
			return critical[i].AvgDuration < critical[j].AvgDuration
		})
		if len(critical) > maxCriticalFallback {
			critical = critical[:maxCriticalFallback]
		}
		return newSelection(critical, "no changes detected; minimal critical subset", 0.9)
	}

	candidates := filter(affected, func(t model.TestFile) bool {
		return t.AvgDuration <= budget/4
	})
	SortByPriorityThenDuration(candidates)
	picked := GreedyFill(candidates, budget)
	return newSelection(picked, "tests affected by changed files, within commit budget", 0.85)
}

// PullRequest selects the union of affected tests and all critical and
// high priority tests, greedily filled under the review budget.
func PullRequest(catalog, affected []model.TestFile, budget time.Duration) model.TestSelection {
	if budget <= 0 {
		budget = DefaultPullRequestBudget
	}

	union := map[string]model.TestFile{}
	for _, t := range affected {
		union[t.Path] = t
	}
	for _, t := range catalog {
		if t.Priority == model.PriorityCritical || t.Priority == model.PriorityHigh {
			union[t.Path] = t
		}
	}

	candidates := make([]model.TestFile, 0, len(union))
	for _, t := range union {
		candidates = append(candidates, t)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.AvgDuration != b.AvgDuration {
			return a.AvgDuration < b.AvgDuration
		}
		return a.Path < b.Path
	})

	picked := GreedyFill(candidates, budget)
	return newSelection(picked, "affected tests plus critical and high priority coverage", 0.95)
}

// Nightly selects every known test with an acceptable historical success
// rate; unstable tests are excluded so the sweep stays signal, not noise.
func Nightly(catalog []model.TestFile) model.TestSelection {
	stable := filter(catalog, func(t model.TestFile) bool {
		return t.SuccessRate >= nightlyStabilityFloor
	})
	return newSelection(stable, "full nightly sweep of stable tests", 0.98)
}

// Release selects every known test regardless of stability.
func Release(catalog []model.TestFile) model.TestSelection {
	all := append([]model.TestFile(nil), catalog...)
	return newSelection(all, "complete corpus for release gate", 1.0)
}

// FlakinessAudit selects tests with a degraded success rate and enough
// history to be worth rerunning, least stable first.
func FlakinessAudit(catalog []model.TestFile) model.TestSelection {
	suspects := filter(catalog, func(t model.TestFile) bool {
		return t.SuccessRate < auditSuccessCeiling && t.Runs >= auditMinRuns
	})
	sort.SliceStable(suspects, func(i, j int) bool {
		return suspects[i].SuccessRate < suspects[j].SuccessRate
	})
	return newSelection(suspects, "tests with degraded success rate and sufficient history", 0.7)
}

// Custom selects tests whose path or base name matches any of the given
// glob patterns.
func Custom(catalog []model.TestFile, patterns []string) model.TestSelection {
	picked := filter(catalog, func(t model.TestFile) bool {
		for _, pat := range patterns {
			if ok, _ := path.Match(pat, t.Path); ok {
				return true
			}
			if ok, _ := path.Match(pat, path.Base(t.Path)); ok {
				return true
			}
		}
		return false
	})
	reason := fmt.Sprintf("tests matching patterns %v", patterns)
	return newSelection(picked, reason, 0.8)
}

// SortByPriorityThenDuration orders tests by ascending priority rank and
// ascending average duration, with path as the final tiebreaker.
func SortByPriorityThenDuration(tests []model.TestFile) {
	sort.SliceStable(tests, func(i, j int) bool {
		a, b := tests[i], tests[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.AvgDuration != b.AvgDuration {
			return a.AvgDuration < b.AvgDuration
		}
		return a.Path < b.Path
	})
}

// GreedyFill accumulates tests in order while the cumulative estimated
// duration stays within the budget. Tests that would push the total over
// the budget are skipped; accumulation never exceeds the budget.
func GreedyFill(sorted []model.TestFile, budget time.Duration) []model.TestFile {
	var picked []model.TestFile
	var total time.Duration
	for _, t := range sorted {
		if total+t.AvgDuration > budget {
			continue
		}
		picked = append(picked, t)
		total += t.AvgDuration
	}
	return picked
}

func filter(tests []model.TestFile, keep func(model.TestFile) bool) []model.TestFile {
	var out []model.TestFile
	for _, t := range tests {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func newSelection(tests []model.TestFile, reason string, confidence float64) model.TestSelection {
	var total time.Duration
	for _, t := range tests {
		total += t.AvgDuration
	}
	return model.TestSelection{
		Tests:             tests,
		Reason:            reason,
		Confidence:        confidence,
		EstimatedDuration: total,
	}
}

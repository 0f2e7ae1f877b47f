// Package flaky measures test instability two distinct ways: a live audit
// that reruns a single test and scores pass/fail transitions, and a
// historical classification over recorded success rates. The two must not
// be conflated; they answer different questions.
package flaky

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/regrun/regrun/history"
	"github.com/regrun/regrun/model"
	"github.com/regrun/regrun/runner"
)

const (
	// DefaultRuns is the rerun sample size for a live audit.
	DefaultRuns = 10
	// minHistoricalRuns is the history depth required before a test can
	// be scored at all. Below it the score is zero: insufficient data,
	// not "stable".
	minHistoricalRuns = 5
	// trendWindow is the number of recent runs the historical
	// classification considers.
	trendWindow = 10
)

// Historical classification bands over the mean success rate.
const (
	unstableCeiling = 0.2
	stableFloor     = 0.95
)

// AuditResult is the outcome of one live flakiness audit.
type AuditResult struct {
	Path string `json:"path"`
	// Runs actually executed
	Runs int `json:"runs"`
	// Statuses of each run, in execution order
	Statuses []model.Status `json:"statuses"`
	// Score is the transition rate over the sample, in [0, 1]
	Score float64 `json:"score"`
	// Skipped is set when the test lacked the history depth to audit
	Skipped bool `json:"skipped"`
}

// Score computes the flakiness score of a pass/fail sequence: the count
// of adjacent pass-fail transitions over the number of gaps, clamped to
// [0, 1]. Sequences shorter than two runs score zero.
func Score(statuses []model.Status) float64 {
	if len(statuses) < 2 {
		return 0
	}
	transitions := 0
	for i := 1; i < len(statuses); i++ {
		if statuses[i].Passed() != statuses[i-1].Passed() {
			transitions++
		}
	}
	score := float64(transitions) / float64(len(statuses)-1)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ClassifyTrend classifies a test's historical stability over its most
// recent runs: below the unstable ceiling it is unstable, at or above the
// stable floor it is stable, everything in between is flaky. With no
// recorded runs the classification is unknown.
func ClassifyTrend(successRates []float64) model.Stability {
	if len(successRates) == 0 {
		return model.StabilityUnknown
	}
	if len(successRates) > trendWindow {
		successRates = successRates[len(successRates)-trendWindow:]
	}
	var sum float64
	for _, r := range successRates {
		sum += r
	}
	rate := sum / float64(len(successRates))
	switch {
	case rate < unstableCeiling:
		return model.StabilityUnstable
	case rate >= stableFloor:
		return model.StabilityStable
	default:
		return model.StabilityFlaky
	}
}

// Analyzer runs live flakiness audits.
type Analyzer struct {
	logger zerolog.Logger
	sched  *runner.Scheduler
	store  *history.Store
	runs   int
}

// New returns an analyzer that reruns each candidate runs times through
// the scheduler. A non-positive runs falls back to the default.
func New(logger zerolog.Logger, sched *runner.Scheduler, store *history.Store, runs int) *Analyzer {
	if runs <= 0 {
		runs = DefaultRuns
	}
	return &Analyzer{logger: logger, sched: sched, store: store, runs: runs}
}

// AuditTest reruns one test as independent single-test selections and
// scores the resulting sequence. Tests with fewer than five historical
// runs are not audited and score zero.
func (a *Analyzer) AuditTest(ctx context.Context, test model.TestFile, resolve runner.SuiteResolver) AuditResult {
	result := AuditResult{Path: test.Path}

	if a.store.RunCount(test.Path) < minHistoricalRuns {
		result.Skipped = true
		a.logger.Debug().
			Str("test", test.Path).
			Int("runs", a.store.RunCount(test.Path)).
			Msg("Insufficient history for flakiness audit")
		return result
	}

	selection := model.TestSelection{
		Tests:             []model.TestFile{test},
		Reason:            "flakiness audit rerun",
		Confidence:        1.0,
		EstimatedDuration: test.AvgDuration,
	}

	for i := 0; i < a.runs; i++ {
		if ctx.Err() != nil {
			break
		}
		summary, err := a.sched.Run(ctx, selection, resolve)
		if err != nil || len(summary.Results) == 0 {
			result.Statuses = append(result.Statuses, model.StatusError)
			continue
		}
		result.Statuses = append(result.Statuses, summary.Results[0].Status)
	}

	result.Runs = len(result.Statuses)
	result.Score = Score(result.Statuses)

	a.logger.Info().
		Str("test", test.Path).
		Int("runs", result.Runs).
		Float64("score", result.Score).
		Msg("Flakiness audit complete")

	return result
}

// Audit runs AuditTest over every test in the selection.
func (a *Analyzer) Audit(ctx context.Context, selection model.TestSelection, resolve runner.SuiteResolver) []AuditResult {
	results := make([]AuditResult, 0, len(selection.Tests))
	started := time.Now()
	for _, t := range selection.Tests {
		results = append(results, a.AuditTest(ctx, t, resolve))
	}
	a.logger.Info().
		Int("tests", len(results)).
		Dur("duration", time.Since(started)).
		Msg("Flakiness audit sweep complete")
	return results
}

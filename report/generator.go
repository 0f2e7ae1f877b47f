// Package report turns an execution summary plus history-store trends into
// an immutable RegressionReport and projects it onto the configured output
// formats.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/regrun/regrun/flaky"
	"github.com/regrun/regrun/history"
	"github.com/regrun/regrun/model"
)

const (
	// trendBand is the relative band around the earlier mean within
	// which a duration is considered stable.
	trendBand = 0.2
	// trendRecentSamples is how many recent samples form the "now" mean.
	trendRecentSamples = 3
	// slowFloor is the absolute duration below which a test is never
	// called slow, whatever the percentile says.
	slowFloor = 60 * time.Second
	// slowPercentile is the within-run percentile a slow test must exceed.
	slowPercentile = 0.9
	// successRateThreshold under which failures warrant investigation.
	successRateThreshold = 0.9
	// totalDurationThreshold over which the run should be parallelized.
	totalDurationThreshold = 1800 * time.Second
)

// RecommendationNoTests is reported when a selection came up empty.
const RecommendationNoTests = "no tests selected — verify selection criteria"

// Generator derives reports from summaries and historical trends.
type Generator struct {
	logger zerolog.Logger
	store  *history.Store
}

// New returns a report generator reading trends from the given store.
func New(logger zerolog.Logger, store *history.Store) *Generator {
	return &Generator{logger: logger, store: store}
}

// Generate produces the report for one execution. Generation is
// deterministic: the same summary and store state always yield the same
// trends, lists, and recommendation text.
func (g *Generator) Generate(summary model.ExecutionSummary) model.RegressionReport {
	report := model.RegressionReport{
		ExecutionID: summary.ID,
		GeneratedAt: time.Now().UTC(),
		Summary:     summary,
	}

	paths := resultPaths(summary)

	for _, p := range paths {
		if trend, ok := g.durationTrend(p); ok {
			report.Trends = append(report.Trends, trend)
		}
	}

	for _, p := range paths {
		rates := g.store.SuccessRates(p)
		if flaky.ClassifyTrend(rates) == model.StabilityFlaky {
			report.FlakyTests = append(report.FlakyTests, model.FlakyTest{
				Path:        p,
				SuccessRate: g.store.SuccessRate(p),
				Stability:   model.StabilityFlaky,
			})
		}
	}

	report.SlowTests = slowTests(summary)
	report.FailedTests = failedTests(summary)
	report.Recommendations = recommendations(summary, report)

	g.logger.Debug().
		Str("execution", summary.ID).
		Int("trends", len(report.Trends)).
		Int("flaky", len(report.FlakyTests)).
		Int("slow", len(report.SlowTests)).
		Msg("Generated regression report")

	return report
}

// durationTrend compares the mean of the last few samples against the
// mean of the earlier window, with a relative band for stability.
func (g *Generator) durationTrend(path string) (model.DurationTrend, bool) {
	durations := g.store.Durations(path)
	if len(durations) <= trendRecentSamples {
		return model.DurationTrend{}, false
	}

	recent := mean(durations[len(durations)-trendRecentSamples:])
	earlier := mean(durations[:len(durations)-trendRecentSamples])

	direction := model.TrendStable
	switch {
	case earlier > 0 && recent > earlier*(1+trendBand):
		direction = model.TrendIncreasing
	case earlier > 0 && recent < earlier*(1-trendBand):
		direction = model.TrendDecreasing
	}

	return model.DurationTrend{
		Path:        path,
		Direction:   direction,
		RecentMean:  time.Duration(recent * float64(time.Second)),
		EarlierMean: time.Duration(earlier * float64(time.Second)),
	}, true
}

// slowTests returns tests above both the run's 90th percentile and the
// absolute floor.
func slowTests(summary model.ExecutionSummary) []model.SlowTest {
	if len(summary.Results) == 0 {
		return nil
	}
	durations := make([]time.Duration, 0, len(summary.Results))
	for _, r := range summary.Results {
		durations = append(durations, r.Duration)
	}
	p90 := percentile(durations, slowPercentile)

	var slow []model.SlowTest
	for _, r := range summary.Results {
		if r.Duration > p90 && r.Duration > slowFloor {
			slow = append(slow, model.SlowTest{Path: r.Path, Duration: r.Duration})
		}
	}
	sort.Slice(slow, func(i, j int) bool { return slow[i].Duration > slow[j].Duration })
	return slow
}

func failedTests(summary model.ExecutionSummary) []string {
	var failed []string
	for _, r := range summary.Results {
		switch r.Status {
		case model.StatusFailed, model.StatusError, model.StatusTimeout:
			failed = append(failed, r.Path)
		}
	}
	sort.Strings(failed)
	return failed
}

// recommendations applies the fixed advisory thresholds. The texts are
// stable so repeated generation over the same inputs is idempotent.
func recommendations(summary model.ExecutionSummary, report model.RegressionReport) []string {
	var recs []string

	if summary.Total == 0 {
		return []string{RecommendationNoTests}
	}
	if summary.SuccessRate() < successRateThreshold {
		recs = append(recs, fmt.Sprintf("success rate %.1f%% is below 90%%: investigate recent failures", summary.SuccessRate()*100))
	}
	if summary.Duration > totalDurationThreshold {
		recs = append(recs, "total duration exceeds 30 minutes: parallelize further or optimize slow suites")
	}
	if len(report.FlakyTests) > 0 {
		recs = append(recs, fmt.Sprintf("%d flaky test(s) detected: fix or quarantine them", len(report.FlakyTests)))
	}
	if len(report.SlowTests) > 0 {
		recs = append(recs, fmt.Sprintf("%d slow test(s) detected: optimize them or move them to the nightly sweep", len(report.SlowTests)))
	}
	for _, t := range report.Trends {
		if t.Direction == model.TrendIncreasing {
			recs = append(recs, "some tests show an increasing duration trend: review recent performance regressions")
			break
		}
	}
	return recs
}

func resultPaths(summary model.ExecutionSummary) []string {
	seen := map[string]bool{}
	var paths []string
	for _, r := range summary.Results {
		if !seen[r.Path] {
			seen[r.Path] = true
			paths = append(paths, r.Path)
		}
	}
	sort.Strings(paths)
	return paths
}

// percentile returns the value at the given rank using nearest-rank
// (ceil(p*n), 1-based) on a sorted copy. The rank must stay below the
// maximum for runs of ten or more so an outlier can exceed it.
func percentile(durations []time.Duration, p float64) time.Duration {
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

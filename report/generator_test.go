package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regrun/regrun/history"
	"github.com/regrun/regrun/model"
)

func tempStore(t *testing.T) *history.Store {
	t.Helper()
	return history.Open(zerolog.Nop(), filepath.Join(t.TempDir(), "history.json"))
}

func result(path string, status model.Status, dur time.Duration) model.TestResult {
	return model.TestResult{Path: path, Status: status, Duration: dur, StartedAt: time.Now()}
}

func summaryOf(results ...model.TestResult) model.ExecutionSummary {
	s := model.ExecutionSummary{ID: "exec-42", Total: len(results), Results: results, Workers: 2}
	for _, r := range results {
		switch r.Status {
		case model.StatusPassed:
			s.Passed++
		case model.StatusFailed:
			s.Failed++
		case model.StatusSkipped:
			s.Skipped++
		case model.StatusError:
			s.Errors++
		case model.StatusTimeout:
			s.Timeouts++
		}
		s.Duration += r.Duration
	}
	return s
}

func TestGenerateIdempotent(t *testing.T) {
	store := tempStore(t)
	seedRuns(store, "tests/test_a.py", []float64{1, 0, 1, 0, 1, 0, 1, 0, 1, 0}, 2*time.Second)

	gen := New(zerolog.Nop(), store)
	summary := summaryOf(result("tests/test_a.py", model.StatusPassed, time.Second))

	first := gen.Generate(summary)
	second := gen.Generate(summary)

	assert.Equal(t, first.Trends, second.Trends)
	assert.Equal(t, first.FlakyTests, second.FlakyTests)
	assert.Equal(t, first.SlowTests, second.SlowTests)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestFlakyListFollowsHistoricalRule(t *testing.T) {
	store := tempStore(t)
	seedRuns(store, "tests/test_flaky.py", []float64{1, 0, 1, 0, 1, 0, 1, 0, 1, 0}, time.Second)
	seedRuns(store, "tests/test_solid.py", []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, time.Second)

	gen := New(zerolog.Nop(), store)
	summary := summaryOf(
		result("tests/test_flaky.py", model.StatusPassed, time.Second),
		result("tests/test_solid.py", model.StatusPassed, time.Second),
	)
	rep := gen.Generate(summary)

	require.Len(t, rep.FlakyTests, 1)
	assert.Equal(t, "tests/test_flaky.py", rep.FlakyTests[0].Path)
}

func TestSlowTestsNeedPercentileAndFloor(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)

	// One clear outlier above 60s among many fast tests.
	results := []model.TestResult{
		result("tests/test_slow.py", model.StatusPassed, 120*time.Second),
	}
	for i := 0; i < 19; i++ {
		results = append(results, result(
			"tests/test_fast_"+string(rune('a'+i))+".py", model.StatusPassed, time.Second))
	}
	rep := gen.Generate(summaryOf(results...))

	require.Len(t, rep.SlowTests, 1)
	assert.Equal(t, "tests/test_slow.py", rep.SlowTests[0].Path)
}

func TestSlowTestsReportedForSmallBatches(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)

	// Ten results: the percentile rank must land below the maximum so
	// the single outlier still shows up in a small run.
	results := []model.TestResult{
		result("tests/test_slow.py", model.StatusPassed, 120*time.Second),
	}
	for i := 0; i < 9; i++ {
		results = append(results, result(
			"tests/test_fast_"+string(rune('a'+i))+".py", model.StatusPassed, time.Second))
	}
	rep := gen.Generate(summaryOf(results...))

	require.Len(t, rep.SlowTests, 1)
	assert.Equal(t, "tests/test_slow.py", rep.SlowTests[0].Path)
}

func TestSlowTestsRespectAbsoluteFloor(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)

	// The outlier is above the percentile but under the 60s floor.
	results := []model.TestResult{
		result("tests/test_slowish.py", model.StatusPassed, 30*time.Second),
	}
	for i := 0; i < 19; i++ {
		results = append(results, result(
			"tests/test_fast_"+string(rune('a'+i))+".py", model.StatusPassed, time.Second))
	}
	rep := gen.Generate(summaryOf(results...))

	assert.Empty(t, rep.SlowTests)
}

func TestDurationTrendClassification(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      model.TrendDirection
	}{
		{
			name:      "increasing",
			durations: []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second, 20 * time.Second, 20 * time.Second, 20 * time.Second},
			want:      model.TrendIncreasing,
		},
		{
			name:      "decreasing",
			durations: []time.Duration{20 * time.Second, 20 * time.Second, 20 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second},
			want:      model.TrendDecreasing,
		},
		{
			name:      "stable within band",
			durations: []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second, 11 * time.Second, 11 * time.Second, 11 * time.Second},
			want:      model.TrendStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tempStore(t)
			for _, d := range tt.durations {
				store.Record(model.ExecutionSummary{
					Total:   1,
					Results: []model.TestResult{result("tests/test_t.py", model.StatusPassed, d)},
				})
			}
			gen := New(zerolog.Nop(), store)
			rep := gen.Generate(summaryOf(result("tests/test_t.py", model.StatusPassed, time.Second)))

			require.Len(t, rep.Trends, 1)
			assert.Equal(t, tt.want, rep.Trends[0].Direction)
		})
	}
}

func TestRecommendationThresholds(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)

	failing := summaryOf(
		result("tests/test_a.py", model.StatusPassed, time.Second),
		result("tests/test_b.py", model.StatusFailed, time.Second),
	)
	rep := gen.Generate(failing)
	assert.True(t, hasRecommendation(rep, "investigate"), "low success rate triggers investigation")

	long := summaryOf(result("tests/test_a.py", model.StatusPassed, time.Second))
	long.Duration = time.Hour
	rep = gen.Generate(long)
	assert.True(t, hasRecommendation(rep, "parallelize"), "long run triggers parallelization advice")
}

func TestEmptySummaryRecommendation(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)
	rep := gen.Generate(model.ExecutionSummary{})
	require.Len(t, rep.Recommendations, 1)
	assert.Equal(t, RecommendationNoTests, rep.Recommendations[0])
}

func TestJSONRoundTripPreservesCounts(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)
	rep := gen.Generate(summaryOf(
		result("tests/test_a.py", model.StatusPassed, time.Second),
		result("tests/test_b.py", model.StatusFailed, time.Second),
		result("tests/test_c.py", model.StatusSkipped, 0),
		result("tests/test_d.py", model.StatusError, time.Second),
		result("tests/test_e.py", model.StatusTimeout, time.Minute),
	))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))

	parsed, err := ParseJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, rep.Summary.Total, parsed.Summary.Total)
	assert.Equal(t, rep.Summary.Passed, parsed.Summary.Passed)
	assert.Equal(t, rep.Summary.Failed, parsed.Summary.Failed)
	assert.Equal(t, rep.Summary.Skipped, parsed.Summary.Skipped)
	assert.Equal(t, rep.Summary.Errors, parsed.Summary.Errors)
	assert.Equal(t, rep.Summary.Timeouts, parsed.Summary.Timeouts)
}

func TestMarkdownProjection(t *testing.T) {
	store := tempStore(t)
	gen := New(zerolog.Nop(), store)
	rep := gen.Generate(summaryOf(
		result("tests/test_a.py", model.StatusPassed, time.Second),
		result("tests/test_b.py", model.StatusFailed, time.Second),
	))

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "# Regression Report")
	assert.Contains(t, out, "tests/test_b.py")
}

func TestUnknownFormatRejected(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "xml", model.RegressionReport{})
	assert.Error(t, err)
}

func seedRuns(store *history.Store, path string, outcomes []float64, dur time.Duration) {
	for _, o := range outcomes {
		status := model.StatusFailed
		if o == 1 {
			status = model.StatusPassed
		}
		store.Record(model.ExecutionSummary{
			Total:   1,
			Results: []model.TestResult{result(path, status, dur)},
		})
	}
}

func hasRecommendation(rep model.RegressionReport, substr string) bool {
	for _, r := range rep.Recommendations {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

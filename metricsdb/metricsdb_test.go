package metricsdb

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regrun/regrun/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(zerolog.Nop(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func summaryOf(results ...model.TestResult) model.ExecutionSummary {
	return model.ExecutionSummary{ID: "exec-1", Results: results}
}

func result(path string, status model.Status, duration time.Duration, started time.Time) model.TestResult {
	return model.TestResult{
		Path:      path,
		Status:    status,
		Duration:  duration,
		StartedAt: started,
		Worker:    1,
	}
}

func TestRecordAndComputeMetrics(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordSummary(summaryOf(
		result("tests/unit/test_a.py", model.StatusPassed, 2*time.Second, base),
		result("tests/unit/test_a.py", model.StatusFailed, 4*time.Second, base.Add(time.Hour)),
		result("tests/unit/test_a.py", model.StatusPassed, 3*time.Second, base.Add(2*time.Hour)),
	)))

	m, err := db.ComputeMetrics("tests/unit/test_a.py")
	require.NoError(t, err)

	assert.Equal(t, 3, m.RunCount)
	assert.Equal(t, 2, m.SuccessCount)
	assert.Equal(t, 3*time.Second, m.AvgDuration)
	assert.Equal(t, 2*time.Second, m.MinDuration)
	assert.Equal(t, 4*time.Second, m.MaxDuration)
	assert.InDelta(t, 2.0/3.0, m.StabilityScore, 1e-9)
	// Too few runs to score flakiness.
	assert.Zero(t, m.FlakinessScore)
	assert.True(t, m.LastRun.Equal(base.Add(2*time.Hour)))
}

func TestComputeMetricsUnknownPath(t *testing.T) {
	db := openTestDB(t)

	m, err := db.ComputeMetrics("tests/unit/test_missing.py")
	require.NoError(t, err)
	assert.Equal(t, "tests/unit/test_missing.py", m.Path)
	assert.Zero(t, m.RunCount)
}

func TestFlakinessScoreNeedsHistory(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	statuses := []model.Status{
		model.StatusPassed, model.StatusFailed, model.StatusPassed,
		model.StatusFailed, model.StatusPassed,
	}
	var results []model.TestResult
	for i, s := range statuses {
		results = append(results, result("tests/unit/test_flaky.py", s, time.Second, base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, db.RecordSummary(summaryOf(results...)))

	m, err := db.ComputeMetrics("tests/unit/test_flaky.py")
	require.NoError(t, err)
	// Every consecutive pair flips, so the transition score is maximal.
	assert.InDelta(t, 1.0, m.FlakinessScore, 1e-9)
	assert.Contains(t, m.Tags, "flaky")
}

func TestRefreshAndCachedMetrics(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordSummary(summaryOf(
		result("tests/unit/test_stable.py", model.StatusPassed, time.Second, base),
		result("tests/unit/test_stable.py", model.StatusPassed, time.Second, base.Add(time.Minute)),
		result("tests/unit/test_broken.py", model.StatusFailed, time.Second, base),
		result("tests/unit/test_broken.py", model.StatusFailed, time.Second, base.Add(time.Minute)),
	)))

	refreshed, err := db.RefreshMetrics()
	require.NoError(t, err)
	require.Len(t, refreshed, 2)
	// Most urgent first: the always-failing test outranks the stable one.
	assert.Equal(t, "tests/unit/test_broken.py", refreshed[0].Path)
	assert.Equal(t, model.PriorityCritical, refreshed[0].MaintenancePriority)
	assert.Equal(t, model.PriorityLow, refreshed[1].MaintenancePriority)

	cached, err := db.CachedMetrics(0)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "tests/unit/test_broken.py", cached[0].Path)
	assert.Contains(t, cached[0].Tags, "unstable")
	assert.Empty(t, cached[1].Tags)

	limited, err := db.CachedMetrics(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRefreshIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordSummary(summaryOf(
		result("tests/unit/test_a.py", model.StatusPassed, time.Second, base),
	)))

	_, err := db.RefreshMetrics()
	require.NoError(t, err)
	_, err = db.RefreshMetrics()
	require.NoError(t, err)

	cached, err := db.CachedMetrics(0)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestRecordTruncatesErrorOutput(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := result("tests/unit/test_a.py", model.StatusFailed, time.Second, base)
	r.ErrorOutput = strings.Repeat("x", 2*errExcerptLen)
	require.NoError(t, db.RecordSummary(summaryOf(r)))

	var stored string
	require.NoError(t, db.db.Get(&stored, `SELECT error FROM test_runs WHERE path = ?`, r.Path))
	assert.Len(t, stored, errExcerptLen)
}

func TestMaintenancePriorityThresholds(t *testing.T) {
	tests := []struct {
		name    string
		metrics model.TestMetrics
		want    model.Priority
	}{
		{"mostly failing", model.TestMetrics{StabilityScore: 0.4}, model.PriorityCritical},
		{"often failing", model.TestMetrics{StabilityScore: 0.7}, model.PriorityHigh},
		{"very flaky", model.TestMetrics{StabilityScore: 0.95, FlakinessScore: 0.6}, model.PriorityHigh},
		{"somewhat flaky", model.TestMetrics{StabilityScore: 0.95, FlakinessScore: 0.4}, model.PriorityMedium},
		{"slow", model.TestMetrics{StabilityScore: 1.0, AvgDuration: 2 * time.Minute}, model.PriorityMedium},
		{"healthy", model.TestMetrics{StabilityScore: 1.0, AvgDuration: time.Second}, model.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maintenancePriority(tt.metrics))
		})
	}
}

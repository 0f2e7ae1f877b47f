package model

import "time"

// TrendDirection classifies how a test's duration is moving over time.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Stability classifies a test's historical success-rate behaviour. This is
// the historical trend classification, distinct from the live flakiness
// score produced by a rerun audit.
type Stability string

const (
	StabilityStable   Stability = "stable"
	StabilityFlaky    Stability = "flaky"
	StabilityUnstable Stability = "unstable"
	StabilityUnknown  Stability = "unknown"
)

// DurationTrend describes the duration movement of a single test.
type DurationTrend struct {
	Path        string         `json:"path"`
	Direction   TrendDirection `json:"direction"`
	RecentMean  time.Duration  `json:"recent_mean"`
	EarlierMean time.Duration  `json:"earlier_mean"`
}

// FlakyTest is a historically flaky test surfaced in a report.
type FlakyTest struct {
	Path        string    `json:"path"`
	SuccessRate float64   `json:"success_rate"`
	Stability   Stability `json:"stability"`
}

// SlowTest is a test whose duration sits above both the run's 90th
// percentile and the absolute slowness floor.
type SlowTest struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
}

// RegressionReport is the analyzed view of one execution. It is immutable
// once generated; every output format is a pure projection of it.
type RegressionReport struct {
	// ExecutionID ties the report to the execution it analyzes
	ExecutionID string `json:"execution_id"`
	// GeneratedAt is when the report was produced
	GeneratedAt time.Time `json:"generated_at"`
	// Summary of the execution
	Summary ExecutionSummary `json:"summary"`
	// Trends per test with enough history
	Trends []DurationTrend `json:"trends,omitempty"`
	// FlakyTests per the historical classification rule
	FlakyTests []FlakyTest `json:"flaky_tests,omitempty"`
	// SlowTests above the percentile and floor thresholds
	SlowTests []SlowTest `json:"slow_tests,omitempty"`
	// FailedTests paths (failed, errored, or timed out)
	FailedTests []string `json:"failed_tests,omitempty"`
	// Recommendations in free text
	Recommendations []string `json:"recommendations,omitempty"`
}

// TestMetrics holds rolling statistics for one test over its historical
// window. Metrics are recomputed from run rows, never treated as the
// source of truth.
type TestMetrics struct {
	Path                string        `json:"path"`
	RunCount            int           `json:"run_count"`
	SuccessCount        int           `json:"success_count"`
	AvgDuration         time.Duration `json:"avg_duration"`
	MinDuration         time.Duration `json:"min_duration"`
	MaxDuration         time.Duration `json:"max_duration"`
	StabilityScore      float64       `json:"stability_score"`
	FlakinessScore      float64       `json:"flakiness_score"`
	MaintenancePriority Priority      `json:"maintenance_priority"`
	Tags                []string      `json:"tags,omitempty"`
	LastRun             time.Time     `json:"last_run"`
}

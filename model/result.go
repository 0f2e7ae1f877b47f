package model

import "time"

// Status represents the outcome of a single test file execution attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
	StatusFlaky   Status = "flaky"
)

// Passed reports whether the status counts as a success.
func (s Status) Passed() bool {
	return s == StatusPassed
}

// TestResult records one test-file execution attempt. Results are appended
// by the collector only and never mutated afterwards.
type TestResult struct {
	// Path of the executed test file
	Path string `json:"path"`
	// Status of the attempt
	Status Status `json:"status"`
	// Duration of the harness process
	Duration time.Duration `json:"duration"`
	// Output captured from the harness stdout (may be truncated)
	Output string `json:"output,omitempty"`
	// ErrorOutput captured from the harness stderr (may be truncated)
	ErrorOutput string `json:"error_output,omitempty"`
	// Worker that executed the test
	Worker int `json:"worker"`
	// StartedAt is when the harness process was spawned
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the harness process exited or was killed
	FinishedAt time.Time `json:"finished_at"`
}

// ExecutionSummary aggregates the results of one scheduler run. Counts are
// pure reductions over the result list: the order results arrived in never
// changes the summary.
type ExecutionSummary struct {
	// ID of the execution (UUID)
	ID string `json:"id"`
	// StartedAt is when the scheduler began the run
	StartedAt time.Time `json:"started_at"`
	// Counts per status
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	Timeouts int `json:"timeouts"`
	// Duration of the whole run (wall clock)
	Duration time.Duration `json:"duration"`
	// Workers used for the run
	Workers int `json:"workers"`
	// Results in arrival order
	Results []TestResult `json:"results"`
}

// SuccessRate returns passed / executed, where skipped tests do not count
// as executed. An empty run has a success rate of 1.
func (s ExecutionSummary) SuccessRate() float64 {
	executed := s.Total - s.Skipped
	if executed <= 0 {
		return 1.0
	}
	return float64(s.Passed) / float64(executed)
}

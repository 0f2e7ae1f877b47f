package model

import "time"

// TestSelection is the bounded set of tests chosen for one run. It is
// immutable once produced by a selection strategy.
type TestSelection struct {
	// Tests selected for execution
	Tests []TestFile `json:"tests"`
	// Reason is a human-readable explanation of the selection
	Reason string `json:"reason"`
	// Confidence that this selection covers the relevant risk, in [0, 1]
	Confidence float64 `json:"confidence"`
	// EstimatedDuration is the sum of the selected tests' average durations
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Empty reports whether the selection contains no tests.
func (s TestSelection) Empty() bool {
	return len(s.Tests) == 0
}

// TestBatch is a worker-assigned, disjoint subset of a selection plus the
// suite configuration that governs its execution. The union of all batches
// for a selection equals the selection.
type TestBatch struct {
	// ID of the batch within one scheduler run
	ID int `json:"id"`
	// Tests assigned to this batch, executed sequentially by one worker
	Tests []TestFile `json:"tests"`
	// Suite governing timeout, markers, and environment
	Suite SuiteConfig `json:"suite"`
}

// EstimatedDuration returns the summed average duration of the batch.
func (b TestBatch) EstimatedDuration() time.Duration {
	var total time.Duration
	for _, t := range b.Tests {
		total += t.AvgDuration
	}
	return total
}

// Package history implements the durable per-test run log: an append-only
// record of execution summaries plus capped per-test trend series, backed
// by a single JSON file.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/regrun/regrun/model"
)

const (
	// trendWindow caps the rolling trend series kept per test.
	trendWindow = 50
	// executionWindow caps the whole-execution summaries kept.
	executionWindow = 100
)

// ExecutionRecord is the per-execution row kept for trend reporting.
type ExecutionRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Timeouts  int           `json:"timeouts"`
	Duration  time.Duration `json:"duration"`
}

// TrendSeries is the capped rolling window of one test's observed
// durations (seconds), success flags, and run dates.
type TrendSeries struct {
	Durations    []float64   `json:"durations"`
	SuccessRates []float64   `json:"success_rates"`
	Dates        []time.Time `json:"dates"`
}

type fileFormat struct {
	Executions []ExecutionRecord       `json:"executions"`
	Trends     map[string]*TrendSeries `json:"trends"`
}

// Store owns the persisted run history. It is written by exactly one
// caller after each execution; aggregate statistics are recomputed from
// the windows at query time rather than cached.
type Store struct {
	logger zerolog.Logger
	path   string
	data   fileFormat
}

// Open loads the history file at path. A missing or corrupt file resets
// the store to an empty history rather than failing the run.
func Open(logger zerolog.Logger, path string) *Store {
	s := &Store{
		logger: logger,
		path:   path,
		data: fileFormat{
			Trends: map[string]*TrendSeries{},
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read history, starting empty")
		}
		return s
	}

	var data fileFormat
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Corrupt history file, starting empty")
		return s
	}
	if data.Trends == nil {
		data.Trends = map[string]*TrendSeries{}
	}
	s.data = data
	return s
}

// Record appends an execution summary and one trend point per result,
// trims the windows, and flushes to disk. Write failures are logged and
// swallowed so a broken history file never fails the run.
func (s *Store) Record(summary model.ExecutionSummary) {
	s.data.Executions = append(s.data.Executions, ExecutionRecord{
		ID:        summary.ID,
		Timestamp: summary.StartedAt,
		Total:     summary.Total,
		Passed:    summary.Passed,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
		Timeouts:  summary.Timeouts,
		Duration:  summary.Duration,
	})
	if len(s.data.Executions) > executionWindow {
		s.data.Executions = s.data.Executions[len(s.data.Executions)-executionWindow:]
	}

	for _, r := range summary.Results {
		if r.Status == model.StatusSkipped {
			continue
		}
		series := s.data.Trends[r.Path]
		if series == nil {
			series = &TrendSeries{}
			s.data.Trends[r.Path] = series
		}
		success := 0.0
		if r.Status.Passed() {
			success = 1.0
		}
		series.Durations = append(series.Durations, r.Duration.Seconds())
		series.SuccessRates = append(series.SuccessRates, success)
		series.Dates = append(series.Dates, r.StartedAt)
		series.trim()
	}

	if err := s.flush(); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to write history")
	}
}

func (t *TrendSeries) trim() {
	if n := len(t.Durations); n > trendWindow {
		t.Durations = t.Durations[n-trendWindow:]
	}
	if n := len(t.SuccessRates); n > trendWindow {
		t.SuccessRates = t.SuccessRates[n-trendWindow:]
	}
	if n := len(t.Dates); n > trendWindow {
		t.Dates = t.Dates[n-trendWindow:]
	}
}

func (s *Store) flush() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// RunCount returns the number of recorded runs for a test.
func (s *Store) RunCount(path string) int {
	if series, ok := s.data.Trends[path]; ok {
		return len(series.SuccessRates)
	}
	return 0
}

// SuccessRate recomputes the mean success over the test's window.
// Tests with no history are treated as fully successful.
func (s *Store) SuccessRate(path string) float64 {
	series, ok := s.data.Trends[path]
	if !ok || len(series.SuccessRates) == 0 {
		return 1.0
	}
	return mean(series.SuccessRates)
}

// AvgDuration recomputes the mean duration over the test's window.
// Tests with no history get a zero duration; callers apply their own
// default estimate.
func (s *Store) AvgDuration(path string) time.Duration {
	series, ok := s.data.Trends[path]
	if !ok || len(series.Durations) == 0 {
		return 0
	}
	return time.Duration(mean(series.Durations) * float64(time.Second))
}

// Durations returns a copy of the test's duration window in seconds.
func (s *Store) Durations(path string) []float64 {
	series, ok := s.data.Trends[path]
	if !ok {
		return nil
	}
	out := make([]float64, len(series.Durations))
	copy(out, series.Durations)
	return out
}

// SuccessRates returns a copy of the test's success-flag window.
func (s *Store) SuccessRates(path string) []float64 {
	series, ok := s.data.Trends[path]
	if !ok {
		return nil
	}
	out := make([]float64, len(series.SuccessRates))
	copy(out, series.SuccessRates)
	return out
}

// Executions returns the recorded execution summaries, oldest first.
func (s *Store) Executions() []ExecutionRecord {
	out := make([]ExecutionRecord, len(s.data.Executions))
	copy(out, s.data.Executions)
	return out
}

// TrackedTests returns the paths of all tests with recorded history.
func (s *Store) TrackedTests() []string {
	paths := make([]string, 0, len(s.data.Trends))
	for p := range s.data.Trends {
		paths = append(paths, p)
	}
	return paths
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

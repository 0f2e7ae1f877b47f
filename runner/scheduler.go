// Package runner executes a test selection across a fixed worker pool,
// invoking the external test harness as a child process per test file and
// collecting results through a single consumer.
package runner

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/regrun/regrun/model"
)

// DefaultGlobalTimeout bounds a whole scheduler run so a hung worker can
// never block framework completion indefinitely.
const DefaultGlobalTimeout = 2 * time.Hour

// ProgressFunc is invoked by the collector once per arriving result.
type ProgressFunc func(model.TestResult)

// Scheduler runs selections under bounded parallelism.
type Scheduler struct {
	logger        zerolog.Logger
	workers       int
	harness       []string
	noTestsExit   int
	globalTimeout time.Duration
	workDir       string
	progress      ProgressFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithGlobalTimeout overrides the pool-wide timeout.
func WithGlobalTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.globalTimeout = d
		}
	}
}

// WithWorkDir sets the directory harness processes run in.
func WithWorkDir(dir string) Option {
	return func(s *Scheduler) { s.workDir = dir }
}

// WithProgress registers a per-result progress callback. The callback is
// invoked from the collector goroutine only.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// New returns a scheduler with a fixed pool of workers invoking the given
// harness command. noTestsExit is the harness exit code meaning "no tests
// matched", which maps to a skipped result.
func New(logger zerolog.Logger, workers int, harness []string, noTestsExit int, opts ...Option) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		logger:        logger,
		workers:       workers,
		harness:       harness,
		noTestsExit:   noTestsExit,
		globalTimeout: DefaultGlobalTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run partitions the selection into batches and executes them across the
// worker pool. Results may arrive in any order; the summary is a pure
// reduction, so arrival order never changes the counts.
func (s *Scheduler) Run(ctx context.Context, selection model.TestSelection, resolve SuiteResolver) (model.ExecutionSummary, error) {
	started := time.Now()
	batches := Partition(selection, resolve, s.workers)

	s.logger.Info().
		Int("tests", len(selection.Tests)).
		Int("batches", len(batches)).
		Int("workers", s.workers).
		Msg("Starting execution")

	results := make(chan model.TestResult, len(selection.Tests)+1)
	batchQueue := make(chan model.TestBatch, len(batches))
	for _, b := range batches {
		batchQueue <- b
	}
	close(batchQueue)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for batch := range batchQueue {
				s.runBatch(ctx, worker, batch, results)
			}
		}(w)
	}

	// The collector is the only writer to the result list while it runs,
	// and it hands the list over a channel when it stops: the list is
	// never read and written concurrently, even on the timeout path.
	collectedCh := make(chan []model.TestResult, 1)
	stopCollect := make(chan struct{})
	go func() {
		var collected []model.TestResult
		take := func(r model.TestResult) {
			if s.progress != nil {
				s.progress(r)
			}
			collected = append(collected, r)
		}
		defer func() { collectedCh <- collected }()
		for {
			select {
			case r, ok := <-results:
				if !ok {
					return
				}
				take(r)
			case <-stopCollect:
				// Keep what already arrived, then stop.
				for {
					select {
					case r, ok := <-results:
						if !ok {
							return
						}
						take(r)
					default:
						return
					}
				}
			}
		}
	}()

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(results)
		close(workersDone)
	}()

	var runErr error
	select {
	case <-workersDone:
	case <-time.After(s.globalTimeout):
		runErr = fmt.Errorf("execution exceeded global timeout %s", s.globalTimeout)
		s.logger.Error().Dur("timeout", s.globalTimeout).Msg("Global worker timeout exceeded")
		close(stopCollect)
	}

	collected := <-collectedCh

	summary := Summarize(collected)
	summary.ID = uuid.NewString()
	summary.StartedAt = started
	summary.Duration = time.Since(started)
	summary.Workers = s.workers

	s.logger.Info().
		Int("total", summary.Total).
		Int("passed", summary.Passed).
		Int("failed", summary.Failed).
		Int("timeouts", summary.Timeouts).
		Dur("duration", summary.Duration).
		Msg("Execution finished")

	return summary, runErr
}

// runBatch executes a batch's tests sequentially, pushing one result per
// test onto the shared queue. Per-test failures never abort the batch.
func (s *Scheduler) runBatch(ctx context.Context, worker int, batch model.TestBatch, results chan<- model.TestResult) {
	for _, test := range batch.Tests {
		if ctx.Err() != nil {
			return
		}
		results <- s.runTest(ctx, worker, test, batch.Suite)
	}
}

func (s *Scheduler) runTest(ctx context.Context, worker int, test model.TestFile, suite model.SuiteConfig) model.TestResult {
	job := Job{
		Command: s.buildCommand(test, suite),
		Dir:     s.workDir,
		Env:     harnessEnv(suite, worker),
		Timeout: suite.Timeout.Std(),
	}

	s.logger.Debug().
		Int("worker", worker).
		Str("test", test.Path).
		Str("command", job.String()).
		Msg("Spawning harness")

	outcome := job.Execute(ctx)

	result := model.TestResult{
		Path:        test.Path,
		Status:      s.classify(outcome),
		Duration:    outcome.Finished.Sub(outcome.Started),
		Output:      outcome.Stdout,
		ErrorOutput: outcome.Stderr,
		Worker:      worker,
		StartedAt:   outcome.Started,
		FinishedAt:  outcome.Finished,
	}
	if outcome.SpawnErr != nil {
		result.ErrorOutput = outcome.SpawnErr.Error()
	}

	s.logger.Debug().
		Int("worker", worker).
		Str("test", test.Path).
		Str("status", string(result.Status)).
		Dur("duration", result.Duration).
		Msg("Test finished")

	return result
}

// classify maps a process outcome to a result status. Exit code zero is a
// pass, the harness's "no tests matched" code is a skip, any other exit
// code is a failure; a killed deadline is a timeout and a spawn problem
// is an error.
func (s *Scheduler) classify(outcome JobOutcome) model.Status {
	switch {
	case outcome.TimedOut:
		return model.StatusTimeout
	case outcome.SpawnErr != nil:
		return model.StatusError
	case outcome.ExitCode == 0:
		return model.StatusPassed
	case outcome.ExitCode == s.noTestsExit:
		return model.StatusSkipped
	default:
		return model.StatusFailed
	}
}

func (s *Scheduler) buildCommand(test model.TestFile, suite model.SuiteConfig) []string {
	cmd := append([]string(nil), s.harness...)
	for _, m := range suite.Markers {
		cmd = append(cmd, "-m", m)
	}
	return append(cmd, test.Path)
}

func harnessEnv(suite model.SuiteConfig, worker int) map[string]string {
	env := map[string]string{
		"REGRUN_WORKER": strconv.Itoa(worker),
		"REGRUN_SUITE":  suite.Name,
	}
	for k, v := range suite.Env {
		env[k] = v
	}
	return env
}

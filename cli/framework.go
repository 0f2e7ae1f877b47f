package cli

// This file contains the orchestrator: it wires the catalog, history,
// impact analysis, selection, scheduling, and reporting into one run and
// converts every unexpected failure into a failed result instead of a
// crash.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/regrun/regrun/catalog"
	"github.com/regrun/regrun/config"
	"github.com/regrun/regrun/flaky"
	"github.com/regrun/regrun/history"
	"github.com/regrun/regrun/impact"
	"github.com/regrun/regrun/metricsdb"
	"github.com/regrun/regrun/model"
	"github.com/regrun/regrun/report"
	"github.com/regrun/regrun/runner"
	"github.com/regrun/regrun/selector"
)

// Mode identifies the trigger a run was selected for.
type Mode string

const (
	ModePreCommit   Mode = "pre-commit"
	ModePullRequest Mode = "pull-request"
	ModeNightly     Mode = "nightly"
	ModeRelease     Mode = "release"
	ModeFlakiness   Mode = "flaky-detection"
	ModeCustom      Mode = "custom"
)

// Success-rate gates per mode, driving the process exit code.
const (
	pullRequestGate = 0.95
	nightlyGate     = 0.90
	releaseGate     = 0.98
)

// FrameworkResult is what one framework invocation produces: the selection,
// the execution summary, the analyzed report, and a final success verdict.
type FrameworkResult struct {
	Mode            Mode                   `json:"mode"`
	Selection       model.TestSelection    `json:"selection"`
	Summary         model.ExecutionSummary `json:"summary"`
	Report          model.RegressionReport `json:"report"`
	Audits          []flaky.AuditResult    `json:"audits,omitempty"`
	Success         bool                   `json:"success"`
	Recommendations []string               `json:"recommendations,omitempty"`
}

// RunOptions carry the per-invocation knobs shared across modes.
type RunOptions struct {
	// BaseRef to diff against for change impact (default "HEAD")
	BaseRef string
	// MaxDuration overrides the mode's default time budget
	MaxDuration time.Duration
	// RunsPerTest for flakiness audits
	RunsPerTest int
	// Patterns for custom selection
	Patterns []string
	// Workers overrides the configured pool size
	Workers int
	// OutputPath for the serialized report (empty means no file output)
	OutputPath string
}

// Framework holds the long-lived collaborators for one invocation.
type Framework struct {
	logger  zerolog.Logger
	cfg     config.Config
	root    string
	store   *history.Store
	metrics *metricsdb.DB
}

// NewFramework loads configuration and opens the persistent stores. A
// broken metrics database degrades to "no analytics", never to a failed
// invocation.
func NewFramework(logger zerolog.Logger, root, configPath string) (*Framework, error) {
	if configPath == "" {
		configPath = filepath.Join(root, config.DefaultFile)
	}
	cfg, err := config.Load(logger, configPath)
	if err != nil {
		return nil, err
	}

	f := &Framework{
		logger: logger,
		cfg:    cfg,
		root:   root,
		store:  history.Open(logger, filepath.Join(root, cfg.HistoryPath)),
	}

	db, err := metricsdb.Open(logger, filepath.Join(root, cfg.MetricsDBPath))
	if err != nil {
		logger.Warn().Err(err).Msg("Metrics database unavailable, analytics disabled")
	} else {
		f.metrics = db
	}
	return f, nil
}

// Close releases the framework's resources.
func (f *Framework) Close() {
	if f.metrics != nil {
		if err := f.metrics.Close(); err != nil {
			f.logger.Debug().Err(err).Msg("Failed to close metrics database")
		}
	}
}

// Run executes one full framework invocation for the given mode. Any
// unexpected failure is recovered and converted into a failed result
// carrying an explanatory recommendation.
func (f *Framework) Run(ctx context.Context, mode Mode, opts RunOptions) (result FrameworkResult) {
	result.Mode = mode

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Interface("panic", r).Msg("Orchestration failure")
			result.Success = false
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("orchestration failure (%v): rerun with --verbose and report the logs", r))
		}
	}()

	tests := catalog.Enrich(catalog.Discover(f.logger, f.root, f.cfg.Suites), f.store)
	f.logger.Info().Int("tests", len(tests)).Str("mode", string(mode)).Msg("Catalog ready")

	selection := f.selectTests(mode, opts, tests)
	result.Selection = selection

	if selection.Empty() {
		f.logger.Info().Str("mode", string(mode)).Msg("Empty selection")
		result.Success = true
		result.Recommendations = append(result.Recommendations, report.RecommendationNoTests)
		return result
	}

	f.logger.Info().
		Int("selected", len(selection.Tests)).
		Float64("confidence", selection.Confidence).
		Dur("estimated", selection.EstimatedDuration).
		Str("reason", selection.Reason).
		Msg("Selection complete")

	sched := f.newScheduler(opts)

	if mode == ModeFlakiness {
		analyzer := flaky.New(f.logger, sched, f.store, opts.RunsPerTest)
		result.Audits = analyzer.Audit(ctx, selection, f.cfg.SuiteFor)
		// The audit is diagnostic, not gating.
		result.Success = true
		result.Recommendations = auditRecommendations(result.Audits)
		f.writeAudits(opts.OutputPath, result)
		return result
	}

	summary, runErr := sched.Run(ctx, selection, f.cfg.SuiteFor)
	result.Summary = summary

	// Persist history and metrics; failures degrade, never abort.
	f.store.Record(summary)
	if f.metrics != nil {
		if err := f.metrics.RecordSummary(summary); err != nil {
			f.logger.Warn().Err(err).Msg("Failed to record metrics rows")
		}
	}

	gen := report.New(f.logger, f.store)
	result.Report = gen.Generate(summary)
	result.Recommendations = result.Report.Recommendations
	f.writeReport(opts.OutputPath, result.Report)

	result.Success = runErr == nil && f.meetsGate(mode, summary)
	return result
}

func (f *Framework) selectTests(mode Mode, opts RunOptions, tests []model.TestFile) model.TestSelection {
	switch mode {
	case ModePreCommit:
		changed := f.changedFiles(opts)
		affected := impact.New(f.logger, f.root).AffectedTests(changed, tests)
		budget := opts.MaxDuration
		if budget <= 0 {
			budget = selector.DefaultCommitBudget
		}
		return selector.CommitTime(tests, affected, budget)
	case ModePullRequest:
		changed := f.changedFiles(opts)
		affected := impact.New(f.logger, f.root).AffectedTests(changed, tests)
		budget := opts.MaxDuration
		if budget <= 0 {
			budget = selector.DefaultPullRequestBudget
		}
		return selector.PullRequest(tests, affected, budget)
	case ModeNightly:
		return selector.Nightly(tests)
	case ModeRelease:
		return selector.Release(tests)
	case ModeFlakiness:
		return selector.FlakinessAudit(tests)
	case ModeCustom:
		return selector.Custom(tests, opts.Patterns)
	}
	return model.TestSelection{Reason: fmt.Sprintf("unknown mode %q", mode)}
}

func (f *Framework) changedFiles(opts RunOptions) []string {
	base := opts.BaseRef
	if base == "" {
		base = "HEAD"
	}
	changed := impact.New(f.logger, f.root).ChangedFiles(base)
	f.logger.Debug().Int("changed", len(changed)).Str("base", base).Msg("Resolved change set")
	return changed
}

func (f *Framework) newScheduler(opts RunOptions) *runner.Scheduler {
	workers := f.cfg.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	progress := func(r model.TestResult) {
		f.logger.Info().
			Str("test", r.Path).
			Str("status", string(r.Status)).
			Dur("duration", r.Duration.Round(time.Millisecond)).
			Int("worker", r.Worker).
			Msg("Result collected")
	}
	return runner.New(f.logger, workers, f.cfg.Harness, f.cfg.NoTestsExitCode,
		runner.WithGlobalTimeout(f.cfg.GlobalTimeout.Std()),
		runner.WithWorkDir(f.root),
		runner.WithProgress(progress),
	)
}

// meetsGate applies the per-mode success criterion.
func (f *Framework) meetsGate(mode Mode, summary model.ExecutionSummary) bool {
	switch mode {
	case ModePreCommit:
		return summary.Failed == 0 && summary.Errors == 0
	case ModePullRequest:
		return summary.SuccessRate() >= pullRequestGate
	case ModeNightly:
		return summary.SuccessRate() >= nightlyGate
	case ModeRelease:
		return summary.SuccessRate() >= releaseGate
	case ModeFlakiness:
		return true
	default:
		return summary.Failed == 0 && summary.Errors == 0
	}
}

// writeReport serializes the report to every configured format. Write
// failures are logged and swallowed: detailed reporting is best effort.
func (f *Framework) writeReport(outputPath string, r model.RegressionReport) {
	if outputPath == "" {
		return
	}
	base := outputPath
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	for _, format := range f.cfg.OutputFormats {
		path := base + report.Extension(format)
		file, err := os.Create(path)
		if err != nil {
			f.logger.Warn().Err(err).Str("path", path).Msg("Failed to create report file")
			continue
		}
		if err := report.Write(file, format, r); err != nil {
			f.logger.Warn().Err(err).Str("format", format).Msg("Failed to write report")
		}
		if err := file.Close(); err != nil {
			f.logger.Debug().Err(err).Str("path", path).Msg("Failed to close report file")
		}
		f.logger.Info().Str("path", path).Str("format", format).Msg("Report written")
	}
}

func (f *Framework) writeAudits(outputPath string, result FrameworkResult) {
	if outputPath == "" {
		return
	}
	file, err := os.Create(outputPath)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", outputPath).Msg("Failed to create audit file")
		return
	}
	defer file.Close()
	if err := writeJSON(file, result.Audits); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to write audit results")
	}
}

func auditRecommendations(audits []flaky.AuditResult) []string {
	var recs []string
	for _, a := range audits {
		if a.Skipped {
			continue
		}
		if a.Score > 0.3 {
			recs = append(recs, fmt.Sprintf("%s is flaky (score %.2f): fix or quarantine it", a.Path, a.Score))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "no flaky behaviour reproduced in this audit")
	}
	return recs
}

package cli

// This file contains the command actions: each builds a Framework, runs
// the mode, prints the structured summary, and maps the verdict to the
// process exit code.

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/regrun/regrun/hooks"
	"github.com/regrun/regrun/report"
)

func (a *App) preCommit(ctx *cli.Context) error {
	return a.runMode(ctx, ModePreCommit)
}

func (a *App) pullRequest(ctx *cli.Context) error {
	return a.runMode(ctx, ModePullRequest)
}

func (a *App) nightly(ctx *cli.Context) error {
	return a.runMode(ctx, ModeNightly)
}

func (a *App) release(ctx *cli.Context) error {
	return a.runMode(ctx, ModeRelease)
}

func (a *App) flakyDetection(ctx *cli.Context) error {
	return a.runMode(ctx, ModeFlakiness)
}

func (a *App) custom(ctx *cli.Context) error {
	if ctx.Args().Len() == 0 {
		return cli.Exit("custom requires at least one pattern", 1)
	}
	return a.runMode(ctx, ModeCustom)
}

// ci picks the trigger from the CI environment: scheduled builds run the
// nightly sweep, tagged builds run the release gate, everything else is
// treated as change review.
func (a *App) ci(ctx *cli.Context) error {
	mode := ModePullRequest
	switch {
	case os.Getenv("GITHUB_EVENT_NAME") == "schedule":
		mode = ModeNightly
	case os.Getenv("GITHUB_REF_TYPE") == "tag":
		mode = ModeRelease
	}
	a.logger.Info().Str("mode", string(mode)).Msg("CI trigger resolved")
	return a.runMode(ctx, mode)
}

func (a *App) runMode(ctx *cli.Context, mode Mode) error {
	fw, err := NewFramework(a.logger, ctx.String("root"), ctx.String("config"))
	if err != nil {
		return err
	}
	defer fw.Close()

	opts := RunOptions{
		BaseRef:     ctx.String("base-ref"),
		MaxDuration: ctx.Duration("max-duration"),
		RunsPerTest: ctx.Int("runs-per-test"),
		Patterns:    ctx.Args().Slice(),
		Workers:     ctx.Int("workers"),
		OutputPath:  ctx.String("output"),
	}
	if os.Getenv("GITHUB_BASE_REF") != "" && opts.BaseRef == "HEAD" {
		opts.BaseRef = "origin/" + os.Getenv("GITHUB_BASE_REF")
	}

	result := fw.Run(ctx.Context, mode, opts)
	a.printResult(result)

	if !result.Success {
		return cli.Exit("", 1)
	}
	return nil
}

// printResult emits the structured console summary. Per-test errors stay
// in the serialized report; only the verdict and recommendations are
// printed here.
func (a *App) printResult(result FrameworkResult) {
	if result.Summary.Total > 0 {
		report.RenderConsole(os.Stdout, result.Report)
	}

	for _, audit := range result.Audits {
		if audit.Skipped {
			fmt.Printf("  %s: insufficient history, not audited\n", audit.Path)
			continue
		}
		fmt.Printf("  %s: flakiness %.2f over %d runs\n", audit.Path, audit.Score, audit.Runs)
	}

	if result.Summary.Total == 0 && len(result.Audits) == 0 {
		for _, rec := range result.Recommendations {
			fmt.Printf("  %s\n", rec)
		}
	}

	verdict := "SUCCESS"
	if !result.Success {
		verdict = "FAILURE"
	}
	fmt.Printf("%s: %s (%d tests, confidence %.2f)\n",
		verdict, result.Mode, len(result.Selection.Tests), result.Selection.Confidence)
}

func (a *App) analyze(ctx *cli.Context) error {
	fw, err := NewFramework(a.logger, ctx.String("root"), ctx.String("config"))
	if err != nil {
		return err
	}
	defer fw.Close()

	executions := fw.store.Executions()
	fmt.Printf("\n=== Executions (%d recorded) ===\n\n", len(executions))
	shown := executions
	if len(shown) > 10 {
		shown = shown[len(shown)-10:]
	}
	for _, e := range shown {
		status := "✓"
		if e.Failed > 0 || e.Errors > 0 {
			status = "✗"
		}
		fmt.Printf("%s  %s  total=%d passed=%d failed=%d [%s]\n",
			status, e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Total, e.Passed, e.Failed, e.Duration)
	}

	if fw.metrics == nil {
		a.logger.Warn().Msg("Metrics database unavailable, skipping per-test metrics")
		return nil
	}

	metrics, err := fw.metrics.CachedMetrics(ctx.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to load metrics: %w", err)
	}
	if len(metrics) > 0 {
		fmt.Printf("\n=== Test Metrics ===\n\n")
		report.RenderMetricsTable(os.Stdout, metrics)
	}

	if out := ctx.String("output"); out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		if err := writeJSON(file, metrics); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (a *App) maintenance(ctx *cli.Context) error {
	fw, err := NewFramework(a.logger, ctx.String("root"), ctx.String("config"))
	if err != nil {
		return err
	}
	defer fw.Close()

	if fw.metrics == nil {
		return cli.Exit("metrics database unavailable", 1)
	}

	metrics, err := fw.metrics.RefreshMetrics()
	if err != nil {
		return fmt.Errorf("failed to refresh metrics: %w", err)
	}

	var needsAttention int
	for _, m := range metrics {
		if len(m.Tags) > 0 {
			needsAttention++
		}
	}

	fmt.Printf("\n=== Maintenance (%d tests, %d flagged) ===\n\n", len(metrics), needsAttention)
	report.RenderMetricsTable(os.Stdout, metrics)

	if out := ctx.String("output"); out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		if err := writeJSON(file, metrics); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (a *App) installHooks(ctx *cli.Context) error {
	return hooks.InstallPreCommit(a.logger)
}

func (a *App) setupCI(ctx *cli.Context) error {
	return hooks.SetupCI(a.logger, ctx.String("workflow-path"), hooks.CIParams{})
}

package report

// This file contains the output-format projections. Each projection is a
// pure function of the report: no format may alter the underlying counts.

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/regrun/regrun/model"
)

// Formats supported by Write.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Write serializes the report in the named format.
func Write(w io.Writer, format string, r model.RegressionReport) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// WriteJSON emits the machine-readable projection. Reparsing it yields
// identical counts to the in-memory report.
func WriteJSON(w io.Writer, r model.RegressionReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ParseJSON reads a report previously written by WriteJSON.
func ParseJSON(r io.Reader) (model.RegressionReport, error) {
	var report model.RegressionReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return model.RegressionReport{}, fmt.Errorf("failed to parse report: %w", err)
	}
	return report, nil
}

// WriteMarkdown emits a human-readable projection of the report.
func WriteMarkdown(w io.Writer, r model.RegressionReport) error {
	var b strings.Builder
	s := r.Summary

	fmt.Fprintf(&b, "# Regression Report\n\n")
	fmt.Fprintf(&b, "- Execution: `%s`\n", r.ExecutionID)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s with %d worker(s)\n\n", s.Duration.Round(time.Millisecond), s.Workers)

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Total | Passed | Failed | Skipped | Errors | Timeouts | Success |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %.1f%% |\n\n",
		s.Total, s.Passed, s.Failed, s.Skipped, s.Errors, s.Timeouts, s.SuccessRate()*100)

	if len(r.FailedTests) > 0 {
		fmt.Fprintf(&b, "## Failed Tests\n\n")
		for _, p := range r.FailedTests {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		b.WriteString("\n")
	}

	if len(r.FlakyTests) > 0 {
		fmt.Fprintf(&b, "## Flaky Tests\n\n")
		for _, f := range r.FlakyTests {
			fmt.Fprintf(&b, "- `%s` (success rate %.1f%%)\n", f.Path, f.SuccessRate*100)
		}
		b.WriteString("\n")
	}

	if len(r.SlowTests) > 0 {
		fmt.Fprintf(&b, "## Slow Tests\n\n")
		for _, st := range r.SlowTests {
			fmt.Fprintf(&b, "- `%s` (%s)\n", st.Path, st.Duration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	if len(r.Trends) > 0 {
		fmt.Fprintf(&b, "## Duration Trends\n\n")
		for _, t := range r.Trends {
			fmt.Fprintf(&b, "- `%s`: %s (recent %s, earlier %s)\n",
				t.Path, t.Direction,
				t.RecentMean.Round(time.Millisecond),
				t.EarlierMean.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

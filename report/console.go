package report

// This file contains the console projection: a compact table summary
// printed after every run. Like the other projections it is read-only
// over the report.

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/regrun/regrun/model"
)

// RenderConsole writes the table summary of a report to w.
func RenderConsole(w io.Writer, r model.RegressionReport) {
	s := r.Summary

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Total", "Passed", "Failed", "Skipped", "Errors", "Timeouts", "Success", "Duration"})
	t.AppendRow(table.Row{
		s.Total, s.Passed, s.Failed, s.Skipped, s.Errors, s.Timeouts,
		percentString(s.SuccessRate()),
		s.Duration.Round(time.Millisecond).String(),
	})
	t.Render()

	if len(r.Recommendations) > 0 {
		rt := table.NewWriter()
		rt.SetOutputMirror(w)
		rt.SetStyle(table.StyleLight)
		rt.AppendHeader(table.Row{"Recommendations"})
		for _, rec := range r.Recommendations {
			rt.AppendRow(table.Row{rec})
		}
		rt.Render()
	}
}

// RenderMetricsTable writes per-test metrics as a table, used by the
// analyze and maintenance commands.
func RenderMetricsTable(w io.Writer, metrics []model.TestMetrics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Test", "Runs", "Success", "Avg", "Max", "Flakiness", "Priority", "Tags"})
	for _, m := range metrics {
		t.AppendRow(table.Row{
			m.Path,
			m.RunCount,
			percentString(m.StabilityScore),
			m.AvgDuration.Round(time.Millisecond).String(),
			m.MaxDuration.Round(time.Millisecond).String(),
			percentString(m.FlakinessScore),
			string(m.MaintenancePriority),
			strings.Join(m.Tags, ","),
		})
	}
	t.Render()
}

func percentString(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

package runner

import "github.com/regrun/regrun/model"

// Summarize reduces a result list into an execution summary. The
// reduction is associative and commutative: permuting the input never
// changes the counts.
func Summarize(results []model.TestResult) model.ExecutionSummary {
	summary := model.ExecutionSummary{
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		switch r.Status {
		case model.StatusPassed:
			summary.Passed++
		case model.StatusFailed:
			summary.Failed++
		case model.StatusSkipped:
			summary.Skipped++
		case model.StatusError:
			summary.Errors++
		case model.StatusTimeout:
			summary.Timeouts++
		}
	}
	return summary
}

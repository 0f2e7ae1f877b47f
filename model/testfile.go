package model

import "time"

// Category classifies a test file by the kind of coverage it provides.
type Category string

const (
	CategoryUnit        Category = "unit"
	CategoryIntegration Category = "integration"
	CategoryE2E         Category = "e2e"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
	CategoryAPI         Category = "api"
)

// Priority expresses how important a test is for gating decisions.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the sort order of a priority, critical first.
// Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// TestFile represents a single selectable and executable regression test.
// Historical fields (SuccessRate, AvgDuration, Runs) are populated from the
// history store after discovery; everything else comes from the catalog.
type TestFile struct {
	// Path to the test file, relative to the repository root
	Path string `json:"path"`
	// Category of coverage the test provides
	Category Category `json:"category"`
	// Priority for gating decisions
	Priority Priority `json:"priority"`
	// Historical success rate in [0, 1]
	SuccessRate float64 `json:"success_rate"`
	// Average duration over the historical window
	AvgDuration time.Duration `json:"avg_duration"`
	// Number of recorded historical runs
	Runs int `json:"runs"`
	// Modules this test file depends on (import paths)
	Dependencies []string `json:"dependencies,omitempty"`
}

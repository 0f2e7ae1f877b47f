package model

// SuiteConfig is a static, declarative descriptor mapping file patterns and
// paths to a category, priority, timeout, and execution environment. Suites
// are defined in configuration, never derived from file contents at runtime.
type SuiteConfig struct {
	// Name of the suite (unique within a configuration)
	Name string `yaml:"name" json:"name"`
	// Category of tests this suite governs
	Category Category `yaml:"category" json:"category"`
	// Priority assigned to tests matched by this suite
	Priority Priority `yaml:"priority" json:"priority"`
	// Path root under which this suite's tests live
	Path string `yaml:"path" json:"path"`
	// File-name patterns (shell globs against the base name)
	Patterns []string `yaml:"patterns" json:"patterns"`
	// Markers passed to the test harness (-m <marker>)
	Markers []string `yaml:"markers,omitempty" json:"markers,omitempty"`
	// Timeout per test file execution
	Timeout Duration `yaml:"timeout" json:"timeout"`
	// RetryCount is parsed and stored but currently inert: the retry
	// policy (whole test vs. specific statuses) is not yet decided.
	RetryCount int `yaml:"retry_count,omitempty" json:"retry_count,omitempty"`
	// Env overrides applied to the harness process
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Matches reports whether a test file is governed by this suite: the
// category must match, the file must live under the suite path, and the
// base name must match one of the suite patterns (if any are set).
func (s SuiteConfig) Matches(t TestFile) bool {
	if s.Category != "" && s.Category != t.Category {
		return false
	}
	if s.Path != "" && !underPath(t.Path, s.Path) {
		return false
	}
	if len(s.Patterns) == 0 {
		return true
	}
	return matchesAny(baseName(t.Path), s.Patterns)
}

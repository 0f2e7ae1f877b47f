// Package config loads the regrun.yaml project configuration and supplies
// built-in defaults when no file is present.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/regrun/regrun/model"
)

// DefaultFile is the configuration file looked up at the repository root.
const DefaultFile = "regrun.yaml"

// Config holds the project-level settings for selection, execution, and
// reporting.
type Config struct {
	// Workers is the fixed size of the execution worker pool
	Workers int `yaml:"workers"`
	// Harness is the external test-execution command invoked per test file
	Harness []string `yaml:"harness"`
	// NoTestsExitCode is the harness exit code meaning "no tests matched"
	NoTestsExitCode int `yaml:"no_tests_exit_code"`
	// HistoryPath is the JSON history file location
	HistoryPath string `yaml:"history_path"`
	// MetricsDBPath is the sqlite metrics database location
	MetricsDBPath string `yaml:"metrics_db_path"`
	// OutputFormats the report is serialized to (json, markdown)
	OutputFormats []string `yaml:"output_formats"`
	// GlobalTimeout bounds one whole scheduler run
	GlobalTimeout model.Duration `yaml:"global_timeout"`
	// Suites are the declarative suite descriptors
	Suites []model.SuiteConfig `yaml:"suites"`
}

// Default returns the built-in configuration used when regrun.yaml is
// absent. The suite list mirrors the conventional test-tree layout.
func Default() Config {
	return Config{
		Workers:         4,
		Harness:         []string{"pytest"},
		NoTestsExitCode: 5,
		HistoryPath:     ".regrun/history.json",
		MetricsDBPath:   ".regrun/metrics.db",
		OutputFormats:   []string{"json", "markdown"},
		GlobalTimeout:   model.Duration(2 * time.Hour),
		Suites: []model.SuiteConfig{
			{
				Name:     "unit",
				Category: model.CategoryUnit,
				Priority: model.PriorityCritical,
				Path:     "tests/unit",
				Patterns: []string{"test_*.py", "*_test.py"},
				Markers:  []string{"unit"},
				Timeout:  model.Duration(60 * time.Second),
			},
			{
				Name:     "integration",
				Category: model.CategoryIntegration,
				Priority: model.PriorityHigh,
				Path:     "tests/integration",
				Patterns: []string{"test_*.py", "*_test.py"},
				Markers:  []string{"integration"},
				Timeout:  model.Duration(300 * time.Second),
			},
			{
				Name:     "e2e",
				Category: model.CategoryE2E,
				Priority: model.PriorityHigh,
				Path:     "tests/e2e",
				Patterns: []string{"test_*.py", "*_test.py"},
				Markers:  []string{"e2e"},
				Timeout:  model.Duration(600 * time.Second),
			},
			{
				Name:     "performance",
				Category: model.CategoryPerformance,
				Priority: model.PriorityMedium,
				Path:     "tests/performance",
				Patterns: []string{"test_*.py", "*_test.py"},
				Markers:  []string{"performance"},
				Timeout:  model.Duration(900 * time.Second),
			},
			{
				Name:     "security",
				Category: model.CategorySecurity,
				Priority: model.PriorityCritical,
				Path:     "tests/security",
				Patterns: []string{"test_*.py", "*_test.py"},
				Markers:  []string{"security"},
				Timeout:  model.Duration(300 * time.Second),
			},
			{
				Name:     "api",
				Category: model.CategoryAPI,
				Priority: model.PriorityHigh,
				Path:     "tests/api",
				Patterns: []string{"test_*.py", "*_test.py"},
				Markers:  []string{"api"},
				Timeout:  model.Duration(300 * time.Second),
			},
		},
	}
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a malformed file is an error. Fields left unset in the file
// fall back to their default values.
func Load(logger zerolog.Logger, path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", path).Msg("No config file found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = Default().Workers
	}
	if len(cfg.Harness) == 0 {
		cfg.Harness = Default().Harness
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = Default().HistoryPath
	}
	if cfg.MetricsDBPath == "" {
		cfg.MetricsDBPath = Default().MetricsDBPath
	}
	if len(cfg.OutputFormats) == 0 {
		cfg.OutputFormats = Default().OutputFormats
	}
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = Default().GlobalTimeout
	}
	if len(cfg.Suites) == 0 {
		cfg.Suites = Default().Suites
	}

	logger.Debug().Str("path", path).Int("suites", len(cfg.Suites)).Msg("Loaded configuration")
	return cfg, nil
}

// SuiteFor returns the suite governing a test file, falling back to a
// generic suite built from the test's own category when nothing matches.
func (c Config) SuiteFor(t model.TestFile) model.SuiteConfig {
	for _, s := range c.Suites {
		if s.Matches(t) {
			return s
		}
	}
	return model.SuiteConfig{
		Name:     "default",
		Category: t.Category,
		Priority: t.Priority,
		Timeout:  model.Duration(300 * time.Second),
	}
}

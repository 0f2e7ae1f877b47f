package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	// Unknown priorities sort after every known one.
	assert.Greater(t, Priority("whatever").Rank(), PriorityLow.Rank())
}

func TestSuiteMatches(t *testing.T) {
	suite := SuiteConfig{
		Name:     "unit",
		Category: CategoryUnit,
		Path:     "tests/unit",
		Patterns: []string{"test_*.py", "*_test.py"},
	}

	tests := []struct {
		name string
		file TestFile
		want bool
	}{
		{"prefix pattern", TestFile{Path: "tests/unit/test_auth.py", Category: CategoryUnit}, true},
		{"suffix pattern", TestFile{Path: "tests/unit/auth_test.py", Category: CategoryUnit}, true},
		{"nested under path", TestFile{Path: "tests/unit/api/test_auth.py", Category: CategoryUnit}, true},
		{"wrong category", TestFile{Path: "tests/unit/test_auth.py", Category: CategoryE2E}, false},
		{"outside path", TestFile{Path: "tests/e2e/test_auth.py", Category: CategoryUnit}, false},
		{"sibling path prefix", TestFile{Path: "tests/unittest/test_auth.py", Category: CategoryUnit}, false},
		{"no pattern match", TestFile{Path: "tests/unit/helpers.py", Category: CategoryUnit}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suite.Matches(tt.file))
		})
	}
}

func TestSuiteMatchesWithoutPatterns(t *testing.T) {
	suite := SuiteConfig{Name: "e2e", Category: CategoryE2E, Path: "tests/e2e"}
	assert.True(t, suite.Matches(TestFile{Path: "tests/e2e/anything.py", Category: CategoryE2E}))
}

func TestDurationYAML(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Duration
	}{
		{"seconds", "timeout: 90s", Duration(90 * time.Second)},
		{"minutes", "timeout: 5m", Duration(5 * time.Minute)},
		{"bare nanoseconds", "timeout: 1000000000", Duration(time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Timeout Duration `yaml:"timeout"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.raw), &out))
			assert.Equal(t, tt.want, out.Timeout)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		var out struct {
			Timeout Duration `yaml:"timeout"`
		}
		assert.Error(t, yaml.Unmarshal([]byte("timeout: soon"), &out))
	})

	t.Run("round trip", func(t *testing.T) {
		in := struct {
			Timeout Duration `yaml:"timeout"`
		}{Timeout: Duration(90 * time.Second)}
		raw, err := yaml.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "1m30s")

		var out struct {
			Timeout Duration `yaml:"timeout"`
		}
		require.NoError(t, yaml.Unmarshal(raw, &out))
		assert.Equal(t, in.Timeout, out.Timeout)
	})
}

func TestDurationJSON(t *testing.T) {
	in := struct {
		Timeout Duration `json:"timeout"`
	}{Timeout: Duration(90 * time.Second)}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeout":"1m30s"}`, string(raw))

	var out struct {
		Timeout Duration `json:"timeout"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Timeout, out.Timeout)

	require.NoError(t, json.Unmarshal([]byte(`{"timeout":1000000000}`), &out))
	assert.Equal(t, Duration(time.Second), out.Timeout)
}

func TestSummarySuccessRate(t *testing.T) {
	tests := []struct {
		name    string
		summary ExecutionSummary
		want    float64
	}{
		{"all passed", ExecutionSummary{Total: 4, Passed: 4}, 1.0},
		{"half passed", ExecutionSummary{Total: 4, Passed: 2, Failed: 2}, 0.5},
		{"skipped excluded", ExecutionSummary{Total: 4, Passed: 2, Skipped: 2}, 1.0},
		{"empty run", ExecutionSummary{}, 1.0},
		{"all skipped", ExecutionSummary{Total: 3, Skipped: 3}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.summary.SuccessRate(), 1e-9)
		})
	}
}

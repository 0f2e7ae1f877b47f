package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobExecuteExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		command  []string
		wantCode int
	}{
		{
			name:     "success",
			command:  []string{"sh", "-c", "exit 0"},
			wantCode: 0,
		},
		{
			name:     "failure",
			command:  []string{"sh", "-c", "exit 1"},
			wantCode: 1,
		},
		{
			name:     "no tests matched code",
			command:  []string{"sh", "-c", "exit 5"},
			wantCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Job{Command: tt.command, Timeout: 5 * time.Second}.Execute(context.Background())
			assert.Equal(t, tt.wantCode, outcome.ExitCode)
			assert.False(t, outcome.TimedOut)
			assert.NoError(t, outcome.SpawnErr)
		})
	}
}

func TestJobExecuteTimeout(t *testing.T) {
	started := time.Now()
	outcome := Job{
		Command: []string{"sleep", "10"},
		Timeout: 100 * time.Millisecond,
	}.Execute(context.Background())

	assert.True(t, outcome.TimedOut)
	assert.Less(t, time.Since(started), 5*time.Second, "child was killed at the deadline")
}

func TestJobExecuteSpawnError(t *testing.T) {
	outcome := Job{
		Command: []string{"/nonexistent/harness/binary"},
		Timeout: time.Second,
	}.Execute(context.Background())

	assert.Error(t, outcome.SpawnErr)
	assert.False(t, outcome.TimedOut)
}

func TestJobExecuteEmptyCommand(t *testing.T) {
	outcome := Job{}.Execute(context.Background())
	assert.Error(t, outcome.SpawnErr)
}

func TestJobExecuteCapturesStreams(t *testing.T) {
	outcome := Job{
		Command: []string{"sh", "-c", "echo out; echo err >&2"},
		Timeout: 5 * time.Second,
	}.Execute(context.Background())

	require.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "out\n", outcome.Stdout)
	assert.Equal(t, "err\n", outcome.Stderr)
}

func TestJobExecuteEnv(t *testing.T) {
	outcome := Job{
		Command: []string{"sh", "-c", "printf '%s' \"$REGRUN_PROBE\""},
		Env:     map[string]string{"REGRUN_PROBE": "ok"},
		Timeout: 5 * time.Second,
	}.Execute(context.Background())

	require.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "ok", outcome.Stdout)
}

func TestJobString(t *testing.T) {
	j := Job{Command: []string{"pytest", "-m", "unit tests", "tests/test_a.py"}}
	assert.Equal(t, "pytest -m 'unit tests' tests/test_a.py", j.String())
}

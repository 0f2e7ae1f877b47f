package runner

// This file contains the Job abstraction: spawn the external harness,
// wait with a deadline, kill on deadline, capture both streams.

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// Job describes one harness invocation for a single test file.
type Job struct {
	// Command is the full argv, harness binary first
	Command []string
	// Dir the process runs in (empty means inherit)
	Dir string
	// Env overrides appended to the inherited environment
	Env map[string]string
	// Timeout after which the process is forcibly terminated
	Timeout time.Duration
}

// JobOutcome captures what happened to one harness process.
type JobOutcome struct {
	// ExitCode of the process; -1 when it never ran or was killed
	ExitCode int
	// Stdout and Stderr captured in full
	Stdout string
	Stderr string
	// TimedOut is set when the deadline killed the process
	TimedOut bool
	// SpawnErr is set when the process could not be started at all
	SpawnErr error
	// Started and Finished bracket the attempt
	Started  time.Time
	Finished time.Time
}

// String renders the job's command line with shell escaping, for logs.
func (j Job) String() string {
	parts := make([]string, 0, len(j.Command))
	for _, arg := range j.Command {
		parts = append(parts, shellescape.Quote(arg))
	}
	return strings.Join(parts, " ")
}

// Execute spawns the job's process and waits for it under the timeout.
// On deadline the child is killed and the outcome is marked timed out.
// Execution problems never surface as errors: they are part of the
// outcome, so one broken test cannot abort its siblings.
func (j Job) Execute(ctx context.Context) JobOutcome {
	outcome := JobOutcome{ExitCode: -1, Started: time.Now()}

	if len(j.Command) == 0 {
		outcome.SpawnErr = errEmptyCommand
		outcome.Finished = time.Now()
		return outcome
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if j.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, j.Command[0], j.Command[1:]...)
	cmd.Dir = j.Dir
	cmd.Env = os.Environ()
	for k, v := range j.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outcome.Finished = time.Now()
	outcome.Stdout = stdout.String()
	outcome.Stderr = stderr.String()

	if runCtx.Err() == context.DeadlineExceeded {
		outcome.TimedOut = true
		return outcome
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			outcome.ExitCode = exitErr.ExitCode()
			return outcome
		}
		outcome.SpawnErr = err
		return outcome
	}

	outcome.ExitCode = 0
	return outcome
}

type jobError string

func (e jobError) Error() string { return string(e) }

const errEmptyCommand = jobError("job has no command")

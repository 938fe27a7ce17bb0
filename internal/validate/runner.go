// Package validate applies candidate patches to the working tree, builds and
// tests them in two phases, and guarantees the tree is restored on every
// exit path.
package validate

import (
	"bytes"
	"os/exec"
	"time"

	"aprbot/internal/errors"
	"aprbot/internal/logging"
)

// RunResult captures one subprocess invocation. Output is the merged
// stdout/stderr stream.
type RunResult struct {
	Output   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Runner executes opaque shell commands one at a time. Each child runs in
// its own process group so that a timeout can signal the whole tree.
type Runner struct {
	logger *logging.Logger

	// grace is how long a timed-out child may drain between TERM and KILL.
	grace time.Duration
}

// NewRunner creates a runner with the given TERM-to-KILL grace period.
func NewRunner(logger *logging.Logger, grace time.Duration) *Runner {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Runner{
		logger: logger.WithComponent("runner"),
		grace:  grace,
	}
}

// Run executes command through the shell in dir with the given timeout.
// On timeout the child's process group receives TERM, is drained for the
// grace period, then receives KILL; the result reports TimedOut and the
// returned error carries the Timeout code.
func (r *Runner) Run(command, dir string, timeout time.Duration) (RunResult, error) {
	if timeout <= 0 {
		return RunResult{TimedOut: true}, errors.New(errors.Timeout, "no time budget remaining for: "+command, nil)
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	setProcessGroup(cmd)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1}, errors.New(errors.InternalError, "failed to start command: "+command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	timedOut := false

	select {
	case waitErr = <-done:
	case <-time.After(timeout):
		timedOut = true
		r.logger.Warn("Command timed out, terminating process group", map[string]interface{}{
			"command": command,
			"timeout": timeout.String(),
		})
		terminateProcessGroup(cmd)
		select {
		case waitErr = <-done:
		case <-time.After(r.grace):
			killProcessGroup(cmd)
			waitErr = <-done
		}
	}

	result := RunResult{
		Output:   output.String(),
		ExitCode: exitCodeOf(waitErr),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}

	if timedOut {
		return result, errors.New(errors.Timeout, "command timed out after "+timeout.String()+": "+command, waitErr)
	}
	return result, nil
}

func exitCodeOf(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

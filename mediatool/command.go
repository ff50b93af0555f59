// Package mediatool wraps the external media programs (ffmpeg, ffprobe,
// yt-dlp, whisper, edge-tts) behind a typed, timeout-bounded command runner.
package mediatool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a command that does not set its own
const DefaultTimeout = 5 * time.Minute

// waitDelay caps how long Run waits for output pipes after the process
// group has been killed
const waitDelay = 2 * time.Second

// Command is one external process invocation
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// String renders the command line for logs
func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of running a Command
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
	TimedOut bool
	Err      error
}

// OK reports whether the process started and exited zero
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Error describes a failed result. It returns nil for a successful one.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	if r.TimedOut {
		return fmt.Errorf("timed out after %s", r.Duration.Round(time.Millisecond))
	}
	tail := lastLines(string(r.Stderr), 3)
	if r.Err != nil && r.ExitCode <= 0 {
		return fmt.Errorf("%w %s", r.Err, tail)
	}
	return fmt.Errorf("exit status %d: %s", r.ExitCode, tail)
}

// Runner executes commands. Tests substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	Log *logrus.Entry
}

// NewExecRunner creates a runner that logs each command at debug level
func NewExecRunner(log *logrus.Entry) *ExecRunner {
	return &ExecRunner{Log: log}
}

// Run blocks until the command exits or its timeout elapses. On timeout the
// whole process group is killed.
func (r *ExecRunner) Run(ctx context.Context, c Command) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if r.Log != nil {
		r.Log.Debugf("exec: %s", c)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children such as the ffmpeg that yt-dlp spawns die with the command
	killGroupOnCancel(cmd)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		res.Err = ctx.Err()
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// binary missing or not executable
		res.ExitCode = -1
		res.Err = err
	}
	return res
}

// Available reports whether a program can be found on PATH
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

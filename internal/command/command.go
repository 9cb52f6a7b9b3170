// Package command runs external tools with an explicit working directory.
//
// Every invocation carries its own Dir and environment; nothing here changes
// the process working directory.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// maxStderr bounds how much captured stderr is kept in an Error.
	maxStderr = 4096
	// waitDelay bounds how long output pipes may outlive a killed process,
	// e.g. when a build script leaves children holding stdout.
	waitDelay = 10 * time.Second
)

// Cmd describes a single external invocation.
type Cmd struct {
	// Name is the executable, resolved through PATH.
	Name string
	// Args are passed verbatim; no shell is involved.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the process environment.
	Env []string
	// Stdout and Stderr optionally receive a live copy of the output.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout bounds the call when the context carries no deadline. Zero disables it.
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Error is returned when an external command fails to start, exits non-zero,
// or times out.
type Error struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Cmd, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code, or -1 when the command never ran
// to completion.
func (e *Error) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Executor runs external commands. Tests substitute fakes.
type Executor interface {
	Run(ctx context.Context, c Cmd) (string, error)
}

// Runner is the os/exec backed Executor.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a Runner that traces invocations at debug level.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger}
}

// Run executes c and returns its trimmed stdout.
func (r *Runner) Run(ctx context.Context, c Cmd) (string, error) {
	if c.Timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stdout)
	}
	cmd.Stderr = &stderr
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, c.Stderr)
	}

	start := time.Now()
	r.logger.Debug("exec", "cmd", c.String(), "dir", c.Dir)

	err := cmd.Run()
	r.logger.Debug("exec done", "cmd", c.Name, "duration", time.Since(start).Round(time.Millisecond), "err", err)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && c.Timeout > 0 {
			err = fmt.Errorf("timed out after %v: %w", c.Timeout, err)
		}
		return "", &Error{Cmd: c.String(), Stderr: tail(stderr.String()), Err: err}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// tail trims s and keeps at most maxStderr trailing bytes.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}

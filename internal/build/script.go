package build

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cameronsjo/coxswain/internal/command"
	"github.com/cameronsjo/coxswain/internal/fileutil"
)

// Default script invocation.
const (
	DefaultShell  = "bash"
	DefaultScript = "build.sh"
)

// Script runs `<shell> <script> <app> <version> <mode>` in the unit directory.
type Script struct {
	exec    command.Executor
	shell   string
	script  string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

// ScriptOption configures a Script strategy.
type ScriptOption func(*Script)

// WithShell sets the interpreter and script file name.
func WithShell(shell, script string) ScriptOption {
	return func(s *Script) {
		if shell != "" {
			s.shell = shell
		}
		if script != "" {
			s.script = script
		}
	}
}

// WithScriptTimeout bounds each script run. Zero means no limit.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(s *Script) {
		s.timeout = d
	}
}

// WithScriptOutput streams script output to the given writers.
func WithScriptOutput(stdout, stderr io.Writer) ScriptOption {
	return func(s *Script) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// NewScript creates the script strategy.
func NewScript(exec command.Executor, opts ...ScriptOption) *Script {
	s := &Script{
		exec:   exec,
		shell:  DefaultShell,
		script: DefaultScript,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Strategy.
func (s *Script) Name() string { return StrategyScript }

// Build implements Strategy.
func (s *Script) Build(ctx context.Context, req Request) error {
	if !fileutil.IsFile(filepath.Join(req.Dir, s.script)) {
		return fmt.Errorf("build script %s not found in %s", s.script, req.Dir)
	}

	_, err := s.exec.Run(ctx, command.Cmd{
		Name:    s.shell,
		Args:    []string{s.script, req.App, req.Version, req.Mode},
		Dir:     req.Dir,
		Env:     req.Environ(),
		Stdout:  s.stdout,
		Stderr:  s.stderr,
		Timeout: s.timeout,
	})
	return err
}

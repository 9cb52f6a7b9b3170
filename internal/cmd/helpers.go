package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cameronsjo/coxswain/internal/build"
	"github.com/cameronsjo/coxswain/internal/command"
	"github.com/cameronsjo/coxswain/internal/config"
	"github.com/cameronsjo/coxswain/internal/docker"
	"github.com/cameronsjo/coxswain/internal/k8s"
	"github.com/cameronsjo/coxswain/internal/logging"
	"github.com/cameronsjo/coxswain/internal/reconcile"
)

// startDirectory returns the absolute directory unit paths resolve against.
func startDirectory() (string, error) {
	dir := startDirFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig(startDir string) (*config.Config, error) {
	cfg, err := config.Load(configFile, startDir)
	if err != nil {
		return nil, err
	}

	if strategyFlag != "" {
		cfg.Build.Strategy = strategyFlag
	}
	if rewriterFlag != "" {
		cfg.Rewriter = rewriterFlag
	}
	if strictSettingsFlag {
		cfg.StrictSettings = true
	}
	if noPushFlag {
		cfg.Git.Push = false
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is everything a run or plan needs, resolved from arguments and config.
type session struct {
	cfg      *config.Config
	layout   *config.Layout
	logger   *slog.Logger
	exec     command.Executor
	images   *k8s.ImageTemplate
	runCfg   *reconcile.Config
	closeFns []func() error
}

// newSession validates the positional arguments and loads configuration.
func newSession(stderr io.Writer, env, mode, repo string) (*session, error) {
	startDir, err := startDirectory()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(startDir)
	if err != nil {
		return nil, err
	}

	layout, err := cfg.Resolve(startDir, env, repo)
	if err != nil {
		return nil, err
	}

	images, err := k8s.ParseImageTemplate(cfg.Build.Image)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(stderr, logging.ParseLevel(cfg.Log.Level))
	logger.Debug("config loaded", "file", cfg.File, "deployment_dir", layout.DeploymentDir, "strategy", cfg.Build.Strategy)

	return &session{
		cfg:    cfg,
		layout: layout,
		logger: logger,
		exec:   command.NewRunner(logger),
		images: images,
		runCfg: &reconcile.Config{
			Env:            env,
			Mode:           mode,
			Repo:           repo,
			Layout:         layout,
			PreProduction:  cfg.PreProduction,
			StrictSettings: cfg.StrictSettings,
			YAMLDelimiter:  cfg.Layout.YAMLDelimiter,
			Push:           cfg.Git.Push,
			LockDir:        cfg.StateDir,
		},
	}, nil
}

// newStrategy builds the configured build strategy. Build output is streamed
// to stdout and stderr.
func (s *session) newStrategy(ctx context.Context, stdout, stderr io.Writer) (build.Strategy, error) {
	b := s.cfg.Build
	switch b.Strategy {
	case build.StrategyScript:
		return build.NewScript(s.exec,
			build.WithShell(b.Shell, b.Script),
			build.WithScriptTimeout(s.cfg.Timeouts.Build),
			build.WithScriptOutput(stdout, stderr),
		), nil

	case build.StrategyContainer:
		client, err := docker.NewClient(stdout)
		if err != nil {
			return nil, fmt.Errorf("connect to docker: %w", err)
		}
		s.closeFns = append(s.closeFns, client.Close)
		if !build.IsCI(s.runCfg.Mode) {
			if err := client.Ping(ctx); err != nil {
				return nil, err
			}
		}
		return build.NewContainer(s.exec, client,
			build.WithPublish(b.Publish),
			build.WithDockerfile(b.Dockerfile),
			build.WithPush(b.Push),
			build.WithRegistryAuth(docker.Auth{
				Server:   s.cfg.Registry.Server,
				Username: s.cfg.Registry.Username,
				Password: s.cfg.Registry.Password,
			}),
			build.WithPublishTimeout(s.cfg.Timeouts.Build),
			build.WithPublishOutput(stdout, stderr),
		), nil

	default:
		return nil, build.ValidateName(b.Strategy)
	}
}

// newReconciler wires the strategy, rewriter and git client into a Reconciler.
func (s *session) newReconciler(ctx context.Context, stdout, stderr io.Writer) (*reconcile.Reconciler, error) {
	strategy, err := s.newStrategy(ctx, stdout, stderr)
	if err != nil {
		return nil, err
	}

	rewriter, err := k8s.NewRewriter(s.cfg.Rewriter, s.exec, s.cfg.Timeouts.Rewrite)
	if err != nil {
		return nil, err
	}

	return reconcile.NewReconciler(s.runCfg,
		reconcile.WithStrategy(strategy),
		reconcile.WithRewriter(rewriter),
		reconcile.WithVCS(reconcile.NewGitOps(s.layout.DeploymentDir, s.exec, s.cfg.Timeouts.Git)),
		reconcile.WithImageTemplate(s.images),
	), nil
}

// Close releases clients opened for the session.
func (s *session) Close() {
	for _, fn := range s.closeFns {
		if err := fn(); err != nil {
			s.logger.Debug("close", "err", err)
		}
	}
}

// Package cmd provides the CLI commands for coxswain.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/coxswain/internal/alert"
	"github.com/cameronsjo/coxswain/internal/reconcile"
	"github.com/cameronsjo/coxswain/internal/ui"
)

// version is overridden at release time with -ldflags "-X ...cmd.version=".
var version = "0.1.0"

// alertTimeout bounds the post-run notification.
const alertTimeout = 15 * time.Second

var (
	configFile         string
	startDirFlag       string
	strategyFlag       string
	rewriterFlag       string
	strictSettingsFlag bool
	noPushFlag         bool
	logLevelFlag       string
)

// exitError carries a process exit code without an extra error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootCmd runs a deployment when called with ENV BUILD_MODE REPO.
var rootCmd = &cobra.Command{
	Use:   "coxswain <ENVIRONMENT> <BUILD_MODE> <REPO>",
	Short: "Build changed units and commit their new versions",
	Long: `coxswain - deployment driver

Reads build.config.json from the repo's Deployment directory, compares each
unit's recorded version with Deployment.Version in its appsettings, builds
the units that changed and records the new versions. Outside CI mode it also
rewrites the Deployment images in the referenced k8s files, then commits
"app::version ..." and pushes.

A BUILD_MODE of CI (any case) only builds; nothing is rewritten or committed.

COMMANDS
  plan ENV MODE REPO    Show what a run would build, without side effects
  doctor                Check required tools and configuration
  update                Update coxswain to the latest release

Configuration is read from --config or .coxswain.yaml in the start directory,
then COXSWAIN_* environment variables, then flags.`,
	Example: `  coxswain dev Release billing
  coxswain prod CI billing --strategy container
  coxswain staging Release billing --no-push --log-level debug`,
	Version: version,
	Args:    cobra.ExactArgs(3),
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		ui.SetOutput(cmd.OutOrStdout())
	},
	RunE: runDeploy,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: .coxswain.yaml in the start directory)")
	flags.StringVarP(&startDirFlag, "start-dir", "C", "", "Directory unit paths resolve against (default: current directory)")
	flags.StringVar(&strategyFlag, "strategy", "", "Build strategy: script or container")
	flags.StringVar(&rewriterFlag, "rewriter", "", "k8s image rewriter: yq or native")
	flags.BoolVar(&strictSettingsFlag, "strict-settings", false, "Fail units whose appsettings version cannot be read")
	flags.BoolVar(&noPushFlag, "no-push", false, "Commit without pushing")
	flags.StringVar(&logLevelFlag, "log-level", "", "Debug log level: debug, info, warn, error")

	rootCmd.SetVersionTemplate("coxswain version {{.Version}}\n")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return 1
}

func runDeploy(cmd *cobra.Command, args []string) error {
	// Arguments are valid from here on; failures are reported by the run itself.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	ctx := cmd.Context()

	s, err := newSession(cmd.ErrOrStderr(), args[0], args[1], args[2])
	if err != nil {
		ui.Error("Configuration: %v", err)
		return &exitError{code: 1}
	}
	defer s.Close()

	r, err := s.newReconciler(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		ui.Error("Configuration: %v", err)
		return &exitError{code: 1}
	}

	report, runErr := r.Run(ctx)
	if runErr != nil {
		s.logger.Debug("run stopped", "err", runErr, "fatal", reconcile.IsFatal(runErr))
	}

	notify(ctx, s, report)

	if code := report.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// notify sends the run report to the configured alert providers. Failures
// to notify never change the exit code.
func notify(ctx context.Context, s *session, report *reconcile.Report) {
	m := alert.NewManager()
	m.AddProvider(alert.NewDiscordProvider(s.cfg.Alert.DiscordWebhook))
	if !m.HasProviders() {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	if err := m.SendRunReport(ctx, report, s.cfg.Alert.OnSuccess); err != nil {
		ui.Warning("Notification failed: %v", err)
	}
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/coxswain/internal/alert"
	"github.com/cameronsjo/coxswain/internal/build"
	"github.com/cameronsjo/coxswain/internal/config"
	"github.com/cameronsjo/coxswain/internal/docker"
	"github.com/cameronsjo/coxswain/internal/preflight"
	"github.com/cameronsjo/coxswain/internal/ui"
)

// doctorCmd runs pre-flight checks.
var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Aliases: []string{"checkup"},
	Short:   "Pre-flight checks for tools and configuration",
	Long: `Doctor loads the configuration and checks that every tool the configured
build strategy and rewriter need is on PATH. With the container strategy it
also pings the Docker daemon. With --notify the findings are sent to the
configured alert webhook.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorNotify bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorNotify, "notify", false, "Send the results to the configured alert webhook")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ui.Info("Running pre-flight checks...")
	ui.Blank()

	passed, warned, failed := 0, 0, 0
	var issues []string

	startDir, err := startDirectory()
	if err != nil {
		ui.Error("%v", err)
		return &exitError{code: 1}
	}
	cfg, err := loadConfig(startDir)
	if err != nil {
		ui.Fail("Configuration: %v", err)
		return &exitError{code: 1}
	}
	if cfg.File != "" {
		ui.Pass("Config file: %s", cfg.File)
	} else {
		ui.Pass("Config: built-in defaults")
	}
	passed++

	for _, check := range preflight.Requirements(cfg) {
		missing := preflight.Missing([]preflight.BinaryCheck{check}, nil)
		switch {
		case len(missing) == 0:
			ui.Pass("%s (%s)", check.Name, check.Purpose)
			passed++
		case check.Required:
			ui.Fail("%s not found: %s", check.Name, check.InstallHint)
			issues = append(issues, fmt.Sprintf("%s not found (%s)", check.Name, check.Purpose))
			failed++
		default:
			ui.Notice("%s not found: %s", check.Name, check.InstallHint)
			issues = append(issues, fmt.Sprintf("%s not found (%s, optional)", check.Name, check.Purpose))
			warned++
		}
	}

	if cfg.Build.Strategy == build.StrategyContainer {
		if err := pingDocker(cmd.Context()); err != nil {
			ui.Fail("Docker daemon: %v", err)
			issues = append(issues, fmt.Sprintf("docker daemon: %v", err))
			failed++
		} else {
			ui.Pass("Docker daemon is running")
			passed++
		}
	}

	if cfg.Alert.DiscordWebhook != "" {
		ui.Pass("Discord notifications configured")
		passed++
	} else {
		ui.Notice("No alert.discord_webhook, run notifications disabled")
		warned++
	}

	ui.Blank()
	ui.Tally(passed, warned, failed)

	if doctorNotify {
		sendDoctorAlert(cmd.Context(), cfg, failed, warned, issues)
	}

	if failed > 0 {
		ui.Blank()
		ui.Error("Not ready to deploy. Fix errors above.")
		return &exitError{code: 1}
	}
	return nil
}

func pingDocker(ctx context.Context) error {
	client, err := docker.NewClient(nil)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}

func sendDoctorAlert(ctx context.Context, cfg *config.Config, failed, warned int, issues []string) {
	m := alert.NewManager()
	m.AddProvider(alert.NewDiscordProvider(cfg.Alert.DiscordWebhook))
	if !m.HasProviders() {
		ui.Warning("--notify given but no alert.discord_webhook is configured")
		return
	}

	severity := alert.SeverityInfo
	switch {
	case failed > 0:
		severity = alert.SeverityError
	case warned > 0:
		severity = alert.SeverityWarning
	}

	ctx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()

	if err := m.SendDoctorAlert(ctx, severity, issues); err != nil {
		ui.Warning("Notification failed: %v", err)
		return
	}
	ui.Info("Sent results to %s", strings.Join(m.ProviderNames(), ", "))
}

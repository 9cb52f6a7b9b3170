package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/coxswain/internal/ui"
	"github.com/cameronsjo/coxswain/internal/update"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update coxswain to the latest version",
	Long: `Update coxswain to the latest version from GitHub releases.

This command will:
1. Check for a newer version on GitHub
2. Download the appropriate binary for your platform
3. Replace the current binary with the new version`,
	Example: `  coxswain update           # Update to latest version
  coxswain update --check   # Check for updates without installing`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var checkOnly bool

// maxChangelogLines limits how much of the release notes is printed.
const maxChangelogLines = 10

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, don't install")
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ui.Info("Current version: %s (%s)", version, update.GetPlatformInfo())
	ui.Info("Checking for updates...")

	var err error
	if checkOnly {
		err = checkForUpdate(cmd.Context())
	} else {
		err = performUpdate(cmd.Context())
	}
	if err != nil {
		ui.Error("%v", err)
		return &exitError{code: 1}
	}
	return nil
}

func checkForUpdate(ctx context.Context) error {
	release, available, err := update.CheckForUpdate(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	if !available {
		ui.Success("You're running the latest version!")
		return nil
	}

	ui.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
	ui.Blank()
	ui.Info("To update, run: coxswain update")
	ui.Blank()
	printChangelog(release.Changelog)
	return nil
}

func performUpdate(ctx context.Context) error {
	release, err := update.Update(ctx, version)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	if release == nil {
		ui.Success("You're already running the latest version!")
		return nil
	}

	ui.Blank()
	ui.Success("Successfully updated to version %s!", release.Version)
	ui.Blank()
	printChangelog(release.Changelog)
	return nil
}

func printChangelog(changelog string) {
	if changelog == "" {
		return
	}

	ui.Warning("What's new:")
	lines := strings.Split(changelog, "\n")
	shown := min(len(lines), maxChangelogLines)
	for _, line := range lines[:shown] {
		ui.Detail("%s", line)
	}
	if len(lines) > shown {
		ui.Detail("... (%d more lines)", len(lines)-shown)
	}
}

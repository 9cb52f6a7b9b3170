package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cameronsjo/coxswain/internal/reconcile"
	"github.com/cameronsjo/coxswain/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan <ENVIRONMENT> <BUILD_MODE> <REPO>",
	Short: "Show which units a run would build",
	Long: `Plan reads the manifest and each unit's appsettings and prints the
decision for every unit. Nothing is built, written or committed.

Exits 1 when any unit would fail before its build starts.`,
	Example: `  coxswain plan dev Release billing`,
	Args:    cobra.ExactArgs(3),
	RunE:    runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	s, err := newSession(cmd.ErrOrStderr(), args[0], args[1], args[2])
	if err != nil {
		ui.Error("Configuration: %v", err)
		return &exitError{code: 1}
	}
	defer s.Close()

	r := reconcile.NewReconciler(s.runCfg, reconcile.WithImageTemplate(s.images))
	decisions, err := r.Plan(cmd.Context())
	if err != nil {
		ui.Error("%v", err)
		return &exitError{code: 1}
	}

	ui.Header("Plan for %s %s %s", args[0], args[1], args[2])
	ui.Info("Manifest %s", s.layout.ManifestPath())
	ui.Rule()

	builds, failures := 0, 0
	for _, d := range decisions {
		if d.SettingsWarning != nil {
			ui.Warning("%s: %v", d.App, d.SettingsWarning)
		}
		switch d.Action {
		case reconcile.ActionBuild:
			builds++
			ui.Package("build %s %s -> %s (%s)", d.App, d.Recorded, d.Declared, d.Image)
		case reconcile.ActionSkip:
			ui.Anchor("skip  %s %s", d.App, d.Recorded)
		case reconcile.ActionError:
			failures++
			ui.Error("fail  %s: %v", d.App, d.Err)
		}
	}

	ui.Rule()
	ui.Info("%d to build, %d unchanged, %d failing", builds, len(decisions)-builds-failures, failures)
	if failures > 0 {
		return &exitError{code: 1}
	}
	return nil
}

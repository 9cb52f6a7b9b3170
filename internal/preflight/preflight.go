// Package preflight checks that the external tools a run depends on are installed.
package preflight

import (
	"os/exec"

	"github.com/cameronsjo/coxswain/internal/build"
	"github.com/cameronsjo/coxswain/internal/config"
	"github.com/cameronsjo/coxswain/internal/k8s"
)

// BinaryCheck represents a required binary and its purpose.
type BinaryCheck struct {
	Name        string
	Purpose     string
	Required    bool   // false = warning only
	InstallHint string // e.g., "apt install jq" or "https://..."
}

// LookPathFunc resolves a binary name. exec.LookPath in production.
type LookPathFunc func(name string) (string, error)

var (
	gitCheck = BinaryCheck{
		Name:        "git",
		Purpose:     "commit and push version changes",
		Required:    true,
		InstallHint: "Install git: https://git-scm.com/downloads",
	}
	yqCheck = BinaryCheck{
		Name:        "yq",
		Purpose:     "rewrite Kubernetes manifests",
		Required:    true,
		InstallHint: "Install yq: https://github.com/mikefarah/yq#install",
	}
	dockerCheck = BinaryCheck{
		Name:        "docker",
		Purpose:     "docker CLI for inspecting built images",
		Required:    false,
		InstallHint: "Install Docker: https://docs.docker.com/get-docker/",
	}
)

// Requirements lists the binaries cfg needs. Build tools are only checked
// for the strategy in use.
func Requirements(cfg *config.Config) []BinaryCheck {
	checks := []BinaryCheck{gitCheck}

	switch cfg.Build.Strategy {
	case build.StrategyScript:
		if cfg.Build.Shell != "" {
			checks = append(checks, BinaryCheck{
				Name:        cfg.Build.Shell,
				Purpose:     "run " + cfg.Build.Script,
				Required:    true,
				InstallHint: "Install " + cfg.Build.Shell + " or set build.shell",
			})
		}
	case build.StrategyContainer:
		if len(cfg.Build.Publish) > 0 {
			tool := cfg.Build.Publish[0]
			checks = append(checks, BinaryCheck{
				Name:        tool,
				Purpose:     "publish units before building images",
				Required:    true,
				InstallHint: "Install " + tool + " or set build.publish",
			})
		}
		checks = append(checks, dockerCheck)
	}

	if cfg.Rewriter == k8s.RewriterYQ {
		checks = append(checks, yqCheck)
	}
	return checks
}

// Missing returns the checks whose binary lookPath cannot find.
func Missing(checks []BinaryCheck, lookPath LookPathFunc) []BinaryCheck {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var missing []BinaryCheck
	for _, bin := range checks {
		if _, err := lookPath(bin.Name); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// CheckAll performs all pre-flight checks for cfg and returns warnings and errors.
// Errors are for missing required binaries, warnings are for missing optional binaries.
func CheckAll(cfg *config.Config, lookPath LookPathFunc) (warnings []string, errors []string) {
	for _, bin := range Missing(Requirements(cfg), lookPath) {
		line := bin.Name + ": " + bin.InstallHint
		if bin.Required {
			errors = append(errors, line)
		} else {
			warnings = append(warnings, line)
		}
	}
	return warnings, errors
}

// IsBinaryAvailable checks if a specific binary is available in PATH.
func IsBinaryAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

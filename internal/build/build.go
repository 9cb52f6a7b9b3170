// Package build defines how a deployable unit is turned into an image.
//
// The driver hands every unit to a Strategy. The script strategy runs the
// unit's own build script; the container strategy publishes the unit and
// builds, tags and pushes the image through the Docker engine.
package build

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Strategy names accepted in configuration.
const (
	StrategyScript    = "script"
	StrategyContainer = "container"
)

// Environment variables exported to build collaborators.
const (
	EnvRunID = "COXSWAIN_RUN_ID"
	EnvImage = "COXSWAIN_IMAGE"
)

// ErrUnknownStrategy indicates a strategy name that is not registered.
var ErrUnknownStrategy = errors.New("unknown build strategy")

// Request describes one unit build.
type Request struct {
	// App is the unit identifier, used as the image tag name.
	App string
	// Dir is the absolute unit directory.
	Dir string
	// Version is the version being built.
	Version string
	// Mode is the build mode as given on the command line.
	Mode string
	// CI is true when Mode selects CI mode.
	CI bool
	// Image is the fully rendered image reference.
	Image string
	// RunID identifies the driver run.
	RunID string
	// Env holds extra KEY=VALUE pairs for the build environment.
	Env []string
}

// Environ returns Env plus the run metadata variables.
func (r Request) Environ() []string {
	env := make([]string, 0, len(r.Env)+2)
	env = append(env, r.Env...)
	env = append(env, EnvRunID+"="+r.RunID, EnvImage+"="+r.Image)
	return env
}

// Strategy builds a single unit.
type Strategy interface {
	Name() string
	Build(ctx context.Context, req Request) error
}

// IsCI reports whether mode selects CI mode. Comparison ignores case.
func IsCI(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), "CI")
}

// ValidateName checks name is a known strategy.
func ValidateName(name string) error {
	switch name {
	case StrategyScript, StrategyContainer:
		return nil
	default:
		return fmt.Errorf("%w %q (want %s or %s)", ErrUnknownStrategy, name, StrategyScript, StrategyContainer)
	}
}

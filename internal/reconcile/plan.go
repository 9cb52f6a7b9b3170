package reconcile

import (
	"context"
	"fmt"

	"github.com/cameronsjo/coxswain/internal/appsettings"
	"github.com/cameronsjo/coxswain/internal/fileutil"
	"github.com/cameronsjo/coxswain/internal/k8s"
	"github.com/cameronsjo/coxswain/internal/manifest"
)

// Action is the build decision for a unit.
type Action string

// Decision actions.
const (
	ActionBuild Action = "build"
	ActionSkip  Action = "skip"
	ActionError Action = "error"
)

// Decision is the outcome of evaluating a unit without building it.
type Decision struct {
	Index    int
	App      string
	Dir      string
	Settings string
	Recorded string
	Declared string
	Image    string
	Action   Action
	// SettingsWarning is set when the settings file could not be read and
	// the recorded version was used instead.
	SettingsWarning error
	Err             error
}

// decide resolves the unit directory and declared version and applies the
// skip rule.
func (r *Reconciler) decide(u manifest.Unit) Decision {
	cfg := r.config
	d := Decision{App: u.App, Recorded: u.Version, Declared: u.Version}

	d.Dir = cfg.Layout.UnitDir(u.Path)
	if !fileutil.IsDir(d.Dir) {
		d.Action = ActionError
		d.Err = fmt.Errorf("%w: %s", ErrPath, d.Dir)
		return d
	}

	d.Settings = appsettings.ResolvePath(d.Dir, cfg.Env, cfg.PreProduction)
	version, err := appsettings.ReadVersion(d.Settings)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSettings, d.Settings, err)
		if cfg.StrictSettings {
			d.Action = ActionError
			d.Err = err
			return d
		}
		d.SettingsWarning = err
		version = u.Version
	}
	d.Declared = version

	if d.Declared == d.Recorded {
		d.Action = ActionSkip
		return d
	}
	d.Action = ActionBuild
	return d
}

// Plan evaluates every unit and reports what Run would do. Nothing is built,
// written or committed.
func (r *Reconciler) Plan(ctx context.Context) ([]Decision, error) {
	cfg := r.config
	if cfg.Layout == nil {
		return nil, fmt.Errorf("%w: no deployment layout", ErrConfiguration)
	}

	m, err := manifest.Load(cfg.Layout.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	decisions := make([]Decision, 0, m.Len())
	for i, u := range m.Units {
		if err := ctx.Err(); err != nil {
			return decisions, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		d := r.decide(u)
		d.Index = i
		if d.Action == ActionBuild {
			image, err := r.images.Render(k8s.ImageData{App: u.App, Version: d.Declared, Env: cfg.Env, Repo: cfg.Repo})
			if err != nil {
				d.Action = ActionError
				d.Err = fmt.Errorf("%w: %w", ErrImageRef, err)
			} else {
				d.Image = image
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

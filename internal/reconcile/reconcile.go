// Package reconcile drives a deployment run: it decides which units need a
// build, builds them, records the new versions, rewrites image references
// and commits the result.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cameronsjo/coxswain/internal/appsettings"
	"github.com/cameronsjo/coxswain/internal/build"
	"github.com/cameronsjo/coxswain/internal/command"
	"github.com/cameronsjo/coxswain/internal/config"
	"github.com/cameronsjo/coxswain/internal/fileutil"
	"github.com/cameronsjo/coxswain/internal/k8s"
	"github.com/cameronsjo/coxswain/internal/lock"
	"github.com/cameronsjo/coxswain/internal/manifest"
	"github.com/cameronsjo/coxswain/internal/ui"
)

// Config holds the run parameters.
type Config struct {
	// Env is the environment name, used verbatim in paths.
	Env string
	// Mode is the build mode. "CI" in any case selects CI mode.
	Mode string
	// Repo selects the deployment directory.
	Repo string
	// Layout holds the resolved paths for Env and Repo.
	Layout *config.Layout

	// PreProduction lists environments that read appsettings.<env>.json.
	PreProduction []string
	// StrictSettings fails a unit whose settings cannot be read instead of
	// falling back to the recorded version.
	StrictSettings bool
	// YAMLDelimiter separates k8s file names in a unit's yaml field.
	YAMLDelimiter string
	// Push publishes the commit. False stops after committing.
	Push bool
	// LockDir holds the advisory lock. Empty disables locking.
	LockDir string
	// RunID identifies the run. Generated when empty.
	RunID string
}

// CI reports whether the run is in CI mode.
func (c *Config) CI() bool {
	return build.IsCI(c.Mode)
}

// Reconciler orchestrates a deployment run.
type Reconciler struct {
	config   *Config
	strategy build.Strategy
	rewriter k8s.Rewriter
	vcs      VCS
	images   *k8s.ImageTemplate
}

// NewReconciler creates a new Reconciler with the given configuration. The
// defaults run build.sh, rewrite with yq and commit with the git client.
func NewReconciler(cfg *Config, opts ...ReconcilerOption) *Reconciler {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.PreProduction == nil {
		cfg.PreProduction = appsettings.DefaultPreProduction
	}

	exec := command.NewRunner(nil)
	images, _ := k8s.ParseImageTemplate(k8s.DefaultImageTemplate)
	r := &Reconciler{
		config:   cfg,
		strategy: build.NewScript(exec),
		rewriter: k8s.NewYQ(exec, 0),
		images:   images,
	}
	if cfg.Layout != nil {
		r.vcs = NewGitOps(cfg.Layout.DeploymentDir, exec, 0)
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ReconcilerOption is a functional option for configuring the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithStrategy sets the build strategy.
func WithStrategy(s build.Strategy) ReconcilerOption {
	return func(r *Reconciler) {
		r.strategy = s
	}
}

// WithRewriter sets the k8s image rewriter.
func WithRewriter(rw k8s.Rewriter) ReconcilerOption {
	return func(r *Reconciler) {
		r.rewriter = rw
	}
}

// WithVCS sets the version control collaborator.
func WithVCS(vcs VCS) ReconcilerOption {
	return func(r *Reconciler) {
		r.vcs = vcs
	}
}

// WithImageTemplate sets how image references are rendered.
func WithImageTemplate(t *k8s.ImageTemplate) ReconcilerOption {
	return func(r *Reconciler) {
		r.images = t
	}
}

// Run processes every unit of the manifest in order. Unit failures are
// recorded in the report; the returned error is set only for failures that
// stop the run.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := r.config
	report := &Report{
		RunID: cfg.RunID,
		Env:   cfg.Env,
		Repo:  cfg.Repo,
		Mode:  cfg.Mode,
		CI:    cfg.CI(),
	}
	fail := func(err error) (*Report, error) {
		report.Err = err
		report.Duration = time.Since(start)
		return report, err
	}

	if cfg.Layout == nil {
		return fail(fmt.Errorf("%w: no deployment layout", ErrConfiguration))
	}

	if cfg.LockDir != "" {
		l := lock.New(cfg.LockDir, lock.Key(cfg.Repo, cfg.Env))
		if err := l.Acquire(); err != nil {
			return fail(fmt.Errorf("%w: %v", ErrConfiguration, err))
		}
		defer l.Release()
	}

	manifestPath := cfg.Layout.ManifestPath()
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	buildEnv, err := config.ReadEnvFile(cfg.Layout.EnvFilePath())
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	ui.Header("=== Start build %s %s %s ===", cfg.Env, cfg.Mode, cfg.Layout.StartDir)
	ui.Info("Manifest %s (%d units, run %s)", manifestPath, m.Len(), cfg.RunID)

	for i, u := range m.Units {
		ui.Rule()
		ui.Step(i+1, "%s %s (%s)", u.App, u.Version, u.Path)

		out, fatal := r.processUnit(ctx, i, u, buildEnv)
		report.Outcomes = append(report.Outcomes, out)
		if out.Status == StatusBuilt {
			// Keep the in-memory copy in step with the file for the commit message.
			_ = m.SetVersion(i, out.Version)
		}
		if fatal != nil {
			ui.Error("%v", fatal)
			return fail(fatal)
		}
		if ctx.Err() != nil {
			return fail(fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err()))
		}
	}
	ui.Rule()

	if cfg.CI() {
		report.Duration = time.Since(start)
		r.printSummary(report)
		return report, nil
	}

	if err := r.commit(ctx, m, report); err != nil {
		ui.Error("%v", err)
		return fail(err)
	}

	report.Duration = time.Since(start)
	r.printSummary(report)
	return report, nil
}

// processUnit runs the per-unit pipeline. The error is non-nil only when the
// whole run must stop.
func (r *Reconciler) processUnit(ctx context.Context, index int, u manifest.Unit, buildEnv []string) (Outcome, error) {
	cfg := r.config
	out := Outcome{Index: index, App: u.App, Previous: u.Version, Version: u.Version}

	d := r.decide(u)
	if d.Err != nil {
		out.Status = StatusFailed
		out.Err = d.Err
		ui.Error("%s: %v", u.App, d.Err)
		return out, nil
	}
	if d.SettingsWarning != nil {
		ui.Warning("%s: %v; using recorded version %s", u.App, d.SettingsWarning, u.Version)
	}
	if d.Action == ActionSkip {
		out.Status = StatusSkipped
		ui.Anchor("%s unchanged at %s, skipping", u.App, u.Version)
		return out, nil
	}

	image, err := r.images.Render(k8s.ImageData{App: u.App, Version: d.Declared, Env: cfg.Env, Repo: cfg.Repo})
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("%w: %s: %w", ErrImageRef, u.App, err)
		ui.Error("%v", out.Err)
		return out, nil
	}
	out.Image = image

	ui.Package("Building %s %s -> %s (%s)", u.App, u.Version, d.Declared, r.strategy.Name())
	err = r.strategy.Build(ctx, build.Request{
		App:     u.App,
		Dir:     d.Dir,
		Version: d.Declared,
		Mode:    cfg.Mode,
		CI:      cfg.CI(),
		Image:   image,
		RunID:   cfg.RunID,
		Env:     buildEnv,
	})
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("%w: %s: %w", ErrBuild, u.App, err)
		ui.Error("%v", out.Err)
		return out, nil
	}

	if !cfg.CI() {
		for _, file := range u.YAMLFiles(cfg.YAMLDelimiter) {
			path := cfg.Layout.K8sPath(file)
			if !fileutil.IsFile(path) {
				ui.Warning("%s: k8s file %s not found, skipping", u.App, path)
				continue
			}
			if err := r.rewriter.Rewrite(ctx, path, image); err != nil {
				// The version stays unrecorded so the next run rebuilds and rewrites.
				out.Status = StatusFailed
				out.Err = fmt.Errorf("%w: %s: %s: %w", ErrManifestRewrite, u.App, path, err)
				return out, out.Err
			}
			ui.Compass("%s -> %s", file, image)
		}
	}

	if err := manifest.UpdateVersion(cfg.Layout.ManifestPath(), index, u.App, d.Declared); err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("%w: %s: %w", ErrManifestWrite, u.App, err)
		ui.Error("%v", out.Err)
		return out, nil
	}
	out.Status = StatusBuilt
	out.Version = d.Declared
	ui.Success("%s built at %s", u.App, d.Declared)
	return out, nil
}

// commit stages the manifest and every referenced k8s file, then commits and pushes.
func (r *Reconciler) commit(ctx context.Context, m *manifest.Manifest, report *Report) error {
	cfg := r.config
	if r.vcs == nil {
		return fmt.Errorf("%w: no version control configured", ErrVCS)
	}

	paths := r.stagePaths(m)
	report.Message = CommitMessage(m)

	changed, err := r.vcs.HasChanges(paths)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVCS, err)
	}
	if !changed {
		ui.Info("Nothing to commit")
		if !cfg.Push {
			return nil
		}
		// A previous run may have committed and then failed to push.
		unpushed, err := r.vcs.Unpushed()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVCS, err)
		}
		if !unpushed {
			return nil
		}
		ui.Info("Branch is ahead of its upstream, pushing")
	} else {
		ui.Ship("Committing %q", report.Message)
		if err := r.vcs.Stage(ctx, paths); err != nil {
			return fmt.Errorf("%w: %w", ErrVCS, err)
		}
		if err := r.vcs.Commit(ctx, report.Message); err != nil {
			return fmt.Errorf("%w: %w", ErrVCS, err)
		}
		report.Committed = true

		if !cfg.Push {
			ui.Info("Push disabled, commit left local")
			return nil
		}
	}
	if err := r.vcs.Push(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrVCS, err)
	}
	report.Pushed = true
	ui.Ship("Pushed")
	return nil
}

// stagePaths lists the manifest and every existing k8s file referenced by
// any unit, relative to the deployment directory, without duplicates.
func (r *Reconciler) stagePaths(m *manifest.Manifest) []string {
	layout := r.config.Layout
	paths := []string{layout.ManifestRel()}
	seen := map[string]bool{paths[0]: true}

	for _, u := range m.Units {
		for _, file := range u.YAMLFiles(r.config.YAMLDelimiter) {
			rel := layout.K8sRel(file)
			if seen[rel] || !fileutil.IsFile(layout.K8sPath(file)) {
				continue
			}
			seen[rel] = true
			paths = append(paths, rel)
		}
	}
	return paths
}

// CommitMessage joins app::version for every unit with single spaces.
func CommitMessage(m *manifest.Manifest) string {
	parts := make([]string, 0, m.Len())
	for _, u := range m.Units {
		parts = append(parts, u.App+"::"+u.Version)
	}
	return strings.Join(parts, " ")
}

func (r *Reconciler) printSummary(report *Report) {
	ui.Rule()
	if report.OK() {
		ui.Success("%s in %s", report.Summary(), report.Duration.Round(time.Second))
		return
	}
	ui.Error("%s", report.Summary())
	for _, o := range report.Failed() {
		ui.Error("  %s: %v", o.App, o.Err)
	}
}

// IsFatal reports whether err stops a run rather than failing a single unit.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrManifestRewrite) ||
		errors.Is(err, ErrVCS) ||
		errors.Is(err, ErrInterrupted)
}

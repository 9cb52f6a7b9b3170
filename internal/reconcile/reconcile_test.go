package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/coxswain/internal/build"
	"github.com/cameronsjo/coxswain/internal/config"
	"github.com/cameronsjo/coxswain/internal/k8s"
	"github.com/cameronsjo/coxswain/internal/lock"
	"github.com/cameronsjo/coxswain/internal/manifest"
)

// fakeStrategy records build requests and fails apps listed in fail.
type fakeStrategy struct {
	requests []build.Request
	fail     map[string]error
	cancel   context.CancelFunc
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Build(_ context.Context, req build.Request) error {
	f.requests = append(f.requests, req)
	if f.cancel != nil {
		f.cancel()
		return context.Canceled
	}
	if err, ok := f.fail[req.App]; ok {
		return err
	}
	return nil
}

func (f *fakeStrategy) built() []string {
	var apps []string
	for _, r := range f.requests {
		apps = append(apps, r.App)
	}
	return apps
}

type rewrite struct {
	path  string
	image string
}

type fakeRewriter struct {
	calls []rewrite
	err   error
}

func (f *fakeRewriter) Rewrite(_ context.Context, path, image string) error {
	f.calls = append(f.calls, rewrite{path: path, image: image})
	return f.err
}

type fakeVCS struct {
	changed    bool
	changesErr error
	stageErr   error
	commitErr  error
	pushErr    error

	unpushed    bool
	unpushedErr error

	checked []string
	staged  []string
	message string
	commits int
	pushes  int
}

func (f *fakeVCS) HasChanges(paths []string) (bool, error) {
	f.checked = paths
	return f.changed, f.changesErr
}

func (f *fakeVCS) Stage(_ context.Context, paths []string) error {
	f.staged = paths
	return f.stageErr
}

func (f *fakeVCS) Commit(_ context.Context, message string) error {
	f.message = message
	f.commits++
	return f.commitErr
}

func (f *fakeVCS) Push(_ context.Context) error {
	f.pushes++
	return f.pushErr
}

func (f *fakeVCS) Unpushed() (bool, error) {
	return f.unpushed, f.unpushedErr
}

// fixture lays out a start directory with units next to a deployment
// directory resolved by the default layout.
type fixture struct {
	t        *testing.T
	start    string
	layout   *config.Layout
	strategy *fakeStrategy
	rewriter *fakeRewriter
	vcs      *fakeVCS
}

func newFixture(t *testing.T, env string) *fixture {
	t.Helper()
	root := t.TempDir()
	start := filepath.Join(root, "tools", "deploy")
	require.NoError(t, os.MkdirAll(start, 0755))

	cfg, err := config.Load("", start)
	require.NoError(t, err)
	layout, err := cfg.Resolve(start, env, "billing")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(layout.DeploymentDir, env, "k8s"), 0755))

	return &fixture{
		t:        t,
		start:    start,
		layout:   layout,
		strategy: &fakeStrategy{fail: map[string]error{}},
		rewriter: &fakeRewriter{},
		vcs:      &fakeVCS{changed: true},
	}
}

func (f *fixture) unit(app, settings string) {
	f.t.Helper()
	dir := filepath.Join(f.start, app)
	require.NoError(f.t, os.MkdirAll(dir, 0755))
	if settings != "" {
		require.NoError(f.t, os.WriteFile(filepath.Join(dir, "appsettings.json"), []byte(settings), 0644))
	}
}

func (f *fixture) settingsFile(app, name, content string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.start, app, name), []byte(content), 0644))
}

func (f *fixture) k8sFile(name string) string {
	f.t.Helper()
	p := f.layout.K8sPath(name)
	require.NoError(f.t, os.WriteFile(p, []byte("kind: Deployment\n"), 0644))
	return p
}

func (f *fixture) manifest(content string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(f.layout.ManifestPath(), []byte(content), 0644))
}

func (f *fixture) versions() []string {
	f.t.Helper()
	m, err := manifest.Load(f.layout.ManifestPath())
	require.NoError(f.t, err)
	var v []string
	for _, u := range m.Units {
		v = append(v, u.Version)
	}
	return v
}

func (f *fixture) reconciler(mode string, mutate ...func(*Config)) *Reconciler {
	cfg := &Config{
		Env:           f.layout.Env,
		Mode:          mode,
		Repo:          "billing",
		Layout:        f.layout,
		YAMLDelimiter: "|",
		Push:          true,
		RunID:         "run-1",
	}
	for _, m := range mutate {
		m(cfg)
	}
	return NewReconciler(cfg,
		WithStrategy(f.strategy),
		WithRewriter(f.rewriter),
		WithVCS(f.vcs),
	)
}

func settings(version string) string {
	return `{"Deployment": {"Version": "` + version + `"}}`
}

func TestRun_BuildsChangedUnit(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	dep := f.k8sFile("dep.yaml")
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "dep.yaml"}]`)

	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.ExitCode())
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusBuilt, report.Outcomes[0].Status)
	assert.Equal(t, "1.0", report.Outcomes[0].Previous)
	assert.Equal(t, "1.1", report.Outcomes[0].Version)

	require.Len(t, f.strategy.requests, 1)
	req := f.strategy.requests[0]
	assert.Equal(t, "svc1", req.App)
	assert.Equal(t, filepath.Join(f.start, "svc1"), req.Dir)
	assert.Equal(t, "1.1", req.Version)
	assert.Equal(t, "Release", req.Mode)
	assert.False(t, req.CI)
	assert.Equal(t, "vmapi/vml-s2:svc1.1.1", req.Image)
	assert.Equal(t, "run-1", req.RunID)

	assert.Equal(t, []string{"1.1"}, f.versions())
	assert.Equal(t, []rewrite{{path: dep, image: "vmapi/vml-s2:svc1.1.1"}}, f.rewriter.calls)

	assert.Equal(t, "svc1::1.1", f.vcs.message)
	assert.Equal(t, []string{
		filepath.Join("prod", "build.config.json"),
		filepath.Join("prod", "k8s", "dep.yaml"),
	}, f.vcs.staged)
	assert.Equal(t, 1, f.vcs.pushes)
	assert.True(t, report.Committed)
	assert.True(t, report.Pushed)
}

func TestRun_UnchangedVersionSkips(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.0"))
	f.k8sFile("dep.yaml")
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "dep.yaml"}]`)
	f.vcs.changed = false

	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.ExitCode())
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.Empty(t, f.strategy.requests)
	assert.Empty(t, f.rewriter.calls)
	assert.Equal(t, 0, f.vcs.commits)
	assert.Equal(t, 0, f.vcs.pushes)
	assert.False(t, report.Committed)
	assert.Equal(t, []string{"1.0"}, f.versions())
}

func TestRun_PushesEarlierCommit(t *testing.T) {
	tests := []struct {
		name       string
		push       bool
		unpushed   bool
		wantPushes int
	}{
		{"ahead of upstream", true, true, 1},
		{"in sync", true, false, 0},
		{"push disabled", false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "prod")
			f.unit("svc1", settings("1.1"))
			f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.1", "yaml": ""}]`)
			f.vcs.changed = false
			f.vcs.unpushed = tt.unpushed

			report, err := f.reconciler("Release", func(c *Config) { c.Push = tt.push }).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 0, report.ExitCode())
			assert.Equal(t, 0, f.vcs.commits)
			assert.Equal(t, tt.wantPushes, f.vcs.pushes)
			assert.False(t, report.Committed)
			assert.Equal(t, tt.wantPushes == 1, report.Pushed)
		})
	}
}

func TestRun_BuildFailureContinues(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.unit("svc2", settings("2.1"))
	f.k8sFile("svc1.yaml")
	f.k8sFile("svc2.yaml")
	f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "svc1.yaml"},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": "svc2.yaml"}
]`)
	f.strategy.fail["svc1"] = errors.New("exit status 1")

	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ExitCode())
	assert.Equal(t, []string{"svc1", "svc2"}, f.strategy.built())
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrBuild)
	assert.Equal(t, StatusBuilt, report.Outcomes[1].Status)

	assert.Equal(t, []string{"1.0", "2.1"}, f.versions())
	require.Len(t, f.rewriter.calls, 1)
	assert.Equal(t, "vmapi/vml-s2:svc2.2.1", f.rewriter.calls[0].image)
	assert.Equal(t, "svc1::1.0 svc2::2.1", f.vcs.message)
}

func TestRun_CIMode(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.k8sFile("dep.yaml")
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "dep.yaml"}]`)

	report, err := f.reconciler("ci").Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.CI)
	assert.Equal(t, 0, report.ExitCode())
	require.Len(t, f.strategy.requests, 1)
	assert.True(t, f.strategy.requests[0].CI)
	assert.Equal(t, "ci", f.strategy.requests[0].Mode)
	assert.Equal(t, []string{"1.1"}, f.versions())
	assert.Empty(t, f.rewriter.calls)
	assert.Nil(t, f.vcs.checked)
	assert.Equal(t, 0, f.vcs.commits)
}

func TestRun_CIModeFailureExitsNonZero(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)
	f.strategy.fail["svc1"] = errors.New("exit status 1")

	report, err := f.reconciler("CI").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExitCode())
}

func TestRun_MissingPath(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc2", settings("2.1"))
	f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": ""}
]`)

	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ExitCode())
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrPath)
	assert.Equal(t, StatusBuilt, report.Outcomes[1].Status)
	assert.Equal(t, []string{"svc2"}, f.strategy.built())
}

func TestRun_SettingsFallback(t *testing.T) {
	t.Run("lenient uses recorded version", func(t *testing.T) {
		f := newFixture(t, "prod")
		f.unit("svc1", "")
		f.unit("svc2", `{"Deployment": {}}`)
		f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": ""}
]`)
		f.vcs.changed = false

		report, err := f.reconciler("Release").Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, report.ExitCode())
		assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
		assert.Equal(t, StatusSkipped, report.Outcomes[1].Status)
		assert.Empty(t, f.strategy.requests)
	})

	t.Run("strict fails the unit", func(t *testing.T) {
		f := newFixture(t, "prod")
		f.unit("svc1", "")
		f.unit("svc2", settings("2.1"))
		f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": ""}
]`)

		report, err := f.reconciler("Release", func(c *Config) { c.StrictSettings = true }).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.ExitCode())
		assert.ErrorIs(t, report.Outcomes[0].Err, ErrSettings)
		assert.Equal(t, []string{"svc2"}, f.strategy.built())
	})
}

func TestRun_PreProductionSettings(t *testing.T) {
	f := newFixture(t, "dev")
	f.unit("svc1", settings("1.0"))
	f.settingsFile("svc1", "appsettings.Dev.json", settings("1.5-dev"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)

	_, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.strategy.requests, 1)
	assert.Equal(t, "1.5-dev", f.strategy.requests[0].Version)
}

func TestRun_RewriteFailureIsFatal(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.unit("svc2", settings("2.1"))
	f.k8sFile("dep.yaml")
	f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "dep.yaml"},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": ""}
]`)
	f.rewriter.err = errors.New("yq failed")

	report, err := f.reconciler("Release").Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestRewrite)
	assert.Equal(t, 1, report.ExitCode())

	// The run stops: svc2 is never built and nothing is committed.
	assert.Equal(t, []string{"svc1"}, f.strategy.built())
	assert.Equal(t, 0, f.vcs.commits)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrManifestRewrite)
	// Nothing is recorded for a unit whose image was not rewritten.
	assert.Equal(t, []string{"1.0", "2.0"}, f.versions())
}

func TestRun_RerunAfterRewriteFailure(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	dep := f.k8sFile("dep.yaml")
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "dep.yaml"}]`)

	f.rewriter.err = errors.New("yq failed")
	_, err := f.reconciler("Release").Run(context.Background())
	require.ErrorIs(t, err, ErrManifestRewrite)

	f.rewriter.err = nil
	f.rewriter.calls = nil
	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.ExitCode())
	assert.Equal(t, []string{"svc1", "svc1"}, f.strategy.built())
	assert.Equal(t, []rewrite{{path: dep, image: "vmapi/vml-s2:svc1.1.1"}}, f.rewriter.calls)
	assert.Equal(t, StatusBuilt, report.Outcomes[0].Status)
	assert.Equal(t, []string{"1.1"}, f.versions())
	assert.Equal(t, 1, f.vcs.commits)
	assert.Equal(t, "svc1::1.1", f.vcs.message)
}

func TestRun_MissingK8sFileWarns(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	present := f.k8sFile("present.yaml")
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "missing.yaml | present.yaml"}]`)

	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.ExitCode())
	assert.Equal(t, []rewrite{{path: present, image: "vmapi/vml-s2:svc1.1.1"}}, f.rewriter.calls)
	assert.Equal(t, []string{
		filepath.Join("prod", "build.config.json"),
		filepath.Join("prod", "k8s", "present.yaml"),
	}, f.vcs.staged)
}

func TestRun_StagesEveryReferencedFileOnce(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.unit("svc2", settings("2.0"))
	f.k8sFile("shared.yaml")
	f.k8sFile("svc2.yaml")
	f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "shared.yaml"},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": "shared.yaml|svc2.yaml"}
]`)

	_, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join("prod", "build.config.json"),
		filepath.Join("prod", "k8s", "shared.yaml"),
		filepath.Join("prod", "k8s", "svc2.yaml"),
	}, f.vcs.staged)
	assert.Equal(t, "svc1::1.1 svc2::2.0", f.vcs.message)
}

func TestRun_ManifestMissing(t *testing.T) {
	f := newFixture(t, "prod")

	report, err := f.reconciler("Release").Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, manifest.ErrManifestNotFound)
	assert.Equal(t, 1, report.ExitCode())
	assert.Empty(t, f.strategy.requests)
}

func TestRun_ManifestInvalid(t *testing.T) {
	f := newFixture(t, "prod")
	f.manifest(`{"app": "svc1"}`)

	_, err := f.reconciler("Release").Run(context.Background())
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, f.strategy.requests)
}

func TestRun_EnvFilePassedToBuild(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)
	require.NoError(t, os.WriteFile(f.layout.EnvFilePath(), []byte("REGISTRY=vmapi\n"), 0644))

	_, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.strategy.requests, 1)
	assert.Equal(t, []string{"REGISTRY=vmapi"}, f.strategy.requests[0].Env)
}

func TestRun_VCSFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeVCS)
	}{
		{"status", func(v *fakeVCS) { v.changesErr = errors.New("not a repository") }},
		{"stage", func(v *fakeVCS) { v.stageErr = errors.New("index.lock exists") }},
		{"commit", func(v *fakeVCS) { v.commitErr = errors.New("nothing added") }},
		{"push", func(v *fakeVCS) { v.pushErr = errors.New("rejected") }},
		{"upstream", func(v *fakeVCS) {
			v.changed = false
			v.unpushedErr = errors.New("bad ref")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "prod")
			f.unit("svc1", settings("1.1"))
			f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)
			tt.setup(f.vcs)

			report, err := f.reconciler("Release").Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrVCS)
			assert.Equal(t, 1, report.ExitCode())
		})
	}
}

func TestRun_NoPush(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)

	report, err := f.reconciler("Release", func(c *Config) { c.Push = false }).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.vcs.commits)
	assert.Equal(t, 0, f.vcs.pushes)
	assert.True(t, report.Committed)
	assert.False(t, report.Pushed)
}

func TestRun_InvalidImageReference(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1 beta"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)

	report, err := f.reconciler("Release").Run(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, report.Outcomes[0].Err, ErrImageRef)
	assert.Empty(t, f.strategy.requests)
	assert.Equal(t, []string{"1.0"}, f.versions())
}

func TestRun_CustomImageTemplate(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)

	tmpl, err := k8s.ParseImageTemplate("ghcr.io/acme/{{ .App }}:{{ .Version }}")
	require.NoError(t, err)

	r := f.reconciler("Release")
	WithImageTemplate(tmpl)(r)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/acme/svc1:1.1", f.strategy.requests[0].Image)
}

func TestRun_Interrupted(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.unit("svc2", settings("2.1"))
	f.manifest(`[
  {"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""},
  {"app": "svc2", "path": "./svc2", "version": "2.0", "yaml": ""}
]`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.strategy.cancel = cancel

	report, err := f.reconciler("Release").Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, []string{"svc1"}, f.strategy.built())
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, 0, f.vcs.commits)
}

func TestRun_LockHeld(t *testing.T) {
	f := newFixture(t, "prod")
	f.unit("svc1", settings("1.1"))
	f.manifest(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": ""}]`)

	lockDir := t.TempDir()
	held := lock.New(lockDir, lock.Key("billing", "prod"))
	require.NoError(t, held.Acquire())
	defer held.Release()

	_, err := f.reconciler("Release", func(c *Config) { c.LockDir = lockDir }).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, f.strategy.requests)
}

func TestRun_NoLayout(t *testing.T) {
	r := NewReconciler(&Config{Env: "dev", Mode: "CI", Repo: "billing"})
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewReconciler_Defaults(t *testing.T) {
	f := newFixture(t, "prod")
	cfg := &Config{Env: "prod", Mode: "Release", Repo: "billing", Layout: f.layout}

	r := NewReconciler(cfg)
	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, []string{"dev", "staging"}, cfg.PreProduction)
	assert.Equal(t, build.StrategyScript, r.strategy.Name())
	assert.IsType(t, &k8s.YQ{}, r.rewriter)
	assert.IsType(t, &GitOps{}, r.vcs)
}

func TestCommitMessage(t *testing.T) {
	m := &manifest.Manifest{Units: []manifest.Unit{
		{App: "svc1", Version: "1.1"},
		{App: "svc2", Version: "2.0"},
		{App: "svc1", Version: "1.1"},
	}}
	assert.Equal(t, "svc1::1.1 svc2::2.0 svc1::1.1", CommitMessage(m))
	assert.Equal(t, "", CommitMessage(&manifest.Manifest{}))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrConfiguration))
	assert.True(t, IsFatal(ErrManifestRewrite))
	assert.True(t, IsFatal(ErrVCS))
	assert.False(t, IsFatal(ErrBuild))
	assert.False(t, IsFatal(ErrPath))
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/coxswain/internal/ui"
)

// resetCommand restores every flag of c and its subcommands to its default
// and clears the silence settings a run applies, so cobra state does not
// leak between tests.
func resetCommand(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SilenceUsage = false
	c.SilenceErrors = false
	for _, sub := range c.Commands() {
		resetCommand(sub)
	}
}

// executeCmd executes the root command with the given args and returns the
// output written through cobra.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommand(rootCmd)
	t.Cleanup(func() {
		resetCommand(rootCmd)
		ui.SetOutput(nil)
	})
	if args == nil {
		// nil makes cobra fall back to os.Args.
		args = []string{}
	}

	buf := new(bytes.Buffer)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// exitCode maps an Execute error the way Execute does.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return 1
}

func requireBinaries(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not installed", name)
		}
	}
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	c := exec.Command("git", args...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

// workspace is a start directory with one unit and a git-tracked deployment
// directory laid out the default way.
type workspace struct {
	start      string
	unit       string
	deployment string
	repo       string
}

const buildScript = `echo "$1 $2 $3" > built.txt
[ -z "$FAIL_BUILD" ]
`

func newWorkspace(t *testing.T, declared string) *workspace {
	t.Helper()
	requireBinaries(t, "git", "bash")

	t.Setenv("GIT_AUTHOR_NAME", "coxswain")
	t.Setenv("GIT_AUTHOR_EMAIL", "coxswain@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "coxswain")
	t.Setenv("GIT_COMMITTER_EMAIL", "coxswain@example.com")
	t.Setenv("COXSWAIN_STATE_DIR", t.TempDir())
	t.Setenv("COXSWAIN_ALERT_DISCORD_WEBHOOK", "")

	root := t.TempDir()
	w := &workspace{
		start:      filepath.Join(root, "tools", "deploy"),
		repo:       filepath.Join(root, "billing"),
		deployment: filepath.Join(root, "billing", "Deployment"),
	}
	w.unit = filepath.Join(w.start, "svc1")

	require.NoError(t, os.MkdirAll(w.unit, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(w.unit, "build.sh"), []byte(buildScript), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(w.unit, "appsettings.json"),
		[]byte(`{"Deployment": {"Version": "`+declared+`"}}`), 0644))

	k8sDir := filepath.Join(w.deployment, "dev", "k8s")
	require.NoError(t, os.MkdirAll(k8sDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(w.deployment, "dev", "build.config.json"),
		[]byte(`[{"app": "svc1", "path": "./svc1", "version": "1.0", "yaml": "dep.yaml"}]`+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(k8sDir, "dep.yaml"), []byte(`kind: Deployment
spec:
  template:
    spec:
      containers:
        - name: svc1
          image: vmapi/vml-s2:svc1.1.0
`), 0644))

	gitRun(t, w.repo, "init", "-q")
	gitRun(t, w.repo, "add", ".")
	gitRun(t, w.repo, "commit", "-q", "-m", "initial")
	return w
}

func (w *workspace) read(t *testing.T, parts ...string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(parts...))
	require.NoError(t, err)
	return string(data)
}

func (w *workspace) lastCommit(t *testing.T) string {
	t.Helper()
	return gitRun(t, w.repo, "log", "-1", "--format=%s")
}

package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultDeploymentDir places deployment repositories two levels above the
// directory the driver is started from.
const DefaultDeploymentDir = "../../{{ .Repo }}/Deployment"

// Layout is the resolved set of paths for one run.
type Layout struct {
	// StartDir is the directory the driver was started from. Unit paths resolve against it.
	StartDir string
	// DeploymentDir is the absolute deployment directory; git runs here.
	DeploymentDir string
	Env           string
	Repo          string

	manifest string
	k8sDir   string
	envFile  string
}

// Resolve renders the deployment directory for env and repo.
func (c *Config) Resolve(startDir, env, repo string) (*Layout, error) {
	if err := ValidateName("environment", env); err != nil {
		return nil, err
	}
	if err := ValidateName("repo", repo); err != nil {
		return nil, err
	}

	tmpl, err := template.New("deployment_dir").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(c.Layout.DeploymentDir)
	if err != nil {
		return nil, fmt.Errorf("%w: layout.deployment_dir: %v", ErrInvalidConfig, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{"Repo": repo, "Env": env}); err != nil {
		return nil, fmt.Errorf("%w: layout.deployment_dir: %v", ErrInvalidConfig, err)
	}

	dir := buf.String()
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(startDir, dir)
	}

	return &Layout{
		StartDir:      startDir,
		DeploymentDir: filepath.Clean(dir),
		Env:           env,
		Repo:          repo,
		manifest:      c.Layout.Manifest,
		k8sDir:        c.Layout.K8sDir,
		envFile:       c.Layout.EnvFile,
	}, nil
}

// ManifestRel is the manifest path relative to the deployment directory.
func (l *Layout) ManifestRel() string {
	return filepath.Join(l.Env, l.manifest)
}

// ManifestPath is the absolute manifest path.
func (l *Layout) ManifestPath() string {
	return filepath.Join(l.DeploymentDir, l.ManifestRel())
}

// K8sRel is a k8s file path relative to the deployment directory.
func (l *Layout) K8sRel(file string) string {
	return filepath.Join(l.Env, l.k8sDir, file)
}

// K8sPath is the absolute path of a k8s file.
func (l *Layout) K8sPath(file string) string {
	return filepath.Join(l.DeploymentDir, l.K8sRel(file))
}

// EnvFilePath is the absolute path of the optional build env file. Empty
// when env files are disabled.
func (l *Layout) EnvFilePath() string {
	if l.envFile == "" {
		return ""
	}
	return filepath.Join(l.DeploymentDir, l.Env, l.envFile)
}

// UnitDir resolves a manifest unit path against the start directory.
func (l *Layout) UnitDir(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(l.StartDir, path)
}

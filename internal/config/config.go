// Package config loads coxswain settings and resolves the deployment layout.
//
// Settings come from built-in defaults, an optional YAML file and COXSWAIN_
// environment variables, in increasing precedence. Command-line flags are
// applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cameronsjo/coxswain/internal/appsettings"
	"github.com/cameronsjo/coxswain/internal/build"
	"github.com/cameronsjo/coxswain/internal/k8s"
	"github.com/cameronsjo/coxswain/internal/manifest"
)

// EnvPrefix prefixes every environment override, e.g. COXSWAIN_BUILD_STRATEGY.
const EnvPrefix = "COXSWAIN"

// DefaultFileName is looked up in the start directory when no --config is given.
const DefaultFileName = ".coxswain.yaml"

// ErrInvalidConfig indicates a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all coxswain configuration.
type Config struct {
	Layout         LayoutConfig   `mapstructure:"layout"`
	Build          BuildConfig    `mapstructure:"build"`
	Registry       RegistryConfig `mapstructure:"registry"`
	Git            GitConfig      `mapstructure:"git"`
	Timeouts       TimeoutConfig  `mapstructure:"timeouts"`
	Alert          AlertConfig    `mapstructure:"alert"`
	Log            LogConfig      `mapstructure:"log"`
	Rewriter       string         `mapstructure:"rewriter"`
	PreProduction  []string       `mapstructure:"preproduction"`
	StrictSettings bool           `mapstructure:"strict_settings"`
	StateDir       string         `mapstructure:"state_dir"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// LayoutConfig describes where deployment files live.
type LayoutConfig struct {
	// DeploymentDir is a template rendered with Repo and Env, relative to the start directory.
	DeploymentDir string `mapstructure:"deployment_dir"`
	Manifest      string `mapstructure:"manifest"`
	K8sDir        string `mapstructure:"k8s_dir"`
	EnvFile       string `mapstructure:"env_file"`
	YAMLDelimiter string `mapstructure:"yaml_delimiter"`
}

// BuildConfig selects and configures the build strategy.
type BuildConfig struct {
	Strategy   string   `mapstructure:"strategy"`
	Shell      string   `mapstructure:"shell"`
	Script     string   `mapstructure:"script"`
	Publish    []string `mapstructure:"publish"`
	Dockerfile string   `mapstructure:"dockerfile"`
	Image      string   `mapstructure:"image"`
	Push       bool     `mapstructure:"push"`
}

// RegistryConfig holds image push credentials.
type RegistryConfig struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// GitConfig controls the commit step.
type GitConfig struct {
	Push bool `mapstructure:"push"`
}

// TimeoutConfig bounds external calls. Zero means no limit.
type TimeoutConfig struct {
	Build   time.Duration `mapstructure:"build"`
	Rewrite time.Duration `mapstructure:"rewrite"`
	Git     time.Duration `mapstructure:"git"`
}

// AlertConfig configures run notifications.
type AlertConfig struct {
	DiscordWebhook string `mapstructure:"discord_webhook"`
	// OnSuccess also notifies for runs that built at least one unit without failures.
	OnSuccess bool `mapstructure:"on_success"`
}

// LogConfig sets the debug log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("layout.deployment_dir", DefaultDeploymentDir)
	v.SetDefault("layout.manifest", "build.config.json")
	v.SetDefault("layout.k8s_dir", "k8s")
	v.SetDefault("layout.env_file", "build.env")
	v.SetDefault("layout.yaml_delimiter", manifest.DefaultDelimiter)

	v.SetDefault("build.strategy", build.StrategyScript)
	v.SetDefault("build.shell", build.DefaultShell)
	v.SetDefault("build.script", build.DefaultScript)
	v.SetDefault("build.publish", build.DefaultPublish)
	v.SetDefault("build.dockerfile", "Dockerfile")
	v.SetDefault("build.image", k8s.DefaultImageTemplate)
	v.SetDefault("build.push", true)

	v.SetDefault("registry.server", "")
	v.SetDefault("registry.username", "")
	v.SetDefault("registry.password", "")

	v.SetDefault("git.push", true)

	v.SetDefault("timeouts.build", "0s")
	v.SetDefault("timeouts.rewrite", "0s")
	v.SetDefault("timeouts.git", "0s")

	v.SetDefault("alert.discord_webhook", "")
	v.SetDefault("alert.on_success", false)

	v.SetDefault("log.level", "warn")

	v.SetDefault("rewriter", k8s.RewriterYQ)
	v.SetDefault("preproduction", appsettings.DefaultPreProduction)
	v.SetDefault("strict_settings", false)
	v.SetDefault("state_dir", "")
}

// Load reads configuration. configPath, when set, must exist; otherwise
// startDir/.coxswain.yaml is used if present.
func Load(configPath, startDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		candidate := filepath.Join(startDir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, configPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.File = configPath

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail mid-run.
func (c *Config) Validate() error {
	var problems []string

	if err := build.ValidateName(c.Build.Strategy); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Rewriter {
	case k8s.RewriterYQ, k8s.RewriterNative:
	default:
		problems = append(problems, fmt.Sprintf("unknown rewriter %q", c.Rewriter))
	}
	if _, err := k8s.ParseImageTemplate(c.Build.Image); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Layout.Manifest == "" {
		problems = append(problems, "layout.manifest is empty")
	}
	if c.Timeouts.Build < 0 || c.Timeouts.Rewrite < 0 || c.Timeouts.Git < 0 {
		problems = append(problems, "timeouts must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DefaultStateDir returns the per-user directory for locks.
func DefaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "coxswain")
	}
	return filepath.Join(os.TempDir(), "coxswain")
}

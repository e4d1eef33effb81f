// Package config loads stepbuilder.yaml: project settings plus the step and
// runner declarations.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
)

// DefaultFile is the project file looked up when --config is not given.
const DefaultFile = "stepbuilder.yaml"

// Config is the decoded project file.
type Config struct {
	// WorkDir holds step_output, step_cache and step_isolated_root. Relative to
	// the source root.
	WorkDir string `yaml:"work_dir"`
	// SourceRoot is relative to the project file. Empty means the git worktree
	// containing the project file.
	SourceRoot string `yaml:"source_root"`
	// CacheVersionSuffix is appended to CI cache keys; bump it to invalidate them.
	CacheVersionSuffix string `yaml:"cache_version_suffix"`
	// Harness is the step runner script, relative to the source root.
	Harness  string         `yaml:"harness"`
	CI       bool           `yaml:"ci"`
	Identity IdentityConfig `yaml:"identity"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Remote   RemoteConfig   `yaml:"remote"`

	Steps   []StepConfig   `yaml:"steps"`
	Runners []RunnerConfig `yaml:"runners"`

	// path is the file the config was loaded from.
	path string
}

// IdentityConfig selects how step identities are computed.
type IdentityConfig struct {
	Algorithm string `yaml:"algorithm"`  // sha256 | blake3
	EmptyGlob string `yaml:"empty_glob"` // error | ignore
}

// MetricsConfig enables the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// EventsConfig enables step event publishing to NATS JetStream.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// RemoteConfig describes remote docker builders.
type RemoteConfig struct {
	// Builders maps an architecture to the builder used for it.
	Builders map[string]BuilderConfig `yaml:"builders"`
	// Hosts maps an architecture to a fixed address for the static provisioner.
	Hosts map[string]string `yaml:"hosts"`
	// ProvisionCommand, when set, is run to create a host instead of using Hosts.
	ProvisionCommand []string `yaml:"provision_command"`
}

// BuilderConfig is one remote builder.
type BuilderConfig struct {
	User string `yaml:"user"`
}

// StepConfig declares a step. References to other steps are by name.
type StepConfig struct {
	Name          string            `yaml:"name"`
	Kind          string            `yaml:"kind"`
	Script        string            `yaml:"script"`
	TrackedFiles  []string          `yaml:"tracked_files"`
	BaseStep      string            `yaml:"base_step"`
	BaseImage     *ImageConfig      `yaml:"base_image"`
	RequiredSteps map[string]string `yaml:"required_steps"`
	Env           map[string]string `yaml:"env"`
	User          string            `yaml:"user"`

	Cacheable             bool `yaml:"cacheable"`
	PreBuildInSeparateJob bool `yaml:"pre_build_in_separate_job"`
	RunInRemoteDocker     bool `yaml:"run_in_remote_docker"`
}

// ImageConfig is an external base image.
type ImageConfig struct {
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
}

// RunnerConfig declares a runner.
type RunnerConfig struct {
	Name            string   `yaml:"name"`
	RequiredSteps   []string `yaml:"required_steps"`
	RequiredRunners []string `yaml:"required_runners"`
	BaseEnvironment string   `yaml:"base_environment"`
}

// Load reads, expands, defaults and validates the project file at path.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found").WithContext("path", path).Build()
	}
	if err != nil {
		return nil, ferrors.FileSystemError(err, "read configuration file").WithContext("path", path).Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.GetCategory(err), "load configuration").
			Fatal().
			WithContext("path", path).
			Build()
	}
	cfg.path = path
	return cfg, nil
}

// Parse decodes a project file after ${VAR} expansion, then applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode configuration").Fatal().Build()
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the file the config was loaded from, empty for Parse.
func (c *Config) Path() string { return c.path }

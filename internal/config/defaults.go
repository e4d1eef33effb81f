package config

import (
	"os"
	"strconv"

	"git.home.luguber.info/inful/stepbuilder/internal/identity"
)

const (
	DefaultWorkDir            = ".stepbuilder"
	DefaultHarness            = "scripts/step_runner.sh"
	DefaultCacheVersionSuffix = "v14"
	DefaultEventsSubject      = "stepbuilder.steps"
	DefaultEventsStream       = "STEPBUILDER"
	DefaultBuilderUser        = "ubuntu"
)

// ciEnvVars switch CI mode on when set to a true value.
var ciEnvVars = []string{"STEPBUILDER_IN_CICD", "AGENT_BUILD_IN_CICD"}

func applyDefaults(cfg *Config) {
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}
	if cfg.Harness == "" {
		cfg.Harness = DefaultHarness
	}
	if cfg.CacheVersionSuffix == "" {
		cfg.CacheVersionSuffix = DefaultCacheVersionSuffix
	}
	if cfg.Identity.Algorithm == "" {
		cfg.Identity.Algorithm = string(identity.SHA256)
	}
	if cfg.Identity.EmptyGlob == "" {
		cfg.Identity.EmptyGlob = string(identity.EmptyGlobError)
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}
	if cfg.Events.Stream == "" {
		cfg.Events.Stream = DefaultEventsStream
	}
	for arch, b := range cfg.Remote.Builders {
		if b.User == "" {
			b.User = DefaultBuilderUser
			cfg.Remote.Builders[arch] = b
		}
	}
	if !cfg.CI {
		cfg.CI = ciFromEnv()
	}
}

func ciFromEnv() bool {
	for _, name := range ciEnvVars {
		if v, err := strconv.ParseBool(os.Getenv(name)); err == nil && v {
			return true
		}
	}
	return false
}

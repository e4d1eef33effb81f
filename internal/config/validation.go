package config

import (
	"maps"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/identity"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
)

const (
	kindArtifact    = "artifact"
	kindEnvironment = "environment"
)

// Validate checks settings and the step and runner graphs. Every failure is a
// configuration error.
func Validate(cfg *Config) error {
	if !identity.Algorithm(cfg.Identity.Algorithm).Valid() {
		return invalid("unknown identity algorithm", "algorithm", cfg.Identity.Algorithm)
	}
	switch identity.EmptyGlobPolicy(cfg.Identity.EmptyGlob) {
	case identity.EmptyGlobError, identity.EmptyGlobIgnore:
	default:
		return invalid("unknown empty glob policy", "empty_glob", cfg.Identity.EmptyGlob)
	}
	for arch := range cfg.Remote.Builders {
		if _, err := platform.ParseArchitecture(arch); err != nil {
			return invalid("unknown builder architecture", "architecture", arch)
		}
	}
	for arch := range cfg.Remote.Hosts {
		if _, err := platform.ParseArchitecture(arch); err != nil {
			return invalid("unknown host architecture", "architecture", arch)
		}
	}
	if err := validateSteps(cfg); err != nil {
		return err
	}
	if _, err := stepOrder(cfg.Steps); err != nil {
		return err
	}
	return validateRunners(cfg)
}

func invalid(msg, key, value string) error {
	return ferrors.ConfigError(msg).WithContext(key, value).Build()
}

func validateSteps(cfg *Config) error {
	byName := make(map[string]StepConfig, len(cfg.Steps))
	for _, s := range cfg.Steps {
		if s.Name == "" {
			return ferrors.ConfigError("step name is required").Build()
		}
		if _, dup := byName[s.Name]; dup {
			return invalid("duplicate step name", "step", s.Name)
		}
		byName[s.Name] = s
	}

	for _, s := range cfg.Steps {
		if s.Script == "" {
			return invalid("step script is required", "step", s.Name)
		}
		if s.Kind != "" && s.Kind != kindArtifact && s.Kind != kindEnvironment {
			return ferrors.ConfigError("unknown step kind").WithContext("step", s.Name).WithContext("kind", s.Kind).Build()
		}
		if s.BaseStep != "" && s.BaseImage != nil {
			return invalid("step has both base_step and base_image", "step", s.Name)
		}
		if s.BaseImage != nil {
			if s.BaseImage.Name == "" {
				return invalid("base image name is required", "step", s.Name)
			}
			if _, err := platform.Parse(s.BaseImage.Platform); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid base image platform").
					Fatal().
					WithContext("step", s.Name).
					Build()
			}
		}
		if s.BaseStep != "" {
			base, ok := byName[s.BaseStep]
			if !ok {
				return unknownRef("step", s.Name, "base_step", s.BaseStep)
			}
			if base.Kind != kindEnvironment {
				return ferrors.ConfigError("base step is not an environment step").
					WithContext("step", s.Name).
					WithContext("base_step", s.BaseStep).
					Build()
			}
		}
		for _, env := range slices.Sorted(maps.Keys(s.RequiredSteps)) {
			if _, ok := byName[s.RequiredSteps[env]]; !ok {
				return unknownRef("step", s.Name, "required_step", s.RequiredSteps[env])
			}
		}
	}
	return nil
}

func unknownRef(ownerKind, owner, field, ref string) error {
	return ferrors.ConfigError("unknown step reference").
		WithContext(ownerKind, owner).
		WithContext(field, ref).
		Build()
}

func validateRunners(cfg *Config) error {
	steps := make(map[string]StepConfig, len(cfg.Steps))
	for _, s := range cfg.Steps {
		steps[s.Name] = s
	}
	runners := make(map[string]RunnerConfig, len(cfg.Runners))
	for _, r := range cfg.Runners {
		if r.Name == "" {
			return ferrors.ConfigError("runner name is required").Build()
		}
		if _, dup := runners[r.Name]; dup {
			return invalid("duplicate runner name", "runner", r.Name)
		}
		runners[r.Name] = r
	}
	for _, r := range cfg.Runners {
		for _, name := range r.RequiredSteps {
			if _, ok := steps[name]; !ok {
				return unknownRef("runner", r.Name, "required_step", name)
			}
		}
		if r.BaseEnvironment != "" {
			base, ok := steps[r.BaseEnvironment]
			if !ok {
				return unknownRef("runner", r.Name, "base_environment", r.BaseEnvironment)
			}
			if base.Kind != kindEnvironment {
				return ferrors.ConfigError("base environment is not an environment step").
					WithContext("runner", r.Name).
					WithContext("base_environment", r.BaseEnvironment).
					Build()
			}
		}
		for _, name := range r.RequiredRunners {
			if _, ok := runners[name]; !ok {
				return ferrors.ConfigError("unknown runner reference").
					WithContext("runner", r.Name).
					WithContext("required_runner", name).
					Build()
			}
		}
	}
	_, err := runnerOrder(cfg.Runners)
	return err
}

// stepOrder returns step declarations with every dependency before its dependents.
func stepOrder(steps []StepConfig) ([]StepConfig, error) {
	byName := make(map[string]StepConfig, len(steps))
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
		names = append(names, s.Name)
	}
	deps := func(name string) []string {
		s := byName[name]
		out := slices.Sorted(maps.Values(s.RequiredSteps))
		if s.BaseStep != "" {
			out = append(out, s.BaseStep)
		}
		return out
	}
	order, err := topoSort(names, deps, "step")
	if err != nil {
		return nil, err
	}
	out := make([]StepConfig, 0, len(order))
	for _, n := range order {
		out = append(out, byName[n])
	}
	return out, nil
}

func runnerOrder(runners []RunnerConfig) ([]RunnerConfig, error) {
	byName := make(map[string]RunnerConfig, len(runners))
	names := make([]string, 0, len(runners))
	for _, r := range runners {
		byName[r.Name] = r
		names = append(names, r.Name)
	}
	order, err := topoSort(names, func(n string) []string { return byName[n].RequiredRunners }, "runner")
	if err != nil {
		return nil, err
	}
	out := make([]RunnerConfig, 0, len(order))
	for _, n := range order {
		out = append(out, byName[n])
	}
	return out, nil
}

// topoSort orders names depth-first so dependencies come first. A back edge is
// reported as a cycle naming its members in order.
func topoSort(names []string, deps func(string) []string, what string) ([]string, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(names))
	var order, stack []string

	var visit func(string) error
	visit = func(n string) error {
		switch state[n] {
		case done:
			return nil
		case visiting:
			start := slices.Index(stack, n)
			cycle := append(slices.Clone(stack[start:]), n)
			return ferrors.ConfigError("dependency cycle").
				WithContext(what, n).
				WithContext("cycle", strings.Join(cycle, " -> ")).
				Build()
		}
		state[n] = visiting
		stack = append(stack, n)
		for _, d := range deps(n) {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		order = append(order, n)
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

package config

import (
	"maps"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/identity"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
	"git.home.luguber.info/inful/stepbuilder/internal/project"
	"git.home.luguber.info/inful/stepbuilder/internal/runner"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// Project is a loaded configuration with its steps constructed and its runners
// registered.
type Project struct {
	Config   *Config
	Root     project.Root
	WorkDir  string
	Options  step.Options
	Steps    map[string]*step.Step
	Registry *runner.Registry
}

// Build resolves the source root and work directory, constructs every step in
// dependency order and registers the runners together with a wrapper for each step.
func Build(cfg *Config) (*Project, error) {
	root, err := resolveRoot(cfg)
	if err != nil {
		return nil, err
	}
	p := &Project{
		Config:  cfg,
		Root:    root,
		WorkDir: cfg.WorkDir,
		Options: step.Options{
			SourceRoot: root.Path,
			Harness:    cfg.Harness,
			Algorithm:  identity.Algorithm(cfg.Identity.Algorithm),
			EmptyGlobs: identity.EmptyGlobPolicy(cfg.Identity.EmptyGlob),
			InCI:       cfg.CI,
		},
		Steps:    make(map[string]*step.Step, len(cfg.Steps)),
		Registry: runner.NewRegistry(),
	}
	if !filepath.IsAbs(p.WorkDir) {
		p.WorkDir = filepath.Join(root.Path, p.WorkDir)
	}

	ordered, err := stepOrder(cfg.Steps)
	if err != nil {
		return nil, err
	}
	for _, sc := range ordered {
		s, err := step.New(p.stepSpec(sc), p.Options)
		if err != nil {
			return nil, err
		}
		p.Steps[sc.Name] = s
	}

	runners, err := runnerOrder(cfg.Runners)
	if err != nil {
		return nil, err
	}
	built := make(map[string]*runner.Runner, len(runners))
	for _, rc := range runners {
		r := &runner.Runner{Name: rc.Name}
		for _, name := range rc.RequiredSteps {
			r.RequiredSteps = append(r.RequiredSteps, p.Steps[name])
		}
		for _, name := range rc.RequiredRunners {
			r.RequiredRunners = append(r.RequiredRunners, built[name])
		}
		if rc.BaseEnvironment != "" {
			r.BaseEnvironment = p.Steps[rc.BaseEnvironment]
		}
		if err := p.Registry.Register(r); err != nil {
			return nil, err
		}
		built[rc.Name] = r
	}
	p.Registry.RegisterWrappers()
	return p, nil
}

func (p *Project) stepSpec(sc StepConfig) step.Spec {
	spec := step.Spec{
		Name:         sc.Name,
		Kind:         step.Kind(sc.Kind),
		Script:       sc.Script,
		TrackedFiles: sc.TrackedFiles,
		Env:          maps.Clone(sc.Env),
		User:         sc.User,
		CI: step.CIHints{
			Cacheable:             sc.Cacheable,
			PreBuildInSeparateJob: sc.PreBuildInSeparateJob,
			RunInRemoteDocker:     sc.RunInRemoteDocker,
		},
	}
	if sc.BaseStep != "" {
		spec.BaseStep = p.Steps[sc.BaseStep]
	}
	if sc.BaseImage != nil {
		// Validated in Validate.
		plat, _ := platform.Parse(sc.BaseImage.Platform)
		spec.BaseImage = &step.Image{Name: sc.BaseImage.Name, Platform: plat}
	}
	if len(sc.RequiredSteps) > 0 {
		spec.RequiredSteps = make(map[string]*step.Step, len(sc.RequiredSteps))
		for env, name := range sc.RequiredSteps {
			spec.RequiredSteps[env] = p.Steps[name]
		}
	}
	return spec
}

func resolveRoot(cfg *Config) (project.Root, error) {
	base := "."
	if cfg.path != "" {
		base = filepath.Dir(cfg.path)
	}
	if cfg.SourceRoot == "" {
		return project.Detect(base)
	}
	dir := cfg.SourceRoot
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return project.Root{}, ferrors.FileSystemError(err, "resolve source root").WithContext("path", dir).Build()
	}
	return project.Root{Path: abs}, nil
}

// Builders returns the remote builder table keyed by architecture.
func (c *Config) Builders() map[platform.Architecture]BuilderConfig {
	out := make(map[platform.Architecture]BuilderConfig, len(c.Remote.Builders))
	for arch, b := range c.Remote.Builders {
		out[platform.Architecture(arch)] = b
	}
	return out
}

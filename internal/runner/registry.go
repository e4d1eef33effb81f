package runner

import (
	"maps"
	"slices"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// Registry resolves runners by name. Step wrappers are added on demand under
// <id>_pre_build so a CI job can run a single step.
type Registry struct {
	runners map[string]*Runner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]*Runner)}
}

// Register adds r. Names must be unique.
func (reg *Registry) Register(r *Runner) error {
	if r.Name == "" {
		return ferrors.ConfigError("runner name is required").Build()
	}
	if _, dup := reg.runners[r.Name]; dup {
		return ferrors.ConfigError("duplicate runner name").WithContext("runner", r.Name).Build()
	}
	reg.runners[r.Name] = r
	return nil
}

// Wrapper returns the wrapper runner for s, registering it on first use.
func (reg *Registry) Wrapper(s *step.Step) *Runner {
	key := s.ID() + PreBuildSuffix
	if r, ok := reg.runners[key]; ok {
		return r
	}
	r := Wrap(s)
	reg.runners[key] = r
	return r
}

// RegisterWrappers adds a wrapper for every step reachable from the declared runners.
func (reg *Registry) RegisterWrappers() {
	for _, r := range reg.Declared() {
		for _, s := range r.AllSteps() {
			reg.Wrapper(s)
		}
	}
}

// Lookup returns the runner registered under name.
func (reg *Registry) Lookup(name string) (*Runner, error) {
	r, ok := reg.runners[name]
	if !ok {
		return nil, ferrors.ConfigError("unknown runner").WithContext("runner", name).Build()
	}
	return r, nil
}

// Declared returns the runners that are not step wrappers, sorted by name.
func (reg *Registry) Declared() []*Runner {
	var out []*Runner
	for _, name := range slices.Sorted(maps.Keys(reg.runners)) {
		if r := reg.runners[name]; r.step == nil {
			out = append(out, r)
		}
	}
	return out
}

// Names returns every registered key, wrappers included, sorted.
func (reg *Registry) Names() []string {
	return slices.Sorted(maps.Keys(reg.runners))
}

// AllSteps returns every step reachable from the declared runners, de-duplicated by id.
func (reg *Registry) AllSteps() []*step.Step {
	return reg.gather((*Runner).AllSteps)
}

// CacheableSteps returns every cacheable step reachable from the declared runners.
func (reg *Registry) CacheableSteps() []*step.Step {
	return reg.gather((*Runner).CacheableSteps)
}

func (reg *Registry) gather(get func(*Runner) []*step.Step) []*step.Step {
	var out []*step.Step
	seen := map[string]bool{}
	for _, r := range reg.Declared() {
		for _, s := range get(r) {
			if !seen[s.ID()] {
				seen[s.ID()] = true
				out = append(out, s)
			}
		}
	}
	return out
}

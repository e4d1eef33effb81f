// Package runner groups steps into named runnable units, keeps the registry CI
// jobs resolve them from, and threads the per-run build context through a run.
package runner

import (
	"context"
	"slices"

	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// PreBuildSuffix is appended to a step id to form the registry key of its wrapper.
const PreBuildSuffix = "_pre_build"

// Hook runs after a runner's dependencies are done.
type Hook func(ctx context.Context, bc *BuildContext) error

// Runner is a named bundle of required steps, other runners and an optional base
// environment.
type Runner struct {
	Name            string
	RequiredSteps   []*step.Step
	RequiredRunners []*Runner
	BaseEnvironment *step.Step
	// AfterDependencies is optional.
	AfterDependencies Hook

	// step is set for wrappers created by Wrap.
	step *step.Step
}

// Wrap returns a runner whose only dependency is s, keyed <id>_pre_build.
func Wrap(s *step.Step) *Runner {
	return &Runner{Name: s.ID() + PreBuildSuffix, RequiredSteps: []*step.Step{s}, step: s}
}

// WrappedStep returns the step of a wrapper runner, nil otherwise.
func (r *Runner) WrappedStep() *step.Step { return r.step }

func (r *Runner) roots() []*step.Step {
	roots := slices.Clone(r.RequiredSteps)
	if r.BaseEnvironment != nil {
		roots = append(roots, r.BaseEnvironment)
	}
	return roots
}

// AllSteps returns every step the runner depends on, transitively through
// required runners, de-duplicated by id.
func (r *Runner) AllSteps() []*step.Step {
	return r.collect(func(s *step.Step) []*step.Step { return s.AllSteps() })
}

// CacheableSteps returns the cacheable subset of AllSteps.
func (r *Runner) CacheableSteps() []*step.Step {
	return r.collect(func(s *step.Step) []*step.Step { return s.CacheableSteps() })
}

func (r *Runner) collect(expand func(*step.Step) []*step.Step) []*step.Step {
	var out []*step.Step
	seenSteps := map[string]bool{}
	seenRunners := map[*Runner]bool{}
	var visit func(*Runner)
	visit = func(cur *Runner) {
		if seenRunners[cur] {
			return
		}
		seenRunners[cur] = true
		for _, root := range cur.roots() {
			for _, s := range expand(root) {
				if !seenSteps[s.ID()] {
					seenSteps[s.ID()] = true
					out = append(out, s)
				}
			}
		}
		for _, req := range cur.RequiredRunners {
			visit(req)
		}
	}
	visit(r)
	return out
}

// Run brings every dependency of r to done, then calls AfterDependencies.
func (r *Runner) Run(ctx context.Context, bc *BuildContext) error {
	if err := r.runDependencies(ctx, bc, map[*Runner]bool{}); err != nil {
		return err
	}
	if r.AfterDependencies != nil {
		return r.AfterDependencies(ctx, bc)
	}
	return nil
}

func (r *Runner) runDependencies(ctx context.Context, bc *BuildContext, visited map[*Runner]bool) error {
	if visited[r] {
		return nil
	}
	visited[r] = true
	for _, req := range r.RequiredRunners {
		if err := req.runDependencies(ctx, bc, visited); err != nil {
			return err
		}
	}
	for _, s := range r.roots() {
		if err := bc.RunStep(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

package runner

import (
	"git.home.luguber.info/inful/stepbuilder/internal/stages"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// Nodes converts steps to stage nodes. Each node is keyed by its wrapper runner
// so CI jobs can run it through the registry.
func (reg *Registry) Nodes(steps []*step.Step) []stages.Node {
	nodes := make([]stages.Node, 0, len(steps))
	for _, s := range steps {
		deps := s.Dependencies()
		ids := make([]string, 0, len(deps))
		for _, d := range deps {
			ids = append(ids, d.ID())
		}
		nodes = append(nodes, stages.Node{
			ID:     s.ID(),
			Name:   s.Name(),
			Runner: reg.Wrapper(s).Name,
			Deps:   ids,
		})
	}
	return nodes
}

// CacheableStages levels every step of the declared runners and keeps the
// cacheable ones. Non-cacheable steps still order their dependents.
func (reg *Registry) CacheableStages() ([][]stages.Node, error) {
	levels, err := stages.Level(reg.Nodes(reg.AllSteps()))
	if err != nil {
		return nil, err
	}
	cacheable := reg.CacheableSteps()
	keep := make([]string, 0, len(cacheable))
	for _, s := range cacheable {
		keep = append(keep, s.ID())
	}
	return stages.OnlyIDs(levels, keep), nil
}

// PreBuildNodes returns the cacheable steps that CI builds in a job of their own
// ahead of the stage jobs, in CacheableSteps order.
func (reg *Registry) PreBuildNodes() []stages.Node {
	var marked []*step.Step
	for _, s := range reg.CacheableSteps() {
		if s.CI().PreBuildInSeparateJob {
			marked = append(marked, s)
		}
	}
	return reg.Nodes(marked)
}

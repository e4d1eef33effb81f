package stages

import "slices"

// Record is one CI job of a stage matrix.
type Record struct {
	StepRunnerFQDN     string   `json:"step_runner_fqdn"`
	StepID             string   `json:"step_id"`
	Name               string   `json:"name"`
	RequiredSteps      []string `json:"required_steps"`
	CacheVersionSuffix string   `json:"cache_version_suffix"`
}

// Matrix is the job matrix of one stage in the shape CI matrix strategies expect.
type Matrix struct {
	Include []Record `json:"include"`
}

// Matrices renders every stage as a job matrix. Required step ids are sorted and
// never nil so they encode as a JSON array.
func Matrices(levels [][]Node, cacheVersionSuffix string) []Matrix {
	out := make([]Matrix, 0, len(levels))
	for _, stage := range levels {
		out = append(out, JobMatrix(stage, "", cacheVersionSuffix))
	}
	return out
}

// JobMatrix renders nodes as a single job matrix. namePrefix is prepended to
// every job name.
func JobMatrix(nodes []Node, namePrefix, cacheVersionSuffix string) Matrix {
	m := Matrix{Include: make([]Record, 0, len(nodes))}
	for _, n := range nodes {
		deps := slices.Clone(n.Deps)
		if deps == nil {
			deps = []string{}
		}
		slices.Sort(deps)
		m.Include = append(m.Include, Record{
			StepRunnerFQDN:     n.Runner,
			StepID:             n.ID,
			Name:               namePrefix + n.Name,
			RequiredSteps:      slices.Compact(deps),
			CacheVersionSuffix: cacheVersionSuffix,
		})
	}
	return m
}

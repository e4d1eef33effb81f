// Package stages partitions a step graph into dependency levels and renders the
// levels as CI job matrices.
package stages

import (
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
)

// Node is a step in the graph being levelled. Deps name other nodes by ID; deps
// outside the node set count as already resolved.
type Node struct {
	ID   string
	Name string
	// Runner is the wrapper key a CI job uses to run this node alone.
	Runner string
	Deps   []string
}

// Level places every node in the earliest stage after all of its dependencies.
// Nodes keep their input order inside a stage. A cycle is a configuration error.
func Level(nodes []Node) ([][]Node, error) {
	remaining := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		remaining[n.ID] = true
	}
	pending := dedup(nodes)

	var result [][]Node
	for len(pending) > 0 {
		var stage, rest []Node
		for _, n := range pending {
			if slices.ContainsFunc(n.Deps, func(dep string) bool { return remaining[dep] }) {
				rest = append(rest, n)
				continue
			}
			stage = append(stage, n)
		}
		if len(stage) == 0 {
			ids := make([]string, 0, len(rest))
			for _, n := range rest {
				ids = append(ids, n.ID)
			}
			return nil, ferrors.ConfigError("dependency cycle between steps").
				WithContext("steps", strings.Join(ids, ", ")).
				Build()
		}
		for _, n := range stage {
			delete(remaining, n.ID)
		}
		result = append(result, stage)
		pending = rest
	}
	return result, nil
}

func dedup(nodes []Node) []Node {
	seen := make(map[string]bool, len(nodes))
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

// WithoutIDs removes the nodes whose IDs are in drop and discards stages that end
// up empty. Stage order is kept.
func WithoutIDs(levels [][]Node, drop []string) [][]Node {
	skip := make(map[string]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	var out [][]Node
	for _, stage := range levels {
		var kept []Node
		for _, n := range stage {
			if !skip[n.ID] {
				kept = append(kept, n)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

// OnlyIDs keeps the nodes whose IDs are in keep and discards stages that end up empty.
func OnlyIDs(levels [][]Node, keep []string) [][]Node {
	want := make(map[string]bool, len(keep))
	for _, id := range keep {
		want[id] = true
	}
	var drop []string
	for _, stage := range levels {
		for _, n := range stage {
			if !want[n.ID] {
				drop = append(drop, n.ID)
			}
		}
	}
	return WithoutIDs(levels, drop)
}

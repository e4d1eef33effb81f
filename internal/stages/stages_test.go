package stages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
)

func ids(levels [][]Node) [][]string {
	out := make([][]string, 0, len(levels))
	for _, stage := range levels {
		var s []string
		for _, n := range stage {
			s = append(s, n.ID)
		}
		out = append(out, s)
	}
	return out
}

func diamond() []Node {
	return []Node{
		{ID: "d", Deps: []string{"b", "c"}},
		{ID: "b", Deps: []string{"a"}},
		{ID: "c", Deps: []string{"a"}},
		{ID: "a"},
	}
}

func TestLevelDiamond(t *testing.T) {
	levels, err := Level(diamond())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, ids(levels))
}

func TestLevelStageIndexExceedsDependencies(t *testing.T) {
	nodes := []Node{
		{ID: "e", Deps: []string{"a", "d"}},
		{ID: "d", Deps: []string{"c"}},
		{ID: "c", Deps: []string{"b"}},
		{ID: "b"},
		{ID: "a"},
		{ID: "a"},
	}
	levels, err := Level(nodes)
	require.NoError(t, err)

	index := map[string]int{}
	for i, stage := range levels {
		for _, n := range stage {
			index[n.ID] = i
		}
	}
	assert.Len(t, index, 5)
	for _, n := range nodes {
		for _, dep := range n.Deps {
			assert.Greater(t, index[n.ID], index[dep], "%s after %s", n.ID, dep)
		}
	}
	assert.Equal(t, [][]string{{"b", "a"}, {"c"}, {"d"}, {"e"}}, ids(levels))
}

func TestLevelUnknownDependencyIsResolved(t *testing.T) {
	levels, err := Level([]Node{{ID: "a", Deps: []string{"elsewhere"}}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, ids(levels))
}

func TestLevelCycle(t *testing.T) {
	_, err := Level([]Node{
		{ID: "root"},
		{ID: "a", Deps: []string{"b"}},
		{ID: "b", Deps: []string{"a"}},
	})
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, ferrors.GetCategory(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestWithoutIDsDropsEmptyStages(t *testing.T) {
	levels, err := Level(diamond())
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"c"}, {"d"}}, ids(WithoutIDs(levels, []string{"a", "b"})))
	assert.Empty(t, WithoutIDs(levels, []string{"a", "b", "c", "d"}))
	assert.Equal(t, [][]string{{"b"}, {"d"}}, ids(OnlyIDs(levels, []string{"b", "d"})))
}

func TestMatricesJSON(t *testing.T) {
	levels, err := Level([]Node{
		{ID: "a-1", Name: "a", Runner: "a-1_pre_build"},
		{ID: "b-2", Name: "b", Runner: "b-2_pre_build", Deps: []string{"z-9", "a-1"}},
	})
	require.NoError(t, err)

	data, err := json.Marshal(Matrices(levels, "v14"))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"include": [{"step_runner_fqdn": "a-1_pre_build", "step_id": "a-1", "name": "a", "required_steps": [], "cache_version_suffix": "v14"}]},
		{"include": [{"step_runner_fqdn": "b-2_pre_build", "step_id": "b-2", "name": "b", "required_steps": ["a-1", "z-9"], "cache_version_suffix": "v14"}]}
	]`, string(data))
}

package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepbuilder/internal/backend"
	"git.home.luguber.info/inful/stepbuilder/internal/cache"
	"git.home.luguber.info/inful/stepbuilder/internal/command"
	"git.home.luguber.info/inful/stepbuilder/internal/docker"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
	"git.home.luguber.info/inful/stepbuilder/internal/workspace"
)

type recordingBackend struct {
	ran []string
}

func (r *recordingBackend) Execute(_ context.Context, inv backend.Invocation) error {
	r.ran = append(r.ran, inv.StepID)
	return nil
}

type graph struct {
	a, b, c, d *step.Step
}

// newGraph builds a <- b, a <- c, (b, c) <- d. Only d is not cacheable. b and d
// ask for a separate pre-build job.
func newGraph(t *testing.T) graph {
	t.Helper()
	root := t.TempDir()
	for _, f := range []string{"run.sh", "a.sh", "b.sh", "c.sh", "d.sh"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("true\n"), 0o755))
	}
	opts := step.Options{SourceRoot: root, Harness: "run.sh"}
	mk := func(spec step.Spec) *step.Step {
		s, err := step.New(spec, opts)
		require.NoError(t, err)
		return s
	}
	var g graph
	g.a = mk(step.Spec{Name: "a", Script: "a.sh", CI: step.CIHints{Cacheable: true}})
	g.b = mk(step.Spec{Name: "b", Script: "b.sh", RequiredSteps: map[string]*step.Step{"A": g.a}, CI: step.CIHints{Cacheable: true, PreBuildInSeparateJob: true}})
	g.c = mk(step.Spec{Name: "c", Script: "c.sh", RequiredSteps: map[string]*step.Step{"A": g.a}, CI: step.CIHints{Cacheable: true}})
	g.d = mk(step.Spec{Name: "d", Script: "d.sh", RequiredSteps: map[string]*step.Step{"B": g.b, "C": g.c}, CI: step.CIHints{PreBuildInSeparateJob: true}})
	return g
}

func ids(steps []*step.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name())
	}
	return out
}

func newContext(t *testing.T, b backend.Backend) *BuildContext {
	t.Helper()
	ws := workspace.NewPersistentManager(t.TempDir())
	require.NoError(t, ws.Create())
	rt := &step.Runtime{
		Workspace: ws,
		Cache:     cache.NewStore(ws),
		Local:     b,
		Docker:    docker.NewClient(command.NewRecorder()),
	}
	return NewBuildContext(rt, slog.Default())
}

func TestRunnerSteps(t *testing.T) {
	g := newGraph(t)
	base := &Runner{Name: "base", RequiredSteps: []*step.Step{g.b}}
	top := &Runner{Name: "top", RequiredSteps: []*step.Step{g.d, g.a}, RequiredRunners: []*Runner{base}}

	assert.Equal(t, []string{"d", "b", "a", "c"}, ids(top.AllSteps()))
	assert.Equal(t, []string{"b", "a", "c"}, ids(top.CacheableSteps()))
	assert.Equal(t, []string{"b", "a"}, ids(base.AllSteps()))
}

func TestRegistry(t *testing.T) {
	g := newGraph(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Runner{Name: "top", RequiredSteps: []*step.Step{g.d}}))

	err := reg.Register(&Runner{Name: "top"})
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, ferrors.GetCategory(err))

	reg.RegisterWrappers()
	r, err := reg.Lookup(g.b.ID() + "_pre_build")
	require.NoError(t, err)
	assert.Same(t, g.b, r.WrappedStep())
	assert.Same(t, r, reg.Wrapper(g.b))
	assert.Len(t, reg.Names(), 5)
	assert.Len(t, reg.Declared(), 1)

	_, err = reg.Lookup("missing")
	require.Error(t, err)
}

func TestCacheableStages(t *testing.T) {
	g := newGraph(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Runner{Name: "top", RequiredSteps: []*step.Step{g.d}}))

	levels, err := reg.CacheableStages()
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, g.a.ID(), levels[0][0].ID)
	assert.Equal(t, g.a.ID()+"_pre_build", levels[0][0].Runner)
	require.Len(t, levels[1], 2)
	assert.ElementsMatch(t, []string{g.b.ID(), g.c.ID()}, []string{levels[1][0].ID, levels[1][1].ID})
	assert.Equal(t, []string{g.a.ID()}, levels[1][0].Deps)
}

func TestPreBuildNodesKeepsOnlyCacheableMarkedSteps(t *testing.T) {
	g := newGraph(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Runner{Name: "top", RequiredSteps: []*step.Step{g.d}}))

	nodes := reg.PreBuildNodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, g.b.ID(), nodes[0].ID)
	assert.Equal(t, g.b.ID()+"_pre_build", nodes[0].Runner)
	assert.Equal(t, []string{g.a.ID()}, nodes[0].Deps)
}

func TestRunnerRunsDependenciesOnceThenHook(t *testing.T) {
	g := newGraph(t)
	rec := &recordingBackend{}
	bc := newContext(t, rec)
	_, err := uuid.Parse(bc.RunID)
	require.NoError(t, err)

	base := &Runner{Name: "base", RequiredSteps: []*step.Step{g.b}}
	var hookSawDone bool
	top := &Runner{
		Name:            "top",
		RequiredSteps:   []*step.Step{g.d},
		RequiredRunners: []*Runner{base, base},
		AfterDependencies: func(_ context.Context, bc *BuildContext) error {
			hookSawDone = bc.Runtime.State(g.d.ID()) == step.StateDone
			return nil
		},
	}
	require.NoError(t, bc.RunRunner(context.Background(), top))
	assert.True(t, hookSawDone)
	assert.Equal(t, []string{g.a.ID(), g.b.ID(), g.c.ID(), g.d.ID()}, rec.ran)
}

func TestRunSteps(t *testing.T) {
	g := newGraph(t)
	rec := &recordingBackend{}
	bc := newContext(t, rec)

	require.NoError(t, bc.RunSteps(context.Background(), []*step.Step{g.c, g.b}))
	assert.Equal(t, []string{g.a.ID(), g.c.ID(), g.b.ID()}, rec.ran)
}

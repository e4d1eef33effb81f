package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepbuilder/internal/cache"
	"git.home.luguber.info/inful/stepbuilder/internal/stages"
)

const testHarness = `#!/usr/bin/env bash
set -e
script="$1"
export STEP_CACHE_PATH="$2"
export STEP_OUTPUT_PATH="$3"
bash "$script"
`

const testProject = `
source_root: .
harness: tools/step_runner.sh
cache_version_suffix: v99
steps:
  - name: fetch
    script: steps/fetch.sh
    tracked_files: [inputs/*.txt]
    cacheable: true
    pre_build_in_separate_job: true
  - name: compile
    script: steps/compile.sh
    required_steps:
      FETCH_OUT: fetch
    cacheable: true
  - name: report
    script: steps/report.sh
    required_steps:
      COMPILE_OUT: compile
runners:
  - name: release
    required_steps: [report]
`

func newTestProject(t *testing.T) *CLI {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"stepbuilder.yaml":     testProject,
		"tools/step_runner.sh": testHarness,
		"inputs/a.txt":         "alpha",
		"steps/fetch.sh":       `cp inputs/a.txt "$STEP_OUTPUT_PATH/a.txt"`,
		"steps/compile.sh":     `tr a-z A-Z < "$FETCH_OUT/a.txt" > "$STEP_OUTPUT_PATH/A.txt"`,
		"steps/report.sh":      `cat "$COMPILE_OUT/A.txt" > "$STEP_OUTPUT_PATH/report"`,
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	}
	return &CLI{Config: filepath.Join(dir, "stepbuilder.yaml"), WorkDir: filepath.Join(dir, "work")}
}

func run(t *testing.T, cmd interface {
	Run(*Global, *CLI) error
}, root *CLI) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, cmd.Run(&Global{Out: &out}, root))
	return out.String()
}

func TestGetAllCacheableSteps(t *testing.T) {
	root := newTestProject(t)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(run(t, &GetAllCacheableStepsCmd{}, root)), &ids))
	require.Len(t, ids, 2)
	assert.True(t, strings.HasPrefix(ids[0], "compile-"))
	assert.True(t, strings.HasPrefix(ids[1], "fetch-"))

	var all []string
	require.NoError(t, json.Unmarshal([]byte(run(t, &GetAllStepsIDsCmd{}, root)), &all))
	assert.Len(t, all, 3)
	assert.IsNonDecreasing(t, all)
}

func TestStagesAndMissingMatrices(t *testing.T) {
	root := newTestProject(t)

	var matrices []stages.Matrix
	require.NoError(t, json.Unmarshal([]byte(run(t, &GetCacheableStepsStagesCmd{}, root)), &matrices))
	require.Len(t, matrices, 2)
	fetch := matrices[0].Include[0]
	compile := matrices[1].Include[0]
	assert.Equal(t, "fetch", fetch.Name)
	assert.Equal(t, fetch.StepID+"_pre_build", fetch.StepRunnerFQDN)
	assert.Equal(t, "v99", fetch.CacheVersionSuffix)
	assert.Equal(t, []string{fetch.StepID}, compile.RequiredSteps)

	missing := filepath.Join(t.TempDir(), "missing.json")
	require.NoError(t, os.WriteFile(missing, []byte(`["`+compile.StepID+`"]`), 0o644))
	var filtered []stages.Matrix
	out := run(t, &GetMissingCachesMatricesCmd{MissingIDsFile: missing}, root)
	require.NoError(t, json.Unmarshal([]byte(out), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, compile.StepID, filtered[0].Include[0].StepID)

	assert.Equal(t, "v99\n", run(t, &GetCacheVersionSuffixCmd{}, root))
}

func TestPreBuildStepsMatrix(t *testing.T) {
	root := newTestProject(t)

	var m stages.Matrix
	require.NoError(t, json.Unmarshal([]byte(run(t, &GetPreBuildStepsMatrixCmd{}, root)), &m))
	require.Len(t, m.Include, 1)
	job := m.Include[0]
	assert.Equal(t, "Pre-build: fetch", job.Name)
	assert.True(t, strings.HasPrefix(job.StepID, "fetch-"))
	assert.Equal(t, job.StepID+"_pre_build", job.StepRunnerFQDN)
	assert.Equal(t, []string{}, job.RequiredSteps)
	assert.Equal(t, "v99", job.CacheVersionSuffix)
}

func TestRunRunnerAndStep(t *testing.T) {
	root := newTestProject(t)
	run(t, &RunRunnerCmd{Name: "release"}, root)

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(run(t, &GetAllStepsIDsCmd{}, root)), &ids))
	var reportID string
	for _, id := range ids {
		if strings.HasPrefix(id, "report-") {
			reportID = id
		}
	}
	data, err := os.ReadFile(filepath.Join(root.WorkDir, "step_output", reportID, "report"))
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", strings.TrimSpace(string(data)))

	// A second run is served from the cache.
	run(t, &RunStepCmd{Key: "report"}, root)
	link, err := os.Readlink(filepath.Join(root.WorkDir, "step_output", reportID))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "step_cache", reportID), link)

	err = (&RunStepCmd{Key: "nope"}).Run(&Global{Out: &bytes.Buffer{}}, root)
	require.Error(t, err)
}

func TestRunAllCacheableSteps(t *testing.T) {
	root := newTestProject(t)
	run(t, &RunAllCacheableStepsCmd{}, root)

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(run(t, &GetAllCacheableStepsCmd{}, root)), &ids))
	for _, id := range ids {
		assert.FileExists(t, filepath.Join(root.WorkDir, "step_cache", id, cache.CompleteMarker))
	}
}

func TestSignalContextCancelsOnInterrupt(t *testing.T) {
	ctx, cancel := signalContext()
	defer cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGINT")
	}
}

func TestCLIParses(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--work-dir", "/tmp/w", "run-runner", "release"})
	require.NoError(t, err)
	assert.Equal(t, "release", cli.RunRunner.Name)
	assert.Equal(t, "/tmp/w", cli.WorkDir)
	assert.True(t, filepath.IsAbs(cli.Config))
}

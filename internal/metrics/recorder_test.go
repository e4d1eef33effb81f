package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

type testRecorder struct {
	stepDurations map[string]int
	stepResults   map[string]map[ResultLabel]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{stepDurations: map[string]int{}, stepResults: map[string]map[ResultLabel]int{}}
}

func (t *testRecorder) ObserveStepDuration(s string, _ time.Duration) { t.stepDurations[s]++ }
func (t *testRecorder) IncStepResult(s string, result ResultLabel) {
	m, ok := t.stepResults[s]
	if !ok {
		m = map[ResultLabel]int{}
		t.stepResults[s] = m
	}
	m[result]++
}
func (t *testRecorder) ObserveRunDuration(time.Duration) {}
func (t *testRecorder) IncRunOutcome(string)             {}

func TestObserver(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "run.sh"), []byte("#!/bin/bash\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.sh"), []byte("true\n"), 0o644))
	s, err := step.New(step.Spec{Name: "a", Script: "a.sh"}, step.Options{SourceRoot: root, Harness: "run.sh"})
	require.NoError(t, err)

	rec := newTestRecorder()
	var obs step.Observer = Observer{Recorder: rec}
	obs.StepStarted(s)
	obs.StepFinished(s, time.Second)
	obs.StepCached(s)
	obs.StepFailed(s, assert.AnError, time.Second)

	assert.Equal(t, 2, rec.stepDurations["a"])
	assert.Equal(t, map[ResultLabel]int{ResultSuccess: 1, ResultCached: 1, ResultFailed: 1}, rec.stepResults["a"])

	var _ Recorder = NoopRecorder{}
}

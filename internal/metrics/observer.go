package metrics

import (
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// Observer feeds step lifecycle notifications into a Recorder. Steps are labelled
// by name so series survive identity changes.
type Observer struct {
	Recorder Recorder
}

func (o Observer) StepStarted(*step.Step) {}

func (o Observer) StepCached(s *step.Step) {
	o.Recorder.IncStepResult(s.Name(), ResultCached)
}

func (o Observer) StepFinished(s *step.Step, elapsed time.Duration) {
	o.Recorder.ObserveStepDuration(s.Name(), elapsed)
	o.Recorder.IncStepResult(s.Name(), ResultSuccess)
}

func (o Observer) StepFailed(s *step.Step, _ error, elapsed time.Duration) {
	o.Recorder.ObserveStepDuration(s.Name(), elapsed)
	o.Recorder.IncStepResult(s.Name(), ResultFailed)
}

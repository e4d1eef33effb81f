package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

const publishTimeout = 5 * time.Second

// Observer turns step lifecycle notifications into events on <subject>.<type>.
// Publish failures are logged and never fail the step.
type Observer struct {
	publisher Publisher
	subject   string
	runID     string
	logger    *slog.Logger
	now       func() time.Time
}

// NewObserver creates an observer publishing for one run.
func NewObserver(p Publisher, subject, runID string, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{publisher: p, subject: subject, runID: runID, logger: logger, now: time.Now}
}

func (o *Observer) StepStarted(s *step.Step) { o.emit(o.event(TypeStarted, s)) }

func (o *Observer) StepCached(s *step.Step) { o.emit(o.event(TypeCached, s)) }

func (o *Observer) StepFinished(s *step.Step, elapsed time.Duration) {
	ev := o.event(TypeFinished, s)
	ev.DurationMS = elapsed.Milliseconds()
	o.emit(ev)
}

func (o *Observer) StepFailed(s *step.Step, err error, elapsed time.Duration) {
	ev := o.event(TypeFailed, s)
	ev.DurationMS = elapsed.Milliseconds()
	if err != nil {
		ev.Error = err.Error()
	}
	o.emit(ev)
}

func (o *Observer) event(t Type, s *step.Step) StepEvent {
	return StepEvent{
		Type:      t,
		RunID:     o.runID,
		StepID:    s.ID(),
		StepName:  s.Name(),
		Checksum:  s.Checksum(),
		Timestamp: o.now().UTC(),
	}
}

func (o *Observer) emit(ev StepEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		o.logger.Warn("Failed to encode step event", logfields.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(ctx, o.subject+"."+string(ev.Type), data); err != nil {
		o.logger.Warn("Failed to publish step event", logfields.StepID(ev.StepID), logfields.Error(err))
		return
	}
	o.logger.Debug("Published step event", logfields.StepID(ev.StepID), "type", string(ev.Type))
}

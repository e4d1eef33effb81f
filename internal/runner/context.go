package runner

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// BuildContext is the per-invocation state of a run: its id, the step runtime
// holding step states and the remote host memoization.
type BuildContext struct {
	RunID   string
	Runtime *step.Runtime
	Logger  *slog.Logger
}

// NewBuildContext creates a context with a fresh run id.
func NewBuildContext(rt *step.Runtime, logger *slog.Logger) *BuildContext {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	if rt.Logger == nil {
		rt.Logger = logger.With(logfields.RunID(id))
	}
	return &BuildContext{RunID: id, Runtime: rt, Logger: logger.With(logfields.RunID(id))}
}

// RunStep runs s and everything it needs.
func (bc *BuildContext) RunStep(ctx context.Context, s *step.Step) error {
	return s.Run(ctx, bc.Runtime)
}

// RunSteps runs steps in order and stops at the first failure.
func (bc *BuildContext) RunSteps(ctx context.Context, steps []*step.Step) error {
	for _, s := range steps {
		if err := bc.RunStep(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// RunRunner runs r with its dependencies.
func (bc *BuildContext) RunRunner(ctx context.Context, r *Runner) error {
	bc.Logger.Info("Running runner", logfields.Runner(r.Name))
	return r.Run(ctx, bc)
}

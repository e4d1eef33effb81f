package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/stepbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/runner"
)

// RunRunnerCmd implements 'run-runner'.
type RunRunnerCmd struct {
	Name string `arg:"" help:"Runner name"`
}

func (c *RunRunnerCmd) Run(_ *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	r, err := p.Registry.Lookup(c.Name)
	if err != nil {
		return err
	}
	return runOnce(root, p, r)
}

// RunStepCmd implements 'run-step'. CI stage jobs call it with the
// step_runner_fqdn of their matrix record.
type RunStepCmd struct {
	Key string `arg:"" help:"Wrapper key (<step id>_pre_build) or step name"`
}

func (c *RunStepCmd) Run(_ *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	r, err := resolveStepRunner(p, c.Key)
	if err != nil {
		return err
	}
	return runOnce(root, p, r)
}

func resolveStepRunner(p *config.Project, key string) (*runner.Runner, error) {
	if r, err := p.Registry.Lookup(key); err == nil && r.WrappedStep() != nil {
		return r, nil
	}
	if s, ok := p.Steps[key]; ok {
		return p.Registry.Wrapper(s), nil
	}
	return nil, ferrors.ConfigError("unknown step").WithContext("step", key).Build()
}

// signalContext is cancelled on SIGINT or SIGTERM, which kills running step
// scripts and lets the failed step discard its partial cache entry.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runOnce(root *CLI, p *config.Project, r *runner.Runner) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, root, p)
	if err != nil {
		return err
	}
	return s.close(s.build.RunRunner(ctx, r))
}

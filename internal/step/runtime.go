package step

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/backend"
	"git.home.luguber.info/inful/stepbuilder/internal/cache"
	"git.home.luguber.info/inful/stepbuilder/internal/docker"
	"git.home.luguber.info/inful/stepbuilder/internal/workspace"
)

// State is a position in the step lifecycle.
type State string

const (
	StateUnresolved           State = "unresolved"
	StateDependenciesRunning  State = "dependencies_running"
	StateBuildingIsolatedRoot State = "building_isolated_root"
	StateExecuting            State = "executing"
	StateCaching              State = "caching"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// HostResolver returns the remote docker host a step must run on, or "" for the
// local daemon.
type HostResolver interface {
	DockerHostFor(ctx context.Context, s *Step) (string, error)
}

// Observer is told about step outcomes. Implementations must not block.
type Observer interface {
	StepStarted(s *Step)
	StepCached(s *Step)
	StepFinished(s *Step, elapsed time.Duration)
	StepFailed(s *Step, err error, elapsed time.Duration)
}

// Runtime carries everything one invocation needs to run steps, including the
// per-run record of step states. A Runtime must not be shared between goroutines.
type Runtime struct {
	Workspace *workspace.Manager
	Cache     *cache.Store
	// Local runs host steps; Docker runs containerised steps.
	Local  backend.Backend
	Docker *docker.Client
	Hosts  HostResolver
	// Observers may be empty.
	Observers []Observer
	Logger    *slog.Logger

	states map[string]State
}

// State returns the lifecycle state of the step with id in this run.
func (rt *Runtime) State(id string) State {
	if st, ok := rt.states[id]; ok {
		return st
	}
	return StateUnresolved
}

func (rt *Runtime) transition(s *Step, st State) {
	if rt.states == nil {
		rt.states = make(map[string]State)
	}
	rt.states[s.id] = st
	rt.logger().Debug("Step state", slog.String("step_id", s.id), slog.String("state", string(st)))
}

func (rt *Runtime) logger() *slog.Logger {
	if rt.Logger == nil {
		return slog.Default()
	}
	return rt.Logger
}

func (rt *Runtime) backendFor(ctx context.Context, s *Step) (backend.Backend, error) {
	if !s.RunsInContainer() {
		return rt.Local, nil
	}
	host := ""
	if rt.Hosts != nil {
		h, err := rt.Hosts.DockerHostFor(ctx, s)
		if err != nil {
			return nil, err
		}
		host = h
	}
	if host != "" {
		return backend.NewRemoteContainer(rt.Docker.WithHost(host), rt.logger()), nil
	}
	return backend.NewLocalContainer(rt.Docker, rt.logger()), nil
}

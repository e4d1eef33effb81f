package commands

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/backend"
	"git.home.luguber.info/inful/stepbuilder/internal/cache"
	"git.home.luguber.info/inful/stepbuilder/internal/command"
	"git.home.luguber.info/inful/stepbuilder/internal/config"
	"git.home.luguber.info/inful/stepbuilder/internal/docker"
	"git.home.luguber.info/inful/stepbuilder/internal/events"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
	"git.home.luguber.info/inful/stepbuilder/internal/metrics"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
	"git.home.luguber.info/inful/stepbuilder/internal/remotehost"
	"git.home.luguber.info/inful/stepbuilder/internal/runner"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
	"git.home.luguber.info/inful/stepbuilder/internal/workspace"
)

// session wires one run: work directory, backends, remote hosts and observers.
type session struct {
	project   *config.Project
	workspace *workspace.Manager
	build     *runner.BuildContext
	metrics   *metrics.PrometheusRecorder
	publisher *events.NATSPublisher
	started   time.Time
}

func openSession(ctx context.Context, root *CLI, p *config.Project) (*session, error) {
	ws := workspace.NewPersistentManager(p.WorkDir)
	if root.Ephemeral {
		ws = workspace.NewManager("")
	}
	if err := ws.Create(); err != nil {
		return nil, err
	}

	logger := slog.Default()
	exec := command.NewExecRunner(logger)
	cfg := p.Config
	rt := &step.Runtime{
		Workspace: ws,
		Cache:     cache.NewStore(ws).WithLogger(logger),
		Local:     backend.NewLocal(exec, p.Root.Path, logger),
		Docker:    docker.NewClient(exec),
	}
	if len(cfg.Remote.Builders) > 0 {
		rt.Hosts = remotehost.NewPool(provisioner(cfg, exec), builders(cfg), logger)
	}

	s := &session{project: p, workspace: ws, started: time.Now()}
	s.build = runner.NewBuildContext(rt, logger)
	s.build.Logger.Info("Starting run",
		logfields.Path(ws.GetPath()),
		slog.String("source_root", p.Root.Path),
		slog.String("head", p.Root.Head),
		slog.Bool("ci", cfg.CI))

	if cfg.Metrics.Textfile != "" {
		s.metrics = metrics.NewPrometheusRecorder(nil)
		rt.Observers = append(rt.Observers, metrics.Observer{Recorder: s.metrics})
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(ctx, cfg.Events.NATSURL, cfg.Events.Stream, cfg.Events.Subject)
		if err != nil {
			s.build.Logger.Warn("Step events disabled", logfields.Error(err))
		} else {
			s.publisher = pub
			rt.Observers = append(rt.Observers, events.NewObserver(pub, cfg.Events.Subject, s.build.RunID, s.build.Logger))
		}
	}
	return s, nil
}

// close records the run outcome and releases resources. It returns runErr.
func (s *session) close(runErr error) error {
	log := s.build.Logger
	if s.metrics != nil {
		outcome := "success"
		if runErr != nil {
			outcome = "failed"
		}
		s.metrics.ObserveRunDuration(time.Since(s.started))
		s.metrics.IncRunOutcome(outcome)
		path := s.project.Config.Metrics.Textfile
		if err := s.metrics.WriteTextfile(path); err != nil {
			log.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warn("Failed to close event publisher", logfields.Error(err))
		}
	}
	if err := s.workspace.Cleanup(); err != nil {
		log.Warn("Failed to cleanup work directory", logfields.Error(err))
	}
	log.Info("Run finished", logfields.DurationMS(float64(time.Since(s.started).Milliseconds())), slog.Bool("ok", runErr == nil))
	return runErr
}

func provisioner(cfg *config.Config, exec command.Runner) remotehost.Provisioner {
	if len(cfg.Remote.ProvisionCommand) > 0 {
		return remotehost.CommandProvisioner{Runner: exec, Command: cfg.Remote.ProvisionCommand}
	}
	static := remotehost.StaticProvisioner{}
	for arch, host := range cfg.Remote.Hosts {
		static[platform.Architecture(arch)] = host
	}
	return static
}

func builders(cfg *config.Config) map[platform.Architecture]remotehost.Builder {
	out := make(map[platform.Architecture]remotehost.Builder, len(cfg.Remote.Builders))
	for arch, b := range cfg.Builders() {
		out[arch] = remotehost.Builder{User: b.User}
	}
	return out
}

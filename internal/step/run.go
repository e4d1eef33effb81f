package step

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/backend"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/fsutil"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// Run brings the step to Done: a cache hit links the cached output and skips
// everything else, including dependencies. Otherwise required steps and the base
// step run first, the tracked files are copied into a fresh isolated root, the
// script executes and the output is persisted to the cache. A failed or
// interrupted run leaves no committed cache entry behind.
func (s *Step) Run(ctx context.Context, rt *Runtime) error {
	switch rt.State(s.id) {
	case StateDone:
		return nil
	case StateFailed:
		return ferrors.NewError(ferrors.CategoryExecution, "step already failed in this run").
			Fatal().
			WithContext("step_id", s.id).
			Build()
	}
	log := rt.logger().With(logfields.StepID(s.id))

	hit, err := rt.Cache.Restore(s.id)
	if err != nil {
		rt.transition(s, StateFailed)
		return err
	}
	if hit {
		log.Info("Result of the step is found in cache, skip", logfields.CacheHit(true))
		rt.transition(s, StateDone)
		for _, o := range rt.Observers {
			o.StepCached(s)
		}
		return nil
	}

	start := time.Now()
	for _, o := range rt.Observers {
		o.StepStarted(s)
	}
	fail := func(err error) error {
		rt.transition(s, StateFailed)
		for _, o := range rt.Observers {
			o.StepFailed(s, err, time.Since(start))
		}
		return err
	}

	rt.transition(s, StateDependenciesRunning)
	for _, dep := range s.Dependencies() {
		if err := dep.Run(ctx, rt); err != nil {
			return fail(ferrors.DependencyError(err, "dependency failed").
				WithContext("step_id", s.id).
				WithContext("dependency", dep.id).
				Build())
		}
	}

	rt.transition(s, StateBuildingIsolatedRoot)
	if err := s.prepareDirectories(rt); err != nil {
		return fail(err)
	}

	rt.transition(s, StateExecuting)
	inv := s.invocation(rt)
	log.Info("Start step", logfields.StepName(s.spec.Name), slog.Any("env", inv.Env), slog.Any("required_outputs", inv.RequiredOutputs))
	b, err := rt.backendFor(ctx, s)
	if err == nil {
		err = b.Execute(ctx, inv)
	}
	if err != nil {
		log.Warn("Step failed; make sure all files it uses are listed as tracked files",
			logfields.StepName(s.spec.Name),
			slog.Any("tracked_files", s.files),
			logfields.Error(err))
		if derr := rt.Cache.Discard(s.id); derr != nil {
			log.Warn("Failed to discard partial cache entry", logfields.Error(derr))
		}
		return fail(err)
	}

	rt.transition(s, StateCaching)
	if err := rt.Cache.Persist(s.id); err != nil {
		return fail(err)
	}

	rt.transition(s, StateDone)
	elapsed := time.Since(start)
	log.Info("Step finished", logfields.DurationMS(float64(elapsed.Milliseconds())))
	for _, o := range rt.Observers {
		o.StepFinished(s, elapsed)
	}
	return nil
}

// prepareDirectories recreates the output directory and the isolated root, the
// latter holding only the tracked files.
func (s *Step) prepareDirectories(rt *Runtime) error {
	out := rt.Workspace.OutputDir(s.id)
	iso := rt.Workspace.IsolatedRoot(s.id)
	cacheDir := rt.Workspace.CacheDir(s.id)

	if err := rt.Cache.Invalidate(s.id); err != nil {
		return err
	}
	for _, dir := range []string{out, iso} {
		if err := fsutil.RemovePath(dir); err != nil {
			return ferrors.FileSystemError(err, "clear step directory").WithContext("path", dir).Build()
		}
	}
	for _, dir := range []string{out, iso, cacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ferrors.FileSystemError(err, "create step directory").WithContext("path", dir).Build()
		}
	}
	for _, rel := range s.files {
		src := filepath.Join(s.opts.SourceRoot, filepath.FromSlash(rel))
		dst := filepath.Join(iso, filepath.FromSlash(rel))
		if err := fsutil.CopyFile(src, dst); err != nil {
			return ferrors.FileSystemError(err, "copy tracked file into isolated root").
				WithContext("path", rel).
				Build()
		}
	}
	return nil
}

func (s *Step) invocation(rt *Runtime) backend.Invocation {
	inv := backend.Invocation{
		StepID:          s.id,
		IsolatedRoot:    rt.Workspace.IsolatedRoot(s.id),
		CacheDir:        rt.Workspace.CacheDir(s.id),
		OutputDir:       rt.Workspace.OutputDir(s.id),
		Harness:         s.harnessPath(),
		Script:          s.spec.Script,
		User:            s.spec.User,
		RequiredOutputs: make(map[string]string, len(s.spec.RequiredSteps)),
		Env:             maps.Clone(s.spec.Env),
	}
	if inv.Env == nil {
		inv.Env = make(map[string]string)
	}
	for _, name := range slices.Sorted(maps.Keys(s.spec.RequiredSteps)) {
		inv.RequiredOutputs[name] = rt.Workspace.OutputDir(s.spec.RequiredSteps[name].id)
	}
	if s.opts.InCI {
		inv.Env[CIFlagVar] = "1"
	}
	if s.RunsInContainer() {
		inv.Container = &backend.ContainerSpec{
			Name:      s.ContainerName(),
			BaseImage: s.baseImage.Name,
			Platform:  s.baseImage.Platform.String(),
		}
		if base := s.spec.BaseStep; base != nil {
			inv.Container.BaseImageTarball = filepath.Join(rt.Workspace.OutputDir(base.id), base.id)
		}
		if s.spec.Kind == KindEnvironment {
			inv.Container.ResultImage = s.id
		}
	}
	return inv
}

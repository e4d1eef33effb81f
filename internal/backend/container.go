package backend

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/stepbuilder/internal/docker"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// containerBase holds what the local and remote container backends share.
type containerBase struct {
	client *docker.Client
	logger *slog.Logger
}

func (b containerBase) transportError(err error, msg string, inv Invocation) error {
	return ferrors.TransportError(err, msg).
		WithContext("step_id", inv.StepID).
		WithContext("docker_host", b.client.Host()).
		Build()
}

// prepareBaseImage loads the base environment's saved image unless the daemon
// already knows it. Image names are step ids, so a name match implies identical content.
func (b containerBase) prepareBaseImage(ctx context.Context, inv Invocation) error {
	spec := inv.Container
	if spec.BaseImageTarball == "" {
		return nil
	}
	exists, err := b.client.ImageExists(ctx, spec.BaseImage)
	if err != nil {
		return b.transportError(err, "inspect base image", inv)
	}
	if exists {
		return nil
	}
	b.logger.Info("Loading base image",
		logfields.Image(spec.BaseImage),
		logfields.Path(spec.BaseImageTarball),
		logfields.DockerHost(b.client.Host()))
	if err := b.client.Load(ctx, spec.BaseImageTarball); err != nil {
		return b.transportError(err, "load base image", inv)
	}
	return nil
}

func (b containerBase) options(inv Invocation) docker.ContainerOptions {
	env := StepEnv(inv, ContainerRequiredOutput)
	return docker.ContainerOptions{
		Name:     inv.Container.Name,
		Workdir:  ContainerSourceRoot,
		User:     inv.User,
		Platform: inv.Container.Platform,
		Env:      sortedPairs(env),
		Image:    inv.Container.BaseImage,
		Command:  HarnessArgs(inv, ContainerCacheDir, ContainerOutputDir),
	}
}

// finish commits and saves the result image of environment steps, then removes
// the container.
func (b containerBase) finish(ctx context.Context, inv Invocation) error {
	spec := inv.Container
	if spec.ResultImage != "" {
		if err := b.client.Commit(ctx, spec.Name, spec.ResultImage); err != nil {
			return b.transportError(err, "commit result image", inv)
		}
		tarball := filepath.Join(inv.OutputDir, spec.ResultImage)
		b.logger.Info("Saving result image", logfields.Image(spec.ResultImage), logfields.Path(tarball))
		if err := b.client.Save(ctx, spec.ResultImage, tarball); err != nil {
			return b.transportError(err, "save result image", inv)
		}
	}
	if err := b.client.Remove(ctx, spec.Name); err != nil {
		return b.transportError(err, "remove step container", inv)
	}
	return nil
}

// LocalContainer runs the step in a container on the local daemon with the step
// trees bind-mounted.
type LocalContainer struct {
	containerBase
}

// NewLocalContainer creates a local-container backend.
func NewLocalContainer(client *docker.Client, logger *slog.Logger) *LocalContainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalContainer{containerBase{client: client, logger: logger}}
}

func (c *LocalContainer) Execute(ctx context.Context, inv Invocation) error {
	if err := c.prepareBaseImage(ctx, inv); err != nil {
		return err
	}
	if err := c.client.Remove(ctx, inv.Container.Name); err != nil {
		return c.transportError(err, "remove previous container", inv)
	}

	opts := c.options(inv)
	opts.Mounts = []docker.Mount{
		{Source: inv.IsolatedRoot, Target: ContainerSourceRoot},
		{Source: inv.CacheDir, Target: ContainerCacheDir},
		{Source: inv.OutputDir, Target: ContainerOutputDir},
	}
	for _, name := range sortedKeys(inv.RequiredOutputs) {
		dir := inv.RequiredOutputs[name]
		opts.Mounts = append(opts.Mounts, docker.Mount{Source: dir, Target: ContainerRequiredOutput(dir)})
	}

	c.logger.Info("Running step in local container",
		logfields.StepID(inv.StepID),
		logfields.Container(inv.Container.Name),
		logfields.Image(inv.Container.BaseImage))
	if err := c.client.Run(ctx, opts); err != nil {
		return ferrors.ExecutionError(err, "step script failed in container").
			WithContext("step_id", inv.StepID).
			WithContext("container", inv.Container.Name).
			Build()
	}
	return c.finish(ctx, inv)
}

// RemoteContainer runs the step on a remote daemon. Bind mounts do not work
// there, so inputs are copied into a created container and outputs copied back.
type RemoteContainer struct {
	containerBase
}

// NewRemoteContainer creates a remote-container backend; client must carry the remote host.
func NewRemoteContainer(client *docker.Client, logger *slog.Logger) *RemoteContainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteContainer{containerBase{client: client, logger: logger}}
}

func (c *RemoteContainer) Execute(ctx context.Context, inv Invocation) error {
	if err := c.prepareBaseImage(ctx, inv); err != nil {
		return err
	}
	name := inv.Container.Name
	if err := c.client.Remove(ctx, name); err != nil {
		return c.transportError(err, "remove previous container", inv)
	}
	if err := c.client.Create(ctx, c.options(inv)); err != nil {
		return c.transportError(err, "create step container", inv)
	}

	type copyPair struct{ src, dst string }
	inputs := []copyPair{{inv.IsolatedRoot + "/.", ContainerSourceRoot}}
	for _, env := range sortedKeys(inv.RequiredOutputs) {
		dir := inv.RequiredOutputs[env]
		inputs = append(inputs, copyPair{dir + "/.", ContainerRequiredOutput(dir)})
	}
	inputs = append(inputs,
		copyPair{inv.OutputDir + "/.", ContainerOutputDir},
		copyPair{inv.CacheDir + "/.", ContainerCacheDir},
	)
	for _, p := range inputs {
		if err := c.client.CopyTo(ctx, p.src, name, p.dst); err != nil {
			return c.transportError(err, "copy input into container", inv)
		}
	}

	c.logger.Info("Running step in remote container",
		logfields.StepID(inv.StepID),
		logfields.Container(name),
		logfields.DockerHost(c.client.Host()))
	if err := c.client.Start(ctx, name); err != nil {
		return ferrors.ExecutionError(err, "step script failed in remote container").
			WithContext("step_id", inv.StepID).
			WithContext("container", name).
			WithContext("docker_host", c.client.Host()).
			Build()
	}

	outputs := []copyPair{
		{ContainerOutputDir + "/.", inv.OutputDir},
		{ContainerCacheDir + "/.", inv.CacheDir},
	}
	for _, p := range outputs {
		if err := c.client.CopyFrom(ctx, name, p.src, p.dst); err != nil {
			return c.transportError(err, "copy output from container", inv)
		}
	}
	return c.finish(ctx, inv)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

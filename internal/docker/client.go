// Package docker drives the docker CLI, locally or against a remote daemon
// reached through DOCKER_HOST=ssh://user@host.
package docker

import (
	"context"
	"os"
	"strings"

	"git.home.luguber.info/inful/stepbuilder/internal/command"
)

// Mount binds a host path into a container.
type Mount struct {
	Source string
	Target string
}

// ContainerOptions are shared by `docker run` and `docker create`.
type ContainerOptions struct {
	Name     string
	Workdir  string
	User     string
	Platform string
	Mounts   []Mount
	// Env holds NAME=value pairs passed with -e.
	Env     []string
	Image   string
	Command []string
}

// Client issues docker CLI commands through a command.Runner.
type Client struct {
	runner command.Runner
	binary string
	host   string
}

// NewClient creates a client for the local daemon.
func NewClient(runner command.Runner) *Client {
	return &Client{runner: runner, binary: "docker"}
}

// WithHost returns a copy of c talking to host (for example ssh://ubuntu@10.0.0.5).
// An empty host means the local daemon.
func (c *Client) WithHost(host string) *Client {
	cp := *c
	cp.host = host
	return &cp
}

// Host returns the DOCKER_HOST value used by c, empty for the local daemon.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) spec(capture bool, args ...string) command.Spec {
	spec := command.Spec{Name: c.binary, Args: args, Capture: capture}
	if c.host != "" {
		spec.Env = append(os.Environ(), "DOCKER_HOST="+c.host)
	}
	return spec
}

func (c *Client) exec(ctx context.Context, args ...string) error {
	_, err := c.runner.Run(ctx, c.spec(false, args...))
	return err
}

// ImageExists reports whether `docker images -q name` lists anything.
func (c *Client) ImageExists(ctx context.Context, name string) (bool, error) {
	out, err := c.runner.Run(ctx, c.spec(true, "images", "-q", name))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// Load loads an image tarball.
func (c *Client) Load(ctx context.Context, path string) error {
	return c.exec(ctx, "load", "-i", path)
}

// Remove force-removes a container; a missing container is not an error for docker.
func (c *Client) Remove(ctx context.Context, container string) error {
	return c.exec(ctx, "rm", "-f", container)
}

// Run runs a container in the foreground with stdin attached.
func (c *Client) Run(ctx context.Context, opts ContainerOptions) error {
	args := append([]string{"run", "-i"}, containerArgs(opts)...)
	return c.exec(ctx, args...)
}

// Create creates a container without starting it.
func (c *Client) Create(ctx context.Context, opts ContainerOptions) error {
	args := append([]string{"create"}, containerArgs(opts)...)
	return c.exec(ctx, args...)
}

// Start starts a created container interactively and waits for it to exit.
func (c *Client) Start(ctx context.Context, container string) error {
	return c.exec(ctx, "start", "-i", container)
}

// CopyTo copies src from the host into container at dst, following symlinks.
func (c *Client) CopyTo(ctx context.Context, src, container, dst string) error {
	return c.exec(ctx, "cp", "-a", "-L", src, container+":"+dst)
}

// CopyFrom copies src out of container to dst on the host.
func (c *Client) CopyFrom(ctx context.Context, container, src, dst string) error {
	return c.exec(ctx, "cp", "-a", container+":"+src, dst)
}

// Commit commits container as image.
func (c *Client) Commit(ctx context.Context, container, image string) error {
	return c.exec(ctx, "commit", container, image)
}

// Save writes image to a tarball at output.
func (c *Client) Save(ctx context.Context, image, output string) error {
	return c.exec(ctx, "save", image, "--output", output)
}

func containerArgs(opts ContainerOptions) []string {
	args := []string{"--name", opts.Name}
	if opts.Workdir != "" {
		args = append(args, "--workdir", opts.Workdir)
	}
	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}
	for _, m := range opts.Mounts {
		args = append(args, "-v", m.Source+":"+m.Target)
	}
	for _, e := range opts.Env {
		args = append(args, "-e", e)
	}
	args = append(args, opts.Image)
	return append(args, opts.Command...)
}

// Package remotehost hands out remote docker hosts per architecture. Hosts are
// provisioned on first use and reused for the rest of the run.
package remotehost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// Builder describes the remote node used for one architecture.
type Builder struct {
	// User is the ssh login on the provisioned node.
	User string
}

// Host is a provisioned node.
type Host struct {
	User    string
	Address string
}

// Handle returns the DOCKER_HOST value for h.
func (h Host) Handle() string {
	return fmt.Sprintf("ssh://%s@%s", h.User, h.Address)
}

// Provisioner creates a reachable docker host for an architecture.
type Provisioner interface {
	Provision(ctx context.Context, arch platform.Architecture, b Builder) (Host, error)
}

type entry struct {
	handle string
	err    error
}

// Pool memoizes one host per architecture. A failed provisioning is memoized too:
// the architecture stays unusable for the rest of the run.
type Pool struct {
	provisioner Provisioner
	builders    map[platform.Architecture]Builder
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[platform.Architecture]entry
}

// NewPool creates a pool. Architectures missing from builders never get a remote host.
func NewPool(p Provisioner, builders map[platform.Architecture]Builder, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		provisioner: p,
		builders:    builders,
		logger:      logger,
		entries:     make(map[platform.Architecture]entry),
	}
}

// HasBuilder reports whether arch has a remote builder.
func (p *Pool) HasBuilder(arch platform.Architecture) bool {
	_, ok := p.builders[arch]
	return ok
}

// GetOrCreate returns the connection handle for arch, provisioning a host on first request.
func (p *Pool) GetOrCreate(ctx context.Context, arch platform.Architecture) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[arch]; ok {
		return e.handle, e.err
	}
	b, ok := p.builders[arch]
	if !ok {
		return "", ferrors.ConfigError("no remote builder for architecture").
			WithContext("architecture", string(arch)).
			Build()
	}

	p.logger.Info("Provisioning remote docker host", logfields.Architecture(string(arch)))
	host, err := p.provisioner.Provision(ctx, arch, b)
	if err != nil {
		e := entry{err: ferrors.TransportError(err, "provision remote docker host").
			WithContext("architecture", string(arch)).
			Build()}
		p.entries[arch] = e
		return "", e.err
	}
	if host.User == "" {
		host.User = b.User
	}
	handle := host.Handle()
	p.entries[arch] = entry{handle: handle}
	p.logger.Info("Remote docker host ready", logfields.Architecture(string(arch)), logfields.DockerHost(handle))
	return handle, nil
}

// DockerHostFor returns the remote host for steps that ask for remote docker and
// whose architecture has a builder, and "" otherwise.
func (p *Pool) DockerHostFor(ctx context.Context, s *step.Step) (string, error) {
	if !s.CI().RunInRemoteDocker || !s.RunsInContainer() {
		return "", nil
	}
	if !p.HasBuilder(s.Architecture()) {
		return "", nil
	}
	return p.GetOrCreate(ctx, s.Architecture())
}

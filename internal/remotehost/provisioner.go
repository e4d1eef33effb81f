package remotehost

import (
	"context"
	"fmt"
	"os"
	"strings"

	"git.home.luguber.info/inful/stepbuilder/internal/command"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
)

// StaticProvisioner hands out preconfigured addresses.
type StaticProvisioner map[platform.Architecture]string

func (s StaticProvisioner) Provision(_ context.Context, arch platform.Architecture, b Builder) (Host, error) {
	addr, ok := s[arch]
	if !ok || addr == "" {
		return Host{}, fmt.Errorf("no static host configured for %s", arch)
	}
	return Host{User: b.User, Address: addr}, nil
}

// CommandProvisioner runs an external program that creates a node and prints its
// address on stdout. The program receives STEPBUILDER_ARCHITECTURE and
// STEPBUILDER_BUILDER_USER in its environment.
type CommandProvisioner struct {
	Runner  command.Runner
	Command []string
}

func (c CommandProvisioner) Provision(ctx context.Context, arch platform.Architecture, b Builder) (Host, error) {
	if len(c.Command) == 0 {
		return Host{}, fmt.Errorf("provision command is empty")
	}
	out, err := c.Runner.Run(ctx, command.Spec{
		Name: c.Command[0],
		Args: c.Command[1:],
		Env: append(os.Environ(),
			"STEPBUILDER_ARCHITECTURE="+string(arch),
			"STEPBUILDER_BUILDER_USER="+b.User,
		),
		Capture: true,
	})
	if err != nil {
		return Host{}, err
	}
	addr := strings.TrimSpace(string(out))
	if addr == "" {
		return Host{}, fmt.Errorf("provision command printed no address")
	}
	// The program may print user@address to override the builder user.
	if user, host, ok := strings.Cut(addr, "@"); ok {
		return Host{User: user, Address: host}, nil
	}
	return Host{User: b.User, Address: addr}, nil
}

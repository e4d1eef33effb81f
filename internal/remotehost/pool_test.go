package remotehost

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepbuilder/internal/command"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

type countingProvisioner struct {
	calls map[platform.Architecture]int
	err   error
}

func (c *countingProvisioner) Provision(_ context.Context, arch platform.Architecture, b Builder) (Host, error) {
	if c.calls == nil {
		c.calls = map[platform.Architecture]int{}
	}
	c.calls[arch]++
	if c.err != nil {
		return Host{}, c.err
	}
	return Host{Address: "10.0.0." + string(rune('0'+len(c.calls)))}, nil
}

func TestPoolMemoizesPerArchitecture(t *testing.T) {
	prov := &countingProvisioner{}
	pool := NewPool(prov, map[platform.Architecture]Builder{
		platform.X86_64: {User: "ubuntu"},
		platform.ARM64:  {User: "ec2-user"},
	}, nil)

	h1, err := pool.GetOrCreate(context.Background(), platform.X86_64)
	require.NoError(t, err)
	h2, err := pool.GetOrCreate(context.Background(), platform.X86_64)
	require.NoError(t, err)
	h3, err := pool.GetOrCreate(context.Background(), platform.ARM64)
	require.NoError(t, err)

	assert.Equal(t, "ssh://ubuntu@10.0.0.1", h1)
	assert.Equal(t, h1, h2)
	assert.Equal(t, "ssh://ec2-user@10.0.0.2", h3)
	assert.Equal(t, 1, prov.calls[platform.X86_64])
	assert.Equal(t, 1, prov.calls[platform.ARM64])
}

func TestPoolMemoizesFailure(t *testing.T) {
	prov := &countingProvisioner{err: errors.New("quota exceeded")}
	pool := NewPool(prov, map[platform.Architecture]Builder{platform.ARM64: {User: "ubuntu"}}, nil)

	_, err := pool.GetOrCreate(context.Background(), platform.ARM64)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryTransport, ferrors.GetCategory(err))

	_, err = pool.GetOrCreate(context.Background(), platform.ARM64)
	require.Error(t, err)
	assert.Equal(t, 1, prov.calls[platform.ARM64])

	_, err = pool.GetOrCreate(context.Background(), platform.X86_64)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, ferrors.GetCategory(err))
}

func TestDockerHostFor(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "run.sh"), []byte("#!/bin/bash\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "s.sh"), []byte("true\n"), 0o644))
	opts := step.Options{SourceRoot: root, Harness: "run.sh"}

	newStep := func(name string, remote bool, p platform.DockerPlatform) *step.Step {
		s, err := step.New(step.Spec{
			Name:      name,
			Script:    "s.sh",
			BaseImage: &step.Image{Name: "ubuntu:22.04", Platform: p},
			CI:        step.CIHints{RunInRemoteDocker: remote},
		}, opts)
		require.NoError(t, err)
		return s
	}

	prov := &countingProvisioner{}
	pool := NewPool(prov, map[platform.Architecture]Builder{platform.ARM64: {User: "ubuntu"}}, nil)
	ctx := context.Background()

	h, err := pool.DockerHostFor(ctx, newStep("local", false, platform.PlatformARM64))
	require.NoError(t, err)
	assert.Empty(t, h)

	h, err = pool.DockerHostFor(ctx, newStep("nobuilder", true, platform.PlatformAMD64))
	require.NoError(t, err)
	assert.Empty(t, h)

	h, err = pool.DockerHostFor(ctx, newStep("remote", true, platform.PlatformARM64))
	require.NoError(t, err)
	assert.Equal(t, "ssh://ubuntu@10.0.0.1", h)
}

func TestStaticProvisioner(t *testing.T) {
	sp := StaticProvisioner{platform.X86_64: "build-amd64.internal"}
	host, err := sp.Provision(context.Background(), platform.X86_64, Builder{User: "ubuntu"})
	require.NoError(t, err)
	assert.Equal(t, "ssh://ubuntu@build-amd64.internal", host.Handle())

	_, err = sp.Provision(context.Background(), platform.ARM64, Builder{User: "ubuntu"})
	require.Error(t, err)
}

func TestCommandProvisioner(t *testing.T) {
	rec := command.NewRecorder().On("provision-node", "admin@192.168.1.7\n", nil)
	cp := CommandProvisioner{Runner: rec, Command: []string{"provision-node", "--wait"}}

	host, err := cp.Provision(context.Background(), platform.ARM64, Builder{User: "ubuntu"})
	require.NoError(t, err)
	assert.Equal(t, Host{User: "admin", Address: "192.168.1.7"}, host)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Capture)
	assert.Contains(t, calls[0].Env, "STEPBUILDER_ARCHITECTURE=arm64")
	assert.Contains(t, calls[0].Env, "STEPBUILDER_BUILDER_USER=ubuntu")
}

// Package platform describes docker platforms and the build architectures they map to.
package platform

import (
	"fmt"
	"strings"
)

// DockerPlatform is a docker platform triple such as linux/amd64 or linux/arm/v7.
type DockerPlatform struct {
	OS           string
	Architecture string
	Variant      string
}

var (
	PlatformAMD64 = DockerPlatform{OS: "linux", Architecture: "amd64"}
	PlatformARM64 = DockerPlatform{OS: "linux", Architecture: "arm64"}
	PlatformARM   = DockerPlatform{OS: "linux", Architecture: "arm"}
	PlatformARMV7 = DockerPlatform{OS: "linux", Architecture: "arm", Variant: "v7"}
	PlatformARMV8 = DockerPlatform{OS: "linux", Architecture: "arm", Variant: "v8"}
)

// String returns the canonical os/arch[/variant] form accepted by --platform.
func (p DockerPlatform) String() string {
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// Dashed returns os-arch[-variant], usable inside names and tags.
func (p DockerPlatform) Dashed() string {
	s := p.OS + "-" + p.Architecture
	if p.Variant != "" {
		s += "-" + p.Variant
	}
	return s
}

// IsZero reports whether p is unset.
func (p DockerPlatform) IsZero() bool {
	return p == DockerPlatform{}
}

// ArchitectureOf maps a docker platform to a build architecture.
func ArchitectureOf(p DockerPlatform) Architecture {
	s := p.String()
	switch {
	case strings.Contains(s, "amd64"):
		return X86_64
	case strings.Contains(s, "arm64"), strings.Contains(s, "arm/v8"):
		return ARM64
	case strings.Contains(s, "arm/v7"):
		return ARMV7
	default:
		return Unknown
	}
}

// Parse parses os/arch[/variant].
func Parse(s string) (DockerPlatform, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			break
		}
		return DockerPlatform{OS: parts[0], Architecture: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			break
		}
		return DockerPlatform{OS: parts[0], Architecture: parts[1], Variant: parts[2]}, nil
	}
	return DockerPlatform{}, fmt.Errorf("invalid docker platform %q, expected os/arch[/variant]", s)
}

// Architecture is a build architecture.
type Architecture string

const (
	X86_64  Architecture = "x86_64"
	ARM64   Architecture = "arm64"
	ARM     Architecture = "arm"
	ARMV7   Architecture = "armv7"
	ARMV8   Architecture = "armv8"
	Unknown Architecture = "unknown"
)

var architecturePlatforms = map[Architecture]DockerPlatform{
	X86_64: PlatformAMD64,
	ARM64:  PlatformARM64,
	ARM:    PlatformARM,
	ARMV7:  PlatformARMV7,
	ARMV8:  PlatformARMV8,
}

// DockerPlatform returns the docker platform for a; Unknown maps to linux/amd64.
func (a Architecture) DockerPlatform() DockerPlatform {
	if p, ok := architecturePlatforms[a]; ok {
		return p
	}
	return PlatformAMD64
}

// ParseArchitecture validates an architecture name.
func ParseArchitecture(s string) (Architecture, error) {
	a := Architecture(s)
	if _, ok := architecturePlatforms[a]; ok || a == Unknown {
		return a, nil
	}
	return "", fmt.Errorf("unknown architecture %q", s)
}

// Package step declares build steps and runs their lifecycle: cache restore,
// dependencies, isolated root, execution and cache persist.
package step

import (
	"git.home.luguber.info/inful/stepbuilder/internal/identity"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
)

// Kind distinguishes steps producing files from steps producing an image.
type Kind string

const (
	// KindArtifact steps produce an output file tree.
	KindArtifact Kind = "artifact"
	// KindEnvironment steps produce a new image layered on their base. When run
	// in a container, the container is committed as an image named after the
	// step id and saved into the output directory.
	KindEnvironment Kind = "environment"
)

// Image is a docker image reference pinned to a platform.
type Image struct {
	Name     string
	Platform platform.DockerPlatform
}

// CIHints are scheduling hints for the CI matrix generator.
type CIHints struct {
	Cacheable             bool
	PreBuildInSeparateJob bool
	RunInRemoteDocker     bool
}

// Spec declares a step. Exactly one of BaseStep and BaseImage may be set.
type Spec struct {
	Name string
	Kind Kind
	// Script is relative to the source root.
	Script       string
	TrackedFiles []string
	BaseStep     *Step
	BaseImage    *Image
	// RequiredSteps maps the environment variable that receives a required step's
	// output directory to that step.
	RequiredSteps map[string]*Step
	Env           map[string]string
	// User defaults to root.
	User string
	CI   CIHints
}

// Options are shared by every step of a project.
type Options struct {
	SourceRoot string
	// Harness is the step runner script, relative to the source root. It is
	// tracked by every step.
	Harness    string
	Algorithm  identity.Algorithm
	EmptyGlobs identity.EmptyGlobPolicy
	// InCI adds IN_CICD=1 to every step's environment.
	InCI bool
}

// CIFlagVar is set to "1" in a step's environment when running in CI.
const CIFlagVar = "IN_CICD"

// DefaultUser runs step scripts when Spec.User is empty.
const DefaultUser = "root"

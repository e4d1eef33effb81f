package step

import (
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/identity"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
)

// Step is an immutable, identity-addressed unit of work. Its identity is computed
// once in New; changed inputs require constructing a new Step.
type Step struct {
	spec         Spec
	opts         Options
	files        []string
	checksum     string
	id           string
	initialImage *Image
	baseImage    *Image
	architecture platform.Architecture
}

// New validates spec, resolves its tracked files and computes its identity.
func New(spec Spec, opts Options) (*Step, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}
	if opts.Harness == "" {
		return nil, ferrors.ConfigError("step harness is not configured").Build()
	}
	root, err := filepath.Abs(opts.SourceRoot)
	if err != nil {
		return nil, ferrors.FileSystemError(err, "resolve source root").Build()
	}
	opts.SourceRoot = root
	if spec.User == "" {
		spec.User = DefaultUser
	}
	if spec.Kind == "" {
		spec.Kind = KindArtifact
	}
	spec.Script = filepath.ToSlash(spec.Script)
	spec.RequiredSteps = maps.Clone(spec.RequiredSteps)
	spec.Env = maps.Clone(spec.Env)

	s := &Step{spec: spec, opts: opts, architecture: platform.Unknown}
	switch {
	case spec.BaseStep != nil:
		s.baseImage = spec.BaseStep.ResultImage()
		s.initialImage = spec.BaseStep.initialImage
		s.architecture = spec.BaseStep.architecture
	case spec.BaseImage != nil:
		img := *spec.BaseImage
		s.baseImage = &img
		s.initialImage = &img
		s.architecture = platform.ArchitectureOf(img.Platform)
	}

	globs := slices.Clone(spec.TrackedFiles)
	globs = append(globs, spec.Script)
	if opts.Harness != "" {
		globs = append(globs, filepath.ToSlash(opts.Harness))
	}
	files, err := identity.Resolver{Root: opts.SourceRoot, EmptyGlobs: opts.EmptyGlobs}.Resolve(globs)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.GetCategory(err), "resolve tracked files").
			Fatal().
			WithContext("step", spec.Name).
			Build()
	}
	s.files = files

	in := identity.Inputs{
		RequiredSteps: make(map[string]string, len(spec.RequiredSteps)),
		Env:           spec.Env,
		Root:          opts.SourceRoot,
		Files:         files,
		User:          spec.User,
	}
	for name, req := range spec.RequiredSteps {
		in.RequiredSteps[name] = req.checksum
	}
	if spec.BaseStep != nil {
		in.BaseStep = spec.BaseStep.checksum
	}
	if s.initialImage != nil {
		in.BaseImage = s.initialImage.Name
		in.Platform = s.initialImage.Platform
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = identity.SHA256
	}
	sum, err := identity.Compute(alg, in)
	if err != nil {
		return nil, err
	}
	s.checksum = sum
	s.id = FormatID(spec.Name, s.initialImage, sum)
	return s, nil
}

func validate(spec Spec) error {
	fail := func(msg string) error {
		return ferrors.ConfigError(msg).WithContext("step", spec.Name).Build()
	}
	if spec.Name == "" {
		return ferrors.ConfigError("step name is required").Build()
	}
	if spec.Script == "" {
		return fail("step script is required")
	}
	if spec.Kind != "" && spec.Kind != KindArtifact && spec.Kind != KindEnvironment {
		return fail("unknown step kind " + string(spec.Kind))
	}
	if spec.BaseStep != nil && spec.BaseImage != nil {
		return fail("a step takes either a base step or a base image, not both")
	}
	if spec.BaseStep != nil && spec.BaseStep.Kind() != KindEnvironment {
		return fail("base step " + spec.BaseStep.Name() + " is not an environment step")
	}
	if spec.BaseImage != nil && (spec.BaseImage.Name == "" || spec.BaseImage.Platform.IsZero()) {
		return fail("base image needs a name and a platform")
	}
	for name, req := range spec.RequiredSteps {
		if req == nil {
			return fail("required step " + name + " is not defined")
		}
		if _, dup := spec.Env[name]; dup {
			return ferrors.ConfigError("duplicate environment variable").
				WithContext("step", spec.Name).
				WithContext("variable", name).
				Build()
		}
	}
	if _, reserved := spec.Env[CIFlagVar]; reserved {
		return ferrors.ConfigError("duplicate environment variable").
			WithContext("step", spec.Name).
			WithContext("variable", CIFlagVar).
			Build()
	}
	if _, reserved := spec.RequiredSteps[CIFlagVar]; reserved {
		return ferrors.ConfigError("duplicate environment variable").
			WithContext("step", spec.Name).
			WithContext("variable", CIFlagVar).
			Build()
	}
	return nil
}

// FormatID builds <name>[-<image name>-<os-arch[-variant]>]-<checksum>, with ':'
// in the image name replaced by '-'.
func FormatID(name string, initial *Image, checksum string) string {
	id := name
	if initial != nil {
		id += "-" + strings.ReplaceAll(initial.Name, ":", "-") + "-" + initial.Platform.Dashed()
	}
	return id + "-" + checksum
}

func (s *Step) Name() string                        { return s.spec.Name }
func (s *Step) Kind() Kind                          { return s.spec.Kind }
func (s *Step) ID() string                          { return s.id }
func (s *Step) Checksum() string                    { return s.checksum }
func (s *Step) User() string                        { return s.spec.User }
func (s *Step) Script() string                      { return s.spec.Script }
func (s *Step) CI() CIHints                         { return s.spec.CI }
func (s *Step) Architecture() platform.Architecture { return s.architecture }
func (s *Step) BaseStep() *Step                     { return s.spec.BaseStep }

// TrackedFiles returns the resolved tracked files relative to the source root.
func (s *Step) TrackedFiles() []string { return slices.Clone(s.files) }

// Env returns a copy of the declared environment variables.
func (s *Step) Env() map[string]string { return maps.Clone(s.spec.Env) }

// RequiredSteps returns a copy of the env-name to step mapping.
func (s *Step) RequiredSteps() map[string]*Step { return maps.Clone(s.spec.RequiredSteps) }

// RunsInContainer reports whether the step has a base image.
func (s *Step) RunsInContainer() bool { return s.initialImage != nil }

// InitialImage returns the image at the root of the base chain, nil for host steps.
func (s *Step) InitialImage() *Image { return s.initialImage }

// BaseImage returns the image the step's container starts from, nil for host steps.
func (s *Step) BaseImage() *Image { return s.baseImage }

// ResultImage is the image a containerised step is identified by. Its name is the
// step id; only environment steps actually commit it.
func (s *Step) ResultImage() *Image {
	if s.baseImage == nil {
		return nil
	}
	return &Image{Name: s.id, Platform: s.baseImage.Platform}
}

// ContainerName is <result image>-container with ':' replaced by '-', empty for host steps.
func (s *Step) ContainerName() string {
	img := s.ResultImage()
	if img == nil {
		return ""
	}
	return strings.ReplaceAll(img.Name+"-container", ":", "-")
}

// Dependencies returns the required steps (ordered by env name) followed by the base step.
func (s *Step) Dependencies() []*Step {
	names := slices.Sorted(maps.Keys(s.spec.RequiredSteps))
	deps := make([]*Step, 0, len(names)+1)
	for _, n := range names {
		deps = append(deps, s.spec.RequiredSteps[n])
	}
	if s.spec.BaseStep != nil {
		deps = append(deps, s.spec.BaseStep)
	}
	return deps
}

// CacheableSteps returns s (when cacheable) and every cacheable step it depends on,
// transitively, de-duplicated by id.
func (s *Step) CacheableSteps() []*Step {
	var out []*Step
	walk(s, map[string]bool{}, func(st *Step) {
		if st.spec.CI.Cacheable {
			out = append(out, st)
		}
	})
	return out
}

// AllSteps returns s and everything it depends on, transitively, de-duplicated by id.
func (s *Step) AllSteps() []*Step {
	var out []*Step
	walk(s, map[string]bool{}, func(st *Step) { out = append(out, st) })
	return out
}

func walk(s *Step, seen map[string]bool, visit func(*Step)) {
	if seen[s.id] {
		return
	}
	seen[s.id] = true
	visit(s)
	for _, dep := range s.Dependencies() {
		walk(dep, seen, visit)
	}
}

// harnessPath returns the harness relative to the isolated root.
func (s *Step) harnessPath() string {
	return path.Clean(filepath.ToSlash(s.opts.Harness))
}

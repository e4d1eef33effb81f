package commands

import (
	"encoding/json"
	"os"
	"slices"
	"strings"

	"git.home.luguber.info/inful/stepbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/stages"
	"git.home.luguber.info/inful/stepbuilder/internal/step"
)

// GetAllCacheableStepsCmd implements 'get-all-cacheable-steps'.
type GetAllCacheableStepsCmd struct{}

func (c *GetAllCacheableStepsCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	return printJSON(g.Out, stepIDs(p.Registry.CacheableSteps()))
}

// RunAllCacheableStepsCmd implements 'run-all-cacheable-steps'.
type RunAllCacheableStepsCmd struct{}

func (c *RunAllCacheableStepsCmd) Run(_ *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	s, err := openSession(ctx, root, p)
	if err != nil {
		return err
	}
	return s.close(s.build.RunSteps(ctx, p.Registry.CacheableSteps()))
}

// GetAllStepsIDsCmd implements 'get-all-steps-ids'.
type GetAllStepsIDsCmd struct{}

func (c *GetAllStepsIDsCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	ids := stepIDs(p.Registry.AllSteps())
	slices.Sort(ids)
	return printJSON(g.Out, ids)
}

// GetCacheableStepsStagesCmd implements 'get-cacheable-steps-stages'.
type GetCacheableStepsStagesCmd struct{}

func (c *GetCacheableStepsStagesCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	levels, err := p.Registry.CacheableStages()
	if err != nil {
		return err
	}
	return printJSON(g.Out, stages.Matrices(levels, p.Config.CacheVersionSuffix))
}

// GetMissingCachesMatricesCmd implements 'get-missing-caches-matrices'.
type GetMissingCachesMatricesCmd struct {
	MissingIDsFile string `name:"missing-ids-file" required:"" help:"JSON array (or one per line) of step ids whose caches are missing" type:"existingfile"`
}

func (c *GetMissingCachesMatricesCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	missing, err := readIDs(c.MissingIDsFile)
	if err != nil {
		return err
	}
	levels, err := p.Registry.CacheableStages()
	if err != nil {
		return err
	}
	return printJSON(g.Out, stages.Matrices(stages.OnlyIDs(levels, missing), p.Config.CacheVersionSuffix))
}

// PreBuildJobPrefix prefixes the job names of the pre-build matrix.
const PreBuildJobPrefix = "Pre-build: "

// GetPreBuildStepsMatrixCmd implements 'get-pre-build-steps-matrix'.
type GetPreBuildStepsMatrixCmd struct{}

func (c *GetPreBuildStepsMatrixCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	return printJSON(g.Out, stages.JobMatrix(p.Registry.PreBuildNodes(), PreBuildJobPrefix, p.Config.CacheVersionSuffix))
}

// GetCacheVersionSuffixCmd implements 'get-cache-version-suffix'.
type GetCacheVersionSuffixCmd struct{}

func (c *GetCacheVersionSuffixCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	_, err = g.Out.Write([]byte(cfg.CacheVersionSuffix + "\n"))
	return err
}

func stepIDs(steps []*step.Step) []string {
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID())
	}
	return ids
}

// readIDs accepts a JSON array or whitespace separated ids.
func readIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.FileSystemError(err, "read step ids").WithContext("path", path).Build()
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(trimmed), &ids); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode step ids").
				Fatal().
				WithContext("path", path).
				Build()
		}
		return ids, nil
	}
	return strings.Fields(trimmed), nil
}

// Package commands implements the stepbuilder subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/stepbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
)

// Global is passed to every subcommand.
type Global struct {
	Out io.Writer
}

// NewGlobal writes command results to stdout.
func NewGlobal() *Global {
	return &Global{Out: os.Stdout}
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Project file path" default:"stepbuilder.yaml" type:"path"`
	WorkDir   string           `name:"work-dir" help:"Override the work directory holding step outputs and caches" type:"path"`
	Ephemeral bool             `help:"Use a throwaway work directory that is removed afterwards"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	GetAllCacheableSteps     GetAllCacheableStepsCmd     `cmd:"" name:"get-all-cacheable-steps" help:"Print the ids of all cacheable steps as a JSON array"`
	RunAllCacheableSteps     RunAllCacheableStepsCmd     `cmd:"" name:"run-all-cacheable-steps" help:"Run every cacheable step"`
	GetAllStepsIDs           GetAllStepsIDsCmd           `cmd:"" name:"get-all-steps-ids" help:"Print the sorted ids of all steps as a JSON array"`
	GetCacheableStepsStages  GetCacheableStepsStagesCmd  `cmd:"" name:"get-cacheable-steps-stages" help:"Print the CI job matrix of every stage of cacheable steps"`
	GetMissingCachesMatrices GetMissingCachesMatricesCmd `cmd:"" name:"get-missing-caches-matrices" help:"Print stage matrices restricted to steps whose caches are missing"`
	GetPreBuildStepsMatrix   GetPreBuildStepsMatrixCmd   `cmd:"" name:"get-pre-build-steps-matrix" help:"Print the job matrix of cacheable steps pre-built in separate CI jobs"`
	GetCacheVersionSuffix    GetCacheVersionSuffixCmd    `cmd:"" name:"get-cache-version-suffix" help:"Print the CI cache version suffix"`
	RunRunner                RunRunnerCmd                `cmd:"" name:"run-runner" help:"Run a declared runner with all its dependencies"`
	RunStep                  RunStepCmd                  `cmd:"" name:"run-step" help:"Run a single step by wrapper key (<id>_pre_build) or name"`
	Watch                    WatchCmd                    `cmd:"" help:"Run a runner and rerun it whenever its tracked files change"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)})))
	return nil
}

// parseLogLevel honours STEPBUILDER_LOG_LEVEL, then --verbose.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(os.Getenv("STEPBUILDER_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadProject loads the project file and applies command-line overrides.
func loadProject(root *CLI) (*config.Project, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	if root.WorkDir != "" {
		cfg.WorkDir = root.WorkDir
	}
	return config.Build(cfg)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ferrors.InternalError(err, "encode output").Build()
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

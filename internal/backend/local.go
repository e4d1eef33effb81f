package backend

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/stepbuilder/internal/command"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// Local runs the harness as a child process inside the isolated root.
type Local struct {
	runner     command.Runner
	sourceRoot string
	environ    func() []string
	logger     *slog.Logger
}

// NewLocal creates a local backend. sourceRoot is used to rewrite PYTHONPATH
// entries into the isolated root.
func NewLocal(runner command.Runner, sourceRoot string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{runner: runner, sourceRoot: sourceRoot, environ: os.Environ, logger: logger}
}

func (l *Local) Execute(ctx context.Context, inv Invocation) error {
	env := l.environment(inv)
	args := HarnessArgs(inv, inv.CacheDir, inv.OutputDir)

	l.logger.Info("Running step locally", logfields.StepID(inv.StepID), logfields.Path(inv.IsolatedRoot))
	_, err := l.runner.Run(ctx, command.Spec{
		Name: args[0],
		Args: args[1:],
		Env:  env,
		Dir:  inv.IsolatedRoot,
	})
	if err != nil {
		return ferrors.ExecutionError(err, "step script failed").
			WithContext("step_id", inv.StepID).
			Build()
	}
	return nil
}

// environment overlays the step variables on the process environment and points
// PYTHONPATH into the isolated root.
func (l *Local) environment(inv Invocation) []string {
	base := l.environ()
	overrides := map[string]string{
		"PYTHONPATH": rewritePythonPath(lookup(base, "PYTHONPATH"), l.sourceRoot, inv.IsolatedRoot),
	}
	maps.Copy(overrides, StepEnv(inv, func(dir string) string { return dir }))

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[k]; ok {
			continue
		}
		env = append(env, kv)
	}
	return append(env, sortedPairs(overrides)...)
}

func lookup(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == key {
			return v
		}
	}
	return ""
}

// rewritePythonPath maps entries under sourceRoot to the same place under
// isolatedRoot and appends isolatedRoot itself.
func rewritePythonPath(value, sourceRoot, isolatedRoot string) string {
	var parts []string
	if value != "" {
		for _, p := range filepath.SplitList(value) {
			if rel, ok := under(sourceRoot, p); ok {
				p = filepath.Join(isolatedRoot, rel)
			}
			parts = append(parts, p)
		}
	}
	parts = append(parts, isolatedRoot)
	return strings.Join(parts, string(os.PathListSeparator))
}

func under(root, p string) (string, bool) {
	if root == "" || p == "" {
		return "", false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

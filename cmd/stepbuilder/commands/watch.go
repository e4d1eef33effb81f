package commands

import (
	"context"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/watch"
)

// WatchCmd implements 'watch'.
type WatchCmd struct {
	Runner   string        `arg:"" help:"Runner name"`
	Debounce time.Duration `help:"Quiet period before a rebuild" default:"500ms"`
}

func (c *WatchCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	var w *watch.Watcher
	w, err := watch.New(func(ctx context.Context) ([]string, error) {
		paths, ignored, err := c.rebuild(ctx, root)
		w.Ignore(ignored...)
		return paths, err
	}, c.Debounce, nil)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// rebuild reloads the project, since identities change with file content, and
// runs the runner. It returns the project file and every tracked file, and the
// paths the build writes to: the work directory and the metrics textfile.
func (c *WatchCmd) rebuild(ctx context.Context, root *CLI) (paths, ignored []string, err error) {
	configPath, err := filepath.Abs(root.Config)
	if err != nil {
		return nil, nil, err
	}
	paths = []string{configPath}

	p, err := loadProject(root)
	if err != nil {
		return paths, nil, err
	}
	ignored = []string{p.WorkDir}
	if textfile := p.Config.Metrics.Textfile; textfile != "" {
		if abs, err := filepath.Abs(textfile); err == nil {
			ignored = append(ignored, abs)
		}
	}
	r, err := p.Registry.Lookup(c.Runner)
	if err != nil {
		return paths, ignored, err
	}
	for _, s := range r.AllSteps() {
		for _, rel := range s.TrackedFiles() {
			paths = append(paths, filepath.Join(p.Root.Path, filepath.FromSlash(rel)))
		}
	}

	s, err := openSession(ctx, root, p)
	if err != nil {
		return paths, ignored, err
	}
	return paths, ignored, s.close(s.build.RunRunner(ctx, r))
}

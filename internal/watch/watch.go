// Package watch reruns a build whenever one of its tracked files changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// Rebuild runs the build and returns the absolute paths to watch until the next
// rebuild. A failed build may still return paths.
type Rebuild func(ctx context.Context) ([]string, error)

// Watcher watches the directories of the returned paths and calls Rebuild once
// changes settle for the debounce interval.
type Watcher struct {
	fs       *fsnotify.Watcher
	rebuild  Rebuild
	debounce time.Duration
	logger   *slog.Logger

	files  map[string]bool
	dirs   map[string]bool
	ignore []string
}

// New creates a watcher. A non-positive debounce defaults to 500ms.
func New(rebuild Rebuild, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fs:       fw,
		rebuild:  rebuild,
		debounce: debounce,
		logger:   logger,
		files:    map[string]bool{},
		dirs:     map[string]bool{},
	}, nil
}

// Run builds once, then rebuilds on changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	w.build(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("Tracked file changed", logfields.Path(ev.Name), "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			w.build(ctx)
		}
	}
}

// Ignore replaces the paths whose changes never trigger a rebuild, such as the
// work directory and files the build itself writes. A directory covers
// everything below it. It may be called from Rebuild.
func (w *Watcher) Ignore(paths ...string) {
	w.ignore = w.ignore[:0]
	for _, p := range paths {
		if p != "" {
			w.ignore = append(w.ignore, filepath.Clean(p))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if w.files[name] {
		return true
	}
	if w.ignored(name) {
		return false
	}
	// New files may match a tracked glob.
	return ev.Op.Has(fsnotify.Create)
}

func (w *Watcher) ignored(name string) bool {
	for _, ig := range w.ignore {
		if name == ig || strings.HasPrefix(name, ig+string(filepath.Separator)) {
			return true
		}
		// Temporary siblings renamed over an ignored file carry its name as prefix.
		if filepath.Dir(name) == filepath.Dir(ig) && strings.HasPrefix(filepath.Base(name), filepath.Base(ig)) {
			return true
		}
	}
	return false
}

func (w *Watcher) build(ctx context.Context) {
	paths, err := w.rebuild(ctx)
	if err != nil {
		w.logger.Error("Build failed, waiting for changes", logfields.Error(err))
	} else {
		w.logger.Info("Build finished, waiting for changes", logfields.Count(len(paths)))
	}
	if len(paths) > 0 {
		w.update(paths)
	}
}

// update replaces the watch set, adding and removing directories as needed.
func (w *Watcher) update(paths []string) {
	files := make(map[string]bool, len(paths))
	dirs := map[string]bool{}
	for _, p := range paths {
		p = filepath.Clean(p)
		files[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range w.dirs {
		if !dirs[dir] {
			_ = w.fs.Remove(dir)
		}
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Warn("Cannot watch directory", logfields.Path(dir), logfields.Error(err))
			delete(dirs, dir)
		}
	}
	w.files = files
	w.dirs = dirs
}

// Package cache implements the filesystem cache of step results.
//
// A cache entry is the directory step_cache/<id>. Restoring an entry replaces
// step_output/<id> with a relative symlink to it; persisting copies a freshly
// built output tree into it. Entries are never mutated on restore and never
// deleted by the engine, except for the partial entry of a failed run.
//
// The directory alone is not an entry: scripts write into it while they run.
// Persist writes CompleteMarker into the directory last, and only a directory
// holding the marker counts as a hit. A process killed mid-run therefore leaves
// a directory that the next run treats as a miss.
//
// Two processes persisting the same id at once are not serialised; callers that
// share a work directory must coordinate by id themselves.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/fsutil"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// CompleteMarker is the file that commits a cache entry.
const CompleteMarker = ".stepbuilder-complete"

// Layout locates the output directory and cache entry of a step id.
type Layout interface {
	OutputDir(id string) string
	CacheDir(id string) string
}

// Store restores and persists cache entries.
type Store struct {
	layout Layout
	logger *slog.Logger
}

// NewStore creates a cache store over layout.
func NewStore(layout Layout) *Store {
	return &Store{layout: layout, logger: slog.Default()}
}

// WithLogger sets the logger used for cache events.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Has reports whether a committed cache entry exists for id.
func (s *Store) Has(id string) bool {
	info, err := os.Stat(s.markerPath(id))
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) markerPath(id string) string {
	return filepath.Join(s.layout.CacheDir(id), CompleteMarker)
}

// Invalidate uncommits the entry of id, keeping its contents. It is called
// before a step executes so that an interrupted run is never taken for a hit.
func (s *Store) Invalidate(id string) error {
	if err := os.Remove(s.markerPath(id)); err != nil && !os.IsNotExist(err) {
		return ferrors.FileSystemError(err, "invalidate cache entry").
			WithContext("step_id", id).
			WithContext("path", s.markerPath(id)).
			Build()
	}
	return nil
}

// Restore links the output directory of id to its cache entry. It reports false,
// leaving the output directory untouched, when there is no entry.
func (s *Store) Restore(id string) (bool, error) {
	if !s.Has(id) {
		return false, nil
	}

	out := s.layout.OutputDir(id)
	entry := s.layout.CacheDir(id)
	target, err := filepath.Rel(filepath.Dir(out), entry)
	if err != nil {
		return false, ferrors.FileSystemError(err, "compute cache link target").WithContext("path", entry).Build()
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return false, ferrors.FileSystemError(err, "create output parent").WithContext("path", out).Build()
	}
	// Link under a temporary name first so the output path only ever holds a
	// complete link.
	tmp := out + ".link-tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return false, ferrors.FileSystemError(err, "create cache link").WithContext("path", out).Build()
	}
	if err := fsutil.RemovePath(out); err != nil {
		_ = os.Remove(tmp)
		return false, ferrors.FileSystemError(err, "remove stale output").WithContext("path", out).Build()
	}
	if err := os.Rename(tmp, out); err != nil {
		return false, ferrors.FileSystemError(err, "install cache link").WithContext("path", out).Build()
	}

	s.logger.Debug("Restored step output from cache", logfields.StepID(id), logfields.Path(entry))
	return true, nil
}

// Persist copies the output tree of id into its cache entry, merging with an
// existing entry, and then commits the entry. Persisting an output that is
// already a link into the cache is a no-op.
func (s *Store) Persist(id string) error {
	out := s.layout.OutputDir(id)
	entry := s.layout.CacheDir(id)

	info, err := os.Lstat(out)
	if err != nil {
		return ferrors.FileSystemError(err, "stat step output").WithContext("path", out).Build()
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}
	if err := fsutil.CopyTree(out, entry); err != nil {
		return ferrors.FileSystemError(err, "persist step output").
			WithContext("step_id", id).
			WithContext("path", entry).
			Build()
	}
	if err := os.WriteFile(s.markerPath(id), []byte(id+"\n"), 0o644); err != nil {
		return ferrors.FileSystemError(err, "commit cache entry").
			WithContext("step_id", id).
			WithContext("path", entry).
			Build()
	}
	s.logger.Debug("Persisted step output to cache", logfields.StepID(id), logfields.Path(entry))
	return nil
}

// Discard removes the entry of id. It is used after a failed run so that partial
// results written to the cache directory never count as a hit.
func (s *Store) Discard(id string) error {
	if err := fsutil.RemovePath(s.layout.CacheDir(id)); err != nil {
		return fmt.Errorf("discard cache entry %s: %w", id, err)
	}
	return nil
}

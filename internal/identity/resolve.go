package identity

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
)

// EmptyGlobPolicy decides what happens when a tracked-file glob matches nothing.
type EmptyGlobPolicy string

const (
	EmptyGlobError  EmptyGlobPolicy = "error"
	EmptyGlobIgnore EmptyGlobPolicy = "ignore"
)

// Resolver expands tracked-file globs relative to a source root.
type Resolver struct {
	Root       string
	EmptyGlobs EmptyGlobPolicy
}

// Resolve expands globs into a sorted, de-duplicated list of slash-separated paths
// relative to the source root. Only regular files are returned. Globs may use "**".
func (r Resolver) Resolve(globs []string) ([]string, error) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return nil, ferrors.FileSystemError(err, "resolve source root").Build()
	}
	fsys := os.DirFS(root)

	seen := make(map[string]struct{})
	var files []string
	for _, g := range dedupe(globs) {
		pattern, err := relativePattern(root, g)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, ferrors.ConfigError("invalid tracked file glob").
				WithContext("glob", g).
				Build()
		}
		if len(matches) == 0 && r.EmptyGlobs != EmptyGlobIgnore {
			return nil, ferrors.MissingInputError("tracked file glob matched no files").
				WithContext("glob", g).
				WithContext("root", root).
				Build()
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	slices.Sort(files)
	return files, nil
}

// relativePattern turns an absolute glob under root into a relative one and rejects
// patterns escaping the root.
func relativePattern(root, glob string) (string, error) {
	p := glob
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", ferrors.ConfigError("tracked file glob is not part of the source root").
				WithContext("glob", glob).
				WithContext("root", root).
				Build()
		}
		p = rel
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", ferrors.ConfigError("tracked file glob is not part of the source root").
			WithContext("glob", glob).
			WithContext("root", root).
			Build()
	}
	return p, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

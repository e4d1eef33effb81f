// Package project locates the source root steps are resolved against.
package project

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// Root is a detected source root.
type Root struct {
	Path string
	// Head is the commit hash checked out in the worktree, empty outside git or
	// in a repository without commits.
	Head string
}

// Detect returns the top level of the git worktree containing start. Outside a
// git repository start itself is the root.
func Detect(start string) (Root, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return Root{}, ferrors.FileSystemError(err, "resolve start directory").WithContext("path", start).Build()
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		slog.Debug("No git repository found, using directory as source root", logfields.Path(abs))
		return Root{Path: abs}, nil
	}
	if err != nil {
		return Root{}, ferrors.FileSystemError(err, "open git repository").WithContext("path", abs).Build()
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no files to track.
		return Root{}, ferrors.ConfigError("source root must be a git worktree").WithContext("path", abs).Build()
	}
	root := Root{Path: wt.Filesystem.Root()}

	head, err := repo.Head()
	switch {
	case err == nil:
		root.Head = head.Hash().String()
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return Root{}, ferrors.FileSystemError(err, "read git HEAD").WithContext("path", root.Path).Build()
	}
	return root, nil
}

package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
)

func TestResolverExpandsGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", "b", 0o644)
	writeFile(t, root, "a.txt", "a", 0o644)
	writeFile(t, root, "pkg/deep/c.py", "c", 0o644)
	writeFile(t, root, "pkg/d.py", "d", 0o644)

	r := Resolver{Root: root}
	files, err := r.Resolve([]string{"*.txt", "pkg/**/*.py", "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "pkg/d.py", "pkg/deep/c.py"}, files)
}

func TestResolverAbsoluteGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a", 0o644)

	r := Resolver{Root: root}
	files, err := r.Resolve([]string{filepath.Join(root, "a.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)

	_, err = r.Resolve([]string{filepath.Join(filepath.Dir(root), "elsewhere.txt")})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = r.Resolve([]string{"../escape.txt"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestResolverEmptyGlobPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a", 0o644)

	_, err := Resolver{Root: root}.Resolve([]string{"*.md"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryMissingInput))

	files, err := Resolver{Root: root, EmptyGlobs: EmptyGlobIgnore}.Resolve([]string{"*.md", "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)
}

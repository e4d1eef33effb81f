package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTreePreservesModesAndSymlinks(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "tool"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "data.txt"), []byte("data"), 0o640))
	require.NoError(t, os.Chmod(filepath.Join(src, "data.txt"), 0o640))
	require.NoError(t, os.Symlink("data.txt", filepath.Join(src, "link")))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dst))

	info, err := os.Stat(filepath.Join(dst, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dst, "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "data.txt", target)
}

func TestCopyTreeMergesIntoExisting(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "keep"), []byte("keep"), 0o644))

	require.NoError(t, CopyTree(src, dst))
	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "a"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.FileExists(t, filepath.Join(dst, "keep"))
}

func TestRemovePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "sub"), 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink("target", link))

	require.NoError(t, RemovePath(link))
	assert.NoFileExists(t, link)
	assert.DirExists(t, target)

	require.NoError(t, RemovePath(target))
	assert.NoDirExists(t, target)
	require.NoError(t, RemovePath(filepath.Join(dir, "missing")))
}

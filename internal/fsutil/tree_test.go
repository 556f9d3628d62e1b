package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/reposquash/internal/fsutil"
)

func writeTestFile(testInstance *testing.T, root string, relativePath string, content string) {
	testInstance.Helper()
	fullPath := filepath.Join(root, filepath.FromSlash(relativePath))
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(testInstance, os.WriteFile(fullPath, []byte(content), 0o644))
}

func TestEnsureEmptyDirectoryRemovesEntriesExceptPreserved(testInstance *testing.T) {
	directory := testInstance.TempDir()
	writeTestFile(testInstance, directory, "keep/.marker", "kept")
	writeTestFile(testInstance, directory, "stale.txt", "stale")
	writeTestFile(testInstance, directory, "nested/stale.txt", "stale")

	require.NoError(testInstance, fsutil.EnsureEmptyDirectory(directory, "keep"))

	entries, readError := os.ReadDir(directory)
	require.NoError(testInstance, readError)
	require.Len(testInstance, entries, 1)
	require.Equal(testInstance, "keep", entries[0].Name())
}

func TestEnsureEmptyDirectoryCreatesMissingDirectory(testInstance *testing.T) {
	directory := filepath.Join(testInstance.TempDir(), "missing", "work")

	require.NoError(testInstance, fsutil.EnsureEmptyDirectory(directory))

	info, statError := os.Stat(directory)
	require.NoError(testInstance, statError)
	require.True(testInstance, info.IsDir())
}

func TestCopyTreeCopiesFilesAndSkipsExcludedEntries(testInstance *testing.T) {
	source := testInstance.TempDir()
	destination := testInstance.TempDir()
	writeTestFile(testInstance, source, "README.md", "readme")
	writeTestFile(testInstance, source, "src/main.go", "package main")
	writeTestFile(testInstance, source, ".git/HEAD", "ref: refs/heads/main")
	require.NoError(testInstance, os.Chmod(filepath.Join(source, "src", "main.go"), 0o755))

	require.NoError(testInstance, fsutil.CopyTree(source, destination, ".git"))

	files, listError := fsutil.ListFiles(destination)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"README.md", "src/main.go"}, files)

	info, statError := os.Stat(filepath.Join(destination, "src", "main.go"))
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o755), info.Mode().Perm())
}

func TestCopyTreeRecreatesSymlinks(testInstance *testing.T) {
	source := testInstance.TempDir()
	destination := testInstance.TempDir()
	writeTestFile(testInstance, source, "target.txt", "content")
	require.NoError(testInstance, os.Symlink("target.txt", filepath.Join(source, "link.txt")))

	require.NoError(testInstance, fsutil.CopyTree(source, destination))

	linkTarget, readError := os.Readlink(filepath.Join(destination, "link.txt"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "target.txt", linkTarget)
}

func TestListFilesSkipsExcludedDirectories(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeTestFile(testInstance, root, "b.txt", "b")
	writeTestFile(testInstance, root, "a/c.txt", "c")
	writeTestFile(testInstance, root, ".reposquash/state.json", "{}")

	files, listError := fsutil.ListFiles(root, ".reposquash")
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"a/c.txt", "b.txt"}, files)
}

package folderorigin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/reposquash/internal/origins/folderorigin"
	"github.com/temirov/reposquash/internal/squash"
)

func writeFolderFixture(testInstance *testing.T) string {
	testInstance.Helper()
	folder := testInstance.TempDir()
	require.NoError(testInstance, os.MkdirAll(filepath.Join(folder, "src"), 0o755))
	require.NoError(testInstance, os.MkdirAll(filepath.Join(folder, ".git"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(folder, "src", "main.go"), []byte("package main\n"), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(folder, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	return folder
}

func TestNewOriginRequiresPath(testInstance *testing.T) {
	_, originError := folderorigin.NewOrigin(nil, folderorigin.Configuration{Path: " "})
	require.ErrorIs(testInstance, originError, folderorigin.ErrFolderPathMissing)
}

func TestResolveAndCheckoutCopiesFolder(testInstance *testing.T) {
	folder := writeFolderFixture(testInstance)
	targetDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.WriteFile(filepath.Join(targetDirectory, "leftover.txt"), []byte("old"), 0o644))

	origin, originError := folderorigin.NewOrigin(nil, folderorigin.Configuration{Path: folder})
	require.NoError(testInstance, originError)
	require.Equal(testInstance, folderorigin.LabelNameConstant, origin.LabelName())

	reference, resolveError := origin.Resolve(context.Background(), squash.DefaultReference())
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, folder, reference.String())
	_, known := reference.Timestamp()
	require.False(testInstance, known)

	require.NoError(testInstance, reference.Checkout(context.Background(), targetDirectory))

	content, readError := os.ReadFile(filepath.Join(targetDirectory, "src", "main.go"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "package main\n", string(content))

	_, gitError := os.Stat(filepath.Join(targetDirectory, ".git"))
	require.True(testInstance, os.IsNotExist(gitError))
	_, leftoverError := os.Stat(filepath.Join(targetDirectory, "leftover.txt"))
	require.True(testInstance, os.IsNotExist(leftoverError))
}

func TestResolvePrefersExplicitFolder(testInstance *testing.T) {
	configuredFolder := testInstance.TempDir()
	requestedFolder := writeFolderFixture(testInstance)

	origin, originError := folderorigin.NewOrigin(nil, folderorigin.Configuration{Path: configuredFolder})
	require.NoError(testInstance, originError)

	reference, resolveError := origin.Resolve(context.Background(), squash.ExplicitReference(requestedFolder))
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, requestedFolder, reference.String())
}

func TestResolveRejectsMissingOrFileTargets(testInstance *testing.T) {
	parentFolder := testInstance.TempDir()
	filePath := filepath.Join(parentFolder, "file.txt")
	require.NoError(testInstance, os.WriteFile(filePath, []byte("x"), 0o644))

	testCases := []struct {
		name string
		path string
	}{
		{name: "missing", path: filepath.Join(parentFolder, "absent")},
		{name: "regular_file", path: filePath},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			origin, originError := folderorigin.NewOrigin(nil, folderorigin.Configuration{Path: testCase.path})
			require.NoError(testInstance, originError)

			_, resolveError := origin.Resolve(context.Background(), squash.DefaultReference())
			var originFailure squash.OriginError
			require.True(testInstance, errors.As(resolveError, &originFailure))
		})
	}
}

func TestChangesBetweenIsUnsupported(testInstance *testing.T) {
	origin, originError := folderorigin.NewOrigin(nil, folderorigin.Configuration{Path: testInstance.TempDir()})
	require.NoError(testInstance, originError)

	reference, resolveError := origin.Resolve(context.Background(), squash.DefaultReference())
	require.NoError(testInstance, resolveError)

	_, changesError := origin.ChangesBetween(context.Background(), reference, reference)
	require.ErrorIs(testInstance, changesError, folderorigin.ErrHistoryUnsupported)
}

package transforms_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/reposquash/internal/fsutil"
	"github.com/temirov/reposquash/internal/transforms"
)

func writeFiles(testInstance *testing.T, files map[string]string) string {
	testInstance.Helper()
	directory := testInstance.TempDir()
	for relativePath, content := range files {
		fullPath := filepath.Join(directory, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(testInstance, os.WriteFile(fullPath, []byte(content), 0o644))
	}
	return directory
}

func readFile(testInstance *testing.T, directory string, relativePath string) string {
	testInstance.Helper()
	content, readError := os.ReadFile(filepath.Join(directory, filepath.FromSlash(relativePath)))
	require.NoError(testInstance, readError)
	return string(content)
}

func TestReplaceRewritesSelectedFiles(testInstance *testing.T) {
	testCases := []struct {
		name     string
		options  transforms.ReplaceOptions
		expected map[string]string
	}{
		{
			name:    "literal_all_files",
			options: transforms.ReplaceOptions{Before: "internal.example.com", After: "example.org"},
			expected: map[string]string{
				"README.md":      "see example.org\n",
				"src/config.go":  "const host = \"example.org\"\n",
				"docs/notes.txt": "example.org (a.b)\n",
			},
		},
		{
			name:    "literal_with_path_filter",
			options: transforms.ReplaceOptions{Before: "internal.example.com", After: "example.org", Paths: []string{"*.go"}},
			expected: map[string]string{
				"README.md":      "see internal.example.com\n",
				"src/config.go":  "const host = \"example.org\"\n",
				"docs/notes.txt": "internal.example.com (a.b)\n",
			},
		},
		{
			name:    "regex_with_groups",
			options: transforms.ReplaceOptions{Before: `\((\w)\.(\w)\)`, After: "[$2.$1]", Regex: true, Paths: []string{"docs/**"}},
			expected: map[string]string{
				"README.md":      "see internal.example.com\n",
				"src/config.go":  "const host = \"internal.example.com\"\n",
				"docs/notes.txt": "internal.example.com [b.a]\n",
			},
		},
		{
			name:    "directory_pattern",
			options: transforms.ReplaceOptions{Before: "internal.", After: "", Paths: []string{"src"}},
			expected: map[string]string{
				"README.md":      "see internal.example.com\n",
				"src/config.go":  "const host = \"example.com\"\n",
				"docs/notes.txt": "internal.example.com (a.b)\n",
			},
		},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			directory := writeFiles(testInstance, map[string]string{
				"README.md":      "see internal.example.com\n",
				"src/config.go":  "const host = \"internal.example.com\"\n",
				"docs/notes.txt": "internal.example.com (a.b)\n",
			})

			replace, constructionError := transforms.NewReplace(nil, testCase.options)
			require.NoError(testInstance, constructionError)
			require.NoError(testInstance, replace.Apply(context.Background(), directory))

			for relativePath, expectedContent := range testCase.expected {
				require.Equal(testInstance, expectedContent, readFile(testInstance, directory, relativePath), relativePath)
			}
		})
	}
}

func TestReplaceSkipsBinaryFiles(testInstance *testing.T) {
	directory := writeFiles(testInstance, map[string]string{"image.bin": "token\x00token"})

	replace, constructionError := transforms.NewReplace(nil, transforms.ReplaceOptions{Before: "token", After: "x"})
	require.NoError(testInstance, constructionError)
	require.NoError(testInstance, replace.Apply(context.Background(), directory))
	require.Equal(testInstance, "token\x00token", readFile(testInstance, directory, "image.bin"))
}

func TestNewReplaceValidatesOptions(testInstance *testing.T) {
	_, missingError := transforms.NewReplace(nil, transforms.ReplaceOptions{})
	require.ErrorIs(testInstance, missingError, transforms.ErrReplaceBeforeMissing)

	_, regexError := transforms.NewReplace(nil, transforms.ReplaceOptions{Before: "(", Regex: true})
	require.Error(testInstance, regexError)

	_, patternError := transforms.NewReplace(nil, transforms.ReplaceOptions{Before: "a", Paths: []string{"["}})
	require.Error(testInstance, patternError)
}

func TestMoveRelocatesPaths(testInstance *testing.T) {
	directory := writeFiles(testInstance, map[string]string{"old/name.txt": "content", "keep.txt": "keep"})

	move, constructionError := transforms.NewMove(nil, transforms.MoveOptions{Before: "old", After: "new/nested"})
	require.NoError(testInstance, constructionError)
	require.NoError(testInstance, move.Apply(context.Background(), directory))

	require.Equal(testInstance, "content", readFile(testInstance, directory, "new/nested/name.txt"))
	_, oldError := os.Stat(filepath.Join(directory, "old"))
	require.True(testInstance, os.IsNotExist(oldError))
}

func TestMoveRejectsInvalidRequests(testInstance *testing.T) {
	testCases := []struct {
		name          string
		options       transforms.MoveOptions
		expectedError error
	}{
		{name: "missing_source", options: transforms.MoveOptions{Before: "absent", After: "target"}, expectedError: transforms.ErrMoveSourceMissing},
		{name: "existing_target", options: transforms.MoveOptions{Before: "a.txt", After: "b.txt"}, expectedError: transforms.ErrMoveTargetExists},
		{name: "escaping_source", options: transforms.MoveOptions{Before: "../outside", After: "inside"}, expectedError: transforms.ErrPathEscapes},
		{name: "escaping_target", options: transforms.MoveOptions{Before: "a.txt", After: "nested/../../outside"}, expectedError: transforms.ErrPathEscapes},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			directory := writeFiles(testInstance, map[string]string{"a.txt": "a", "b.txt": "b"})
			move, constructionError := transforms.NewMove(nil, testCase.options)
			require.NoError(testInstance, constructionError)
			require.ErrorIs(testInstance, move.Apply(context.Background(), directory), testCase.expectedError)
		})
	}

	_, endpointsError := transforms.NewMove(nil, transforms.MoveOptions{Before: "a"})
	require.ErrorIs(testInstance, endpointsError, transforms.ErrMoveEndpointsMissing)
}

func TestMoveRejectsPathsThroughLinksLeavingTheDirectory(testInstance *testing.T) {
	testCases := []struct {
		name    string
		options transforms.MoveOptions
	}{
		{name: "target_through_link", options: transforms.MoveOptions{Before: "secret.txt", After: "link/secret.txt"}},
		{name: "target_below_link", options: transforms.MoveOptions{Before: "secret.txt", After: "link/deeper/secret.txt"}},
		{name: "source_through_link", options: transforms.MoveOptions{Before: "link/outside.txt", After: "stolen.txt"}},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			parentDirectory := testInstance.TempDir()
			workingDirectory := filepath.Join(parentDirectory, "work")
			outsideDirectory := filepath.Join(parentDirectory, "outside")
			require.NoError(testInstance, os.MkdirAll(workingDirectory, 0o755))
			require.NoError(testInstance, os.MkdirAll(outsideDirectory, 0o755))
			require.NoError(testInstance, os.WriteFile(filepath.Join(workingDirectory, "secret.txt"), []byte("secret"), 0o644))
			require.NoError(testInstance, os.WriteFile(filepath.Join(outsideDirectory, "outside.txt"), []byte("outside"), 0o644))
			require.NoError(testInstance, os.Symlink(filepath.Join("..", "outside"), filepath.Join(workingDirectory, "link")))

			move, constructionError := transforms.NewMove(nil, testCase.options)
			require.NoError(testInstance, constructionError)
			require.ErrorIs(testInstance, move.Apply(context.Background(), workingDirectory), transforms.ErrPathEscapes)

			require.Equal(testInstance, "secret", readFile(testInstance, workingDirectory, "secret.txt"))
			outsideEntries, readError := os.ReadDir(outsideDirectory)
			require.NoError(testInstance, readError)
			require.Len(testInstance, outsideEntries, 1)
			require.Equal(testInstance, "outside.txt", outsideEntries[0].Name())
		})
	}
}

func TestMoveAllowsLinksResolvingInsideTheDirectory(testInstance *testing.T) {
	directory := writeFiles(testInstance, map[string]string{"docs/guide.txt": "guide", "notes.txt": "notes"})
	require.NoError(testInstance, os.Symlink("docs", filepath.Join(directory, "manual")))

	move, constructionError := transforms.NewMove(nil, transforms.MoveOptions{Before: "notes.txt", After: "manual/notes.txt"})
	require.NoError(testInstance, constructionError)
	require.NoError(testInstance, move.Apply(context.Background(), directory))

	require.Equal(testInstance, "notes", readFile(testInstance, directory, "docs/notes.txt"))
}

func TestRemoveDeletesMatchingPaths(testInstance *testing.T) {
	directory := writeFiles(testInstance, map[string]string{
		"README.md":            "readme",
		"internal/secret.txt":  "secret",
		"internal/more/x.txt":  "x",
		"src/main.go":          "package main",
		"src/main_test.go":     "package main",
		"src/nested/a_test.go": "package nested",
	})

	remove, constructionError := transforms.NewRemove(nil, transforms.RemoveOptions{Paths: []string{"internal", "*_test.go", "absent/**"}})
	require.NoError(testInstance, constructionError)
	require.NoError(testInstance, remove.Apply(context.Background(), directory))

	remaining, listError := fsutil.ListFiles(directory)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"README.md", "src/main.go"}, remaining)
}

func TestNewRemoveRequiresPatterns(testInstance *testing.T) {
	_, constructionError := transforms.NewRemove(nil, transforms.RemoveOptions{Paths: []string{" "}})
	require.ErrorIs(testInstance, constructionError, transforms.ErrRemovePathsMissing)
}

func TestBuildDecodesDefinitions(testInstance *testing.T) {
	pipeline, buildError := transforms.BuildPipeline(nil, []transforms.Definition{
		{Type: "replace", With: map[string]any{"before": "foo", "after": "bar", "paths": "*.txt"}},
		{Type: "Move", With: map[string]any{"before": "a", "after": "b"}},
		{Type: "remove", With: map[string]any{"paths": []any{"tmp"}}},
	})
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, []string{`replace "foo"`, "move a to b", "remove tmp"}, pipeline.Names())

	_, unknownError := transforms.Build(nil, transforms.Definition{Type: "rename"})
	require.ErrorIs(testInstance, unknownError, transforms.ErrUnknownType)

	_, unusedError := transforms.Build(nil, transforms.Definition{Type: "move", With: map[string]any{"before": "a", "after": "b", "force": true}})
	require.Error(testInstance, unusedError)
}

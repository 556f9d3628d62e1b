package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	sanitized := CommandConfiguration{WorkDirectory: "  /tmp/stage  ", MigrationFile: "   "}.Sanitize()
	require.Equal(testInstance, "/tmp/stage", sanitized.WorkDirectory)
	require.Equal(testInstance, DefaultMigrationFileConstant, sanitized.MigrationFile)

	defaults := DefaultConfigurationValues("tools.migrate")
	require.Equal(testInstance, DefaultMigrationFileConstant, defaults["tools.migrate.migration_file"])
	require.Equal(testInstance, "", defaults["tools.migrate.work_directory"])
	require.Equal(testInstance, false, defaults["tools.migrate.keep_work_directory"])
}

func TestShortenAndTruncate(testInstance *testing.T) {
	require.Equal(testInstance, "0123456789ab", shortenIdentifier("0123456789abcdef"))
	require.Equal(testInstance, "short", shortenIdentifier("short"))

	longSummary := strings.Repeat("x", summaryLengthLimitConstant+10)
	truncated := truncateSummary(longSummary)
	require.Len(testInstance, truncated, summaryLengthLimitConstant)
	require.True(testInstance, strings.HasSuffix(truncated, truncationSuffixConstant))
	require.Equal(testInstance, "fits", truncateSummary("fits"))
}

func TestArgumentAt(testInstance *testing.T) {
	arguments := []string{" release ", "v1.2.0"}
	require.Equal(testInstance, "release", argumentAt(arguments, workflowArgumentIndexConstant))
	require.Equal(testInstance, "v1.2.0", argumentAt(arguments, referenceArgumentIndexConstant))
	require.Equal(testInstance, "", argumentAt(nil, workflowArgumentIndexConstant))
}

func TestPrepareWorkDirectory(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configured    bool
		keep          bool
		expectRemoval bool
	}{
		{name: "configured_directory_is_kept", configured: true},
		{name: "temporary_directory_is_removed", expectRemoval: true},
		{name: "temporary_directory_is_kept_on_request", keep: true},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testInstance.Setenv("TMPDIR", testInstance.TempDir())

			configuredDirectory := ""
			if testCase.configured {
				configuredDirectory = filepath.Join(testInstance.TempDir(), "nested", "stage")
			}

			directory, cleanup, prepareError := prepareWorkDirectory(configuredDirectory, testCase.keep)
			require.NoError(testInstance, prepareError)
			require.DirExists(testInstance, directory)
			if testCase.configured {
				require.Equal(testInstance, configuredDirectory, directory)
			}

			require.NoError(testInstance, cleanup())
			_, statError := os.Stat(directory)
			require.Equal(testInstance, testCase.expectRemoval, os.IsNotExist(statError))
		})
	}
}

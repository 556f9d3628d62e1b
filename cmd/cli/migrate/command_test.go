package migrate_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	migratecmd "github.com/temirov/reposquash/cmd/cli/migrate"
	"github.com/temirov/reposquash/internal/destinations/objectdestination"
	"github.com/temirov/reposquash/internal/ledger"
	"github.com/temirov/reposquash/internal/migration"
)

const (
	testMigrationFileNameConstant = "migration.yaml"
	testContentFileNameConstant   = "guide.txt"
	testContentConstant           = "draft guide\n"
	testObjectBucketConstant      = "exports"
)

const testFolderMigrationTemplate = `name: handbook
workflows:
  - name: publish
    origin:
      type: folder
      url: %s
    destination:
      type: folder
      path: %s
    transformations:
      - type: move
        with:
          before: guide.txt
          after: docs/guide.txt
`

// testObjectMigrationTemplate uses an explicit argument index so the unused
// destination argument passed by newFolderFixture is not appended as EXTRA.
const testObjectMigrationTemplate = `name: handbook
workflows:
  - name: archive
    origin:
      type: folder
      url: %[1]s
    destination:
      type: object
      endpoint: localhost:9000
      bucket: exports
      prefix: handbook
`

const testLedgerMigrationTemplate = `name: handbook
ledger:
  url: postgres://ledger.example/reposquash
workflows:
  - name: publish
    origin:
      type: folder
      url: %s
    destination:
      type: folder
      path: %s
`

type fixedClock struct {
	now time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.now
}

type memoryObjectStore struct {
	objects map[string][]byte
}

func (store *memoryObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	content, readError := io.ReadAll(body)
	if readError != nil {
		return readError
	}
	store.objects[key] = content
	return nil
}

func (store *memoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	body, exists := store.objects[key]
	if !exists {
		return nil, objectdestination.ErrObjectNotFound
	}
	return body, nil
}

func (store *memoryObjectStore) List(_ context.Context, prefix string) ([]string, error) {
	keys := []string{}
	for key := range store.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (store *memoryObjectStore) Delete(_ context.Context, key string) error {
	delete(store.objects, key)
	return nil
}

type memoryLedger struct {
	entries    []ledger.Entry
	listLimits []int
	closed     bool
}

func (recorder *memoryLedger) Record(_ context.Context, entry ledger.Entry) error {
	recorder.entries = append(recorder.entries, entry)
	return nil
}

func (recorder *memoryLedger) Latest(_ context.Context, configName string, workflowName string, label string) (ledger.Entry, bool, error) {
	for entryIndex := len(recorder.entries) - 1; entryIndex >= 0; entryIndex-- {
		entry := recorder.entries[entryIndex]
		if entry.ConfigName == configName && entry.WorkflowName == workflowName && entry.Label == label {
			return entry, true, nil
		}
	}
	return ledger.Entry{}, false, nil
}

func (recorder *memoryLedger) List(_ context.Context, configName string, workflowName string, limit int) ([]ledger.Entry, error) {
	recorder.listLimits = append(recorder.listLimits, limit)
	entries := []ledger.Entry{}
	for entryIndex := len(recorder.entries) - 1; entryIndex >= 0 && len(entries) < limit; entryIndex-- {
		entry := recorder.entries[entryIndex]
		if entry.ConfigName == configName && entry.WorkflowName == workflowName {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (recorder *memoryLedger) Close() error {
	recorder.closed = true
	return nil
}

type migrationFixture struct {
	workspace            string
	sourceDirectory      string
	destinationDirectory string
	migrationPath        string
}

func newFolderFixture(testInstance *testing.T, template string) migrationFixture {
	testInstance.Helper()
	workspace := testInstance.TempDir()
	fixture := migrationFixture{
		workspace:            workspace,
		sourceDirectory:      filepath.Join(workspace, "source"),
		destinationDirectory: filepath.Join(workspace, "site"),
		migrationPath:        filepath.Join(workspace, testMigrationFileNameConstant),
	}
	require.NoError(testInstance, os.MkdirAll(fixture.sourceDirectory, 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(fixture.sourceDirectory, testContentFileNameConstant), []byte(testContentConstant), 0o644))
	migrationContent := fmt.Sprintf(template, fixture.sourceDirectory, fixture.destinationDirectory)
	require.NoError(testInstance, os.WriteFile(fixture.migrationPath, []byte(migrationContent), 0o644))
	return fixture
}

func runCommand(testInstance *testing.T, command *cobra.Command, arguments ...string) (string, error) {
	testInstance.Helper()
	var output bytes.Buffer
	command.SetOut(&output)
	command.SetErr(&output)
	command.SetArgs(arguments)
	command.SetContext(context.Background())
	executionError := command.Execute()
	return output.String(), executionError
}

func TestMigrateCommandRunsWorkflow(testInstance *testing.T) {
	fixture := newFolderFixture(testInstance, testFolderMigrationTemplate)
	observedCore, observedLogs := observer.New(zapcore.InfoLevel)

	builder := migratecmd.MigrateCommandBuilder{
		LoggerProvider: func() *zap.Logger { return zap.New(observedCore) },
		ConfigurationProvider: func() migratecmd.CommandConfiguration {
			return migratecmd.CommandConfiguration{MigrationFile: fixture.migrationPath, WorkDirectory: filepath.Join(fixture.workspace, "stage")}
		},
		Dependencies: migratecmd.Dependencies{Clock: fixedClock{now: time.Unix(1700000000, 0)}},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	output, executionError := runCommand(testInstance, command, "publish")
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "Migrated publish (origin reference) to destination")
	require.Contains(testInstance, output, "Applying 1 transformation(s)")
	require.FileExists(testInstance, filepath.Join(fixture.destinationDirectory, "docs", testContentFileNameConstant))
	require.NoFileExists(testInstance, filepath.Join(fixture.destinationDirectory, testContentFileNameConstant))
	require.Equal(testInstance, 1, observedLogs.FilterMessage("Squash migration completed").Len())
}

func TestMigrateCommandRejectsUnknownWorkflow(testInstance *testing.T) {
	fixture := newFolderFixture(testInstance, testFolderMigrationTemplate)

	builder := migratecmd.MigrateCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, executionError := runCommand(testInstance, command, "--file", fixture.migrationPath, "missing")
	require.ErrorIs(testInstance, executionError, migration.ErrUnknownWorkflow)
}

func TestMigrateCommandWritesObjectDestination(testInstance *testing.T) {
	fixture := newFolderFixture(testInstance, testObjectMigrationTemplate)
	store := &memoryObjectStore{objects: map[string][]byte{}}

	var requestedConfiguration objectdestination.StoreConfiguration
	builder := migratecmd.MigrateCommandBuilder{
		Dependencies: migratecmd.Dependencies{
			ObjectStoreFactory: func(_ context.Context, configuration objectdestination.StoreConfiguration) (objectdestination.ObjectStore, error) {
				requestedConfiguration = configuration
				return store, nil
			},
		},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, executionError := runCommand(testInstance, command, "--file", fixture.migrationPath, "--work-directory", filepath.Join(fixture.workspace, "stage"))
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, testObjectBucketConstant, requestedConfiguration.Bucket)
	require.Equal(testInstance, []byte(testContentConstant), store.objects["handbook/"+testContentFileNameConstant])
	require.Contains(testInstance, store.objects, "handbook/"+objectdestination.StateObjectNameConstant)
}

func TestChangesCommandWithoutPreviousMigration(testInstance *testing.T) {
	fixture := newFolderFixture(testInstance, testFolderMigrationTemplate)

	builder := migratecmd.ChangesCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	output, executionError := runCommand(testInstance, command, "--file", fixture.migrationPath)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "No previous migration recorded for workflow publish")
}

func TestChangesCommandPrintsLedgerHistory(testInstance *testing.T) {
	testCases := []struct {
		name           string
		arguments      []string
		expectHistory  bool
		expectedLimits []int
	}{
		{name: "default_limit", expectHistory: true, expectedLimits: []int{10}},
		{name: "explicit_limit", arguments: []string{"--history-limit", "3"}, expectHistory: true, expectedLimits: []int{3}},
		{name: "disabled", arguments: []string{"--history-limit", "0"}, expectHistory: false},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newFolderFixture(testInstance, testLedgerMigrationTemplate)
			recorder := &memoryLedger{entries: []ledger.Entry{{
				Identifier:      "entry-1",
				ConfigName:      "handbook",
				WorkflowName:    "publish",
				Label:           "FolderOrigin-Path",
				Reference:       fixture.sourceDirectory,
				ChangeTimestamp: 1700000000,
				RecordedAt:      time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
			}}}

			builder := migratecmd.ChangesCommandBuilder{
				Dependencies: migratecmd.Dependencies{
					LedgerFactory: func(context.Context, ledger.Config) (migration.LedgerRecorder, error) {
						return recorder, nil
					},
				},
			}
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			arguments := append([]string{"--file", fixture.migrationPath}, testCase.arguments...)
			output, executionError := runCommand(testInstance, command, arguments...)
			require.NoError(testInstance, executionError)
			require.Contains(testInstance, output, "Change history is unavailable for workflow publish")
			require.Equal(testInstance, testCase.expectedLimits, recorder.listLimits)
			require.True(testInstance, recorder.closed)

			if !testCase.expectHistory {
				require.NotContains(testInstance, output, "Ledger history")
				return
			}
			require.Contains(testInstance, output, "Ledger history for workflow publish")
			require.Contains(testInstance, output, "2024-03-01T12:00:00Z")
			require.Contains(testInstance, output, "entry-1")
			require.Contains(testInstance, output, "FolderOrigin-Path")
		})
	}
}

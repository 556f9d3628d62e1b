package ledger_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/reposquash/internal/ledger"
)

const (
	storeEntryIdentifierConstant = "entry-7"
	storeReferenceConstant       = "def456"
	storeChangeTimestampConstant = int64(1700000000)
)

type executedStatement struct {
	query     string
	arguments []driver.Value
}

type recordingConnection struct {
	executed  []executedStatement
	queried   []executedStatement
	rows      [][]driver.Value
	execError error
}

func (connection *recordingConnection) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (connection *recordingConnection) Close() error { return nil }

func (connection *recordingConnection) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (connection *recordingConnection) ExecContext(_ context.Context, query string, arguments []driver.NamedValue) (driver.Result, error) {
	connection.executed = append(connection.executed, executedStatement{query: query, arguments: namedValues(arguments)})
	if connection.execError != nil {
		return nil, connection.execError
	}
	return driver.RowsAffected(1), nil
}

func (connection *recordingConnection) QueryContext(_ context.Context, query string, arguments []driver.NamedValue) (driver.Rows, error) {
	connection.queried = append(connection.queried, executedStatement{query: query, arguments: namedValues(arguments)})
	return &recordingRows{values: connection.rows}, nil
}

type recordingRows struct {
	values [][]driver.Value
	index  int
}

func (rows *recordingRows) Columns() []string {
	return []string{"id", "config_name", "workflow_name", "label", "reference", "change_timestamp", "recorded_at"}
}

func (rows *recordingRows) Close() error { return nil }

func (rows *recordingRows) Next(destination []driver.Value) error {
	if rows.index >= len(rows.values) {
		return io.EOF
	}
	copy(destination, rows.values[rows.index])
	rows.index++
	return nil
}

type recordingConnector struct {
	connection *recordingConnection
}

func (connector recordingConnector) Connect(context.Context) (driver.Conn, error) {
	return connector.connection, nil
}

func (connector recordingConnector) Driver() driver.Driver { return recordingDriver{connector: connector} }

type recordingDriver struct {
	connector recordingConnector
}

func (recordingDriver recordingDriver) Open(string) (driver.Conn, error) {
	return recordingDriver.connector.connection, nil
}

func namedValues(arguments []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, 0, len(arguments))
	for _, argument := range arguments {
		values = append(values, argument.Value)
	}
	return values
}

func newRecordingStore(testInstance *testing.T, connection *recordingConnection) *ledger.Store {
	testInstance.Helper()
	database := sql.OpenDB(recordingConnector{connection: connection})
	testInstance.Cleanup(func() { _ = database.Close() })
	store, storeError := ledger.NewStore(database)
	require.NoError(testInstance, storeError)
	return store
}

func storedRow(identifier string, recordedAt time.Time) []driver.Value {
	return []driver.Value{
		identifier,
		testConfigNameConstant,
		testWorkflowNameConstant,
		testLabelConstant,
		storeReferenceConstant,
		storeChangeTimestampConstant,
		recordedAt,
	}
}

func TestStoreEnsureSchema(testInstance *testing.T) {
	testCases := []struct {
		name          string
		execError     error
		expectError   bool
		expectedCalls int
	}{
		{name: "creates_table_and_index", expectedCalls: 2},
		{name: "stops_on_failure", execError: errors.New("permission denied"), expectError: true, expectedCalls: 1},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			connection := &recordingConnection{execError: testCase.execError}
			store := newRecordingStore(subTest, connection)

			schemaError := store.EnsureSchema(context.Background())
			if testCase.expectError {
				require.ErrorIs(subTest, schemaError, testCase.execError)
			} else {
				require.NoError(subTest, schemaError)
			}
			require.Len(subTest, connection.executed, testCase.expectedCalls)
			require.True(subTest, strings.HasPrefix(connection.executed[0].query, "CREATE TABLE IF NOT EXISTS reposquash_migrations"))
		})
	}
}

func TestStoreRecordPassesEntryFields(testInstance *testing.T) {
	connection := &recordingConnection{}
	store := newRecordingStore(testInstance, connection)
	recordedAt := time.Date(2024, time.May, 2, 8, 30, 0, 0, time.FixedZone("offset", 2*60*60))

	recordError := store.Record(context.Background(), ledger.Entry{
		Identifier:      storeEntryIdentifierConstant,
		ConfigName:      testConfigNameConstant,
		WorkflowName:    testWorkflowNameConstant,
		Label:           testLabelConstant,
		Reference:       storeReferenceConstant,
		ChangeTimestamp: storeChangeTimestampConstant,
		RecordedAt:      recordedAt,
	})
	require.NoError(testInstance, recordError)

	require.Len(testInstance, connection.executed, 1)
	arguments := connection.executed[0].arguments
	require.Equal(testInstance, []driver.Value{
		storeEntryIdentifierConstant,
		testConfigNameConstant,
		testWorkflowNameConstant,
		testLabelConstant,
		storeReferenceConstant,
		storeChangeTimestampConstant,
		recordedAt.UTC(),
	}, arguments)
}

func TestStoreRecordWrapsFailure(testInstance *testing.T) {
	executionFailure := errors.New("duplicate key")
	store := newRecordingStore(testInstance, &recordingConnection{execError: executionFailure})

	recordError := store.Record(context.Background(), ledger.Entry{Identifier: storeEntryIdentifierConstant})
	require.ErrorIs(testInstance, recordError, executionFailure)
	require.Contains(testInstance, recordError.Error(), storeEntryIdentifierConstant)
}

func TestStoreLatest(testInstance *testing.T) {
	recordedAt := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name          string
		rows          [][]driver.Value
		expectedFound bool
	}{
		{name: "no_rows", expectedFound: false},
		{name: "newest_row", rows: [][]driver.Value{storedRow(storeEntryIdentifierConstant, recordedAt)}, expectedFound: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			connection := &recordingConnection{rows: testCase.rows}
			store := newRecordingStore(subTest, connection)

			entry, found, latestError := store.Latest(context.Background(), testConfigNameConstant, testWorkflowNameConstant, testLabelConstant)
			require.NoError(subTest, latestError)
			require.Equal(subTest, testCase.expectedFound, found)
			require.Len(subTest, connection.queried, 1)
			require.Equal(subTest, []driver.Value{testConfigNameConstant, testWorkflowNameConstant, testLabelConstant}, connection.queried[0].arguments)
			if testCase.expectedFound {
				require.Equal(subTest, storeEntryIdentifierConstant, entry.Identifier)
				require.Equal(subTest, storeReferenceConstant, entry.Reference)
				require.Equal(subTest, storeChangeTimestampConstant, entry.ChangeTimestamp)
				require.True(subTest, recordedAt.Equal(entry.RecordedAt))
			}
		})
	}
}

func TestStoreListReturnsRowsInOrder(testInstance *testing.T) {
	newer := time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	connection := &recordingConnection{rows: [][]driver.Value{
		storedRow("entry-2", newer),
		storedRow("entry-1", older),
	}}
	store := newRecordingStore(testInstance, connection)

	entries, listError := store.List(context.Background(), testConfigNameConstant, testWorkflowNameConstant, 5)
	require.NoError(testInstance, listError)
	require.Len(testInstance, entries, 2)
	require.Equal(testInstance, "entry-2", entries[0].Identifier)
	require.Equal(testInstance, "entry-1", entries[1].Identifier)
	require.Equal(testInstance, []driver.Value{testConfigNameConstant, testWorkflowNameConstant, int64(5)}, connection.queried[0].arguments)
}

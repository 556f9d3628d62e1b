package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	createTableStatementConstant = `CREATE TABLE IF NOT EXISTS reposquash_migrations (
	id TEXT PRIMARY KEY,
	config_name TEXT NOT NULL,
	workflow_name TEXT NOT NULL,
	label TEXT NOT NULL,
	reference TEXT NOT NULL,
	change_timestamp BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`
	createIndexStatementConstant = `CREATE INDEX IF NOT EXISTS reposquash_migrations_lookup
	ON reposquash_migrations (config_name, workflow_name, label, recorded_at DESC)`
	insertStatementConstant = `INSERT INTO reposquash_migrations
	(id, config_name, workflow_name, label, reference, change_timestamp, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	latestStatementConstant = `SELECT id, config_name, workflow_name, label, reference, change_timestamp, recorded_at
	FROM reposquash_migrations
	WHERE config_name = $1 AND workflow_name = $2 AND label = $3
	ORDER BY recorded_at DESC
	LIMIT 1`
	listStatementConstant = `SELECT id, config_name, workflow_name, label, reference, change_timestamp, recorded_at
	FROM reposquash_migrations
	WHERE config_name = $1 AND workflow_name = $2
	ORDER BY recorded_at DESC
	LIMIT $3`

	schemaErrorTemplateConstant = "unable to prepare ledger schema: %w"
	recordErrorTemplateConstant = "unable to record migration %s: %w"
	queryErrorTemplateConstant  = "unable to query ledger: %w"
	databaseMissingMessage      = "ledger store requires a database"
)

// ErrDatabaseMissing indicates the store was constructed without a database handle.
var ErrDatabaseMissing = errors.New(databaseMissingMessage)

// Entry is one recorded migration.
type Entry struct {
	Identifier      string
	ConfigName      string
	WorkflowName    string
	Label           string
	Reference       string
	ChangeTimestamp int64
	RecordedAt      time.Time
}

// Recorder persists and queries migration entries.
type Recorder interface {
	Record(executionContext context.Context, entry Entry) error
	Latest(executionContext context.Context, configName string, workflowName string, label string) (Entry, bool, error)
}

// History lists recorded migrations of a workflow, newest first.
type History interface {
	List(executionContext context.Context, configName string, workflowName string, limit int) ([]Entry, error)
}

// Store implements Recorder and History on a SQL database.
type Store struct {
	database *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(database *sql.DB) (*Store, error) {
	if database == nil {
		return nil, ErrDatabaseMissing
	}
	return &Store{database: database}, nil
}

// EnsureSchema creates the ledger table when missing.
func (store *Store) EnsureSchema(executionContext context.Context) error {
	for _, statement := range []string{createTableStatementConstant, createIndexStatementConstant} {
		if _, execError := store.database.ExecContext(executionContext, statement); execError != nil {
			return fmt.Errorf(schemaErrorTemplateConstant, execError)
		}
	}
	return nil
}

// Record inserts entry.
func (store *Store) Record(executionContext context.Context, entry Entry) error {
	_, execError := store.database.ExecContext(
		executionContext,
		insertStatementConstant,
		entry.Identifier,
		entry.ConfigName,
		entry.WorkflowName,
		entry.Label,
		entry.Reference,
		entry.ChangeTimestamp,
		entry.RecordedAt.UTC(),
	)
	if execError != nil {
		return fmt.Errorf(recordErrorTemplateConstant, entry.Identifier, execError)
	}
	return nil
}

// Latest returns the newest entry for the workflow and label.
func (store *Store) Latest(executionContext context.Context, configName string, workflowName string, label string) (Entry, bool, error) {
	row := store.database.QueryRowContext(executionContext, latestStatementConstant, configName, workflowName, label)
	entry, scanError := scanEntry(row)
	if errors.Is(scanError, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if scanError != nil {
		return Entry{}, false, fmt.Errorf(queryErrorTemplateConstant, scanError)
	}
	return entry, true, nil
}

// List returns up to limit entries for the workflow, newest first.
func (store *Store) List(executionContext context.Context, configName string, workflowName string, limit int) ([]Entry, error) {
	rows, queryError := store.database.QueryContext(executionContext, listStatementConstant, configName, workflowName, limit)
	if queryError != nil {
		return nil, fmt.Errorf(queryErrorTemplateConstant, queryError)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, scanError := scanEntry(rows)
		if scanError != nil {
			return nil, fmt.Errorf(queryErrorTemplateConstant, scanError)
		}
		entries = append(entries, entry)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(queryErrorTemplateConstant, rowsError)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(destinations ...any) error
}

func scanEntry(scanner rowScanner) (Entry, error) {
	var entry Entry
	scanError := scanner.Scan(
		&entry.Identifier,
		&entry.ConfigName,
		&entry.WorkflowName,
		&entry.Label,
		&entry.Reference,
		&entry.ChangeTimestamp,
		&entry.RecordedAt,
	)
	return entry, scanError
}

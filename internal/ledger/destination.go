package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/squash"
)

const (
	recordOperationConstant    = "record ledger entry"
	lookupOperationConstant    = "read ledger entry"
	destinationMissingMessage  = "recording destination requires a destination"
	recorderMissingMessage     = "recording destination requires a recorder"
	logFieldEntryConstant      = "ledger_entry_id"
	logFieldReferenceConstant  = "reference"
	logFieldLabelConstant      = "label"
	recordedLogMessageConstant = "Recorded migration in ledger"
	ledgerFallbackLogMessage   = "Using ledger for previous reference"
)

var (
	// ErrDestinationMissing indicates the decorator was constructed without a wrapped destination.
	ErrDestinationMissing = errors.New(destinationMissingMessage)
	// ErrRecorderMissing indicates the decorator was constructed without a recorder.
	ErrRecorderMissing = errors.New(recorderMissingMessage)
)

// RecordingDependencies wires the collaborators of a RecordingDestination.
type RecordingDependencies struct {
	Logger              *zap.Logger
	Destination         squash.Destination
	Recorder            Recorder
	Now                 func() time.Time
	IdentifierGenerator func() string
}

// RecordingDestination decorates a destination, recording every successful Process in the ledger.
type RecordingDestination struct {
	logger              *zap.Logger
	destination         squash.Destination
	recorder            Recorder
	configName          string
	workflowName        string
	now                 func() time.Time
	identifierGenerator func() string
}

// NewRecordingDestination constructs the decorator for one workflow.
func NewRecordingDestination(configName string, workflowName string, dependencies RecordingDependencies) (*RecordingDestination, error) {
	if dependencies.Destination == nil {
		return nil, ErrDestinationMissing
	}
	if dependencies.Recorder == nil {
		return nil, ErrRecorderMissing
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := dependencies.Now
	if now == nil {
		now = time.Now
	}
	identifierGenerator := dependencies.IdentifierGenerator
	if identifierGenerator == nil {
		identifierGenerator = uuid.NewString
	}

	return &RecordingDestination{
		logger:              logger,
		destination:         dependencies.Destination,
		recorder:            dependencies.Recorder,
		configName:          configName,
		workflowName:        workflowName,
		now:                 now,
		identifierGenerator: identifierGenerator,
	}, nil
}

// Process implements squash.Destination. The ledger entry is written only after the wrapped destination succeeds.
func (destination *RecordingDestination) Process(executionContext context.Context, directory string, reference squash.Reference, timestamp int64, message string) error {
	if processError := destination.destination.Process(executionContext, directory, reference, timestamp, message); processError != nil {
		return processError
	}

	entry := Entry{
		Identifier:      destination.identifierGenerator(),
		ConfigName:      destination.configName,
		WorkflowName:    destination.workflowName,
		Label:           reference.LabelName(),
		Reference:       reference.String(),
		ChangeTimestamp: timestamp,
		RecordedAt:      destination.now().UTC(),
	}
	if recordError := destination.recorder.Record(executionContext, entry); recordError != nil {
		return squash.DestinationError{Operation: recordOperationConstant, Cause: recordError}
	}

	destination.logger.Debug(
		recordedLogMessageConstant,
		zap.String(logFieldEntryConstant, entry.Identifier),
		zap.String(logFieldReferenceConstant, entry.Reference),
	)
	return nil
}

// PreviousReference implements squash.Destination, preferring the wrapped destination's own record.
func (destination *RecordingDestination) PreviousReference(executionContext context.Context, label string) (string, bool, error) {
	previousReference, found, lookupError := destination.destination.PreviousReference(executionContext, label)
	if lookupError != nil {
		return "", false, lookupError
	}
	if found && len(strings.TrimSpace(previousReference)) > 0 {
		return previousReference, true, nil
	}

	entry, entryFound, latestError := destination.recorder.Latest(executionContext, destination.configName, destination.workflowName, label)
	if latestError != nil {
		return "", false, squash.DestinationError{Operation: lookupOperationConstant, Cause: latestError}
	}
	if !entryFound {
		return "", false, nil
	}

	destination.logger.Debug(
		ledgerFallbackLogMessage,
		zap.String(logFieldLabelConstant, label),
		zap.String(logFieldReferenceConstant, entry.Reference),
	)
	return entry.Reference, true, nil
}

package squash

import (
	"errors"
	"fmt"
)

const (
	originErrorTemplateConstant             = "origin %s failed: %v"
	filesystemErrorTemplateConstant         = "filesystem %s failed for %s: %v"
	transformationErrorTemplateConstant     = "transformation %s failed: %v"
	destinationErrorTemplateConstant        = "destination %s failed: %v"
	historyUnavailableErrorTemplateConstant = "change history unavailable: %v"
	stageErrorTemplateConstant              = "%s stage failed: %v"
	originMissingMessageConstant            = "origin not configured"
	destinationMissingMessageConstant       = "destination not configured"
	configNameMissingMessageConstant        = "config name must be provided"
	workflowNameMissingMessageConstant      = "workflow name must be provided"
	workingDirectoryMissingMessageConstant  = "working directory must be provided"
)

var (
	// ErrOriginNotConfigured indicates the workflow was constructed without an origin.
	ErrOriginNotConfigured = errors.New(originMissingMessageConstant)
	// ErrDestinationNotConfigured indicates the workflow was constructed without a destination.
	ErrDestinationNotConfigured = errors.New(destinationMissingMessageConstant)
	// ErrConfigNameMissing indicates the workflow configuration lacks a config name.
	ErrConfigNameMissing = errors.New(configNameMissingMessageConstant)
	// ErrWorkflowNameMissing indicates the workflow configuration lacks a workflow name.
	ErrWorkflowNameMissing = errors.New(workflowNameMissingMessageConstant)
	// ErrWorkingDirectoryMissing indicates Run was invoked without a working directory.
	ErrWorkingDirectoryMissing = errors.New(workingDirectoryMissingMessageConstant)
)

// Stage identifies a step of the squash workflow.
type Stage string

// Workflow stages in execution order.
const (
	StageResolve   Stage = Stage("resolve")
	StageCheckout  Stage = Stage("checkout")
	StageTransform Stage = Stage("transform")
	StageProcess   Stage = Stage("process")
)

// OriginError reports reference resolution, checkout, or history failures.
type OriginError struct {
	Operation string
	Cause     error
}

// Error describes the failure.
func (originError OriginError) Error() string {
	return fmt.Sprintf(originErrorTemplateConstant, originError.Operation, originError.Cause)
}

// Unwrap exposes the underlying cause.
func (originError OriginError) Unwrap() error {
	return originError.Cause
}

// FilesystemError reports working directory I/O failures.
type FilesystemError struct {
	Operation string
	Path      string
	Cause     error
}

// Error describes the failure.
func (filesystemError FilesystemError) Error() string {
	return fmt.Sprintf(filesystemErrorTemplateConstant, filesystemError.Operation, filesystemError.Path, filesystemError.Cause)
}

// Unwrap exposes the underlying cause.
func (filesystemError FilesystemError) Unwrap() error {
	return filesystemError.Cause
}

// TransformationError reports a failing transformation.
type TransformationError struct {
	Transformation string
	Cause          error
}

// Error describes the failure.
func (transformationError TransformationError) Error() string {
	return fmt.Sprintf(transformationErrorTemplateConstant, transformationError.Transformation, transformationError.Cause)
}

// Unwrap exposes the underlying cause.
func (transformationError TransformationError) Unwrap() error {
	return transformationError.Cause
}

// DestinationError reports commit or write failures.
type DestinationError struct {
	Operation string
	Cause     error
}

// Error describes the failure.
func (destinationError DestinationError) Error() string {
	return fmt.Sprintf(destinationErrorTemplateConstant, destinationError.Operation, destinationError.Cause)
}

// Unwrap exposes the underlying cause.
func (destinationError DestinationError) Unwrap() error {
	return destinationError.Cause
}

// HistoryUnavailableError reports that the change digest could not be computed. It never aborts a run.
type HistoryUnavailableError struct {
	Cause error
}

// Error describes the failure.
func (historyError HistoryUnavailableError) Error() string {
	return fmt.Sprintf(historyUnavailableErrorTemplateConstant, historyError.Cause)
}

// Unwrap exposes the underlying cause.
func (historyError HistoryUnavailableError) Unwrap() error {
	return historyError.Cause
}

// StageError associates a fatal failure with the workflow stage that produced it.
type StageError struct {
	Stage Stage
	Cause error
}

// Error describes the failure.
func (stageError StageError) Error() string {
	return fmt.Sprintf(stageErrorTemplateConstant, stageError.Stage, stageError.Cause)
}

// Unwrap exposes the underlying cause.
func (stageError StageError) Unwrap() error {
	return stageError.Cause
}

func ensureOriginError(operation string, failure error) error {
	var originError OriginError
	if errors.As(failure, &originError) {
		return failure
	}
	var filesystemError FilesystemError
	if errors.As(failure, &filesystemError) {
		return failure
	}
	return OriginError{Operation: operation, Cause: failure}
}

func ensureDestinationError(operation string, failure error) error {
	var destinationError DestinationError
	if errors.As(failure, &destinationError) {
		return failure
	}
	return DestinationError{Operation: operation, Cause: failure}
}

package squash

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// WorkflowModeSquash names the migration mode implemented by Workflow.
	WorkflowModeSquash = "SQUASH"

	resolveOperationConstant            = "resolve"
	checkoutOperationConstant           = "checkout"
	processOperationConstant            = "process"
	resolvingProgressTemplateConstant   = "Resolving %s"
	checkoutProgressTemplateConstant    = "Checking out %s"
	transformProgressTemplateConstant   = "Applying %d transformation(s)"
	processProgressTemplateConstant     = "Writing %s to destination"
	runStartedMessageConstant           = "Running squash migration"
	runCompletedMessageConstant         = "Squash migration completed"
	runFailedMessageConstant            = "Squash migration failed"
	timestampFallbackMessageConstant    = "Reference has no timestamp; using current time"
	logFieldRunIdentifierConstant       = "run_id"
	logFieldConfigNameConstant          = "config_name"
	logFieldWorkflowNameConstant        = "workflow_name"
	logFieldWorkflowModeConstant        = "workflow_mode"
	logFieldReferenceConstant           = "reference"
	logFieldRequestedReferenceConstant  = "requested_reference"
	logFieldWorkingDirectoryConstant    = "working_directory"
	logFieldTimestampConstant           = "timestamp"
	logFieldStageConstant               = "stage"
	logFieldOriginLabelConstant         = "origin_label"
	logFieldIncludedChangeCountConstant = "included_change_count"
)

// RunIdentifierGenerator produces identifiers correlating the log entries of one run.
type RunIdentifierGenerator func() string

// WorkflowDependencies describes the collaborators used by Workflow.
type WorkflowDependencies struct {
	Logger                 *zap.Logger
	Origin                 Origin
	Destination            Destination
	Pipeline               *Pipeline
	Reporter               Reporter
	Clock                  Clock
	RunIdentifierGenerator RunIdentifierGenerator
}

// Workflow migrates the current origin state to the destination as a single squashed change.
type Workflow struct {
	configuration          WorkflowConfig
	logger                 *zap.Logger
	origin                 Origin
	destination            Destination
	pipeline               *Pipeline
	reporter               Reporter
	clock                  Clock
	runIdentifierGenerator RunIdentifierGenerator
}

// NewWorkflow validates the configuration and dependencies and constructs a Workflow.
func NewWorkflow(configuration WorkflowConfig, dependencies WorkflowDependencies) (*Workflow, error) {
	if len(strings.TrimSpace(configuration.ConfigName)) == 0 {
		return nil, ErrConfigNameMissing
	}
	if len(strings.TrimSpace(configuration.WorkflowName)) == 0 {
		return nil, ErrWorkflowNameMissing
	}
	if dependencies.Origin == nil {
		return nil, ErrOriginNotConfigured
	}
	if dependencies.Destination == nil {
		return nil, ErrDestinationNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pipeline := dependencies.Pipeline
	if pipeline == nil {
		pipeline = NewPipeline(logger)
	}

	var reporter Reporter = noopReporter{}
	if dependencies.Reporter != nil {
		reporter = dependencies.Reporter
	}

	var clock Clock = SystemClock{}
	if dependencies.Clock != nil {
		clock = dependencies.Clock
	}

	runIdentifierGenerator := dependencies.RunIdentifierGenerator
	if runIdentifierGenerator == nil {
		runIdentifierGenerator = uuid.NewString
	}

	return &Workflow{
		configuration:          configuration,
		logger:                 logger,
		origin:                 dependencies.Origin,
		destination:            dependencies.Destination,
		pipeline:               pipeline,
		reporter:               reporter,
		clock:                  clock,
		runIdentifierGenerator: runIdentifierGenerator,
	}, nil
}

// Configuration returns the workflow configuration.
func (workflow *Workflow) Configuration() WorkflowConfig {
	return workflow.configuration
}

// Run performs one complete squash migration into workingDirectory.
// The destination write is the last step; any earlier failure leaves the destination untouched.
func (workflow *Workflow) Run(executionContext context.Context, workingDirectory string, sourceReference OptionalReference) error {
	if len(strings.TrimSpace(workingDirectory)) == 0 {
		return ErrWorkingDirectoryMissing
	}

	runLogger := workflow.logger.With(
		zap.String(logFieldRunIdentifierConstant, workflow.runIdentifierGenerator()),
		zap.String(logFieldConfigNameConstant, workflow.configuration.ConfigName),
		zap.String(logFieldWorkflowNameConstant, workflow.configuration.WorkflowName),
	)

	runError := workflow.run(executionContext, runLogger, workingDirectory, sourceReference)
	if runError != nil {
		var stageError StageError
		if errors.As(runError, &stageError) {
			runLogger.Error(runFailedMessageConstant, zap.String(logFieldStageConstant, string(stageError.Stage)), zap.Error(stageError.Cause))
		}
		return runError
	}

	runLogger.Info(runCompletedMessageConstant)
	return nil
}

func (workflow *Workflow) run(executionContext context.Context, runLogger *zap.Logger, workingDirectory string, sourceReference OptionalReference) error {
	workflow.reporter.Progress(fmt.Sprintf(resolvingProgressTemplateConstant, sourceReference.String()))
	resolvedReference, resolveError := workflow.origin.Resolve(executionContext, sourceReference)
	if resolveError != nil {
		return StageError{Stage: StageResolve, Cause: ensureOriginError(resolveOperationConstant, resolveError)}
	}

	runLogger.Info(
		runStartedMessageConstant,
		zap.String(logFieldWorkflowModeConstant, WorkflowModeSquash),
		zap.String(logFieldRequestedReferenceConstant, sourceReference.String()),
		zap.String(logFieldReferenceConstant, resolvedReference.String()),
		zap.String(logFieldWorkingDirectoryConstant, workingDirectory),
	)

	workflow.reporter.Progress(fmt.Sprintf(checkoutProgressTemplateConstant, resolvedReference.String()))
	if checkoutError := resolvedReference.Checkout(executionContext, workingDirectory); checkoutError != nil {
		return StageError{Stage: StageCheckout, Cause: ensureOriginError(checkoutOperationConstant, checkoutError)}
	}

	workflow.reporter.Progress(fmt.Sprintf(transformProgressTemplateConstant, workflow.pipeline.Len()))
	if transformError := workflow.pipeline.Apply(executionContext, workingDirectory); transformError != nil {
		return StageError{Stage: StageTransform, Cause: transformError}
	}

	timestamp := workflow.determineTimestamp(runLogger, resolvedReference)
	commitMessage := workflow.buildMessage(executionContext, runLogger, resolvedReference)

	workflow.reporter.Progress(fmt.Sprintf(processProgressTemplateConstant, resolvedReference.String()))
	if processError := workflow.destination.Process(executionContext, workingDirectory, resolvedReference, timestamp, commitMessage); processError != nil {
		return StageError{Stage: StageProcess, Cause: ensureDestinationError(processOperationConstant, processError)}
	}

	return nil
}

func (workflow *Workflow) determineTimestamp(runLogger *zap.Logger, reference Reference) int64 {
	if timestamp, present := reference.Timestamp(); present {
		return timestamp
	}
	timestamp := workflow.clock.Now().Unix()
	runLogger.Debug(timestampFallbackMessageConstant, zap.Int64(logFieldTimestampConstant, timestamp))
	return timestamp
}

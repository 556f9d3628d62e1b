package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/destinations/folderdestination"
	"github.com/temirov/reposquash/internal/destinations/gitdestination"
	"github.com/temirov/reposquash/internal/destinations/objectdestination"
	"github.com/temirov/reposquash/internal/execshell"
	"github.com/temirov/reposquash/internal/ledger"
	"github.com/temirov/reposquash/internal/origins/folderorigin"
	"github.com/temirov/reposquash/internal/origins/gitorigin"
	"github.com/temirov/reposquash/internal/squash"
	"github.com/temirov/reposquash/internal/transforms"
)

const (
	buildOriginErrorTemplate          = "unable to build origin: %w"
	buildDestinationErrorTemplate     = "unable to build destination: %w"
	buildTransformationsErrorTemplate = "unable to build transformations: %w"
	buildLedgerErrorTemplate          = "unable to open ledger: %w"
	buildWorkflowErrorTemplate        = "unable to build workflow: %w"
	gitExecutorMissingMessage         = "migration builder requires a git executor for git backends"
	logFieldWorkflowConstant          = "workflow_name"
	logFieldOriginTypeConstant        = "origin_type"
	logFieldDestinationTypeConstant   = "destination_type"
	logFieldTransformationsConstant   = "transformations"
	logFieldLedgerConstant            = "ledger_enabled"
	assembledLogMessageConstant       = "Assembled migration workflow"
)

// ErrGitExecutorMissing indicates a git backend was requested without a git executor.
var ErrGitExecutorMissing = errors.New(gitExecutorMissingMessage)

// ObjectStoreFactory connects to an object store.
type ObjectStoreFactory func(executionContext context.Context, configuration objectdestination.StoreConfiguration) (objectdestination.ObjectStore, error)

// LedgerRecorder is a ledger connection that must be closed after use.
type LedgerRecorder interface {
	ledger.Recorder
	ledger.History
	io.Closer
}

// LedgerFactory opens the migration ledger.
type LedgerFactory func(executionContext context.Context, config ledger.Config) (LedgerRecorder, error)

// BuilderDependencies wires the collaborators shared by every assembled workflow.
type BuilderDependencies struct {
	Logger             *zap.Logger
	GitExecutor        execshell.GitExecutor
	Reporter           squash.Reporter
	Clock              squash.Clock
	ObjectStoreFactory ObjectStoreFactory
	LedgerFactory      LedgerFactory
}

// Builder assembles squash workflows from migration files.
type Builder struct {
	logger             *zap.Logger
	gitExecutor        execshell.GitExecutor
	reporter           squash.Reporter
	clock              squash.Clock
	objectStoreFactory ObjectStoreFactory
	ledgerFactory      LedgerFactory
}

// Assembly is a ready-to-run workflow together with the backends it was built from.
// History is nil unless the migration file configures a ledger.
type Assembly struct {
	Workflow    *squash.Workflow
	Origin      squash.Origin
	Destination squash.Destination
	History     ledger.History
	closers     []io.Closer
}

// Close releases connections opened while assembling the workflow.
func (assembly *Assembly) Close() error {
	if assembly == nil {
		return nil
	}
	var closeErrors []error
	for _, closer := range assembly.closers {
		if closeError := closer.Close(); closeError != nil {
			closeErrors = append(closeErrors, closeError)
		}
	}
	assembly.closers = nil
	return errors.Join(closeErrors...)
}

// NewBuilder constructs a Builder. Missing factories default to the minio object store and the Postgres ledger.
func NewBuilder(dependencies BuilderDependencies) *Builder {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	objectStoreFactory := dependencies.ObjectStoreFactory
	if objectStoreFactory == nil {
		objectStoreFactory = openMinioStore
	}
	ledgerFactory := dependencies.LedgerFactory
	if ledgerFactory == nil {
		ledgerFactory = openPostgresLedger
	}
	return &Builder{
		logger:             logger,
		gitExecutor:        dependencies.GitExecutor,
		reporter:           dependencies.Reporter,
		clock:              dependencies.Clock,
		objectStoreFactory: objectStoreFactory,
		ledgerFactory:      ledgerFactory,
	}
}

// Build assembles the named workflow of file.
func (builder *Builder) Build(executionContext context.Context, file File, workflowName string) (*Assembly, error) {
	definition, selectionError := file.Workflow(workflowName)
	if selectionError != nil {
		return nil, selectionError
	}

	configuration := squash.WorkflowConfig{
		ConfigName:           strings.TrimSpace(file.Name),
		WorkflowName:         strings.TrimSpace(definition.Name),
		LastRevision:         strings.TrimSpace(definition.LastRevision),
		IncludeChangeHistory: definition.IncludeChanges,
	}

	origin, originError := builder.buildOrigin(file, definition.Origin)
	if originError != nil {
		return nil, fmt.Errorf(buildOriginErrorTemplate, originError)
	}

	pipeline, pipelineError := transforms.BuildPipeline(builder.logger, definition.Transformations)
	if pipelineError != nil {
		return nil, fmt.Errorf(buildTransformationsErrorTemplate, pipelineError)
	}

	assembly := &Assembly{Origin: origin}

	destination, destinationError := builder.buildDestination(executionContext, file, definition.Destination)
	if destinationError != nil {
		return nil, fmt.Errorf(buildDestinationErrorTemplate, destinationError)
	}

	if file.Ledger != nil {
		recorder, ledgerError := builder.ledgerFactory(executionContext, ledger.Config{
			URL:         file.Ledger.URL,
			PingTimeout: file.Ledger.PingTimeout,
		}.WithDefaults())
		if ledgerError != nil {
			return nil, fmt.Errorf(buildLedgerErrorTemplate, ledgerError)
		}
		assembly.closers = append(assembly.closers, recorder)
		assembly.History = recorder

		recordingDestination, recordingError := ledger.NewRecordingDestination(configuration.ConfigName, configuration.WorkflowName, ledger.RecordingDependencies{
			Logger:      builder.logger,
			Destination: destination,
			Recorder:    recorder,
		})
		if recordingError != nil {
			_ = assembly.Close()
			return nil, fmt.Errorf(buildLedgerErrorTemplate, recordingError)
		}
		destination = recordingDestination
	}
	assembly.Destination = destination

	workflow, workflowError := squash.NewWorkflow(configuration, squash.WorkflowDependencies{
		Logger:      builder.logger,
		Origin:      origin,
		Destination: destination,
		Pipeline:    pipeline,
		Reporter:    builder.reporter,
		Clock:       builder.clock,
	})
	if workflowError != nil {
		_ = assembly.Close()
		return nil, fmt.Errorf(buildWorkflowErrorTemplate, workflowError)
	}
	assembly.Workflow = workflow

	builder.logger.Debug(
		assembledLogMessageConstant,
		zap.String(logFieldWorkflowConstant, configuration.WorkflowName),
		zap.String(logFieldOriginTypeConstant, definition.Origin.Type),
		zap.String(logFieldDestinationTypeConstant, definition.Destination.Type),
		zap.Strings(logFieldTransformationsConstant, pipeline.Names()),
		zap.Bool(logFieldLedgerConstant, file.Ledger != nil),
	)
	return assembly, nil
}

func (builder *Builder) buildOrigin(file File, definition OriginDefinition) (squash.Origin, error) {
	switch strings.ToLower(strings.TrimSpace(definition.Type)) {
	case OriginTypeGit:
		if builder.gitExecutor == nil {
			return nil, ErrGitExecutorMissing
		}
		return gitorigin.NewOrigin(builder.logger, builder.gitExecutor, gitorigin.Configuration{
			RepositoryPath:   file.resolvePath(definition.URL),
			DefaultReference: definition.Ref,
		})
	case OriginTypeFolder:
		return folderorigin.NewOrigin(builder.logger, folderorigin.Configuration{Path: file.resolvePath(definition.URL)})
	default:
		return nil, fmt.Errorf(typeErrorTemplateConstant, ErrUnknownOriginType, definition.Type)
	}
}

func (builder *Builder) buildDestination(executionContext context.Context, file File, definition DestinationDefinition) (squash.Destination, error) {
	switch strings.ToLower(strings.TrimSpace(definition.Type)) {
	case DestinationTypeGit:
		if builder.gitExecutor == nil {
			return nil, ErrGitExecutorMissing
		}
		return gitdestination.NewDestination(builder.logger, builder.gitExecutor, gitdestination.Configuration{
			RepositoryPath: file.resolvePath(definition.URL),
			Branch:         definition.Branch,
			Remote:         definition.Remote,
			Push:           definition.Push,
			Author:         gitdestination.Author{Name: definition.AuthorName, Email: definition.AuthorEmail},
		})
	case DestinationTypeFolder:
		return folderdestination.NewDestination(builder.logger, folderdestination.Configuration{Path: file.resolvePath(definition.Path)})
	case DestinationTypeObject:
		store, storeError := builder.objectStoreFactory(executionContext, objectdestination.StoreConfiguration{
			Endpoint:     definition.Endpoint,
			Bucket:       definition.Bucket,
			Region:       definition.Region,
			AccessKey:    definition.AccessKey,
			SecretKey:    definition.SecretKey,
			UseSSL:       definition.UseSSL,
			CreateBucket: definition.CreateBucket,
		})
		if storeError != nil {
			return nil, storeError
		}
		return objectdestination.NewDestination(builder.logger, store, objectdestination.Configuration{Prefix: definition.Prefix})
	default:
		return nil, fmt.Errorf(typeErrorTemplateConstant, ErrUnknownDestinationType, definition.Type)
	}
}

func openMinioStore(executionContext context.Context, configuration objectdestination.StoreConfiguration) (objectdestination.ObjectStore, error) {
	return objectdestination.NewMinioStore(executionContext, configuration)
}

type postgresLedger struct {
	*ledger.Store
	database io.Closer
}

func (recorder postgresLedger) Close() error {
	return recorder.database.Close()
}

func openPostgresLedger(executionContext context.Context, config ledger.Config) (LedgerRecorder, error) {
	database, openError := ledger.Open(executionContext, config)
	if openError != nil {
		return nil, openError
	}
	store, storeError := ledger.NewStore(database)
	if storeError != nil {
		_ = database.Close()
		return nil, storeError
	}
	if schemaError := store.EnsureSchema(executionContext); schemaError != nil {
		_ = database.Close()
		return nil, schemaError
	}
	return postgresLedger{Store: store, database: database}, nil
}

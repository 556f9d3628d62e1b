package migrate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/execshell"
	"github.com/temirov/reposquash/internal/migration"
	"github.com/temirov/reposquash/internal/squash"
	"github.com/temirov/reposquash/internal/ui"
	"github.com/temirov/reposquash/internal/utils"
)

const (
	migrationFileFlagNameConstant        = "file"
	migrationFileFlagShorthandConstant   = "f"
	migrationFileFlagUsageConstant       = "Path to the migration file"
	loadMigrationErrorTemplateConstant   = "unable to load migration file: %w"
	buildWorkflowErrorTemplateConstant   = "unable to assemble workflow: %w"
	gitExecutorErrorTemplateConstant     = "unable to construct git executor: %w"
	closeAssemblyWarningMessageConstant  = "Unable to release migration backends"
	logFieldMigrationFileConstant        = "migration_file"
	logFieldWorkflowArgumentConstant     = "workflow"
	workflowArgumentIndexConstant        = 0
	referenceArgumentIndexConstant       = 1
	loadingMigrationDebugMessageConstant = "Loading migration file"
)

// LoggerProvider yields the logger configured by the root command.
type LoggerProvider func() *zap.Logger

// Dependencies overrides the collaborators the commands construct by default.
type Dependencies struct {
	GitExecutor        execshell.GitExecutor
	ObjectStoreFactory migration.ObjectStoreFactory
	LedgerFactory      migration.LedgerFactory
	Clock              squash.Clock
}

type commandSettings struct {
	loggerProvider               LoggerProvider
	humanReadableLoggingProvider func() bool
	configurationProvider        func() CommandConfiguration
	dependencies                 Dependencies
}

func (settings commandSettings) logger() *zap.Logger {
	if settings.loggerProvider == nil {
		return zap.NewNop()
	}
	logger := settings.loggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (settings commandSettings) configuration() CommandConfiguration {
	if settings.configurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return settings.configurationProvider().Sanitize()
}

func (settings commandSettings) humanReadableLogging() bool {
	return settings.humanReadableLoggingProvider != nil && settings.humanReadableLoggingProvider()
}

func (settings commandSettings) gitExecutor(logger *zap.Logger) (execshell.GitExecutor, error) {
	if settings.dependencies.GitExecutor != nil {
		return settings.dependencies.GitExecutor, nil
	}
	var observers []execshell.CommandEventObserver
	if settings.humanReadableLogging() {
		observers = append(observers, ui.NewConsoleCommandEventLogger(logger))
	}
	executor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), observers...)
	if executorError != nil {
		return nil, fmt.Errorf(gitExecutorErrorTemplateConstant, executorError)
	}
	return executor, nil
}

// assemble loads the migration file and builds the workflow selected by the first positional argument.
func (settings commandSettings) assemble(command *cobra.Command, arguments []string) (*migration.Assembly, *zap.Logger, error) {
	logger := settings.logger()
	migrationFilePath := settings.migrationFilePath(command)
	workflowName := argumentAt(arguments, workflowArgumentIndexConstant)

	logger.Debug(
		loadingMigrationDebugMessageConstant,
		zap.String(logFieldMigrationFileConstant, migrationFilePath),
		zap.String(logFieldWorkflowArgumentConstant, workflowName),
	)

	migrationFile, loadError := migration.LoadFile(migrationFilePath)
	if loadError != nil {
		return nil, logger, fmt.Errorf(loadMigrationErrorTemplateConstant, loadError)
	}

	gitExecutor, executorError := settings.gitExecutor(logger)
	if executorError != nil {
		return nil, logger, executorError
	}

	builder := migration.NewBuilder(migration.BuilderDependencies{
		Logger:             logger,
		GitExecutor:        gitExecutor,
		Reporter:           ui.NewConsoleReporter(utils.NewFlushingWriter(command.OutOrStdout()), logger),
		Clock:              settings.dependencies.Clock,
		ObjectStoreFactory: settings.dependencies.ObjectStoreFactory,
		LedgerFactory:      settings.dependencies.LedgerFactory,
	})

	assembly, buildError := builder.Build(commandContext(command), migrationFile, workflowName)
	if buildError != nil {
		return nil, logger, fmt.Errorf(buildWorkflowErrorTemplateConstant, buildError)
	}
	return assembly, logger, nil
}

// migrationFilePath prefers the --file flag, then the path resolved by the root command, then configuration.
func (settings commandSettings) migrationFilePath(command *cobra.Command) string {
	if command != nil && command.Flags().Changed(migrationFileFlagNameConstant) {
		flagValue, _ := command.Flags().GetString(migrationFileFlagNameConstant)
		if trimmed := strings.TrimSpace(flagValue); len(trimmed) > 0 {
			return utils.NewHomeExpander(nil).Expand(trimmed)
		}
	}
	if contextPath, available := utils.NewCommandContextAccessor().MigrationFilePath(commandContext(command)); available && len(strings.TrimSpace(contextPath)) > 0 {
		return strings.TrimSpace(contextPath)
	}
	return utils.NewHomeExpander(nil).Expand(settings.configuration().MigrationFile)
}

func closeAssembly(logger *zap.Logger, assembly *migration.Assembly) {
	if closeError := assembly.Close(); closeError != nil {
		logger.Warn(closeAssemblyWarningMessageConstant, zap.Error(closeError))
	}
}

func addMigrationFileFlag(command *cobra.Command) {
	command.Flags().StringP(migrationFileFlagNameConstant, migrationFileFlagShorthandConstant, "", migrationFileFlagUsageConstant)
}

func commandContext(command *cobra.Command) context.Context {
	if command == nil || command.Context() == nil {
		return context.Background()
	}
	return command.Context()
}

func argumentAt(arguments []string, index int) string {
	if index >= len(arguments) {
		return ""
	}
	return strings.TrimSpace(arguments[index])
}

func prepareWorkDirectory(configuredDirectory string, keep bool) (string, func() error, error) {
	noCleanup := func() error { return nil }
	if len(configuredDirectory) > 0 {
		expanded := utils.NewHomeExpander(nil).Expand(configuredDirectory)
		if mkdirError := os.MkdirAll(expanded, workDirectoryPermissionsConstant); mkdirError != nil {
			return "", noCleanup, fmt.Errorf(workDirectoryErrorTemplateConstant, expanded, mkdirError)
		}
		return expanded, noCleanup, nil
	}

	temporaryDirectory, temporaryError := os.MkdirTemp("", temporaryWorkDirectoryPatternConstant)
	if temporaryError != nil {
		return "", noCleanup, fmt.Errorf(workDirectoryErrorTemplateConstant, temporaryWorkDirectoryPatternConstant, temporaryError)
	}
	if keep {
		return temporaryDirectory, noCleanup, nil
	}
	return temporaryDirectory, func() error { return os.RemoveAll(temporaryDirectory) }, nil
}

package migrate

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/squash"
)

const (
	migrateCommandUseConstant              = "migrate [workflow] [reference]"
	migrateCommandShortDescriptionConstant = "Squash the current origin state into the destination"
	migrateCommandLongDescriptionConstant  = "migrate resolves the origin reference (HEAD when omitted), applies the workflow transformations, and writes the result to the destination as a single change."
	workDirectoryFlagNameConstant          = "work-directory"
	workDirectoryFlagUsageConstant         = "Directory used to stage the migrated tree (defaults to a temporary directory)"
	keepWorkDirectoryFlagNameConstant      = "keep-work-directory"
	keepWorkDirectoryFlagUsageConstant     = "Keep the temporary staging directory after the run"
	workDirectoryPermissionsConstant       = 0o755
	temporaryWorkDirectoryPatternConstant  = "reposquash-work-*"
	workDirectoryErrorTemplateConstant     = "unable to prepare work directory %s: %w"
	migrationFailedErrorTemplateConstant   = "migration failed: %w"
	completedSummaryTemplateConstant       = "Migrated %s (%s) to destination\n"
	cleanupWarningMessageConstant          = "Unable to remove work directory"
	logFieldWorkDirectoryConstant          = "work_directory"
	maximumMigrateArgumentsConstant        = 2
)

// MigrateCommandBuilder assembles the migrate command.
type MigrateCommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	Dependencies                 Dependencies
}

// Build constructs the migrate command.
func (builder *MigrateCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   migrateCommandUseConstant,
		Short: migrateCommandShortDescriptionConstant,
		Long:  migrateCommandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(maximumMigrateArgumentsConstant),
		RunE:  builder.run,
	}

	addMigrationFileFlag(command)
	command.Flags().String(workDirectoryFlagNameConstant, "", workDirectoryFlagUsageConstant)
	command.Flags().Bool(keepWorkDirectoryFlagNameConstant, false, keepWorkDirectoryFlagUsageConstant)

	return command, nil
}

func (builder *MigrateCommandBuilder) settings() commandSettings {
	return commandSettings{
		loggerProvider:               builder.LoggerProvider,
		humanReadableLoggingProvider: builder.HumanReadableLoggingProvider,
		configurationProvider:        builder.ConfigurationProvider,
		dependencies:                 builder.Dependencies,
	}
}

func (builder *MigrateCommandBuilder) run(command *cobra.Command, arguments []string) error {
	settings := builder.settings()
	configuration := settings.configuration()

	workDirectory := configuration.WorkDirectory
	if command.Flags().Changed(workDirectoryFlagNameConstant) {
		workDirectory, _ = command.Flags().GetString(workDirectoryFlagNameConstant)
		workDirectory = strings.TrimSpace(workDirectory)
	}
	keepWorkDirectory := configuration.KeepWorkDirectory
	if command.Flags().Changed(keepWorkDirectoryFlagNameConstant) {
		keepWorkDirectory, _ = command.Flags().GetBool(keepWorkDirectoryFlagNameConstant)
	}

	assembly, logger, assemblyError := settings.assemble(command, arguments)
	if assemblyError != nil {
		return assemblyError
	}
	defer closeAssembly(logger, assembly)

	stagingDirectory, cleanup, prepareError := prepareWorkDirectory(workDirectory, keepWorkDirectory)
	if prepareError != nil {
		return prepareError
	}
	defer func() {
		if cleanupError := cleanup(); cleanupError != nil {
			logger.Warn(cleanupWarningMessageConstant, zap.String(logFieldWorkDirectoryConstant, stagingDirectory), zap.Error(cleanupError))
		}
	}()

	sourceReference := squash.DefaultReference()
	if referenceName := argumentAt(arguments, referenceArgumentIndexConstant); len(referenceName) > 0 {
		sourceReference = squash.ExplicitReference(referenceName)
	}

	if runError := assembly.Workflow.Run(commandContext(command), stagingDirectory, sourceReference); runError != nil {
		return fmt.Errorf(migrationFailedErrorTemplateConstant, runError)
	}

	workflowConfiguration := assembly.Workflow.Configuration()
	fmt.Fprintf(command.OutOrStdout(), completedSummaryTemplateConstant, workflowConfiguration.WorkflowName, sourceReference.String())
	return nil
}

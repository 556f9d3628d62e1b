package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/temirov/reposquash/internal/ledger"
	"github.com/temirov/reposquash/internal/squash"
)

const (
	changesCommandUseConstant              = "changes [workflow]"
	changesCommandShortDescriptionConstant = "List origin changes the next migration would include"
	changesCommandLongDescriptionConstant  = "changes resolves the origin reference and prints every change since the previously migrated reference. When the migration file configures a ledger, the recorded migrations of the workflow follow."
	referenceFlagNameConstant              = "reference"
	referenceFlagUsageConstant             = "Origin reference to compare against (defaults to the origin default)"
	resolveReferenceErrorTemplateConstant  = "unable to resolve origin reference: %w"
	listChangesErrorTemplateConstant       = "unable to list changes: %w"
	noPreviousMigrationTemplateConstant    = "No previous migration recorded for workflow %s\n"
	noChangesTemplateConstant              = "No changes since the previous migration of workflow %s\n"
	changesHeaderIdentifierConstant        = "ID"
	changesHeaderAuthorConstant            = "Author"
	changesHeaderSummaryConstant           = "Summary"
	shortIdentifierLengthConstant          = 12
	summaryLengthLimitConstant             = 72
	truncationSuffixConstant               = "..."
	maximumChangesArgumentsConstant        = 1
	historyLimitFlagNameConstant           = "history-limit"
	historyLimitFlagUsageConstant          = "Number of ledger entries to print when a ledger is configured (0 disables)"
	defaultHistoryLimitConstant            = 10
	listHistoryErrorTemplateConstant       = "unable to list ledger history: %w"
	historyTitleTemplateConstant           = "\nLedger history for workflow %s\n"
	noHistoryTemplateConstant              = "No ledger entries recorded for workflow %s\n"
	historyHeaderRecordedConstant          = "Recorded"
	historyHeaderReferenceConstant         = "Reference"
	historyHeaderLabelConstant             = "Label"
	historyHeaderEntryConstant             = "Entry"
	historyUnavailableTemplateConstant     = "Change history is unavailable for workflow %s: %v\n"
)

// ChangesCommandBuilder assembles the changes command.
type ChangesCommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	Dependencies                 Dependencies
}

// Build constructs the changes command.
func (builder *ChangesCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   changesCommandUseConstant,
		Short: changesCommandShortDescriptionConstant,
		Long:  changesCommandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(maximumChangesArgumentsConstant),
		RunE:  builder.run,
	}

	addMigrationFileFlag(command)
	command.Flags().String(referenceFlagNameConstant, "", referenceFlagUsageConstant)
	command.Flags().Int(historyLimitFlagNameConstant, defaultHistoryLimitConstant, historyLimitFlagUsageConstant)

	return command, nil
}

func (builder *ChangesCommandBuilder) run(command *cobra.Command, arguments []string) error {
	settings := commandSettings{
		loggerProvider:               builder.LoggerProvider,
		humanReadableLoggingProvider: builder.HumanReadableLoggingProvider,
		configurationProvider:        builder.ConfigurationProvider,
		dependencies:                 builder.Dependencies,
	}

	assembly, logger, assemblyError := settings.assemble(command, arguments)
	if assemblyError != nil {
		return assemblyError
	}
	defer closeAssembly(logger, assembly)

	sourceReference := squash.DefaultReference()
	if referenceName, _ := command.Flags().GetString(referenceFlagNameConstant); len(strings.TrimSpace(referenceName)) > 0 {
		sourceReference = squash.ExplicitReference(strings.TrimSpace(referenceName))
	}

	executionContext := commandContext(command)
	resolvedReference, resolveError := assembly.Origin.Resolve(executionContext, sourceReference)
	if resolveError != nil {
		return fmt.Errorf(resolveReferenceErrorTemplateConstant, resolveError)
	}

	workflowName := assembly.Workflow.Configuration().WorkflowName
	changes, previousFound, changesError := assembly.Workflow.IncludedChanges(executionContext, resolvedReference)
	output := command.OutOrStdout()
	var unavailable squash.HistoryUnavailableError
	switch {
	case errors.As(changesError, &unavailable):
		fmt.Fprintf(output, historyUnavailableTemplateConstant, workflowName, unavailable.Cause)
	case changesError != nil:
		return fmt.Errorf(listChangesErrorTemplateConstant, changesError)
	default:
		renderChanges(output, workflowName, changes, previousFound)
	}

	historyLimit, _ := command.Flags().GetInt(historyLimitFlagNameConstant)
	if assembly.History == nil || historyLimit <= 0 {
		return nil
	}
	return renderHistory(executionContext, output, assembly.History, assembly.Workflow.Configuration(), historyLimit)
}

func renderChanges(output io.Writer, workflowName string, changes []squash.Change, previousFound bool) {
	if !previousFound {
		fmt.Fprintf(output, noPreviousMigrationTemplateConstant, workflowName)
		return
	}
	if len(changes) == 0 {
		fmt.Fprintf(output, noChangesTemplateConstant, workflowName)
		return
	}

	table := tablewriter.NewWriter(output)
	table.Header(changesHeaderIdentifierConstant, changesHeaderAuthorConstant, changesHeaderSummaryConstant)
	for _, change := range changes {
		table.Append(
			shortenIdentifier(change.ReferenceIdentifier),
			change.Author,
			truncateSummary(change.FirstLineMessage()),
		)
	}
	table.Render()
}

func renderHistory(executionContext context.Context, output io.Writer, history ledger.History, configuration squash.WorkflowConfig, limit int) error {
	entries, listError := history.List(executionContext, configuration.ConfigName, configuration.WorkflowName, limit)
	if listError != nil {
		return fmt.Errorf(listHistoryErrorTemplateConstant, listError)
	}

	fmt.Fprintf(output, historyTitleTemplateConstant, configuration.WorkflowName)
	if len(entries) == 0 {
		fmt.Fprintf(output, noHistoryTemplateConstant, configuration.WorkflowName)
		return nil
	}

	table := tablewriter.NewWriter(output)
	table.Header(historyHeaderRecordedConstant, historyHeaderReferenceConstant, historyHeaderLabelConstant, historyHeaderEntryConstant)
	for _, entry := range entries {
		table.Append(
			entry.RecordedAt.UTC().Format(time.RFC3339),
			shortenIdentifier(entry.Reference),
			entry.Label,
			entry.Identifier,
		)
	}
	table.Render()
	return nil
}

func shortenIdentifier(identifier string) string {
	if len(identifier) > shortIdentifierLengthConstant {
		return identifier[:shortIdentifierLengthConstant]
	}
	return identifier
}

func truncateSummary(summary string) string {
	if len(summary) > summaryLengthLimitConstant {
		return summary[:summaryLengthLimitConstant-len(truncationSuffixConstant)] + truncationSuffixConstant
	}
	return summary
}

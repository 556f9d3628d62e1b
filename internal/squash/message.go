package squash

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	// AttributionLineConstant is the fixed attribution line included in every squash commit message.
	AttributionLineConstant = "This change was generated by reposquash."
	// ChangeListHeaderConstant introduces the digest of included changes.
	ChangeListHeaderConstant = "List of included changes:"
	// ChangeListUnavailableConstant replaces the digest when change history cannot be computed.
	ChangeListUnavailableConstant = "(List of included changes could not be computed)"

	commitMessageTemplateConstant     = "Imports '%s'.\n\n%s\n%s\n"
	changeLineTemplateConstant        = "  - %s %s by %s\n"
	lineTerminatorConstant            = "\n"
	historyUnavailableWarningMessage  = "Previous reference couldn't be resolved"
	previousReferenceLookupOperation  = "previous reference lookup"
	previousReferenceResolveOperation = "previous reference resolve"
	changeListOperation               = "change list"
)

// BuildMessage renders the commit message for reference, including the change digest when enabled.
func (workflow *Workflow) BuildMessage(executionContext context.Context, reference Reference) string {
	return workflow.buildMessage(executionContext, workflow.logger, reference)
}

// PreviousReference returns the reference the change digest starts from: the configured last revision
// when set, otherwise the destination's record under the origin label.
func (workflow *Workflow) PreviousReference(executionContext context.Context) (string, bool, error) {
	if configuredRevision := strings.TrimSpace(workflow.configuration.LastRevision); len(configuredRevision) > 0 {
		return configuredRevision, true, nil
	}

	previousReference, found, lookupError := workflow.destination.PreviousReference(executionContext, workflow.origin.LabelName())
	if lookupError != nil {
		return "", false, lookupError
	}
	trimmedPrevious := strings.TrimSpace(previousReference)
	if !found || len(trimmedPrevious) == 0 {
		return "", false, nil
	}
	return trimmedPrevious, true, nil
}

// IncludedChanges lists origin changes between the previous migration and reference.
// A false result without error means no previous reference is known.
func (workflow *Workflow) IncludedChanges(executionContext context.Context, reference Reference) ([]Change, bool, error) {
	previousReference, found, lookupError := workflow.PreviousReference(executionContext)
	if lookupError != nil {
		return nil, false, HistoryUnavailableError{Cause: DestinationError{Operation: previousReferenceLookupOperation, Cause: lookupError}}
	}
	if !found {
		return nil, false, nil
	}

	resolvedPrevious, resolveError := workflow.origin.Resolve(executionContext, ExplicitReference(previousReference))
	if resolveError != nil {
		return nil, false, HistoryUnavailableError{Cause: ensureOriginError(previousReferenceResolveOperation, resolveError)}
	}

	changes, changesError := workflow.origin.ChangesBetween(executionContext, resolvedPrevious, reference)
	if changesError != nil {
		return nil, false, HistoryUnavailableError{Cause: ensureOriginError(changeListOperation, changesError)}
	}

	return changes, true, nil
}

func (workflow *Workflow) buildMessage(executionContext context.Context, logger *zap.Logger, reference Reference) string {
	return fmt.Sprintf(
		commitMessageTemplateConstant,
		workflow.configuration.ConfigName,
		AttributionLineConstant,
		workflow.buildChangeDigest(executionContext, logger, reference),
	)
}

func (workflow *Workflow) buildChangeDigest(executionContext context.Context, logger *zap.Logger, reference Reference) string {
	if !workflow.configuration.IncludeChangeHistory {
		return ""
	}

	changes, found, historyError := workflow.IncludedChanges(executionContext, reference)
	if historyError != nil {
		logger.Warn(
			historyUnavailableWarningMessage,
			zap.String(logFieldReferenceConstant, reference.String()),
			zap.String(logFieldOriginLabelConstant, workflow.origin.LabelName()),
			zap.Error(historyError),
		)
		workflow.reporter.Warn(historyError.Error())
		return ChangeListUnavailableConstant + lineTerminatorConstant
	}
	if !found {
		return ""
	}

	logger.Debug(
		ChangeListHeaderConstant,
		zap.String(logFieldReferenceConstant, reference.String()),
		zap.Int(logFieldIncludedChangeCountConstant, len(changes)),
	)

	var digestBuilder strings.Builder
	digestBuilder.WriteString(ChangeListHeaderConstant)
	digestBuilder.WriteString(lineTerminatorConstant)
	for _, change := range changes {
		digestBuilder.WriteString(fmt.Sprintf(changeLineTemplateConstant, change.ReferenceIdentifier, change.FirstLineMessage(), change.Author))
	}
	return digestBuilder.String()
}

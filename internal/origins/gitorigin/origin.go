package gitorigin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/execshell"
	"github.com/temirov/reposquash/internal/fsutil"
	"github.com/temirov/reposquash/internal/squash"
)

const (
	// LabelNameConstant is the label git destinations use to record migrated git origin revisions.
	LabelNameConstant = "GitOrigin-RevId"
	// DefaultReferenceConstant is resolved when no reference is requested and none is configured.
	DefaultReferenceConstant = "HEAD"

	gitRevParseSubcommandConstant      = "rev-parse"
	gitVerifyFlagConstant              = "--verify"
	gitQuietFlagConstant               = "--quiet"
	gitCommitPeelSuffixConstant        = "^{commit}"
	gitShowSubcommandConstant          = "show"
	gitNoPatchFlagConstant             = "-s"
	gitCommitTimeFormatFlagConstant    = "--format=%ct"
	gitLogSubcommandConstant           = "log"
	gitReverseFlagConstant             = "--reverse"
	gitChangeFormatFlagConstant        = "--format=%H%x1f%an <%ae>%x1f%B%x1e"
	gitRangeSeparatorConstant          = ".."
	gitReadTreeSubcommandConstant      = "read-tree"
	gitCheckoutIndexSubcommandConstant = "checkout-index"
	gitAllFlagConstant                 = "--all"
	gitForceFlagConstant               = "--force"
	gitPrefixFlagTemplateConstant      = "--prefix=%s%c"
	gitIndexFileEnvironmentConstant    = "GIT_INDEX_FILE"
	changeRecordSeparatorConstant      = "\x1e"
	changeFieldSeparatorConstant       = "\x1f"
	changeFieldCountConstant           = 3
	temporaryIndexPatternConstant      = "reposquash-index-*"
	temporaryIndexFileNameConstant     = "index"

	resolveOperationConstant         = "resolve"
	timestampOperationConstant       = "read timestamp"
	changesOperationConstant         = "list changes"
	exportTreeOperationConstant      = "export tree"
	clearDirectoryOperationConstant  = "clear working directory"
	prepareIndexOperationConstant    = "prepare index"
	repositoryPathMissingMessage     = "git origin requires a repository path"
	executorMissingMessage           = "git origin requires a git executor"
	emptyRevisionTemplateConstant    = "reference %s did not resolve to a commit"
	invalidTimestampTemplateConstant = "invalid commit timestamp %q: %w"
	malformedChangeTemplateConstant  = "malformed change record %q"
	foreignReferenceTemplateConstant = "reference %s does not belong to a git origin"
	logFieldRepositoryConstant       = "repository"
	logFieldReferenceConstant        = "reference"
	logFieldRevisionConstant         = "revision"
	logFieldChangeCountConstant      = "change_count"
	resolvedLogMessageConstant       = "Resolved git origin reference"
	changesLogMessageConstant        = "Listed git origin changes"
)

var (
	// ErrRepositoryPathMissing indicates the origin was configured without a repository path.
	ErrRepositoryPathMissing = errors.New(repositoryPathMissingMessage)
	// ErrGitExecutorMissing indicates the origin was constructed without a git executor.
	ErrGitExecutorMissing = errors.New(executorMissingMessage)
)

// Configuration describes a git origin.
type Configuration struct {
	RepositoryPath   string
	DefaultReference string
}

// Origin implements squash.Origin for a local git repository.
type Origin struct {
	logger           *zap.Logger
	executor         execshell.GitExecutor
	repositoryPath   string
	defaultReference string
}

// NewOrigin constructs a git origin.
func NewOrigin(logger *zap.Logger, executor execshell.GitExecutor, configuration Configuration) (*Origin, error) {
	repositoryPath := strings.TrimSpace(configuration.RepositoryPath)
	if len(repositoryPath) == 0 {
		return nil, ErrRepositoryPathMissing
	}
	if executor == nil {
		return nil, ErrGitExecutorMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	defaultReference := strings.TrimSpace(configuration.DefaultReference)
	if len(defaultReference) == 0 {
		defaultReference = DefaultReferenceConstant
	}

	return &Origin{
		logger:           logger,
		executor:         executor,
		repositoryPath:   repositoryPath,
		defaultReference: defaultReference,
	}, nil
}

// LabelName implements squash.Origin.
func (origin *Origin) LabelName() string {
	return LabelNameConstant
}

// Resolve implements squash.Origin. Without a requested reference the configured default reference is used.
func (origin *Origin) Resolve(executionContext context.Context, requested squash.OptionalReference) (squash.Reference, error) {
	referenceName, present := requested.Name()
	if !present {
		referenceName = origin.defaultReference
	}

	revisionResult, revisionError := origin.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, referenceName + gitCommitPeelSuffixConstant},
		WorkingDirectory: origin.repositoryPath,
	})
	if revisionError != nil {
		return nil, squash.OriginError{Operation: resolveOperationConstant, Cause: revisionError}
	}

	revision := strings.TrimSpace(revisionResult.StandardOutput)
	if len(revision) == 0 {
		return nil, squash.OriginError{Operation: resolveOperationConstant, Cause: fmt.Errorf(emptyRevisionTemplateConstant, referenceName)}
	}

	timestamp, timestampError := origin.readCommitTimestamp(executionContext, revision)
	if timestampError != nil {
		return nil, timestampError
	}

	origin.logger.Debug(
		resolvedLogMessageConstant,
		zap.String(logFieldRepositoryConstant, origin.repositoryPath),
		zap.String(logFieldReferenceConstant, referenceName),
		zap.String(logFieldRevisionConstant, revision),
	)

	return &Reference{origin: origin, revision: revision, timestamp: timestamp}, nil
}

// ChangesBetween implements squash.Origin. The range excludes from and includes to, oldest change first.
func (origin *Origin) ChangesBetween(executionContext context.Context, from squash.Reference, to squash.Reference) ([]squash.Change, error) {
	fromReference, fromError := origin.ownReference(from)
	if fromError != nil {
		return nil, fromError
	}
	toReference, toError := origin.ownReference(to)
	if toError != nil {
		return nil, toError
	}

	logResult, logError := origin.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitLogSubcommandConstant, gitReverseFlagConstant, gitChangeFormatFlagConstant, fromReference.revision + gitRangeSeparatorConstant + toReference.revision},
		WorkingDirectory: origin.repositoryPath,
	})
	if logError != nil {
		return nil, squash.OriginError{Operation: changesOperationConstant, Cause: logError}
	}

	changes, parseError := parseChanges(logResult.StandardOutput)
	if parseError != nil {
		return nil, squash.OriginError{Operation: changesOperationConstant, Cause: parseError}
	}

	origin.logger.Debug(
		changesLogMessageConstant,
		zap.String(logFieldRepositoryConstant, origin.repositoryPath),
		zap.Int(logFieldChangeCountConstant, len(changes)),
	)
	return changes, nil
}

func (origin *Origin) ownReference(reference squash.Reference) (*Reference, error) {
	gitReference, isGitReference := reference.(*Reference)
	if !isGitReference || gitReference == nil {
		return nil, squash.OriginError{Operation: changesOperationConstant, Cause: fmt.Errorf(foreignReferenceTemplateConstant, describeReference(reference))}
	}
	return gitReference, nil
}

func (origin *Origin) readCommitTimestamp(executionContext context.Context, revision string) (int64, error) {
	showResult, showError := origin.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitShowSubcommandConstant, gitNoPatchFlagConstant, gitCommitTimeFormatFlagConstant, revision},
		WorkingDirectory: origin.repositoryPath,
	})
	if showError != nil {
		return 0, squash.OriginError{Operation: timestampOperationConstant, Cause: showError}
	}

	trimmedTimestamp := strings.TrimSpace(showResult.StandardOutput)
	timestamp, parseError := strconv.ParseInt(trimmedTimestamp, 10, 64)
	if parseError != nil {
		return 0, squash.OriginError{Operation: timestampOperationConstant, Cause: fmt.Errorf(invalidTimestampTemplateConstant, trimmedTimestamp, parseError)}
	}
	return timestamp, nil
}

// exportTree writes the tree of revision into targetDirectory through a throwaway index so the
// origin repository's own index and work tree stay untouched.
func (origin *Origin) exportTree(executionContext context.Context, revision string, targetDirectory string) error {
	absoluteTarget, absoluteError := filepath.Abs(targetDirectory)
	if absoluteError != nil {
		return squash.FilesystemError{Operation: clearDirectoryOperationConstant, Path: targetDirectory, Cause: absoluteError}
	}

	if clearError := fsutil.EnsureEmptyDirectory(absoluteTarget); clearError != nil {
		return squash.FilesystemError{Operation: clearDirectoryOperationConstant, Path: absoluteTarget, Cause: clearError}
	}

	indexDirectory, indexDirectoryError := os.MkdirTemp("", temporaryIndexPatternConstant)
	if indexDirectoryError != nil {
		return squash.FilesystemError{Operation: prepareIndexOperationConstant, Path: os.TempDir(), Cause: indexDirectoryError}
	}
	defer os.RemoveAll(indexDirectory)

	indexEnvironment := map[string]string{gitIndexFileEnvironmentConstant: filepath.Join(indexDirectory, temporaryIndexFileNameConstant)}

	if _, readTreeError := origin.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitReadTreeSubcommandConstant, revision},
		WorkingDirectory:     origin.repositoryPath,
		EnvironmentVariables: indexEnvironment,
	}); readTreeError != nil {
		return squash.OriginError{Operation: exportTreeOperationConstant, Cause: readTreeError}
	}

	if _, checkoutError := origin.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitCheckoutIndexSubcommandConstant, gitAllFlagConstant, gitForceFlagConstant, fmt.Sprintf(gitPrefixFlagTemplateConstant, absoluteTarget, filepath.Separator)},
		WorkingDirectory:     origin.repositoryPath,
		EnvironmentVariables: indexEnvironment,
	}); checkoutError != nil {
		return squash.OriginError{Operation: exportTreeOperationConstant, Cause: checkoutError}
	}

	return nil
}

func parseChanges(logOutput string) ([]squash.Change, error) {
	changes := []squash.Change{}
	for _, record := range strings.Split(logOutput, changeRecordSeparatorConstant) {
		trimmedRecord := strings.Trim(record, "\n")
		if len(strings.TrimSpace(trimmedRecord)) == 0 {
			continue
		}
		fields := strings.SplitN(trimmedRecord, changeFieldSeparatorConstant, changeFieldCountConstant)
		if len(fields) != changeFieldCountConstant {
			return nil, fmt.Errorf(malformedChangeTemplateConstant, trimmedRecord)
		}
		changes = append(changes, squash.Change{
			ReferenceIdentifier: strings.TrimSpace(fields[0]),
			Author:              strings.TrimSpace(fields[1]),
			Message:             fields[2],
		})
	}
	return changes, nil
}

func describeReference(reference squash.Reference) string {
	if reference == nil {
		return "<nil>"
	}
	return reference.String()
}

// Reference is a resolved git commit.
type Reference struct {
	origin    *Origin
	revision  string
	timestamp int64
}

// Checkout implements squash.Reference by exporting the commit tree into targetDirectory.
func (reference *Reference) Checkout(executionContext context.Context, targetDirectory string) error {
	return reference.origin.exportTree(executionContext, reference.revision, targetDirectory)
}

// Timestamp implements squash.Reference with the commit time.
func (reference *Reference) Timestamp() (int64, bool) {
	return reference.timestamp, true
}

// LabelName implements squash.Reference.
func (reference *Reference) LabelName() string {
	return LabelNameConstant
}

// String returns the full commit hash.
func (reference *Reference) String() string {
	return reference.revision
}

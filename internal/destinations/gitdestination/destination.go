package gitdestination

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/execshell"
	"github.com/temirov/reposquash/internal/fsutil"
	"github.com/temirov/reposquash/internal/squash"
)

const (
	// DefaultBranchConstant is pushed to when no branch is configured.
	DefaultBranchConstant = "main"
	// DefaultRemoteConstant is the remote pushed to when none is configured.
	DefaultRemoteConstant = "origin"

	repositoryPermissionsConstant    = os.FileMode(0o755)
	gitDirectoryNameConstant         = ".git"
	gitInitSubcommandConstant        = "init"
	gitQuietFlagConstant             = "--quiet"
	gitAddSubcommandConstant         = "add"
	gitAllFlagConstant               = "--all"
	gitStatusSubcommandConstant      = "status"
	gitPorcelainFlagConstant         = "--porcelain"
	gitCommitSubcommandConstant      = "commit"
	gitMessageFromStdinFlagConstant  = "--file=-"
	gitAuthorFlagTemplateConstant    = "--author=%s <%s>"
	gitPushSubcommandConstant        = "push"
	gitPushRefspecTemplateConstant   = "HEAD:%s"
	gitRevParseSubcommandConstant    = "rev-parse"
	gitVerifyFlagConstant            = "--verify"
	gitHeadReferenceConstant         = "HEAD"
	gitLogSubcommandConstant         = "log"
	gitSingleCommitFlagConstant      = "-1"
	gitMessageFormatFlagConstant     = "--format=%B"
	gitGrepFlagTemplateConstant      = "--grep=^%s: "
	gitAuthorDateEnvironment         = "GIT_AUTHOR_DATE"
	gitCommitterDateEnvironment      = "GIT_COMMITTER_DATE"
	gitAuthorNameEnvironment         = "GIT_AUTHOR_NAME"
	gitAuthorEmailEnvironment        = "GIT_AUTHOR_EMAIL"
	gitCommitterNameEnvironment      = "GIT_COMMITTER_NAME"
	gitCommitterEmailEnvironment     = "GIT_COMMITTER_EMAIL"
	gitDateTemplateConstant          = "%d +0000"
	labelLineTemplateConstant        = "%s: %s\n"
	labelPrefixTemplateConstant      = "%s: "
	lineSeparatorConstant            = "\n"
	initializeOperationConstant      = "initialize repository"
	replaceContentOperationConstant  = "replace content"
	stageOperationConstant           = "stage content"
	inspectOperationConstant         = "inspect staged content"
	commitOperationConstant          = "commit"
	pushOperationConstant            = "push"
	previousReferenceOperation       = "read previous reference"
	repositoryPathMissingMessage     = "git destination requires a repository path"
	executorMissingMessage           = "git destination requires a git executor"
	noChangesMessageConstant         = "migrated content matches the destination; nothing to commit"
	logFieldRepositoryConstant       = "repository"
	logFieldReferenceConstant        = "reference"
	logFieldBranchConstant           = "branch"
	logFieldRemoteConstant           = "remote"
	logFieldLabelConstant            = "label"
	committedLogMessageConstant      = "Committed squashed migration"
	pushedLogMessageConstant         = "Pushed squashed migration"
	previousReferenceLogMessage      = "Found previous migration label"
	missingPreviousReferenceLogEntry = "No previous migration label found"
	noChangesLogMessageConstant      = "Destination already holds the migrated content"
)

var (
	// ErrRepositoryPathMissing indicates the destination was configured without a repository path.
	ErrRepositoryPathMissing = errors.New(repositoryPathMissingMessage)
	// ErrGitExecutorMissing indicates the destination was constructed without a git executor.
	ErrGitExecutorMissing = errors.New(executorMissingMessage)
	// ErrNoChanges indicates the migrated content leaves the destination repository unchanged.
	ErrNoChanges = errors.New(noChangesMessageConstant)
)

// Author identifies the commit author. A zero value leaves authorship to the git configuration.
type Author struct {
	Name  string
	Email string
}

// Configuration describes a git destination.
type Configuration struct {
	RepositoryPath string
	Branch         string
	Remote         string
	Push           bool
	Author         Author
}

// Destination implements squash.Destination over a local git repository.
type Destination struct {
	logger        *zap.Logger
	executor      execshell.GitExecutor
	configuration Configuration
}

// NewDestination constructs a git destination.
func NewDestination(logger *zap.Logger, executor execshell.GitExecutor, configuration Configuration) (*Destination, error) {
	configuration.RepositoryPath = strings.TrimSpace(configuration.RepositoryPath)
	if len(configuration.RepositoryPath) == 0 {
		return nil, ErrRepositoryPathMissing
	}
	if executor == nil {
		return nil, ErrGitExecutorMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	configuration.Branch = strings.TrimSpace(configuration.Branch)
	if len(configuration.Branch) == 0 {
		configuration.Branch = DefaultBranchConstant
	}
	configuration.Remote = strings.TrimSpace(configuration.Remote)
	if len(configuration.Remote) == 0 {
		configuration.Remote = DefaultRemoteConstant
	}
	configuration.Author.Name = strings.TrimSpace(configuration.Author.Name)
	configuration.Author.Email = strings.TrimSpace(configuration.Author.Email)

	return &Destination{logger: logger, executor: executor, configuration: configuration}, nil
}

// Process implements squash.Destination. The repository content is replaced by directory and committed once
// with the reference recorded as a trailer under the reference label. Content identical to the current
// destination state fails with ErrNoChanges.
func (destination *Destination) Process(executionContext context.Context, directory string, reference squash.Reference, timestamp int64, message string) error {
	repositoryPath := destination.configuration.RepositoryPath

	if initializeError := destination.ensureRepository(executionContext); initializeError != nil {
		return initializeError
	}

	if clearError := fsutil.EnsureEmptyDirectory(repositoryPath, gitDirectoryNameConstant); clearError != nil {
		return squash.DestinationError{Operation: replaceContentOperationConstant, Cause: clearError}
	}
	if copyError := fsutil.CopyTree(directory, repositoryPath, gitDirectoryNameConstant); copyError != nil {
		return squash.DestinationError{Operation: replaceContentOperationConstant, Cause: copyError}
	}

	if _, addError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, gitAllFlagConstant},
		WorkingDirectory: repositoryPath,
	}); addError != nil {
		return squash.DestinationError{Operation: stageOperationConstant, Cause: addError}
	}

	statusResult, statusError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitStatusSubcommandConstant, gitPorcelainFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if statusError != nil {
		return squash.DestinationError{Operation: inspectOperationConstant, Cause: statusError}
	}
	if len(strings.TrimSpace(statusResult.StandardOutput)) == 0 {
		destination.logger.Info(
			noChangesLogMessageConstant,
			zap.String(logFieldRepositoryConstant, repositoryPath),
			zap.String(logFieldReferenceConstant, reference.String()),
		)
		return squash.DestinationError{Operation: commitOperationConstant, Cause: ErrNoChanges}
	}

	commitArguments := []string{gitCommitSubcommandConstant, gitQuietFlagConstant, gitMessageFromStdinFlagConstant}
	if author := destination.configuration.Author; len(author.Name) > 0 && len(author.Email) > 0 {
		commitArguments = append(commitArguments, fmt.Sprintf(gitAuthorFlagTemplateConstant, author.Name, author.Email))
	}

	if _, commitError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            commitArguments,
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: destination.commitEnvironment(timestamp),
		StandardInput:        []byte(labeledMessage(message, reference)),
	}); commitError != nil {
		return squash.DestinationError{Operation: commitOperationConstant, Cause: commitError}
	}

	destination.logger.Info(
		committedLogMessageConstant,
		zap.String(logFieldRepositoryConstant, repositoryPath),
		zap.String(logFieldReferenceConstant, reference.String()),
	)

	if !destination.configuration.Push {
		return nil
	}

	if _, pushError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitPushSubcommandConstant, destination.configuration.Remote, fmt.Sprintf(gitPushRefspecTemplateConstant, destination.configuration.Branch)},
		WorkingDirectory: repositoryPath,
	}); pushError != nil {
		return squash.DestinationError{Operation: pushOperationConstant, Cause: pushError}
	}

	destination.logger.Info(
		pushedLogMessageConstant,
		zap.String(logFieldRemoteConstant, destination.configuration.Remote),
		zap.String(logFieldBranchConstant, destination.configuration.Branch),
	)
	return nil
}

// PreviousReference implements squash.Destination by reading the label trailer of the newest commit carrying it.
// Repositories without commits report no previous reference.
func (destination *Destination) PreviousReference(executionContext context.Context, label string) (string, bool, error) {
	repositoryPath := destination.configuration.RepositoryPath

	if _, statError := os.Stat(filepath.Join(repositoryPath, gitDirectoryNameConstant)); statError != nil {
		if errors.Is(statError, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, squash.DestinationError{Operation: previousReferenceOperation, Cause: statError}
	}

	if _, headError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, gitHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	}); headError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(headError, &commandFailure) {
			return "", false, nil
		}
		return "", false, squash.DestinationError{Operation: previousReferenceOperation, Cause: headError}
	}

	logResult, logError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitLogSubcommandConstant, gitSingleCommitFlagConstant, gitMessageFormatFlagConstant, fmt.Sprintf(gitGrepFlagTemplateConstant, label)},
		WorkingDirectory: repositoryPath,
	})
	if logError != nil {
		return "", false, squash.DestinationError{Operation: previousReferenceOperation, Cause: logError}
	}

	previousReference, found := findLabelValue(logResult.StandardOutput, label)
	if !found {
		destination.logger.Debug(missingPreviousReferenceLogEntry, zap.String(logFieldLabelConstant, label))
		return "", false, nil
	}

	destination.logger.Debug(
		previousReferenceLogMessage,
		zap.String(logFieldLabelConstant, label),
		zap.String(logFieldReferenceConstant, previousReference),
	)
	return previousReference, true, nil
}

func (destination *Destination) ensureRepository(executionContext context.Context) error {
	repositoryPath := destination.configuration.RepositoryPath
	_, statError := os.Stat(filepath.Join(repositoryPath, gitDirectoryNameConstant))
	if statError == nil {
		return nil
	}
	if !errors.Is(statError, os.ErrNotExist) {
		return squash.DestinationError{Operation: initializeOperationConstant, Cause: statError}
	}

	if mkdirError := os.MkdirAll(repositoryPath, repositoryPermissionsConstant); mkdirError != nil {
		return squash.DestinationError{Operation: initializeOperationConstant, Cause: mkdirError}
	}
	if _, initError := destination.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitInitSubcommandConstant, gitQuietFlagConstant},
		WorkingDirectory: repositoryPath,
	}); initError != nil {
		return squash.DestinationError{Operation: initializeOperationConstant, Cause: initError}
	}
	return nil
}

func (destination *Destination) commitEnvironment(timestamp int64) map[string]string {
	commitDate := fmt.Sprintf(gitDateTemplateConstant, timestamp)
	environment := map[string]string{
		gitAuthorDateEnvironment:    commitDate,
		gitCommitterDateEnvironment: commitDate,
	}
	if author := destination.configuration.Author; len(author.Name) > 0 && len(author.Email) > 0 {
		environment[gitAuthorNameEnvironment] = author.Name
		environment[gitAuthorEmailEnvironment] = author.Email
		environment[gitCommitterNameEnvironment] = author.Name
		environment[gitCommitterEmailEnvironment] = author.Email
	}
	return environment
}

func labeledMessage(message string, reference squash.Reference) string {
	var messageBuilder strings.Builder
	messageBuilder.WriteString(message)
	if !strings.HasSuffix(message, lineSeparatorConstant) {
		messageBuilder.WriteString(lineSeparatorConstant)
	}
	messageBuilder.WriteString(lineSeparatorConstant)
	messageBuilder.WriteString(fmt.Sprintf(labelLineTemplateConstant, reference.LabelName(), reference.String()))
	return messageBuilder.String()
}

// findLabelValue returns the value of the last "label: value" line in message.
func findLabelValue(message string, label string) (string, bool) {
	labelPrefix := fmt.Sprintf(labelPrefixTemplateConstant, label)
	lines := strings.Split(message, lineSeparatorConstant)
	for lineIndex := len(lines) - 1; lineIndex >= 0; lineIndex-- {
		trimmedLine := strings.TrimSpace(lines[lineIndex])
		if !strings.HasPrefix(trimmedLine, labelPrefix) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(trimmedLine, labelPrefix))
		if len(value) > 0 {
			return value, true
		}
	}
	return "", false
}

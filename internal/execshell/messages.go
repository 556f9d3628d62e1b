package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
)

const (
	gitRevParseSubcommandNameConstant      = "rev-parse"
	gitShowSubcommandNameConstant          = "show"
	gitLogSubcommandNameConstant           = "log"
	gitReadTreeSubcommandNameConstant      = "read-tree"
	gitCheckoutIndexSubcommandNameConstant = "checkout-index"
	gitAddSubcommandNameConstant           = "add"
	gitStatusSubcommandNameConstant        = "status"
	gitCommitSubcommandNameConstant        = "commit"
	gitPushSubcommandNameConstant          = "push"
	gitFlagPrefixConstant                  = "-"
)

// gitMessageTemplates holds the lifecycle templates of a git subcommand.
// Start and success templates take the subject suffix and working directory; failure templates additionally take
// the exit code and standard error suffix; execution failure templates take the failure description.
type gitMessageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var gitSubcommandMessageTemplates = map[string]gitMessageTemplates{
	gitRevParseSubcommandNameConstant: {
		start:            "Resolving%s in %s",
		success:          "Resolved%s in %s",
		failure:          "Failed to resolve%s in %s (exit code %d%s)",
		executionFailure: "Unable to resolve%s in %s: %s",
	},
	gitShowSubcommandNameConstant: {
		start:            "Reading metadata of%s in %s",
		success:          "Read metadata of%s in %s",
		failure:          "Failed to read metadata of%s in %s (exit code %d%s)",
		executionFailure: "Unable to read metadata of%s in %s: %s",
	},
	gitLogSubcommandNameConstant: {
		start:            "Reading history%s in %s",
		success:          "Read history%s in %s",
		failure:          "Failed to read history%s in %s (exit code %d%s)",
		executionFailure: "Unable to read history%s in %s: %s",
	},
	gitReadTreeSubcommandNameConstant: {
		start:            "Loading tree%s in %s",
		success:          "Loaded tree%s in %s",
		failure:          "Failed to load tree%s in %s (exit code %d%s)",
		executionFailure: "Unable to load tree%s in %s: %s",
	},
	gitCheckoutIndexSubcommandNameConstant: {
		start:            "Exporting files%s from %s",
		success:          "Exported files%s from %s",
		failure:          "Failed to export files%s from %s (exit code %d%s)",
		executionFailure: "Unable to export files%s from %s: %s",
	},
	gitAddSubcommandNameConstant: {
		start:            "Staging%s in %s",
		success:          "Staged%s in %s",
		failure:          "Failed to stage%s in %s (exit code %d%s)",
		executionFailure: "Unable to stage%s in %s: %s",
	},
	gitStatusSubcommandNameConstant: {
		start:            "Inspecting changes%s in %s",
		success:          "Inspected changes%s in %s",
		failure:          "Failed to inspect changes%s in %s (exit code %d%s)",
		executionFailure: "Unable to inspect changes%s in %s: %s",
	},
	gitCommitSubcommandNameConstant: {
		start:            "Creating commit%s in %s",
		success:          "Created commit%s in %s",
		failure:          "Failed to create commit%s in %s (exit code %d%s)",
		executionFailure: "Unable to create commit%s in %s: %s",
	},
	gitPushSubcommandNameConstant: {
		start:            "Pushing%s from %s",
		success:          "Pushed%s from %s",
		failure:          "Failed to push%s from %s (exit code %d%s)",
		executionFailure: "Unable to push%s from %s: %s",
	},
}

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	templates, known := gitSubcommandMessageTemplates[subcommand]
	if !known {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subject := formatter.describeSubject(command.Details.Arguments[1:])
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, subject, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(templates.executionFailure, subject, workingDirectory, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

// describeSubject joins the positional arguments of a subcommand, skipping flags, as a space-prefixed suffix.
func (formatter CommandMessageFormatter) describeSubject(arguments []string) string {
	positional := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, gitFlagPrefixConstant) {
			continue
		}
		positional = append(positional, trimmedArgument)
	}
	if len(positional) == 0 {
		return emptyStringConstant
	}
	return commandArgumentsJoinSeparatorConstant + strings.Join(positional, commandArgumentsJoinSeparatorConstant)
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

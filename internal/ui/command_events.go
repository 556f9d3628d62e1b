package ui

import (
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/execshell"
)

const (
	logFieldSubcommandConstant       = "git_subcommand"
	logFieldWorkingDirectoryConstant = "working_directory"
	logFieldExitCodeConstant         = "exit_code"
)

// ConsoleCommandEventLogger renders git lifecycle events of a migration run through a zap logger
// configured for human-readable output.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command), commandFields(command)...)
}

// CommandCompleted implements execshell.CommandEventObserver. Non-zero exits are logged at warn level
// because previous-reference lookups treat some of them as expected outcomes.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command), commandFields(command)...)
		return
	}
	fields := append(commandFields(command), zap.Int(logFieldExitCodeConstant, result.ExitCode))
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result), fields...)
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	fields := append(commandFields(command), zap.Error(failure))
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure), fields...)
}

func commandFields(command execshell.ShellCommand) []zap.Field {
	subcommand := ""
	if len(command.Details.Arguments) > 0 {
		subcommand = command.Details.Arguments[0]
	}
	return []zap.Field{
		zap.String(logFieldSubcommandConstant, subcommand),
		zap.String(logFieldWorkingDirectoryConstant, strings.TrimSpace(command.Details.WorkingDirectory)),
	}
}

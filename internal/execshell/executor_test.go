package execshell_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/reposquash/internal/execshell"
)

const (
	testRepositoryDirectoryConstant = "/srv/destination"
	testCommitMessageConstant       = "Squashed import\n\nGitOrigin-RevId: abc123\n"
	testCommitDateConstant          = "1700000000 +0000"
	testDateEnvironmentKeyConstant  = "GIT_COMMITTER_DATE"
	testNothingToCommitConstant     = "nothing to commit, working tree clean"
	testRunnerFailureConstant       = "exec: \"git\": executable file not found in $PATH"
	testObserverStartedConstant     = "started"
	testObserverCompletedConstant   = "completed"
	testObserverFailedConstant      = "execution_failed"
)

type recordingCommandRunner struct {
	executionResult  execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	return runner.executionResult, runner.executionError
}

type recordingObserver struct {
	events []string
}

func (eventObserver *recordingObserver) CommandStarted(execshell.ShellCommand) {
	eventObserver.events = append(eventObserver.events, testObserverStartedConstant)
}

func (eventObserver *recordingObserver) CommandCompleted(execshell.ShellCommand, execshell.ExecutionResult) {
	eventObserver.events = append(eventObserver.events, testObserverCompletedConstant)
}

func (eventObserver *recordingObserver) CommandExecutionFailed(execshell.ShellCommand, error) {
	eventObserver.events = append(eventObserver.events, testObserverFailedConstant)
}

func commitDetails() execshell.CommandDetails {
	return execshell.CommandDetails{
		Arguments:            []string{"commit", "--quiet", "--file=-"},
		WorkingDirectory:     testRepositoryDirectoryConstant,
		EnvironmentVariables: map[string]string{testDateEnvironmentKeyConstant: testCommitDateConstant},
		StandardInput:        []byte(testCommitMessageConstant),
	}
}

func TestNewShellExecutorValidatesCollaborators(testInstance *testing.T) {
	_, missingLoggerError := execshell.NewShellExecutor(nil, &recordingCommandRunner{})
	require.ErrorIs(testInstance, missingLoggerError, execshell.ErrLoggerNotConfigured)

	_, missingRunnerError := execshell.NewShellExecutor(zap.NewNop(), nil)
	require.ErrorIs(testInstance, missingRunnerError, execshell.ErrCommandRunnerNotConfigured)

	executor, creationError := execshell.NewShellExecutor(zap.NewNop(), &recordingCommandRunner{}, nil)
	require.NoError(testInstance, creationError)
	require.NotNil(testInstance, executor)
}

func TestShellExecutorExecuteGit(testInstance *testing.T) {
	testCases := []struct {
		name           string
		runnerResult   execshell.ExecutionResult
		runnerError    error
		expectFailed   bool
		expectExecFail bool
		expectedEvents []string
	}{
		{
			name:           "commit_succeeds",
			runnerResult:   execshell.ExecutionResult{StandardOutput: "[main 1a2b3c4] Squashed import"},
			expectedEvents: []string{testObserverStartedConstant, testObserverCompletedConstant},
		},
		{
			name:           "commit_exits_non_zero",
			runnerResult:   execshell.ExecutionResult{StandardError: testNothingToCommitConstant, ExitCode: 1},
			expectFailed:   true,
			expectedEvents: []string{testObserverStartedConstant, testObserverCompletedConstant},
		},
		{
			name:           "git_cannot_start",
			runnerError:    errors.New(testRunnerFailureConstant),
			expectExecFail: true,
			expectedEvents: []string{testObserverStartedConstant, testObserverFailedConstant},
		},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			runner := &recordingCommandRunner{executionResult: testCase.runnerResult, executionError: testCase.runnerError}
			eventObserver := &recordingObserver{}

			executor, creationError := execshell.NewShellExecutor(zap.New(observerCore), runner, eventObserver)
			require.NoError(testInstance, creationError)

			result, executionError := executor.ExecuteGit(context.Background(), commitDetails())

			require.Len(testInstance, runner.recordedCommands, 1)
			recorded := runner.recordedCommands[0]
			require.Equal(testInstance, execshell.CommandGit, recorded.Name)
			require.Equal(testInstance, []byte(testCommitMessageConstant), recorded.Details.StandardInput)
			require.Equal(testInstance, testCommitDateConstant, recorded.Details.EnvironmentVariables[testDateEnvironmentKeyConstant])
			require.Equal(testInstance, testCase.expectedEvents, eventObserver.events)

			switch {
			case testCase.expectFailed:
				var failedError execshell.CommandFailedError
				require.ErrorAs(testInstance, executionError, &failedError)
				require.Equal(testInstance, 1, failedError.Result.ExitCode)
				require.Contains(testInstance, failedError.Error(), testNothingToCommitConstant)
				require.Empty(testInstance, result.StandardOutput)
			case testCase.expectExecFail:
				var executionFailure execshell.CommandExecutionError
				require.ErrorAs(testInstance, executionError, &executionFailure)
				require.ErrorContains(testInstance, executionError, testRunnerFailureConstant)
			default:
				require.NoError(testInstance, executionError)
				require.Equal(testInstance, testCase.runnerResult.StandardOutput, result.StandardOutput)
			}

			entries := observedLogs.All()
			require.Len(testInstance, entries, 2)
			for _, entry := range entries {
				require.Equal(testInstance, zapcore.DebugLevel, entry.Level)
				require.Equal(testInstance, testRepositoryDirectoryConstant, entry.ContextMap()["working_directory"])
			}
		})
	}
}

package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const (
	environmentAssignmentSeparatorConstant = "="
)

// OSCommandRunner executes commands using the operating system facilities.
type OSCommandRunner struct {
	executables map[CommandName]string
}

// NewOSCommandRunner constructs a runner backed by os/exec that resolves executables through PATH.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{executables: map[CommandName]string{}}
}

// NewOSCommandRunnerWithExecutables constructs a runner that invokes the given executable paths in place of command names.
func NewOSCommandRunnerWithExecutables(executables map[CommandName]string) *OSCommandRunner {
	runner := NewOSCommandRunner()
	for commandName, executablePath := range executables {
		trimmedPath := strings.TrimSpace(executablePath)
		if len(trimmedPath) == 0 {
			continue
		}
		runner.executables[commandName] = trimmedPath
	}
	return runner
}

// Run executes the supplied command using os/exec. Non-zero exits are reported through the result, not the error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.CommandContext(executionContext, runner.resolveExecutable(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}

	if len(command.Details.EnvironmentVariables) > 0 {
		executable.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer

	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			result.ExitCode = exitError.ExitCode()
			return result, nil
		}
		return ExecutionResult{}, runError
	}

	return result, nil
}

func (runner *OSCommandRunner) resolveExecutable(commandName CommandName) string {
	if runner != nil {
		if executablePath, overridden := runner.executables[commandName]; overridden {
			return executablePath
		}
	}
	return string(commandName)
}

// mergeEnvironment appends overrides to the inherited environment in key order; later entries win in os/exec.
func mergeEnvironment(inherited []string, overrides map[string]string) []string {
	overrideKeys := make([]string, 0, len(overrides))
	for environmentKey := range overrides {
		overrideKeys = append(overrideKeys, environmentKey)
	}
	sort.Strings(overrideKeys)

	mergedEnvironment := append([]string{}, inherited...)
	for _, environmentKey := range overrideKeys {
		mergedEnvironment = append(mergedEnvironment, environmentKey+environmentAssignmentSeparatorConstant+overrides[environmentKey])
	}
	return mergedEnvironment
}

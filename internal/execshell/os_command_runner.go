package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

const environmentAssignmentTemplateConstant = "%s=%s"

// OSCommandRunner executes commands through os/exec.
type OSCommandRunner struct {
	lookupEnvironment func() []string
}

// NewOSCommandRunner builds a runner that inherits the current process environment.
func NewOSCommandRunner() OSCommandRunner {
	return OSCommandRunner{lookupEnvironment: os.Environ}
}

// Run executes the command. A non-zero exit status is reported through ExecutionResult.ExitCode
// rather than as an error; errors indicate the process could not be started or was interrupted.
func (runner OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	process.Env = runner.environment(command.Details.EnvironmentVariables)

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	if command.Details.Interactive {
		process.Stdin = os.Stdin
		process.Stdout = os.Stdout
		process.Stderr = os.Stderr
	} else {
		process.Stdout = &standardOutput
		process.Stderr = &standardError
		if len(command.Details.StandardInput) > 0 {
			process.Stdin = bytes.NewReader(command.Details.StandardInput)
		}
	}

	runError := process.Run()
	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) && executionContext.Err() == nil {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return result, contextError
	}
	return result, runError
}

func (runner OSCommandRunner) environment(overrides map[string]string) []string {
	lookup := runner.lookupEnvironment
	if lookup == nil {
		lookup = os.Environ
	}
	environment := lookup()
	for key, value := range overrides {
		environment = append(environment, fmt.Sprintf(environmentAssignmentTemplateConstant, key, value))
	}
	return environment
}

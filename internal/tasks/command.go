package tasks

import (
	"context"
	"strings"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	// TypeCommand identifies CommandTask.
	TypeCommand task.Type = "command"

	commandFieldNameConstant           = "command"
	commandMissingReasonConstant       = "must not be empty"
	taskKeyEnvironmentNameConstant     = "STAGEHAND_TASK_KEY"
	taskVersionEnvironmentNameConstant = "STAGEHAND_TASK_VERSION"
	commandDescriptionPrefixConstant   = "run "
)

// ShellExecutor runs scripts through the shell.
type ShellExecutor interface {
	ExecuteShell(executionContext context.Context, script string, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CommandSettings configures a shell step.
type CommandSettings struct {
	Script           string
	WorkingDirectory string
	Environment      map[string]string
	Cache            bool
}

// CommandResult is the outcome of a shell step.
type CommandResult struct {
	Output string `yaml:"output" json:"output" mapstructure:"output"`
}

// CommandTask runs a shell script.
type CommandTask struct {
	*task.Base
	settings CommandSettings
	executor ShellExecutor
}

// NewCommandTask validates the settings and constructs a CommandTask.
func NewCommandTask(parameters task.Parameters, settings CommandSettings, executor ShellExecutor) (*CommandTask, error) {
	parameters.Type = TypeCommand
	if len(strings.TrimSpace(settings.Script)) == 0 {
		return nil, task.NewDefinitionError(commandFieldNameConstant, settings.Script, commandMissingReasonConstant)
	}
	if executor == nil {
		return nil, ErrShellExecutorNotConfigured
	}
	base, baseError := task.NewBase(parameters)
	if baseError != nil {
		return nil, baseError
	}
	return &CommandTask{Base: base, settings: settings, executor: executor}, nil
}

// Description names the script.
func (command *CommandTask) Description() string {
	return commandDescriptionPrefixConstant + command.Name()
}

// Cacheable reports whether the plan opted into memoization.
func (command *CommandTask) Cacheable() bool {
	return command.settings.Cache
}

// Process runs the script in the configured working directory.
func (command *CommandTask) Process(executionContext context.Context, _ task.Results) (any, error) {
	output, runError := runScript(executionContext, command.executor, command.Base, command.settings.Script, command.settings.WorkingDirectory, command.settings.Environment)
	if runError != nil {
		return nil, runError
	}
	return CommandResult{Output: output}, nil
}

func runScript(executionContext context.Context, executor ShellExecutor, base *task.Base, script string, workingDirectory string, environment map[string]string) (string, error) {
	variables := make(map[string]string, len(environment)+2)
	for key, value := range environment {
		variables[key] = value
	}
	variables[taskKeyEnvironmentNameConstant] = base.Key()
	variables[taskVersionEnvironmentNameConstant] = base.Version().String()

	result, executionError := executor.ExecuteShell(executionContext, script, execshell.CommandDetails{
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: variables,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

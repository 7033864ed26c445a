package execshell

import (
	"fmt"
	"strings"
)

const (
	startedMessageTemplateConstant             = "Running %s"
	completedMessageTemplateConstant           = "Completed %s"
	failureMessageTemplateConstant             = "%s failed with exit code %d"
	failureDetailTemplateConstant              = "%s: %s"
	executionFailureMessageTemplateConstant    = "%s failed: %v"
	workingDirectorySuffixTemplateConstant     = "%s (in %s)"
	functionDeployedMessageTemplateConstant    = "Deployed function %s"
	functionDeployFailureTemplateConstant      = "Failed to deploy function %s (exit code %d%s)"
	functionDeployExecutionFailureTemplate     = "Unable to deploy function %s: %v"
	functionDeployDetailSeparatorConstant      = ": "
	gcloudFunctionsArgumentConstant            = "functions"
	gcloudDeployArgumentConstant               = "deploy"
	minimumFunctionDeployArgumentCountConstant = 3
)

// CommandMessageFormatter renders human-readable command lifecycle messages.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplateConstant, describeCommand(command))
}

// BuildSuccessMessage describes a command that exited with status zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	if functionName, deploying := functionDeployTarget(command); deploying {
		return fmt.Sprintf(functionDeployedMessageTemplateConstant, functionName)
	}
	return fmt.Sprintf(completedMessageTemplateConstant, describeCommand(command))
}

// BuildFailureMessage describes a command that exited with a non-zero status.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	detail := firstOutputLine(result)
	if functionName, deploying := functionDeployTarget(command); deploying {
		suffix := ""
		if len(detail) > 0 {
			suffix = functionDeployDetailSeparatorConstant + detail
		}
		return fmt.Sprintf(functionDeployFailureTemplateConstant, functionName, result.ExitCode, suffix)
	}

	message := fmt.Sprintf(failureMessageTemplateConstant, describeCommand(command), result.ExitCode)
	if len(detail) > 0 {
		message = fmt.Sprintf(failureDetailTemplateConstant, message, detail)
	}
	return message
}

// BuildExecutionFailureMessage describes a command that could not be run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, cause error) string {
	if functionName, deploying := functionDeployTarget(command); deploying {
		return fmt.Sprintf(functionDeployExecutionFailureTemplate, functionName, cause)
	}
	return fmt.Sprintf(executionFailureMessageTemplateConstant, describeCommand(command), cause)
}

func (formatter CommandMessageFormatter) shouldLogStartMessage(command ShellCommand) bool {
	_, deploying := functionDeployTarget(command)
	return !deploying
}

func describeCommand(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	description := strings.Join(parts, " ")
	workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(workingDirectory) == 0 {
		return description
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, description, workingDirectory)
}

func functionDeployTarget(command ShellCommand) (string, bool) {
	arguments := command.Details.Arguments
	if command.Name != CommandGCloud || len(arguments) < minimumFunctionDeployArgumentCountConstant {
		return "", false
	}
	for index := 0; index+2 < len(arguments); index++ {
		if arguments[index] == gcloudFunctionsArgumentConstant && arguments[index+1] == gcloudDeployArgumentConstant {
			return arguments[index+2], true
		}
	}
	return "", false
}

func firstOutputLine(result ExecutionResult) string {
	detail := strings.TrimSpace(result.StandardError)
	if len(detail) == 0 {
		detail = strings.TrimSpace(result.StandardOutput)
	}
	if newlineIndex := strings.IndexByte(detail, '\n'); newlineIndex >= 0 {
		detail = strings.TrimSpace(detail[:newlineIndex])
	}
	return detail
}

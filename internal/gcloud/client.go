package gcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/stagehand/internal/execshell"
)

const (
	jsonFormatFlagConstant         = "--format=json"
	projectFlagConstant            = "--project"
	accountFlagConstant            = "--account"
	executorMissingMessageConstant = "gcloud executor not configured"
	decodeOutputTemplateConstant   = "decode gcloud %s output: %w"
	argumentsSeparatorConstant     = " "
)

// ErrExecutorNotConfigured indicates a Client built without an executor.
var ErrExecutorNotConfigured = errors.New(executorMissingMessageConstant)

// Executor runs the gcloud executable.
type Executor interface {
	ExecuteGCloud(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client invokes gcloud scoped to an optional project and account.
type Client struct {
	executor Executor
	project  string
	account  string
}

// NewClient constructs a Client. Empty project or account values fall back to the SDK's active configuration.
func NewClient(executor Executor, project string, account string) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{
		executor: executor,
		project:  strings.TrimSpace(project),
		account:  strings.TrimSpace(account),
	}, nil
}

// Project returns the project the client targets.
func (client *Client) Project() string {
	return client.project
}

// WithProject returns a copy of the client scoped to project.
func (client *Client) WithProject(project string) *Client {
	scoped := *client
	scoped.project = strings.TrimSpace(project)
	return &scoped
}

// Call runs gcloud and returns its standard output.
func (client *Client) Call(executionContext context.Context, arguments ...string) (string, error) {
	result, executionError := client.executor.ExecuteGCloud(executionContext, execshell.CommandDetails{
		Arguments: client.scopedArguments(arguments),
	})
	if executionError != nil {
		return "", executionError
	}
	return result.StandardOutput, nil
}

// JSON runs gcloud with JSON output and decodes the result into target.
func (client *Client) JSON(executionContext context.Context, target any, arguments ...string) error {
	output, callError := client.Call(executionContext, append(append([]string{}, arguments...), jsonFormatFlagConstant)...)
	if callError != nil {
		return callError
	}
	if decodeError := json.Unmarshal([]byte(output), target); decodeError != nil {
		return fmt.Errorf(decodeOutputTemplateConstant, strings.Join(arguments, argumentsSeparatorConstant), decodeError)
	}
	return nil
}

// TTY runs gcloud attached to the terminal for interactive flows such as `gcloud init`.
func (client *Client) TTY(executionContext context.Context, arguments ...string) error {
	_, executionError := client.executor.ExecuteGCloud(executionContext, execshell.CommandDetails{
		Arguments:   client.scopedArguments(arguments),
		Interactive: true,
	})
	return executionError
}

func (client *Client) scopedArguments(arguments []string) []string {
	scoped := append([]string{}, arguments...)
	if len(client.project) > 0 {
		scoped = append(scoped, projectFlagConstant, client.project)
	}
	if len(client.account) > 0 {
		scoped = append(scoped, accountFlagConstant, client.account)
	}
	return scoped
}

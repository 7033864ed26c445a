package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

const (
	cycleDetectedMessageConstant        = "task dependency cycle detected"
	dependencyFailedMessageConstant     = "dependency did not complete"
	invalidTaskMessageConstant          = "invalid task"
	cyclePathSeparatorConstant          = " -> "
	cycleErrorTemplateConstant          = "%s: %s"
	taskFailedTemplateConstant          = "task %s failed: %v"
	dependencyFailedTemplateConstant    = "%w: %s"
	resolveDependenciesTemplateConstant = "resolve dependencies of %s: %w"
	nilRootTaskTemplateConstant         = "%w: root task at position %d is nil"
	nilDependencyTemplateConstant       = "%w: task %s returned a nil dependency"
	emptyKeyTemplateConstant            = "%w: task of type %q has an empty key"
	additionalFailuresTemplateConstant  = "%s (and %d more failures)"
)

var (
	// ErrCycleDetected indicates the dependency graph is not acyclic.
	ErrCycleDetected = errors.New(cycleDetectedMessageConstant)
	// ErrDependencyFailed marks tasks skipped because a dependency failed or was skipped.
	ErrDependencyFailed = errors.New(dependencyFailedMessageConstant)
	// ErrInvalidTask indicates a nil task or a task without a key.
	ErrInvalidTask = errors.New(invalidTaskMessageConstant)
)

// CycleError lists the task keys forming a dependency cycle. The first and last entries are equal.
type CycleError struct {
	Path []string
}

// Error renders the cycle path.
func (cycleError CycleError) Error() string {
	return fmt.Sprintf(cycleErrorTemplateConstant, cycleDetectedMessageConstant, strings.Join(cycleError.Path, cyclePathSeparatorConstant))
}

// Unwrap exposes ErrCycleDetected.
func (cycleError CycleError) Unwrap() error {
	return ErrCycleDetected
}

// TaskFailedError associates a task failure with the task key.
type TaskFailedError struct {
	Key   string
	Cause error
}

// Error describes the failure.
func (failure TaskFailedError) Error() string {
	return fmt.Sprintf(taskFailedTemplateConstant, failure.Key, failure.Cause)
}

// Unwrap returns the underlying failure so errors.Is sees the task's own error.
func (failure TaskFailedError) Unwrap() error {
	return failure.Cause
}

// ExecutionError aggregates every task failure of a pass.
type ExecutionError struct {
	message  string
	failures []TaskFailedError
	cause    error
}

// Error summarizes the first failure and counts the rest.
func (executionError ExecutionError) Error() string {
	return executionError.message
}

// Unwrap exposes the joined task failures.
func (executionError ExecutionError) Unwrap() error {
	return executionError.cause
}

// Failures returns the individual task failures in plan order.
func (executionError ExecutionError) Failures() []TaskFailedError {
	failures := make([]TaskFailedError, len(executionError.failures))
	copy(failures, executionError.failures)
	return failures
}

func newExecutionError(failures []TaskFailedError) error {
	if len(failures) == 0 {
		return nil
	}

	message := failures[0].Error()
	if len(failures) > 1 {
		message = fmt.Sprintf(additionalFailuresTemplateConstant, message, len(failures)-1)
	}

	joined := make([]error, 0, len(failures))
	for _, failure := range failures {
		joined = append(joined, failure)
	}

	return ExecutionError{
		message:  message,
		failures: failures,
		cause:    errors.Join(joined...),
	}
}

func dependencyFailedError(dependencyKey string) error {
	return fmt.Errorf(dependencyFailedTemplateConstant, ErrDependencyFailed, dependencyKey)
}

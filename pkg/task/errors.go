package task

import (
	"errors"
	"fmt"
)

const (
	definitionErrorMessageConstant          = "invalid task definition"
	definitionErrorTemplateConstant         = "%s: %s %q %s"
	dependenciesFrozenMessageConstant       = "task dependencies are frozen once scheduling begins"
	dependencyResultMissingMessageConstant  = "dependency result missing"
	dependencyResultMissingTemplateConstant = "%w: result for dependency %q not found"
)

var (
	// ErrDefinition identifies invalid static configuration of a concrete task.
	ErrDefinition = errors.New(definitionErrorMessageConstant)
	// ErrDependenciesFrozen indicates an attempt to change dependencies after scheduling began.
	ErrDependenciesFrozen = errors.New(dependenciesFrozenMessageConstant)
	// ErrDependencyResultMissing indicates a dependency result absent from the supplied Results.
	ErrDependencyResultMissing = errors.New(dependencyResultMissingMessageConstant)
)

// DefinitionError reports a programming or configuration mistake detected while constructing a task.
type DefinitionError struct {
	Field  string
	Value  string
	Reason string
}

// Error describes the invalid field.
func (definitionError DefinitionError) Error() string {
	return fmt.Sprintf(definitionErrorTemplateConstant, definitionErrorMessageConstant, definitionError.Field, definitionError.Value, definitionError.Reason)
}

// Unwrap exposes ErrDefinition so callers can rely on errors.Is.
func (definitionError DefinitionError) Unwrap() error {
	return ErrDefinition
}

// NewDefinitionError builds a DefinitionError for the provided field.
func NewDefinitionError(field string, value string, reason string) error {
	return DefinitionError{Field: field, Value: value, Reason: reason}
}

func dependencyResultMissingError(key string) error {
	return fmt.Errorf(dependencyResultMissingTemplateConstant, ErrDependencyResultMissing, key)
}

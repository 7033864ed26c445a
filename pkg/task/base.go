package task

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

const (
	keySeparatorConstant           = "."
	typeFieldNameConstant          = "type"
	nameFieldNameConstant          = "name"
	versionFieldNameConstant       = "version"
	dependencyFieldNameConstant    = "dependency"
	emptyValueReasonConstant       = "must not be empty"
	malformedValueReasonConstant   = "must start with a letter or digit and contain only letters, digits, '-' or '_'"
	missingVersionReasonConstant   = "must be supplied by a version provider"
	nilDependencyReasonConstant    = "must not be nil"
	missingVersionPlaceholderValue = "<nil>"
)

var identityComponentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Parameters configures the shared identity of a task.
type Parameters struct {
	Type         Type
	Name         string
	Version      Version
	Dependencies []Task
	IDGenerator  IDGenerator
}

// Base carries the identity, version, and dependency list shared by every concrete task.
// Concrete variants embed *Base and add Description and Process.
type Base struct {
	taskType Type
	name     string
	id       ID
	version  Version

	dependencyMutex sync.Mutex
	dependencies    []Task
	frozen          bool
}

// NewBase validates the identity data and assigns a fresh identifier.
// Invalid identity data yields a DefinitionError before any scheduling occurs.
func NewBase(parameters Parameters) (*Base, error) {
	taskType := Type(strings.TrimSpace(string(parameters.Type)))
	if validationError := validateIdentityComponent(typeFieldNameConstant, string(parameters.Type), string(taskType)); validationError != nil {
		return nil, validationError
	}

	name := strings.TrimSpace(parameters.Name)
	if validationError := validateIdentityComponent(nameFieldNameConstant, parameters.Name, name); validationError != nil {
		return nil, validationError
	}

	if parameters.Version == nil {
		return nil, NewDefinitionError(versionFieldNameConstant, missingVersionPlaceholderValue, missingVersionReasonConstant)
	}

	dependencies := make([]Task, 0, len(parameters.Dependencies))
	for _, dependency := range parameters.Dependencies {
		if dependency == nil {
			return nil, NewDefinitionError(dependencyFieldNameConstant, string(taskType)+keySeparatorConstant+name, nilDependencyReasonConstant)
		}
		dependencies = append(dependencies, dependency)
	}

	generator := parameters.IDGenerator
	if generator == nil {
		generator = DefaultIDGenerator
	}

	return &Base{
		taskType:     taskType,
		name:         name,
		id:           generator.NewID(),
		version:      parameters.Version,
		dependencies: dependencies,
	}, nil
}

func validateIdentityComponent(field string, rawValue string, trimmedValue string) error {
	if len(trimmedValue) == 0 {
		return NewDefinitionError(field, rawValue, emptyValueReasonConstant)
	}
	if !identityComponentPattern.MatchString(trimmedValue) {
		return NewDefinitionError(field, rawValue, malformedValueReasonConstant)
	}
	return nil
}

// Type returns the task category.
func (base *Base) Type() Type {
	return base.taskType
}

// ID returns the instance identifier.
func (base *Base) ID() ID {
	return base.id
}

// Version returns the content state supplied at construction.
func (base *Base) Version() Version {
	return base.version
}

// Name returns the logical name.
func (base *Base) Name() string {
	return base.name
}

// BaseKey returns the logical identity shared by every instantiation of the same task.
func (base *Base) BaseKey() string {
	return string(base.taskType) + keySeparatorConstant + base.name
}

// Key returns the physical identity of this instance.
func (base *Base) Key() string {
	return base.BaseKey() + keySeparatorConstant + string(base.id)
}

// Dependencies returns a copy of the declared dependency list in its original order.
func (base *Base) Dependencies(_ context.Context) ([]Task, error) {
	base.dependencyMutex.Lock()
	defer base.dependencyMutex.Unlock()

	dependencies := make([]Task, len(base.dependencies))
	copy(dependencies, base.dependencies)
	return dependencies, nil
}

// AddDependencies appends dependencies before scheduling begins.
func (base *Base) AddDependencies(dependencies ...Task) error {
	base.dependencyMutex.Lock()
	defer base.dependencyMutex.Unlock()

	if base.frozen {
		return ErrDependenciesFrozen
	}
	for _, dependency := range dependencies {
		if dependency == nil {
			return NewDefinitionError(dependencyFieldNameConstant, base.BaseKey(), nilDependencyReasonConstant)
		}
	}
	base.dependencies = append(base.dependencies, dependencies...)
	return nil
}

// Freeze locks the dependency list. The task graph calls it when scheduling begins.
func (base *Base) Freeze() {
	base.dependencyMutex.Lock()
	base.frozen = true
	base.dependencyMutex.Unlock()
}

// Frozen reports whether the dependency list is locked.
func (base *Base) Frozen() bool {
	base.dependencyMutex.Lock()
	defer base.dependencyMutex.Unlock()
	return base.frozen
}

package task

import (
	"context"
)

// Type discriminates the category of a task. It is constant per concrete variant.
type Type string

// String returns the type name.
func (taskType Type) String() string {
	return string(taskType)
}

// Results maps task keys to the values produced by their Process functions.
type Results map[string]any

// Task is a schedulable unit of work.
type Task interface {
	Type() Type
	ID() ID
	Version() Version
	// Name distinguishes the task from siblings of the same type and must be
	// deterministic for a logical unit of work so BaseKey stays stable across runs.
	Name() string
	// BaseKey returns type + "." + name.
	BaseKey() string
	// Key returns BaseKey + "." + id and is unique per instance.
	Key() string
	// Dependencies returns the tasks whose results Process consumes. The task
	// graph may call it more than once per pass and expects identical answers.
	Dependencies(executionContext context.Context) ([]Task, error)
	// Description is used for logs and progress reporting only.
	Description() string
	// Process performs the work. dependencyResults holds exactly the results of
	// the direct dependencies keyed by their Key values.
	Process(executionContext context.Context, dependencyResults Results) (any, error)
}

// Cacheable is implemented by tasks whose results may be memoized by BaseKey and Version.
type Cacheable interface {
	Cacheable() bool
}

// Freezer is implemented by tasks that lock their dependency list when scheduling begins.
type Freezer interface {
	Freeze()
}

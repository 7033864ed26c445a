package plan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/stagehand/internal/gcloud"
	"github.com/tyemirov/stagehand/internal/tasks"
	"github.com/tyemirov/stagehand/internal/vcs"
	"github.com/tyemirov/stagehand/pkg/task"
	"github.com/tyemirov/stagehand/pkg/taskgraph"
)

const (
	versionProviderMissingMessageConstant = "plan builder version provider not configured"
	resolveVersionTemplateConstant        = "resolve version of %s (%s): %w"
	buildTaskTemplateConstant             = "build task %s: %w"
	logMessageTaskBuiltConstant           = "plan_task_built"
	logFieldTaskConstant                  = "task"
	logFieldTypeConstant                  = "type"
	logFieldVersionConstant               = "version"
	logFieldPathConstant                  = "path"
)

// ErrVersionProviderNotConfigured indicates a Builder constructed without a version provider.
var ErrVersionProviderNotConfigured = errors.New(versionProviderMissingMessageConstant)

// BuilderDependencies wires the collaborators concrete tasks need.
type BuilderDependencies struct {
	VersionProvider vcs.Provider
	ShellExecutor   tasks.ShellExecutor
	GCloudClient    *gcloud.Client
	Provider        gcloud.ProviderConfiguration
	// BaseDirectory anchors relative task paths, usually the directory holding the plan file.
	BaseDirectory string
	Logger        *zap.Logger
}

// Tasks is the constructed form of a plan.
type Tasks struct {
	// Roots lists the tasks no other task depends on, in declaration order.
	Roots  []task.Task
	ByName map[string]task.Task
}

// Builder turns plan definitions into concrete tasks.
type Builder struct {
	dependencies BuilderDependencies
	logger       *zap.Logger
}

// NewBuilder validates the dependencies and constructs a Builder.
func NewBuilder(dependencies BuilderDependencies) (*Builder, error) {
	if dependencies.VersionProvider == nil {
		return nil, ErrVersionProviderNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{dependencies: dependencies, logger: logger}, nil
}

type buildState struct {
	definitions map[string]TaskDefinition
	built       map[string]task.Task
	visiting    map[string]bool
	path        []string
	versions    map[string]vcs.TreeVersion
}

// Build validates definition, resolves every task version, and constructs the
// tasks with their `after` entries wired as dependencies.
func (builder *Builder) Build(executionContext context.Context, definition Definition) (Tasks, error) {
	definition = normalizeDefinition(definition)
	if validationError := definition.Validate(); validationError != nil {
		return Tasks{}, validationError
	}

	state := &buildState{
		definitions: make(map[string]TaskDefinition, len(definition.Tasks)),
		built:       make(map[string]task.Task, len(definition.Tasks)),
		visiting:    make(map[string]bool, len(definition.Tasks)),
		versions:    make(map[string]vcs.TreeVersion),
	}
	referenced := make(map[string]struct{})
	for _, taskDefinition := range definition.Tasks {
		state.definitions[taskDefinition.Name] = taskDefinition
		for _, reference := range taskDefinition.After {
			referenced[reference] = struct{}{}
		}
	}

	result := Tasks{ByName: make(map[string]task.Task, len(definition.Tasks))}
	for _, taskDefinition := range definition.Tasks {
		builtTask, buildError := builder.buildTask(executionContext, state, taskDefinition.Name)
		if buildError != nil {
			return Tasks{}, buildError
		}
		result.ByName[taskDefinition.Name] = builtTask
		if _, isReferenced := referenced[taskDefinition.Name]; !isReferenced {
			result.Roots = append(result.Roots, builtTask)
		}
	}
	return result, nil
}

func (builder *Builder) buildTask(executionContext context.Context, state *buildState, name string) (task.Task, error) {
	if builtTask, found := state.built[name]; found {
		return builtTask, nil
	}
	if state.visiting[name] {
		cyclePath := append([]string{}, state.path[indexOf(state.path, name):]...)
		return nil, taskgraph.CycleError{Path: append(cyclePath, name)}
	}

	state.visiting[name] = true
	state.path = append(state.path, name)
	defer func() {
		state.visiting[name] = false
		state.path = state.path[:len(state.path)-1]
	}()

	taskDefinition := state.definitions[name]
	dependencies := make([]task.Task, 0, len(taskDefinition.After))
	for _, reference := range taskDefinition.After {
		dependency, dependencyError := builder.buildTask(executionContext, state, reference)
		if dependencyError != nil {
			return nil, dependencyError
		}
		dependencies = append(dependencies, dependency)
	}

	sourcePath := builder.resolvePath(taskDefinition.Path)
	version, versionError := builder.resolveVersion(executionContext, state, sourcePath)
	if versionError != nil {
		return nil, fmt.Errorf(resolveVersionTemplateConstant, name, sourcePath, versionError)
	}

	parameters := task.Parameters{Name: name, Version: version, Dependencies: dependencies}
	builtTask, constructionError := builder.construct(taskDefinition, parameters, sourcePath)
	if constructionError != nil {
		return nil, fmt.Errorf(buildTaskTemplateConstant, name, constructionError)
	}

	builder.logger.Debug(logMessageTaskBuiltConstant,
		zap.String(logFieldTaskConstant, builtTask.BaseKey()),
		zap.String(logFieldTypeConstant, builtTask.Type().String()),
		zap.String(logFieldVersionConstant, version.String()),
		zap.String(logFieldPathConstant, sourcePath),
	)
	state.built[name] = builtTask
	return builtTask, nil
}

func (builder *Builder) construct(taskDefinition TaskDefinition, parameters task.Parameters, sourcePath string) (task.Task, error) {
	switch task.Type(taskDefinition.Type) {
	case tasks.TypeCommand:
		commandTask, creationError := tasks.NewCommandTask(parameters, tasks.CommandSettings{
			Script:           taskDefinition.Command,
			WorkingDirectory: sourcePath,
			Environment:      taskDefinition.Environment,
			Cache:            taskDefinition.Cache,
		}, builder.dependencies.ShellExecutor)
		if creationError != nil {
			return nil, creationError
		}
		return commandTask, nil
	case tasks.TypeBuild:
		buildTask, creationError := tasks.NewBuildTask(parameters, tasks.BuildSettings{
			Path:        pathOrEmpty(taskDefinition.Path, sourcePath),
			Script:      taskDefinition.Command,
			Environment: taskDefinition.Environment,
			Cache:       taskDefinition.Cache,
		}, builder.dependencies.ShellExecutor)
		if creationError != nil {
			return nil, creationError
		}
		return buildTask, nil
	default:
		deployTask, creationError := tasks.NewDeployTask(parameters, tasks.DeploySettings{
			Path:             pathOrEmpty(taskDefinition.Path, sourcePath),
			Function:         taskDefinition.Function,
			Runtime:          taskDefinition.Runtime,
			EntryPoint:       taskDefinition.EntryPoint,
			Trigger:          taskDefinition.Trigger,
			Project:          taskDefinition.Project,
			Region:           taskDefinition.Region,
			CheckEnvironment: taskDefinition.CheckEnvironment,
			Provider:         builder.dependencies.Provider,
		}, builder.dependencies.GCloudClient)
		if creationError != nil {
			return nil, creationError
		}
		return deployTask, nil
	}
}

func (builder *Builder) resolvePath(path string) string {
	trimmed := strings.TrimSpace(path)
	baseDirectory := builder.dependencies.BaseDirectory
	if len(baseDirectory) == 0 {
		baseDirectory = "."
	}
	if len(trimmed) == 0 {
		return filepath.Clean(baseDirectory)
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Join(baseDirectory, trimmed)
}

func (builder *Builder) resolveVersion(executionContext context.Context, state *buildState, sourcePath string) (vcs.TreeVersion, error) {
	if version, found := state.versions[sourcePath]; found {
		return version, nil
	}
	version, resolveError := builder.dependencies.VersionProvider.ResolveVersion(executionContext, sourcePath)
	if resolveError != nil {
		return vcs.TreeVersion{}, resolveError
	}
	state.versions[sourcePath] = version
	return version, nil
}

// pathOrEmpty keeps a missing path missing so the task reports its own definition error.
func pathOrEmpty(declaredPath string, resolvedPath string) string {
	if len(strings.TrimSpace(declaredPath)) == 0 {
		return ""
	}
	return resolvedPath
}

func indexOf(values []string, target string) int {
	for index, value := range values {
		if value == target {
			return index
		}
	}
	return 0
}

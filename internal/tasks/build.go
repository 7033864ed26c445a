package tasks

import (
	"context"
	"strings"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	// TypeBuild identifies BuildTask.
	TypeBuild task.Type = "build"

	pathFieldNameConstant          = "path"
	pathMissingReasonConstant      = "must name the source tree to build"
	buildDescriptionPrefixConstant = "build "
)

// BuildSettings configures a build step.
type BuildSettings struct {
	Path        string
	Script      string
	Environment map[string]string
	Cache       bool
}

// BuildResult records what a build produced. Version is the source tree version the build was bound to.
type BuildResult struct {
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
	Version string `yaml:"version" json:"version" mapstructure:"version"`
	Output  string `yaml:"output,omitempty" json:"output,omitempty" mapstructure:"output"`
}

// BuildTask builds a source tree. Builds without a script only record the tree version,
// which lets deploy steps depend on source state alone.
type BuildTask struct {
	*task.Base
	settings BuildSettings
	executor ShellExecutor
}

// NewBuildTask validates the settings and constructs a BuildTask.
func NewBuildTask(parameters task.Parameters, settings BuildSettings, executor ShellExecutor) (*BuildTask, error) {
	parameters.Type = TypeBuild
	if len(strings.TrimSpace(settings.Path)) == 0 {
		return nil, task.NewDefinitionError(pathFieldNameConstant, settings.Path, pathMissingReasonConstant)
	}
	if len(strings.TrimSpace(settings.Script)) > 0 && executor == nil {
		return nil, ErrShellExecutorNotConfigured
	}
	base, baseError := task.NewBase(parameters)
	if baseError != nil {
		return nil, baseError
	}
	return &BuildTask{Base: base, settings: settings, executor: executor}, nil
}

// Description names the build.
func (build *BuildTask) Description() string {
	return buildDescriptionPrefixConstant + build.Name()
}

// Cacheable reports whether results are memoized per tree version.
func (build *BuildTask) Cacheable() bool {
	return build.settings.Cache
}

// Process runs the build script in the source tree.
func (build *BuildTask) Process(executionContext context.Context, _ task.Results) (any, error) {
	result := BuildResult{Path: build.settings.Path, Version: build.Version().String()}
	if len(strings.TrimSpace(build.settings.Script)) == 0 {
		return result, nil
	}

	output, runError := runScript(executionContext, build.executor, build.Base, build.settings.Script, build.settings.Path, build.settings.Environment)
	if runError != nil {
		return nil, runError
	}
	result.Output = output
	return result, nil
}

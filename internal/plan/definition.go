package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/stagehand/internal/tasks"
	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	taskNameFieldNameConstant      = "name"
	taskTypeFieldNameConstant      = "type"
	afterFieldNameConstant         = "after"
	cacheFieldNameConstant         = "cache"
	uncacheableTypeReasonConstant  = "is not supported for deploy tasks, which always run"
	emptyPlanFieldNameConstant     = "tasks"
	duplicateNameReasonConstant    = "is declared more than once"
	unknownTypeReasonConstant      = "must be one of command, build, deploy"
	unknownReferenceReasonConstant = "does not name a task in the plan"
	selfReferenceReasonConstant    = "must not reference the task itself"
	emptyPlanReasonConstant        = "must declare at least one task"
	qualifiedFieldTemplateConstant = "%s.%s"
)

// TaskDefinition is one task entry of a plan file.
type TaskDefinition struct {
	Name             string            `yaml:"name" hcl:"name,label"`
	Type             string            `yaml:"type" hcl:"type"`
	Path             string            `yaml:"path,omitempty" hcl:"path,optional"`
	Command          string            `yaml:"command,omitempty" hcl:"command,optional"`
	After            []string          `yaml:"after,omitempty" hcl:"after,optional"`
	Cache            bool              `yaml:"cache,omitempty" hcl:"cache,optional"`
	Environment      map[string]string `yaml:"environment,omitempty" hcl:"environment,optional"`
	Function         string            `yaml:"function,omitempty" hcl:"function,optional"`
	Runtime          string            `yaml:"runtime,omitempty" hcl:"runtime,optional"`
	EntryPoint       string            `yaml:"entry_point,omitempty" hcl:"entry_point,optional"`
	Trigger          string            `yaml:"trigger,omitempty" hcl:"trigger,optional"`
	Project          string            `yaml:"project,omitempty" hcl:"project,optional"`
	Region           string            `yaml:"region,omitempty" hcl:"region,optional"`
	CheckEnvironment bool              `yaml:"check_environment,omitempty" hcl:"check_environment,optional"`
}

// Definition is a parsed plan file.
type Definition struct {
	Tasks []TaskDefinition `yaml:"tasks" hcl:"task,block"`
}

// Validate reports every structural problem of the plan: duplicate names, unknown
// task types, `cache` on deploy tasks, and `after` entries that reference missing tasks.
func (definition Definition) Validate() error {
	if len(definition.Tasks) == 0 {
		return task.NewDefinitionError(emptyPlanFieldNameConstant, "", emptyPlanReasonConstant)
	}

	var validationErrors []error
	declared := make(map[string]struct{}, len(definition.Tasks))
	for _, taskDefinition := range definition.Tasks {
		name := strings.TrimSpace(taskDefinition.Name)
		if _, duplicate := declared[name]; duplicate {
			validationErrors = append(validationErrors, task.NewDefinitionError(taskNameFieldNameConstant, name, duplicateNameReasonConstant))
			continue
		}
		declared[name] = struct{}{}
	}

	for _, taskDefinition := range definition.Tasks {
		name := strings.TrimSpace(taskDefinition.Name)
		if !knownTaskType(taskDefinition.Type) {
			validationErrors = append(validationErrors, task.NewDefinitionError(qualifiedField(name, taskTypeFieldNameConstant), taskDefinition.Type, unknownTypeReasonConstant))
		}
		if taskDefinition.Cache && task.Type(strings.ToLower(strings.TrimSpace(taskDefinition.Type))) == tasks.TypeDeploy {
			validationErrors = append(validationErrors, task.NewDefinitionError(qualifiedField(name, cacheFieldNameConstant), "true", uncacheableTypeReasonConstant))
		}
		for _, reference := range taskDefinition.After {
			trimmedReference := strings.TrimSpace(reference)
			if trimmedReference == name {
				validationErrors = append(validationErrors, task.NewDefinitionError(qualifiedField(name, afterFieldNameConstant), reference, selfReferenceReasonConstant))
				continue
			}
			if _, found := declared[trimmedReference]; !found {
				validationErrors = append(validationErrors, task.NewDefinitionError(qualifiedField(name, afterFieldNameConstant), reference, unknownReferenceReasonConstant))
			}
		}
	}

	return errors.Join(validationErrors...)
}

func knownTaskType(value string) bool {
	switch task.Type(strings.ToLower(strings.TrimSpace(value))) {
	case tasks.TypeCommand, tasks.TypeBuild, tasks.TypeDeploy:
		return true
	default:
		return false
	}
}

func qualifiedField(name string, field string) string {
	return fmt.Sprintf(qualifiedFieldTemplateConstant, name, field)
}

package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

const (
	yamlExtensionConstant             = ".yaml"
	ymlExtensionConstant              = ".yml"
	hclExtensionConstant              = ".hcl"
	environmentVariableNameConstant   = "env"
	unsupportedFormatMessageConstant  = "unsupported plan file format"
	unsupportedFormatTemplateConstant = "%w %q (expected .yaml, .yml or .hcl)"
	readPlanTemplateConstant          = "read plan %s: %w"
	parseYAMLTemplateConstant         = "parse plan %s: %w"
	parseHCLTemplateConstant          = "parse plan %s: %w"
	decodeHCLTemplateConstant         = "decode plan %s: %w"
	environmentSeparatorConstant      = "="
)

// ErrUnsupportedFormat indicates a plan file whose extension names no known format.
var ErrUnsupportedFormat = errors.New(unsupportedFormatMessageConstant)

// Loader reads plan files. HCL plans can reference environment variables as env.NAME.
type Loader struct {
	environment map[string]string
}

// NewLoader constructs a Loader exposing the process environment to HCL plans.
func NewLoader() *Loader {
	return NewLoaderWithEnvironment(environmentFromPairs(os.Environ()))
}

// NewLoaderWithEnvironment constructs a Loader exposing the provided variables to HCL plans.
func NewLoaderWithEnvironment(environment map[string]string) *Loader {
	copied := make(map[string]string, len(environment))
	for key, value := range environment {
		copied[key] = value
	}
	return &Loader{environment: copied}
}

// Load reads and validates the plan at path, choosing the parser by extension.
func (loader *Loader) Load(path string) (Definition, error) {
	content, readError := os.ReadFile(path)
	if readError != nil {
		return Definition{}, fmt.Errorf(readPlanTemplateConstant, path, readError)
	}
	return loader.Parse(path, content)
}

// Parse decodes and validates plan content. The filename selects the format.
func (loader *Loader) Parse(filename string, content []byte) (Definition, error) {
	var (
		definition  Definition
		decodeError error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case yamlExtensionConstant, ymlExtensionConstant:
		definition, decodeError = parseYAML(filename, content)
	case hclExtensionConstant:
		definition, decodeError = loader.parseHCL(filename, content)
	default:
		return Definition{}, fmt.Errorf(unsupportedFormatTemplateConstant, ErrUnsupportedFormat, filename)
	}
	if decodeError != nil {
		return Definition{}, decodeError
	}

	definition = normalizeDefinition(definition)
	if validationError := definition.Validate(); validationError != nil {
		return Definition{}, validationError
	}
	return definition, nil
}

func parseYAML(filename string, content []byte) (Definition, error) {
	var definition Definition
	if unmarshalError := yaml.Unmarshal(content, &definition); unmarshalError != nil {
		return Definition{}, fmt.Errorf(parseYAMLTemplateConstant, filename, unmarshalError)
	}
	return definition, nil
}

func (loader *Loader) parseHCL(filename string, content []byte) (Definition, error) {
	parser := hclparse.NewParser()
	hclFile, diagnostics := parser.ParseHCL(content, filename)
	if diagnostics.HasErrors() {
		return Definition{}, fmt.Errorf(parseHCLTemplateConstant, filename, diagnostics)
	}

	var definition Definition
	diagnostics = gohcl.DecodeBody(hclFile.Body, loader.evaluationContext(), &definition)
	if diagnostics.HasErrors() {
		return Definition{}, fmt.Errorf(decodeHCLTemplateConstant, filename, diagnostics)
	}
	return definition, nil
}

func (loader *Loader) evaluationContext() *hcl.EvalContext {
	values := make(map[string]cty.Value, len(loader.environment))
	for key, value := range loader.environment {
		values[key] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			environmentVariableNameConstant: cty.ObjectVal(values),
		},
	}
}

func normalizeDefinition(definition Definition) Definition {
	normalized := Definition{Tasks: make([]TaskDefinition, 0, len(definition.Tasks))}
	for _, taskDefinition := range definition.Tasks {
		taskDefinition.Name = strings.TrimSpace(taskDefinition.Name)
		taskDefinition.Type = strings.ToLower(strings.TrimSpace(taskDefinition.Type))
		var after []string
		for _, reference := range taskDefinition.After {
			after = append(after, strings.TrimSpace(reference))
		}
		taskDefinition.After = after
		normalized.Tasks = append(normalized.Tasks, taskDefinition)
	}
	return normalized
}

func environmentFromPairs(pairs []string) map[string]string {
	environment := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, environmentSeparatorConstant)
		if !found || len(key) == 0 {
			continue
		}
		environment[key] = value
	}
	return environment
}

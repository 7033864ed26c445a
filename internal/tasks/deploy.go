package tasks

import (
	"context"
	"strconv"
	"strings"

	"github.com/tyemirov/stagehand/internal/gcloud"
	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	// TypeDeploy identifies DeployTask.
	TypeDeploy task.Type = "deploy"

	runtimeFieldNameConstant                = "runtime"
	runtimeMissingReasonConstant            = "must name a Cloud Functions runtime"
	deployDescriptionPrefixConstant         = "deploy "
	httpTriggerConstant                     = "http"
	functionsSubcommandConstant             = "functions"
	deploySubcommandConstant                = "deploy"
	sourceFlagConstant                      = "--source"
	runtimeFlagConstant                     = "--runtime"
	regionFlagConstant                      = "--region"
	triggerHTTPFlagConstant                 = "--trigger-http"
	triggerTopicFlagConstant                = "--trigger-topic"
	entryPointFlagConstant                  = "--entry-point"
	environmentNotConfiguredMessageConstant = "Google Cloud environment is not configured; run `stagehand env configure`"
	projectMissingMessageConstant           = "no Google Cloud project configured for the service or the provider"
	detailTaskKeyConstant                   = "task"
	detailSDKInstalledKeyConstant           = "sdk_installed"
	detailSDKInitializedKeyConstant         = "sdk_initialized"
	detailBetaComponentsKeyConstant         = "beta_components_installed"
)

// DeploySettings configures a Cloud Functions deployment.
type DeploySettings struct {
	Path             string
	Function         string
	Runtime          string
	EntryPoint       string
	Trigger          string
	Project          string
	Region           string
	CheckEnvironment bool
	Provider         gcloud.ProviderConfiguration
}

// DeployResult describes a completed deployment.
type DeployResult struct {
	Function string   `yaml:"function" json:"function" mapstructure:"function"`
	Project  string   `yaml:"project" json:"project" mapstructure:"project"`
	Region   string   `yaml:"region" json:"region" mapstructure:"region"`
	Version  string   `yaml:"version" json:"version" mapstructure:"version"`
	Builds   []string `yaml:"builds,omitempty" json:"builds,omitempty" mapstructure:"builds"`
}

// DeployTask deploys a source tree as a Google Cloud Function.
type DeployTask struct {
	*task.Base
	settings DeploySettings
	client   *gcloud.Client
}

// NewDeployTask validates the settings and constructs a DeployTask. The function
// name defaults to the task name.
func NewDeployTask(parameters task.Parameters, settings DeploySettings, client *gcloud.Client) (*DeployTask, error) {
	parameters.Type = TypeDeploy
	if len(strings.TrimSpace(settings.Path)) == 0 {
		return nil, task.NewDefinitionError(pathFieldNameConstant, settings.Path, pathMissingReasonConstant)
	}
	if len(strings.TrimSpace(settings.Runtime)) == 0 {
		return nil, task.NewDefinitionError(runtimeFieldNameConstant, settings.Runtime, runtimeMissingReasonConstant)
	}
	if client == nil {
		return nil, ErrGCloudClientNotConfigured
	}
	base, baseError := task.NewBase(parameters)
	if baseError != nil {
		return nil, baseError
	}
	if len(strings.TrimSpace(settings.Function)) == 0 {
		settings.Function = base.Name()
	}
	return &DeployTask{Base: base, settings: settings, client: client}, nil
}

// Description names the function.
func (deploy *DeployTask) Description() string {
	return deployDescriptionPrefixConstant + deploy.settings.Function
}

// Process checks the environment when requested, resolves the target project, and
// runs `gcloud functions deploy`. Missing preconditions surface as gcloud.ConfigurationError.
func (deploy *DeployTask) Process(executionContext context.Context, dependencyResults task.Results) (any, error) {
	if deploy.settings.CheckEnvironment {
		status := gcloud.EnvironmentStatus(executionContext, deploy.client)
		if !status.Configured {
			return nil, gcloud.ConfigurationError{
				Message: environmentNotConfiguredMessageConstant,
				Detail: map[string]string{
					detailSDKInstalledKeyConstant:   strconv.FormatBool(status.SDKInstalled),
					detailSDKInitializedKeyConstant: strconv.FormatBool(status.SDKInitialized),
					detailBetaComponentsKeyConstant: strconv.FormatBool(status.BetaComponentsInstalled),
				},
			}
		}
	}

	project, projectFound := gcloud.ResolveProject(deploy.settings.Project, deploy.settings.Provider)
	if !projectFound {
		return nil, gcloud.ConfigurationError{
			Message: projectMissingMessageConstant,
			Detail:  map[string]string{detailTaskKeyConstant: deploy.BaseKey()},
		}
	}
	region := gcloud.ResolveRegion(deploy.settings.Region, deploy.settings.Provider)

	builds, buildsError := deploy.collectBuilds(executionContext, dependencyResults)
	if buildsError != nil {
		return nil, buildsError
	}

	if _, deployError := deploy.client.WithProject(project).Call(executionContext, deploy.deployArguments(region)...); deployError != nil {
		return nil, deployError
	}

	return DeployResult{
		Function: deploy.settings.Function,
		Project:  project,
		Region:   region,
		Version:  deploy.Version().String(),
		Builds:   builds,
	}, nil
}

func (deploy *DeployTask) deployArguments(region string) []string {
	arguments := []string{
		functionsSubcommandConstant, deploySubcommandConstant, deploy.settings.Function,
		sourceFlagConstant, deploy.settings.Path,
		runtimeFlagConstant, deploy.settings.Runtime,
		regionFlagConstant, region,
	}
	if entryPoint := strings.TrimSpace(deploy.settings.EntryPoint); len(entryPoint) > 0 {
		arguments = append(arguments, entryPointFlagConstant, entryPoint)
	}
	trigger := strings.TrimSpace(deploy.settings.Trigger)
	if len(trigger) == 0 || strings.EqualFold(trigger, httpTriggerConstant) {
		return append(arguments, triggerHTTPFlagConstant)
	}
	return append(arguments, triggerTopicFlagConstant, trigger)
}

// collectBuilds lists the versions of the build dependencies feeding this deployment.
func (deploy *DeployTask) collectBuilds(executionContext context.Context, dependencyResults task.Results) ([]string, error) {
	dependencies, dependenciesError := deploy.Dependencies(executionContext)
	if dependenciesError != nil {
		return nil, dependenciesError
	}

	builds := make([]string, 0, len(dependencies))
	for _, dependency := range dependencies {
		if dependency.Type() != TypeBuild {
			continue
		}
		var build BuildResult
		if decodeError := task.DecodeResult(dependencyResults, dependency, &build); decodeError != nil {
			return nil, decodeError
		}
		builds = append(builds, dependency.BaseKey()+"@"+build.Version)
	}
	return builds, nil
}

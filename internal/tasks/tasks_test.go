package tasks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/internal/gcloud"
	"github.com/tyemirov/stagehand/internal/tasks"
	"github.com/tyemirov/stagehand/pkg/task"
	"github.com/tyemirov/stagehand/pkg/taskgraph"
)

const (
	testVersionConstant      = task.StaticVersion("a1b2c3d")
	testSourcePathConstant   = "services/svc1"
	testRuntimeConstant      = "go122"
	testProjectConstant      = "demo-project"
	testConfiguredInfo       = `{"config":{"account":"dev@example.com"},"installation":{"components":{"beta":"1"}}}`
	testBuildOutputConstant  = "built svc1"
	testShellFailureConstant = "make: *** [build] Error 2"
)

type recordingShellExecutor struct {
	output  string
	failure error
	scripts []string
	details []execshell.CommandDetails
}

func (executor *recordingShellExecutor) ExecuteShell(_ context.Context, script string, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.scripts = append(executor.scripts, script)
	executor.details = append(executor.details, details)
	if executor.failure != nil {
		return execshell.ExecutionResult{}, executor.failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.output + "\n"}, nil
}

type recordingGCloudExecutor struct {
	infoOutput string
	calls      [][]string
}

func (executor *recordingGCloudExecutor) ExecuteGCloud(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.calls = append(executor.calls, details.Arguments)
	if details.Arguments[0] == "info" {
		if len(executor.infoOutput) == 0 {
			return execshell.ExecutionResult{}, errors.New("gcloud: command not found")
		}
		return execshell.ExecutionResult{StandardOutput: executor.infoOutput}, nil
	}
	return execshell.ExecutionResult{}, nil
}

func newGCloudClient(testInstance *testing.T, executor *recordingGCloudExecutor) *gcloud.Client {
	testInstance.Helper()
	client, creationError := gcloud.NewClient(executor, "", "")
	require.NoError(testInstance, creationError)
	return client
}

func TestCommandTaskRunsScript(testInstance *testing.T) {
	executor := &recordingShellExecutor{output: "hello"}
	command, creationError := tasks.NewCommandTask(
		task.Parameters{Name: "greet", Version: testVersionConstant},
		tasks.CommandSettings{Script: "echo hello", WorkingDirectory: "/tmp", Environment: map[string]string{"GREETING": "hi"}},
		executor,
	)
	require.NoError(testInstance, creationError)
	require.Equal(testInstance, tasks.TypeCommand, command.Type())
	require.Equal(testInstance, "command.greet", command.BaseKey())
	require.Equal(testInstance, "run greet", command.Description())
	require.False(testInstance, command.Cacheable())

	result, processError := command.Process(context.Background(), task.Results{})
	require.NoError(testInstance, processError)
	require.Equal(testInstance, tasks.CommandResult{Output: "hello"}, result)

	require.Equal(testInstance, []string{"echo hello"}, executor.scripts)
	require.Equal(testInstance, "/tmp", executor.details[0].WorkingDirectory)
	require.Equal(testInstance, "hi", executor.details[0].EnvironmentVariables["GREETING"])
	require.Equal(testInstance, command.Key(), executor.details[0].EnvironmentVariables["STAGEHAND_TASK_KEY"])
	require.Equal(testInstance, "a1b2c3d", executor.details[0].EnvironmentVariables["STAGEHAND_TASK_VERSION"])
}

func TestCommandTaskValidation(testInstance *testing.T) {
	_, missingScriptError := tasks.NewCommandTask(task.Parameters{Name: "greet", Version: testVersionConstant}, tasks.CommandSettings{}, &recordingShellExecutor{})
	require.ErrorIs(testInstance, missingScriptError, task.ErrDefinition)

	_, missingExecutorError := tasks.NewCommandTask(task.Parameters{Name: "greet", Version: testVersionConstant}, tasks.CommandSettings{Script: "true"}, nil)
	require.ErrorIs(testInstance, missingExecutorError, tasks.ErrShellExecutorNotConfigured)

	_, invalidNameError := tasks.NewCommandTask(task.Parameters{Name: "bad.name", Version: testVersionConstant}, tasks.CommandSettings{Script: "true"}, &recordingShellExecutor{})
	require.ErrorIs(testInstance, invalidNameError, task.ErrDefinition)
}

func TestCommandTaskPropagatesFailures(testInstance *testing.T) {
	failure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandShell},
		Result:  execshell.ExecutionResult{ExitCode: 2, StandardError: testShellFailureConstant},
	}
	command, creationError := tasks.NewCommandTask(task.Parameters{Name: "build", Version: testVersionConstant}, tasks.CommandSettings{Script: "make build"}, &recordingShellExecutor{failure: failure})
	require.NoError(testInstance, creationError)

	result, processError := command.Process(context.Background(), task.Results{})
	require.Nil(testInstance, result)
	var commandFailed execshell.CommandFailedError
	require.True(testInstance, errors.As(processError, &commandFailed))
	require.Equal(testInstance, 2, commandFailed.Result.ExitCode)
}

func TestBuildTaskRecordsTreeVersion(testInstance *testing.T) {
	versionOnly, creationError := tasks.NewBuildTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.BuildSettings{Path: testSourcePathConstant, Cache: true}, nil)
	require.NoError(testInstance, creationError)
	require.True(testInstance, versionOnly.Cacheable())

	result, processError := versionOnly.Process(context.Background(), task.Results{})
	require.NoError(testInstance, processError)
	require.Equal(testInstance, tasks.BuildResult{Path: testSourcePathConstant, Version: "a1b2c3d"}, result)

	executor := &recordingShellExecutor{output: testBuildOutputConstant}
	scripted, scriptedError := tasks.NewBuildTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.BuildSettings{Path: testSourcePathConstant, Script: "make"}, executor)
	require.NoError(testInstance, scriptedError)

	scriptedResult, scriptedProcessError := scripted.Process(context.Background(), task.Results{})
	require.NoError(testInstance, scriptedProcessError)
	require.Equal(testInstance, tasks.BuildResult{Path: testSourcePathConstant, Version: "a1b2c3d", Output: testBuildOutputConstant}, scriptedResult)
	require.Equal(testInstance, testSourcePathConstant, executor.details[0].WorkingDirectory)
}

func TestBuildTaskValidation(testInstance *testing.T) {
	_, missingPathError := tasks.NewBuildTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.BuildSettings{}, nil)
	require.ErrorIs(testInstance, missingPathError, task.ErrDefinition)

	_, missingExecutorError := tasks.NewBuildTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.BuildSettings{Path: testSourcePathConstant, Script: "make"}, nil)
	require.ErrorIs(testInstance, missingExecutorError, tasks.ErrShellExecutorNotConfigured)

	_, missingVersionError := tasks.NewBuildTask(task.Parameters{Name: "svc1"}, tasks.BuildSettings{Path: testSourcePathConstant}, nil)
	require.ErrorIs(testInstance, missingVersionError, task.ErrDefinition)
}

func TestDeployTaskDeploysWithResolvedProject(testInstance *testing.T) {
	gcloudExecutor := &recordingGCloudExecutor{infoOutput: testConfiguredInfo}
	build, buildError := tasks.NewBuildTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.BuildSettings{Path: testSourcePathConstant}, nil)
	require.NoError(testInstance, buildError)

	deploy, deployError := tasks.NewDeployTask(
		task.Parameters{Name: "svc1", Version: testVersionConstant, Dependencies: []task.Task{build}},
		tasks.DeploySettings{
			Path:             testSourcePathConstant,
			Runtime:          testRuntimeConstant,
			EntryPoint:       "Handle",
			CheckEnvironment: true,
			Provider:         gcloud.ProviderConfiguration{DefaultProject: testProjectConstant},
		},
		newGCloudClient(testInstance, gcloudExecutor),
	)
	require.NoError(testInstance, deployError)
	require.Equal(testInstance, "deploy svc1", deploy.Description())

	graph := taskgraph.New(taskgraph.Options{})
	outcome, processError := graph.Process(context.Background(), deploy)
	require.NoError(testInstance, processError)

	result, found := outcome.Result(deploy)
	require.True(testInstance, found)
	require.Equal(testInstance, tasks.DeployResult{
		Function: "svc1",
		Project:  testProjectConstant,
		Region:   gcloud.DefaultRegion,
		Version:  "a1b2c3d",
		Builds:   []string{"build.svc1@a1b2c3d"},
	}, result)

	require.Len(testInstance, gcloudExecutor.calls, 2)
	require.Equal(testInstance, []string{
		"functions", "deploy", "svc1",
		"--source", testSourcePathConstant,
		"--runtime", testRuntimeConstant,
		"--region", gcloud.DefaultRegion,
		"--entry-point", "Handle",
		"--trigger-http",
		"--project", testProjectConstant,
	}, gcloudExecutor.calls[1])
}

func TestDeployTaskDecodesReloadedBuildResults(testInstance *testing.T) {
	gcloudExecutor := &recordingGCloudExecutor{}
	build, buildError := tasks.NewBuildTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.BuildSettings{Path: testSourcePathConstant}, nil)
	require.NoError(testInstance, buildError)

	deploy, deployError := tasks.NewDeployTask(
		task.Parameters{Name: "svc1", Version: testVersionConstant, Dependencies: []task.Task{build}},
		tasks.DeploySettings{Path: testSourcePathConstant, Runtime: testRuntimeConstant, Project: "service-project", Region: "europe-west1", Trigger: "builds"},
		newGCloudClient(testInstance, gcloudExecutor),
	)
	require.NoError(testInstance, deployError)

	reloaded := task.Results{build.Key(): map[string]any{"path": testSourcePathConstant, "version": "cached-version"}}
	result, processError := deploy.Process(context.Background(), reloaded)
	require.NoError(testInstance, processError)

	deployResult := result.(tasks.DeployResult)
	require.Equal(testInstance, []string{"build.svc1@cached-version"}, deployResult.Builds)
	require.Equal(testInstance, "service-project", deployResult.Project)
	require.Contains(testInstance, gcloudExecutor.calls[0], "--trigger-topic")
	require.Contains(testInstance, gcloudExecutor.calls[0], "europe-west1")
}

func TestDeployTaskSurfacesConfigurationErrors(testInstance *testing.T) {
	testCases := []struct {
		name     string
		settings tasks.DeploySettings
		executor *recordingGCloudExecutor
		message  string
	}{
		{
			name:     "environment_not_configured",
			settings: tasks.DeploySettings{Path: testSourcePathConstant, Runtime: testRuntimeConstant, Project: testProjectConstant, CheckEnvironment: true},
			executor: &recordingGCloudExecutor{},
			message:  "sdk_installed=false",
		},
		{
			name:     "project_missing",
			settings: tasks.DeploySettings{Path: testSourcePathConstant, Runtime: testRuntimeConstant},
			executor: &recordingGCloudExecutor{},
			message:  "task=deploy.svc1",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			deploy, deployError := tasks.NewDeployTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, testCase.settings, newGCloudClient(testInstance, testCase.executor))
			require.NoError(testInstance, deployError)

			_, processError := deploy.Process(context.Background(), task.Results{})
			require.ErrorIs(testInstance, processError, gcloud.ErrConfiguration)
			var configurationError gcloud.ConfigurationError
			require.True(testInstance, errors.As(processError, &configurationError))
			require.Contains(testInstance, configurationError.Error(), testCase.message)

			for _, call := range testCase.executor.calls {
				require.NotEqual(testInstance, "functions", call[0])
			}
		})
	}
}

func TestDeployTaskValidation(testInstance *testing.T) {
	client := newGCloudClient(testInstance, &recordingGCloudExecutor{})

	_, missingRuntimeError := tasks.NewDeployTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.DeploySettings{Path: testSourcePathConstant}, client)
	require.ErrorIs(testInstance, missingRuntimeError, task.ErrDefinition)

	_, missingClientError := tasks.NewDeployTask(task.Parameters{Name: "svc1", Version: testVersionConstant}, tasks.DeploySettings{Path: testSourcePathConstant, Runtime: testRuntimeConstant}, nil)
	require.ErrorIs(testInstance, missingClientError, tasks.ErrGCloudClientNotConfigured)
}

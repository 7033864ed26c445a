package gcloud_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/internal/gcloud"
)

const (
	testProjectConstant        = "demo-project"
	testAccountConstant        = "dev@example.com"
	testConfiguredInfoConstant = `{"config":{"account":"dev@example.com","project":"demo-project"},"installation":{"components":{"core":"2024.01.01","beta":"2024.01.01"}}}`
	testNoBetaInfoConstant     = `{"config":{"account":"dev@example.com"},"installation":{"components":{"core":"2024.01.01"}}}`
	testUninitializedInfo      = `{"config":{"account":""},"installation":{"components":{"beta":"2024.01.01"}}}`
)

type recordingGCloudExecutor struct {
	output   string
	failures map[string]error
	calls    []execshell.CommandDetails
}

func (executor *recordingGCloudExecutor) ExecuteGCloud(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.calls = append(executor.calls, details)
	if failure, failing := executor.failures[details.Arguments[0]]; failing {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.output}, nil
}

func TestClientScopesArguments(testInstance *testing.T) {
	executor := &recordingGCloudExecutor{output: `{"ok":true}`}
	client, creationError := gcloud.NewClient(executor, testProjectConstant, testAccountConstant)
	require.NoError(testInstance, creationError)

	var decoded struct {
		OK bool `json:"ok"`
	}
	require.NoError(testInstance, client.JSON(context.Background(), &decoded, "info"))
	require.True(testInstance, decoded.OK)
	require.Equal(testInstance, []string{"info", "--format=json", "--project", testProjectConstant, "--account", testAccountConstant}, executor.calls[0].Arguments)

	require.NoError(testInstance, client.TTY(context.Background(), "init"))
	require.True(testInstance, executor.calls[1].Interactive)

	scoped := client.WithProject("other-project")
	require.Equal(testInstance, "other-project", scoped.Project())
	require.Equal(testInstance, testProjectConstant, client.Project())
}

func TestClientReportsUndecodableOutput(testInstance *testing.T) {
	client, creationError := gcloud.NewClient(&recordingGCloudExecutor{output: "not json"}, "", "")
	require.NoError(testInstance, creationError)

	var decoded map[string]any
	decodeError := client.JSON(context.Background(), &decoded, "info")
	require.Error(testInstance, decodeError)
	require.Contains(testInstance, decodeError.Error(), "decode gcloud info output")
}

func TestNewClientRequiresExecutor(testInstance *testing.T) {
	_, creationError := gcloud.NewClient(nil, "", "")
	require.ErrorIs(testInstance, creationError, gcloud.ErrExecutorNotConfigured)
}

func TestEnvironmentStatus(testInstance *testing.T) {
	testCases := []struct {
		name           string
		executor       *recordingGCloudExecutor
		expectedStatus gcloud.Status
	}{
		{
			name:           "configured",
			executor:       &recordingGCloudExecutor{output: testConfiguredInfoConstant},
			expectedStatus: gcloud.Status{Configured: true, SDKInstalled: true, SDKInitialized: true, BetaComponentsInstalled: true},
		},
		{
			name:           "missing_beta_components",
			executor:       &recordingGCloudExecutor{output: testNoBetaInfoConstant},
			expectedStatus: gcloud.Status{SDKInstalled: true, SDKInitialized: true},
		},
		{
			name:           "not_initialized",
			executor:       &recordingGCloudExecutor{output: testUninitializedInfo},
			expectedStatus: gcloud.Status{SDKInstalled: true, BetaComponentsInstalled: true},
		},
		{
			name:           "sdk_missing",
			executor:       &recordingGCloudExecutor{failures: map[string]error{"info": errors.New("executable file not found")}},
			expectedStatus: gcloud.Status{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := gcloud.NewClient(testCase.executor, "", "")
			require.NoError(testInstance, creationError)

			status := gcloud.EnvironmentStatus(context.Background(), client)
			status.SDKInfo = gcloud.SDKInfo{}
			require.Equal(testInstance, testCase.expectedStatus, status)
		})
	}
}

func TestConfigureEnvironment(testInstance *testing.T) {
	testCases := []struct {
		name              string
		status            gcloud.Status
		expectedCalls     [][]string
		expectInteractive bool
		expectedLogs      int
		expectError       error
	}{
		{
			name:        "sdk_missing",
			status:      gcloud.Status{},
			expectError: gcloud.ErrConfiguration,
		},
		{
			name:          "already_configured",
			status:        gcloud.Status{Configured: true, SDKInstalled: true, SDKInitialized: true, BetaComponentsInstalled: true},
			expectedCalls: nil,
		},
		{
			name:   "install_beta_and_initialize",
			status: gcloud.Status{SDKInstalled: true},
			expectedCalls: [][]string{
				{"components", "update", "--quiet"},
				{"components", "install", "beta", "--quiet"},
				{"init"},
			},
			expectInteractive: true,
			expectedLogs:      2,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &recordingGCloudExecutor{}
			client, creationError := gcloud.NewClient(executor, "", "")
			require.NoError(testInstance, creationError)

			core, logs := observer.New(zap.InfoLevel)
			configureError := gcloud.ConfigureEnvironment(context.Background(), client, testCase.status, zap.New(core))
			if testCase.expectError != nil {
				require.ErrorIs(testInstance, configureError, testCase.expectError)
				var configurationError gcloud.ConfigurationError
				require.True(testInstance, errors.As(configureError, &configurationError))
				require.Contains(testInstance, configurationError.Error(), "Google Cloud SDK is not installed")
				require.Empty(testInstance, executor.calls)
				return
			}

			require.NoError(testInstance, configureError)
			recordedArguments := make([][]string, 0, len(executor.calls))
			for _, call := range executor.calls {
				recordedArguments = append(recordedArguments, call.Arguments)
			}
			if len(testCase.expectedCalls) == 0 {
				require.Empty(testInstance, recordedArguments)
			} else {
				require.Equal(testInstance, testCase.expectedCalls, recordedArguments)
				require.Equal(testInstance, testCase.expectInteractive, executor.calls[len(executor.calls)-1].Interactive)
			}
			require.Equal(testInstance, testCase.expectedLogs, logs.Len())
		})
	}
}

func TestConfigurationErrorDetail(testInstance *testing.T) {
	configurationError := gcloud.ConfigurationError{Message: "missing project", Detail: map[string]string{"service": "svc1", "provider": "google"}}
	require.Equal(testInstance, "environment configuration error: missing project (provider=google, service=svc1)", configurationError.Error())
}

func TestResolveProjectAndRegion(testInstance *testing.T) {
	provider := gcloud.ProviderConfiguration{DefaultProject: "provider-project"}

	project, found := gcloud.ResolveProject("service-project", provider)
	require.True(testInstance, found)
	require.Equal(testInstance, "service-project", project)

	project, found = gcloud.ResolveProject("  ", provider)
	require.True(testInstance, found)
	require.Equal(testInstance, "provider-project", project)

	_, found = gcloud.ResolveProject("", gcloud.ProviderConfiguration{})
	require.False(testInstance, found)

	require.Equal(testInstance, gcloud.DefaultRegion, gcloud.ResolveRegion("", provider))
	require.Equal(testInstance, "europe-west1", gcloud.ResolveRegion("", gcloud.ProviderConfiguration{Region: "europe-west1"}))
	require.Equal(testInstance, "asia-east1", gcloud.ResolveRegion("asia-east1", gcloud.ProviderConfiguration{Region: "europe-west1"}))
}

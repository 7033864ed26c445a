package version_test

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/internal/version"
)

const (
	testPromptEnvironmentNameConstant = "GIT_TERMINAL_PROMPT"
	testFullRevisionConstant          = "0123456789abcdef0123456789abcdef01234567"
	testShortRevisionConstant         = "0123456789ab"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

type stubGitExecutor struct {
	testInstance *testing.T
	commands     []stubGitCommand
}

type stubGitCommand struct {
	expectedArguments []string
	output            string
	executionError    error
}

func (executor *stubGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.testInstance.Helper()
	require.Greater(executor.testInstance, len(executor.commands), 0)
	require.Equal(executor.testInstance, "0", details.EnvironmentVariables[testPromptEnvironmentNameConstant])

	command := executor.commands[0]
	executor.commands = executor.commands[1:]

	require.Equal(executor.testInstance, command.expectedArguments, details.Arguments)
	return execshell.ExecutionResult{StandardOutput: command.output}, command.executionError
}

func develBuildInfo() stubBuildInfoProvider {
	return stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "devel"}}, available: true}
}

func TestInfoUsesBuildMetadataWhenAvailable(testInstance *testing.T) {
	provider := stubBuildInfoProvider{
		info: &debug.BuildInfo{
			GoVersion: "go1.25.4",
			Main:      debug.Module{Version: "v1.2.3"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: testFullRevisionConstant},
				{Key: "vcs.modified", Value: "true"},
			},
		},
		available: true,
	}
	detector, creationError := version.NewDetector(version.Dependencies{BuildInfoProvider: provider, GitExecutor: &stubGitExecutor{testInstance: testInstance}})
	require.NoError(testInstance, creationError)

	require.Equal(testInstance, version.Info{
		Version:   "v1.2.3",
		Revision:  testShortRevisionConstant,
		Modified:  true,
		GoVersion: "go1.25.4",
	}, detector.Info(context.Background()))
}

func TestInfoFallsBackToExactDescribe(testInstance *testing.T) {
	executor := &stubGitExecutor{
		testInstance: testInstance,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, output: "/workspace"},
			{expectedArguments: []string{"rev-parse", "HEAD"}, output: testFullRevisionConstant + "\n"},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, output: "v0.9.0"},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{BuildInfoProvider: develBuildInfo(), GitExecutor: executor})
	require.NoError(testInstance, creationError)

	info := detector.Info(context.Background())
	require.Equal(testInstance, "v0.9.0", info.Version)
	require.Equal(testInstance, testShortRevisionConstant, info.Revision)
	require.Empty(testInstance, executor.commands)
}

func TestVersionUsesLongDescribeWhenExactMissing(testInstance *testing.T) {
	executor := &stubGitExecutor{
		testInstance: testInstance,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, output: "/workspace"},
			{expectedArguments: []string{"rev-parse", "HEAD"}, output: "abc123"},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, executionError: errors.New("not tagged")},
			{expectedArguments: []string{"describe", "--tags", "--long", "--dirty"}, output: "v0.9.0-1-gabcdef"},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{BuildInfoProvider: develBuildInfo(), GitExecutor: executor})
	require.NoError(testInstance, creationError)

	require.Equal(testInstance, "v0.9.0-1-gabcdef", detector.Version(context.Background()))
}

func TestVersionReturnsUnknownWhenAllSourcesFail(testInstance *testing.T) {
	failure := errors.New("failure")
	executor := &stubGitExecutor{
		testInstance: testInstance,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, executionError: failure},
			{expectedArguments: []string{"rev-parse", "HEAD"}, executionError: failure},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, executionError: failure},
			{expectedArguments: []string{"describe", "--tags", "--long", "--dirty"}, executionError: failure},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{BuildInfoProvider: develBuildInfo(), GitExecutor: executor})
	require.NoError(testInstance, creationError)

	info := detector.Info(context.Background())
	require.Equal(testInstance, "unknown", info.Version)
	require.Empty(testInstance, info.Revision)
}

func TestNilDetectorReportsUnknown(testInstance *testing.T) {
	var detector *version.Detector
	require.Equal(testInstance, "unknown", detector.Version(context.Background()))
}

var _ version.GitExecutor = (*stubGitExecutor)(nil)

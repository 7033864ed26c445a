package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/internal/utils"
)

const (
	testEnvironmentPrefixConstant     = "STAGEHAND"
	testConfigurationNameConstant     = "config"
	testConfigurationTypeConstant     = "yaml"
	testConfigFileNameConstant        = "config.yaml"
	testUserConfigurationDirectory    = ".stagehand"
	testXDGConfigHomeDirectoryName    = "config"
	testEmbeddedConfigurationConstant = `common:
  log_level: error
run:
  concurrency: 0
  retry_initial_interval: 200ms
  cache_dir: .stagehand/cache
  state_dir: .stagehand/runs
gcloud:
  project: ""
  region: us-central1
serve:
  address: 127.0.0.1:8080
`
	testFileConfigurationConstant = `run:
  concurrency: 4
  retry_initial_interval: 750ms
  cache_dir: /var/cache/stagehand
gcloud:
  project: file-project
serve:
  address: 0.0.0.0:9090
`
)

type stagehandConfigurationFixture struct {
	Common struct {
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"common"`
	Run struct {
		Concurrency          int           `mapstructure:"concurrency"`
		RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
		CacheDirectory       string        `mapstructure:"cache_dir"`
		StateDirectory       string        `mapstructure:"state_dir"`
	} `mapstructure:"run"`
	GCloud struct {
		Project string `mapstructure:"project"`
		Region  string `mapstructure:"region"`
	} `mapstructure:"gcloud"`
	Serve struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"serve"`
}

func newStagehandLoader(searchPaths ...string) *utils.ConfigurationLoader {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, searchPaths)
	loader.SetEmbeddedConfiguration([]byte(testEmbeddedConfigurationConstant), testConfigurationTypeConstant)
	return loader
}

func writeConfiguration(testInstance *testing.T, directory string, content string) string {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(directory, 0o755))
	path := filepath.Join(directory, testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigurationLoaderLayersRunConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		fileContent          string
		environment          map[string]string
		defaults             map[string]any
		expectedConcurrency  int
		expectedInterval     time.Duration
		expectedCacheDir     string
		expectedStateDir     string
		expectedProject      string
		expectedAddress      string
		expectedLogLevel     string
		expectConfigFileUsed bool
	}{
		{
			name:                "embedded_defaults",
			expectedConcurrency: 0,
			expectedInterval:    200 * time.Millisecond,
			expectedCacheDir:    ".stagehand/cache",
			expectedStateDir:    ".stagehand/runs",
			expectedAddress:     "127.0.0.1:8080",
			expectedLogLevel:    "error",
		},
		{
			name:                 "file_overrides_embedded",
			fileContent:          testFileConfigurationConstant,
			expectedConcurrency:  4,
			expectedInterval:     750 * time.Millisecond,
			expectedCacheDir:     "/var/cache/stagehand",
			expectedStateDir:     ".stagehand/runs",
			expectedProject:      "file-project",
			expectedAddress:      "0.0.0.0:9090",
			expectedLogLevel:     "error",
			expectConfigFileUsed: true,
		},
		{
			name:        "environment_overrides_file",
			fileContent: testFileConfigurationConstant,
			environment: map[string]string{
				"STAGEHAND_RUN_CACHE_DIR":    "/tmp/stagehand-cache",
				"STAGEHAND_RUN_CONCURRENCY":  "8",
				"STAGEHAND_GCLOUD_PROJECT":   "env-project",
				"STAGEHAND_COMMON_LOG_LEVEL": "debug",
			},
			expectedConcurrency:  8,
			expectedInterval:     750 * time.Millisecond,
			expectedCacheDir:     "/tmp/stagehand-cache",
			expectedStateDir:     ".stagehand/runs",
			expectedProject:      "env-project",
			expectedAddress:      "0.0.0.0:9090",
			expectedLogLevel:     "debug",
			expectConfigFileUsed: true,
		},
		{
			name:                "embedded_overrides_defaults",
			defaults:            map[string]any{"run.state_dir": "runs", "gcloud.project": "default-project"},
			expectedConcurrency: 0,
			expectedInterval:    200 * time.Millisecond,
			expectedCacheDir:    ".stagehand/cache",
			expectedStateDir:    ".stagehand/runs",
			expectedAddress:     "127.0.0.1:8080",
			expectedLogLevel:    "error",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			for name, value := range testCase.environment {
				testInstance.Setenv(name, value)
			}

			configurationFilePath := ""
			if len(testCase.fileContent) > 0 {
				configurationFilePath = writeConfiguration(testInstance, testInstance.TempDir(), testCase.fileContent)
			}

			loaded := stagehandConfigurationFixture{}
			metadata, loadError := newStagehandLoader(testInstance.TempDir()).LoadConfiguration(configurationFilePath, testCase.defaults, &loaded)
			require.NoError(testInstance, loadError)

			require.Equal(testInstance, testCase.expectedConcurrency, loaded.Run.Concurrency)
			require.Equal(testInstance, testCase.expectedInterval, loaded.Run.RetryInitialInterval)
			require.Equal(testInstance, testCase.expectedCacheDir, loaded.Run.CacheDirectory)
			require.Equal(testInstance, testCase.expectedStateDir, loaded.Run.StateDirectory)
			require.Equal(testInstance, testCase.expectedProject, loaded.GCloud.Project)
			require.Equal(testInstance, "us-central1", loaded.GCloud.Region)
			require.Equal(testInstance, testCase.expectedAddress, loaded.Serve.Address)
			require.Equal(testInstance, testCase.expectedLogLevel, loaded.Common.LogLevel)
			if testCase.expectConfigFileUsed {
				require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
			} else {
				require.Empty(testInstance, metadata.ConfigFileUsed)
			}
		})
	}
}

func TestConfigurationLoaderSearchPathPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name            string
		populated       []string
		expectedAddress string
	}{
		{name: "working_directory", populated: []string{"working"}, expectedAddress: "working:1"},
		{name: "xdg_directory", populated: []string{"xdg"}, expectedAddress: "xdg:2"},
		{name: "home_directory", populated: []string{"home"}, expectedAddress: "home:3"},
		{name: "working_preferred", populated: []string{"working", "xdg", "home"}, expectedAddress: "working:1"},
		{name: "xdg_over_home", populated: []string{"xdg", "home"}, expectedAddress: "xdg:2"},
		{name: "none_populated", expectedAddress: "127.0.0.1:8080"},
	}

	addressByRole := map[string]string{"working": "working:1", "xdg": "xdg:2", "home": "home:3"}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			homeDirectory := testInstance.TempDir()
			directoryByRole := map[string]string{
				"working": testInstance.TempDir(),
				"xdg":     filepath.Join(homeDirectory, testXDGConfigHomeDirectoryName, testUserConfigurationDirectory),
				"home":    filepath.Join(homeDirectory, testUserConfigurationDirectory),
			}

			for _, role := range testCase.populated {
				writeConfiguration(testInstance, directoryByRole[role], "serve:\n  address: "+addressByRole[role]+"\n")
			}

			loader := newStagehandLoader(directoryByRole["working"], directoryByRole["xdg"], directoryByRole["home"])
			loaded := stagehandConfigurationFixture{}
			metadata, loadError := loader.LoadConfiguration("", nil, &loaded)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedAddress, loaded.Serve.Address)
			require.Equal(testInstance, ".stagehand/cache", loaded.Run.CacheDirectory)

			if len(testCase.populated) == 0 {
				require.Empty(testInstance, metadata.ConfigFileUsed)
				return
			}
			require.Equal(testInstance, filepath.Join(directoryByRole[testCase.populated[0]], testConfigFileNameConstant), metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderExplicitFileReplacesSearchPaths(testInstance *testing.T) {
	searchDirectory := filepath.Join(testInstance.TempDir(), "search")
	writeConfiguration(testInstance, searchDirectory, "run:\n  concurrency: 2\n")
	explicitPath := writeConfiguration(testInstance, filepath.Join(testInstance.TempDir(), "explicit"), "run:\n  concurrency: 6\n")

	loaded := stagehandConfigurationFixture{}
	metadata, loadError := newStagehandLoader(searchDirectory).LoadConfiguration(explicitPath, nil, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 6, loaded.Run.Concurrency)
	require.Equal(testInstance, explicitPath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderErrors(testInstance *testing.T) {
	testInstance.Run("missing_target", func(testInstance *testing.T) {
		_, loadError := newStagehandLoader().LoadConfiguration("", nil, nil)
		require.ErrorIs(testInstance, loadError, utils.ErrConfigurationTargetMissing)
	})

	testInstance.Run("missing_explicit_file", func(testInstance *testing.T) {
		missingPath := filepath.Join(testInstance.TempDir(), testConfigFileNameConstant)
		_, loadError := newStagehandLoader().LoadConfiguration(missingPath, nil, &stagehandConfigurationFixture{})
		require.Error(testInstance, loadError)
		require.Contains(testInstance, loadError.Error(), missingPath)
	})

	testInstance.Run("undecodable_duration", func(testInstance *testing.T) {
		path := writeConfiguration(testInstance, testInstance.TempDir(), "run:\n  retry_initial_interval: soon\n")
		_, loadError := newStagehandLoader().LoadConfiguration(path, nil, &stagehandConfigurationFixture{})
		require.Error(testInstance, loadError)
		require.Contains(testInstance, loadError.Error(), "decode configuration")
	})
}

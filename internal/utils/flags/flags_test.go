package flags_test

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/internal/utils"
	"github.com/tyemirov/stagehand/internal/utils/flags"
)

func newRunCommand(testInstance *testing.T, arguments []string) *cobra.Command {
	testInstance.Helper()
	command := &cobra.Command{Use: "run"}
	flags.BindRunFlags(command, flags.RunDefaults{Concurrency: 2, VersionProvider: "git", CacheDirectory: ".stagehand/cache"})
	require.NoError(testInstance, command.ParseFlags(arguments))
	return command
}

func TestCollectRunFlags(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  utils.RunFlags
		available bool
	}{
		{
			name:     "defaults_only",
			expected: utils.RunFlags{Concurrency: 2, VersionProvider: "git", CacheDirectory: ".stagehand/cache"},
		},
		{
			name:      "explicit_overrides",
			arguments: []string{"--concurrency", "8", "--retries", "3", "--vcs", " content ", "--state-dir", "/var/lib/stagehand"},
			expected: utils.RunFlags{
				Concurrency:        8,
				ConcurrencySet:     true,
				Retries:            3,
				RetriesSet:         true,
				VersionProvider:    "content",
				VersionProviderSet: true,
				CacheDirectory:     ".stagehand/cache",
				StateDirectory:     "/var/lib/stagehand",
				StateDirectorySet:  true,
			},
			available: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := newRunCommand(testInstance, testCase.arguments)
			require.Equal(testInstance, testCase.expected, flags.CollectRunFlags(command))

			resolved, available := flags.ResolveRunFlags(command)
			require.Equal(testInstance, testCase.available, available)
			require.Equal(testInstance, testCase.expected, resolved)
		})
	}
}

func TestResolveRunFlagsPrefersContext(testInstance *testing.T) {
	command := newRunCommand(testInstance, []string{"--concurrency", "8"})
	contextFlags := utils.RunFlags{Retries: 5, RetriesSet: true}
	command.SetContext(utils.NewCommandContextAccessor().WithRunFlags(context.Background(), contextFlags))

	resolved, available := flags.ResolveRunFlags(command)
	require.True(testInstance, available)
	require.Equal(testInstance, contextFlags, resolved)
}

func TestFlagLookupReportsMissingFlags(testInstance *testing.T) {
	command := &cobra.Command{Use: "plan"}

	_, _, intError := flags.IntFlag(command, flags.ConcurrencyFlagName)
	require.ErrorIs(testInstance, intError, flags.ErrFlagNotDefined)

	_, _, stringError := flags.StringFlag(nil, flags.VersionProviderFlagName)
	require.ErrorIs(testInstance, stringError, flags.ErrFlagNotDefined)
	require.Equal(testInstance, utils.RunFlags{}, flags.CollectRunFlags(command))
}

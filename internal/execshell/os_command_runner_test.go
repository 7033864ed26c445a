package execshell_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/internal/execshell"
)

func TestOSCommandRunnerCapturesOutputAndExitCode(testInstance *testing.T) {
	testCases := []struct {
		name             string
		details          execshell.CommandDetails
		expectedOutput   string
		expectedError    string
		expectedExitCode int
	}{
		{
			name:           "standard_output",
			details:        execshell.CommandDetails{Arguments: []string{"-c", "printf hello"}},
			expectedOutput: "hello",
		},
		{
			name:             "non_zero_exit",
			details:          execshell.CommandDetails{Arguments: []string{"-c", "printf oops >&2; exit 3"}},
			expectedError:    "oops",
			expectedExitCode: 3,
		},
		{
			name: "environment_override",
			details: execshell.CommandDetails{
				Arguments:            []string{"-c", "printf \"$STAGEHAND_TEST_VALUE\""},
				EnvironmentVariables: map[string]string{"STAGEHAND_TEST_VALUE": "from-override"},
			},
			expectedOutput: "from-override",
		},
		{
			name:           "standard_input",
			details:        execshell.CommandDetails{Arguments: []string{"-c", "cat"}, StandardInput: []byte("piped")},
			expectedOutput: "piped",
		},
	}

	runner := execshell.NewOSCommandRunner()
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			result, runError := runner.Run(context.Background(), execshell.ShellCommand{Name: execshell.CommandShell, Details: testCase.details})
			require.NoError(testInstance, runError)
			require.Equal(testInstance, testCase.expectedOutput, result.StandardOutput)
			require.Equal(testInstance, testCase.expectedError, result.StandardError)
			require.Equal(testInstance, testCase.expectedExitCode, result.ExitCode)
		})
	}
}

func TestOSCommandRunnerReportsMissingExecutable(testInstance *testing.T) {
	runner := execshell.NewOSCommandRunner()
	_, runError := runner.Run(context.Background(), execshell.ShellCommand{Name: "stagehand-missing-executable"})
	require.Error(testInstance, runError)
}

func TestOSCommandRunnerHonorsCancellation(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	runner := execshell.NewOSCommandRunner()
	_, runError := runner.Run(executionContext, execshell.ShellCommand{Name: execshell.CommandShell, Details: execshell.CommandDetails{Arguments: []string{"-c", "sleep 5"}}})
	require.ErrorIs(testInstance, runError, context.Canceled)
}

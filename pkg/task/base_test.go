package task_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	testBuildTypeConstant          = task.Type("build")
	testServiceNameConstant        = "svc1"
	testSecondServiceNameConstant  = "svc2"
	testVersionOneConstant         = task.StaticVersion("v1")
	testVersionTwoConstant         = task.StaticVersion("v2")
	testIdentifierSampleSize       = 10000
	testDependencyResultConstant   = "artifact-v1"
	testProcessFailureMessage      = "compile failed"
	testValidNameCaseConstant      = "valid_name"
	testEmptyNameCaseConstant      = "empty_name"
	testBlankNameCaseConstant      = "blank_name"
	testDottedNameCaseConstant     = "dotted_name"
	testSlashNameCaseConstant      = "slash_name"
	testEmptyTypeCaseConstant      = "empty_type"
	testMissingVersionCaseConstant = "missing_version"
	testNilDependencyCaseConstant  = "nil_dependency"
)

type buildTask struct {
	*task.Base
	processError error
	processCalls int
}

func newBuildTask(testInstance *testing.T, name string, version task.Version, dependencies ...task.Task) *buildTask {
	testInstance.Helper()
	base, creationError := task.NewBase(task.Parameters{
		Type:         testBuildTypeConstant,
		Name:         name,
		Version:      version,
		Dependencies: dependencies,
	})
	require.NoError(testInstance, creationError)
	return &buildTask{Base: base}
}

func (build *buildTask) Description() string {
	return "build " + build.Name()
}

func (build *buildTask) Process(_ context.Context, dependencyResults task.Results) (any, error) {
	build.processCalls++
	if build.processError != nil {
		return nil, build.processError
	}
	return "artifact-" + build.Version().String() + "-" + strings.Join(sortedKeys(dependencyResults), ","), nil
}

func sortedKeys(results task.Results) []string {
	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestKeysDeriveFromTypeNameAndIdentifier(testInstance *testing.T) {
	firstInstance := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant)
	secondInstance := newBuildTask(testInstance, testServiceNameConstant, testVersionTwoConstant)

	require.Equal(testInstance, "build.svc1", firstInstance.BaseKey())
	require.Equal(testInstance, firstInstance.BaseKey(), secondInstance.BaseKey())
	require.Equal(testInstance, firstInstance.BaseKey()+"."+firstInstance.ID().String(), firstInstance.Key())
	require.Equal(testInstance, secondInstance.BaseKey()+"."+secondInstance.ID().String(), secondInstance.Key())
	require.NotEqual(testInstance, firstInstance.Key(), secondInstance.Key())
	require.True(testInstance, firstInstance.ID() < secondInstance.ID())
	require.Equal(testInstance, firstInstance.Key(), firstInstance.Key())

	require.True(testInstance, firstInstance.Version().Equal(testVersionOneConstant))
	require.False(testInstance, firstInstance.Version().Equal(secondInstance.Version()))
}

func TestDefaultIdentifiersAreDistinctAndOrdered(testInstance *testing.T) {
	generator := task.DefaultIDGenerator
	identifiers := make([]task.ID, 0, testIdentifierSampleSize)
	seen := make(map[task.ID]struct{}, testIdentifierSampleSize)
	for index := 0; index < testIdentifierSampleSize; index++ {
		identifier := generator.NewID()
		_, duplicate := seen[identifier]
		require.False(testInstance, duplicate, "identifier %s repeated", identifier)
		seen[identifier] = struct{}{}
		identifiers = append(identifiers, identifier)
	}

	for index := 1; index < len(identifiers); index++ {
		require.LessOrEqual(testInstance, string(identifiers[index-1]), string(identifiers[index]))
	}
}

func TestNewBaseRejectsInvalidDefinitions(testInstance *testing.T) {
	validDependency := newBuildTask(testInstance, testSecondServiceNameConstant, testVersionOneConstant)

	testCases := []struct {
		name          string
		parameters    task.Parameters
		expectedField string
	}{
		{
			name:       testValidNameCaseConstant,
			parameters: task.Parameters{Type: testBuildTypeConstant, Name: "svc-1_a", Version: testVersionOneConstant, Dependencies: []task.Task{validDependency}},
		},
		{
			name:          testEmptyNameCaseConstant,
			parameters:    task.Parameters{Type: testBuildTypeConstant, Name: "", Version: testVersionOneConstant},
			expectedField: "name",
		},
		{
			name:          testBlankNameCaseConstant,
			parameters:    task.Parameters{Type: testBuildTypeConstant, Name: "   ", Version: testVersionOneConstant},
			expectedField: "name",
		},
		{
			name:          testDottedNameCaseConstant,
			parameters:    task.Parameters{Type: testBuildTypeConstant, Name: "svc.1", Version: testVersionOneConstant},
			expectedField: "name",
		},
		{
			name:          testSlashNameCaseConstant,
			parameters:    task.Parameters{Type: testBuildTypeConstant, Name: "svc/1", Version: testVersionOneConstant},
			expectedField: "name",
		},
		{
			name:          testEmptyTypeCaseConstant,
			parameters:    task.Parameters{Type: "", Name: testServiceNameConstant, Version: testVersionOneConstant},
			expectedField: "type",
		},
		{
			name:          testMissingVersionCaseConstant,
			parameters:    task.Parameters{Type: testBuildTypeConstant, Name: testServiceNameConstant},
			expectedField: "version",
		},
		{
			name:          testNilDependencyCaseConstant,
			parameters:    task.Parameters{Type: testBuildTypeConstant, Name: testServiceNameConstant, Version: testVersionOneConstant, Dependencies: []task.Task{nil}},
			expectedField: "dependency",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			base, creationError := task.NewBase(testCase.parameters)
			if len(testCase.expectedField) == 0 {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, base)
				return
			}

			require.Nil(testInstance, base)
			require.ErrorIs(testInstance, creationError, task.ErrDefinition)
			var definitionError task.DefinitionError
			require.True(testInstance, errors.As(creationError, &definitionError))
			require.Equal(testInstance, testCase.expectedField, definitionError.Field)
		})
	}
}

func TestDependenciesPreserveOrderAndReturnCopies(testInstance *testing.T) {
	firstDependency := newBuildTask(testInstance, "lib-a", testVersionOneConstant)
	secondDependency := newBuildTask(testInstance, "lib-b", testVersionOneConstant)
	dependent := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant, firstDependency, secondDependency)

	firstCall, firstError := dependent.Dependencies(context.Background())
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, []task.Task{firstDependency, secondDependency}, firstCall)

	firstCall[0] = nil
	secondCall, secondError := dependent.Dependencies(context.Background())
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, []task.Task{firstDependency, secondDependency}, secondCall)

	standalone := newBuildTask(testInstance, testSecondServiceNameConstant, testVersionOneConstant)
	noDependencies, noDependenciesError := standalone.Dependencies(context.Background())
	require.NoError(testInstance, noDependenciesError)
	require.Empty(testInstance, noDependencies)
}

func TestAddDependenciesFailsAfterFreeze(testInstance *testing.T) {
	dependency := newBuildTask(testInstance, "lib-a", testVersionOneConstant)
	dependent := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant)

	require.NoError(testInstance, dependent.AddDependencies(dependency))
	require.ErrorIs(testInstance, dependent.AddDependencies(nil), task.ErrDefinition)
	require.False(testInstance, dependent.Frozen())

	dependent.Freeze()
	require.True(testInstance, dependent.Frozen())
	require.ErrorIs(testInstance, dependent.AddDependencies(dependency), task.ErrDependenciesFrozen)

	dependencies, dependenciesError := dependent.Dependencies(context.Background())
	require.NoError(testInstance, dependenciesError)
	require.Len(testInstance, dependencies, 1)
}

func TestProcessWithoutDependenciesAcceptsEmptyResults(testInstance *testing.T) {
	standalone := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant)

	result, processError := standalone.Process(context.Background(), task.Results{})
	require.NoError(testInstance, processError)
	require.Equal(testInstance, "artifact-v1-", result)
}

func TestProcessFailurePropagatesUnchanged(testInstance *testing.T) {
	expectedError := errors.New(testProcessFailureMessage)
	failing := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant)
	failing.processError = expectedError

	result, processError := failing.Process(context.Background(), task.Results{})
	require.Nil(testInstance, result)
	require.Same(testInstance, expectedError, processError)
	require.Equal(testInstance, 1, failing.processCalls)
}

func TestRebuildAfterSourceChangeSharesBaseKey(testInstance *testing.T) {
	firstBuild := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant)
	secondBuild := newBuildTask(testInstance, testServiceNameConstant, testVersionTwoConstant)

	require.Equal(testInstance, firstBuild.BaseKey(), secondBuild.BaseKey())
	require.NotEqual(testInstance, firstBuild.Key(), secondBuild.Key())
	require.False(testInstance, firstBuild.Version().Equal(secondBuild.Version()))
}

func TestDependencyResultLookup(testInstance *testing.T) {
	dependency := newBuildTask(testInstance, "lib-a", testVersionOneConstant)
	dependent := newBuildTask(testInstance, testServiceNameConstant, testVersionOneConstant, dependency)

	results := task.Results{dependency.Key(): testDependencyResultConstant}
	value, lookupError := task.DependencyResult(results, dependency)
	require.NoError(testInstance, lookupError)
	require.Equal(testInstance, testDependencyResultConstant, value)

	_, missingError := task.DependencyResult(results, dependent)
	require.ErrorIs(testInstance, missingError, task.ErrDependencyResultMissing)
	require.Contains(testInstance, missingError.Error(), dependent.Key())
}

func TestDecodeResultHandlesReloadedMaps(testInstance *testing.T) {
	type artifact struct {
		Image string `yaml:"image"`
		Size  int    `yaml:"size"`
	}

	dependency := newBuildTask(testInstance, "lib-a", testVersionOneConstant)
	results := task.Results{dependency.Key(): map[string]any{"image": "svc1:v1", "size": "42"}}

	var decoded artifact
	require.NoError(testInstance, task.DecodeResult(results, dependency, &decoded))
	require.Equal(testInstance, artifact{Image: "svc1:v1", Size: 42}, decoded)
}

func TestCustomIdentifierGenerator(testInstance *testing.T) {
	base, creationError := task.NewBase(task.Parameters{
		Type:        testBuildTypeConstant,
		Name:        testServiceNameConstant,
		Version:     testVersionOneConstant,
		IDGenerator: task.IDGeneratorFunc(func() task.ID { return "fixed" }),
	})
	require.NoError(testInstance, creationError)
	require.Equal(testInstance, "build.svc1.fixed", base.Key())
}

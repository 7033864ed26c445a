// Package version reports the stagehand build identity.
package version

import (
	"context"
	"errors"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/stagehand/internal/execshell"
)

const (
	unknownVersionFallbackConstant            = "unknown"
	buildInfoDevelVersionValue                = "devel"
	buildSettingRevisionConstant              = "vcs.revision"
	buildSettingModifiedConstant              = "vcs.modified"
	buildSettingModifiedTrueConstant          = "true"
	shortRevisionLengthConstant               = 12
	gitRevParseSubcommandConstant             = "rev-parse"
	gitShowTopLevelFlagConstant               = "--show-toplevel"
	gitHeadReferenceConstant                  = "HEAD"
	gitDescribeSubcommandConstant             = "describe"
	gitTagsFlagConstant                       = "--tags"
	gitExactMatchFlagConstant                 = "--exact-match"
	gitLongFlagConstant                       = "--long"
	gitDirtyFlagConstant                      = "--dirty"
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentValueConstant = "0"
	gitExecutorMissingMessageConstant         = "git executor not configured"
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Info describes the running binary.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Revision  string `json:"revision,omitempty" yaml:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	GoVersion string `json:"go_version,omitempty" yaml:"go_version,omitempty"`
}

// Detector resolves the build identity from build metadata, falling back to the
// git checkout the binary runs from.
type Detector struct {
	buildInfoProvider BuildInfoProvider
	gitExecutor       GitExecutor
	workingDirectory  string
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
	GitExecutor       GitExecutor
	WorkingDirectory  string
}

// NewDetector constructs a Detector with the supplied dependencies or sensible defaults.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}

	executor := dependencies.GitExecutor
	if executor == nil {
		shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner(), false)
		if creationError != nil {
			return nil, creationError
		}
		executor = shellExecutor
	}

	workingDirectory := strings.TrimSpace(dependencies.WorkingDirectory)
	if len(workingDirectory) == 0 {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError == nil {
			workingDirectory = currentDirectory
		}
	}

	return &Detector{
		buildInfoProvider: provider,
		gitExecutor:       executor,
		workingDirectory:  workingDirectory,
	}, nil
}

// Detect resolves the build identity using the supplied dependencies.
func Detect(executionContext context.Context, dependencies Dependencies) Info {
	detector, detectorError := NewDetector(dependencies)
	if detectorError != nil {
		return Info{Version: unknownVersionFallbackConstant}
	}
	return detector.Info(executionContext)
}

// Version returns the detected version string.
func (detector *Detector) Version(executionContext context.Context) string {
	return detector.Info(executionContext).Version
}

// Info returns the detected build identity. Build metadata wins; otherwise the
// git checkout is described, first by exact tag and then by the long form.
func (detector *Detector) Info(executionContext context.Context) Info {
	if detector == nil {
		return Info{Version: unknownVersionFallbackConstant}
	}

	info := detector.infoFromBuildSettings()
	if len(info.Version) > 0 {
		return info
	}

	repositoryRoot := detector.resolveRepositoryRoot(executionContext)
	if len(info.Revision) == 0 {
		info.Revision = shortRevision(detector.git(executionContext, repositoryRoot, gitRevParseSubcommandConstant, gitHeadReferenceConstant))
	}

	info.Version = detector.git(executionContext, repositoryRoot, gitDescribeSubcommandConstant, gitTagsFlagConstant, gitExactMatchFlagConstant)
	if len(info.Version) == 0 {
		info.Version = detector.git(executionContext, repositoryRoot, gitDescribeSubcommandConstant, gitTagsFlagConstant, gitLongFlagConstant, gitDirtyFlagConstant)
	}
	if len(info.Version) == 0 {
		info.Version = unknownVersionFallbackConstant
	}
	return info
}

// infoFromBuildSettings fills what debug.BuildInfo knows. Version stays empty for
// development builds so the git fallback applies.
func (detector *Detector) infoFromBuildSettings() Info {
	if detector.buildInfoProvider == nil {
		return Info{}
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return Info{}
	}

	info := Info{GoVersion: buildInfo.GoVersion}
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case buildSettingRevisionConstant:
			info.Revision = shortRevision(setting.Value)
		case buildSettingModifiedConstant:
			info.Modified = setting.Value == buildSettingModifiedTrueConstant
		}
	}

	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) > 0 && !strings.EqualFold(trimmedVersion, buildInfoDevelVersionValue) && !strings.HasPrefix(trimmedVersion, "(") {
		info.Version = trimmedVersion
	}
	return info
}

func (detector *Detector) resolveRepositoryRoot(executionContext context.Context) string {
	if len(detector.workingDirectory) == 0 {
		return ""
	}

	repositoryRoot := detector.git(executionContext, detector.workingDirectory, gitRevParseSubcommandConstant, gitShowTopLevelFlagConstant)
	if len(repositoryRoot) == 0 {
		return detector.workingDirectory
	}
	return repositoryRoot
}

// git returns the trimmed standard output, or an empty string on any failure.
func (detector *Detector) git(executionContext context.Context, workingDirectory string, arguments ...string) string {
	executionResult, executionError := detector.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingDirectory,
	})
	if executionError != nil {
		return ""
	}
	return strings.TrimSpace(executionResult.StandardOutput)
}

func (detector *Detector) executeGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	if detector.gitExecutor == nil {
		return execshell.ExecutionResult{}, errors.New(gitExecutorMissingMessageConstant)
	}

	details.EnvironmentVariables = map[string]string{
		gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentValueConstant,
	}
	return detector.gitExecutor.ExecuteGit(executionContext, details)
}

func shortRevision(revision string) string {
	trimmed := strings.TrimSpace(revision)
	if len(trimmed) > shortRevisionLengthConstant {
		return trimmed[:shortRevisionLengthConstant]
	}
	return trimmed
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

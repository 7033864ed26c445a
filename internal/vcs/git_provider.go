package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyemirov/stagehand/internal/execshell"
)

const (
	gitLogSubcommandConstant                  = "log"
	gitLatestCommitFlagConstant               = "-1"
	gitShortHashFormatFlagConstant            = "--format=%h"
	gitStatusSubcommandConstant               = "status"
	gitPorcelainFlagConstant                  = "--porcelain"
	gitNullTerminatedFlagConstant             = "-z"
	gitUntrackedFilesFlagConstant             = "--untracked-files=all"
	gitRevParseSubcommandConstant             = "rev-parse"
	gitShowTopLevelFlagConstant               = "--show-toplevel"
	gitPathSeparatorArgumentConstant          = "--"
	gitCurrentDirectoryArgumentConstant       = "."
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentValueConstant = "0"
	porcelainStatusPrefixLengthConstant       = 3
	porcelainRenameStatusConstant             = 'R'
	porcelainCopyStatusConstant               = 'C'
	resolvePathTemplateConstant               = "resolve path %s: %w"
	gitCommandTemplateConstant                = "git %s in %s: %w"
)

// GitProvider derives versions from the latest commit touching a path plus any uncommitted changes beneath it.
// Changes inside .stagehand directories and inside the excluded directories never make a tree dirty.
type GitProvider struct {
	executor            GitExecutor
	excludedDirectories []string
	now                 func() time.Time
}

// NewGitProvider constructs a GitProvider. Excluded directories hold files stagehand
// writes itself, such as the result cache and run records.
func NewGitProvider(executor GitExecutor, excludedDirectories ...string) (*GitProvider, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &GitProvider{executor: executor, excludedDirectories: canonicalDirectories(excludedDirectories), now: time.Now}, nil
}

// ResolveVersion returns the short hash of the newest commit affecting path. When
// files under path are modified, added or untracked, DirtyTimestamp carries the
// newest modification time among them.
func (provider *GitProvider) ResolveVersion(executionContext context.Context, path string) (TreeVersion, error) {
	workingDirectory, target, resolveError := splitTarget(path)
	if resolveError != nil {
		return TreeVersion{}, resolveError
	}

	hashOutput, logError := provider.git(executionContext, workingDirectory,
		gitLogSubcommandConstant, gitLatestCommitFlagConstant, gitShortHashFormatFlagConstant,
		gitPathSeparatorArgumentConstant, target)
	if logError != nil {
		// Repositories without commits make git log fail; fall back to the untracked marker.
		hashOutput = ""
	}

	versionString := strings.TrimSpace(hashOutput)
	if len(versionString) == 0 {
		versionString = UntrackedVersionString
	}

	repositoryRoot, rootError := provider.git(executionContext, workingDirectory, gitRevParseSubcommandConstant, gitShowTopLevelFlagConstant)
	if rootError != nil {
		return TreeVersion{}, rootError
	}

	statusOutput, statusError := provider.git(executionContext, workingDirectory,
		gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitNullTerminatedFlagConstant, gitUntrackedFilesFlagConstant,
		gitPathSeparatorArgumentConstant, target)
	if statusError != nil {
		return TreeVersion{}, statusError
	}

	root := canonicalDirectory(strings.TrimSpace(repositoryRoot))
	dirtyFiles := provider.filterExcluded(root, parsePorcelainPaths(statusOutput))
	if len(dirtyFiles) == 0 {
		return TreeVersion{VersionString: versionString}, nil
	}

	return TreeVersion{
		VersionString:  versionString,
		DirtyTimestamp: provider.newestModification(root, dirtyFiles),
	}, nil
}

func (provider *GitProvider) filterExcluded(repositoryRoot string, relativePaths []string) []string {
	kept := make([]string, 0, len(relativePaths))
	for _, relativePath := range relativePaths {
		if withinStateDirectory(relativePath) {
			continue
		}
		if isExcluded(filepath.Join(repositoryRoot, filepath.FromSlash(relativePath)), provider.excludedDirectories) {
			continue
		}
		kept = append(kept, relativePath)
	}
	return kept
}

func withinStateDirectory(relativePath string) bool {
	for _, segment := range strings.Split(strings.TrimSuffix(relativePath, "/"), "/") {
		if segment == stateDirectoryNameConstant {
			return true
		}
	}
	return false
}

func (provider *GitProvider) newestModification(repositoryRoot string, relativePaths []string) int64 {
	var newest time.Time
	for _, relativePath := range relativePaths {
		info, statError := os.Stat(filepath.Join(repositoryRoot, filepath.FromSlash(relativePath)))
		if statError != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	// Only deletions remain.
	if newest.IsZero() {
		newest = provider.now()
	}
	return newest.Unix()
}

func (provider *GitProvider) git(executionContext context.Context, workingDirectory string, arguments ...string) (string, error) {
	result, executionError := provider.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentValueConstant},
	})
	if executionError != nil {
		return "", fmt.Errorf(gitCommandTemplateConstant, arguments[0], workingDirectory, executionError)
	}
	return result.StandardOutput, nil
}

// parsePorcelainPaths extracts repository-relative paths from `git status --porcelain -z`.
func parsePorcelainPaths(output string) []string {
	entries := strings.Split(output, "\x00")
	paths := make([]string, 0, len(entries))
	for entryIndex := 0; entryIndex < len(entries); entryIndex++ {
		entry := entries[entryIndex]
		if len(entry) <= porcelainStatusPrefixLengthConstant {
			continue
		}
		paths = append(paths, entry[porcelainStatusPrefixLengthConstant:])
		status := entry[0]
		if status == porcelainRenameStatusConstant || status == porcelainCopyStatusConstant {
			entryIndex++
		}
	}
	return paths
}

// splitTarget returns the directory git runs in and the pathspec it inspects.
func splitTarget(path string) (string, string, error) {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return "", "", fmt.Errorf(resolvePathTemplateConstant, path, absoluteError)
	}
	info, statError := os.Stat(absolutePath)
	if statError != nil {
		return "", "", fmt.Errorf(resolvePathTemplateConstant, path, statError)
	}
	if info.IsDir() {
		return absolutePath, gitCurrentDirectoryArgumentConstant, nil
	}
	return filepath.Dir(absolutePath), filepath.Base(absolutePath), nil
}

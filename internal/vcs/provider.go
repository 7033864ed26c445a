package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tyemirov/stagehand/internal/execshell"
)

const (
	// ProviderKindGit resolves versions from git history and working tree state.
	ProviderKindGit = "git"
	// ProviderKindContent resolves versions from file contents only.
	ProviderKindContent = "content"

	unknownProviderKindMessageConstant  = "unknown version provider"
	unknownProviderKindTemplateConstant = "%w %q (expected %s or %s)"
	gitExecutorMissingMessageConstant   = "git executor not configured"
)

var (
	// ErrUnknownProviderKind indicates an unsupported provider name.
	ErrUnknownProviderKind = errors.New(unknownProviderKindMessageConstant)
	// ErrGitExecutorNotConfigured indicates a GitProvider built without an executor.
	ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)
)

// Provider resolves the content version of a path.
type Provider interface {
	ResolveVersion(executionContext context.Context, path string) (TreeVersion, error)
}

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// NewProvider selects a provider by kind. The git executor is only required for the git kind.
// Files under the excluded directories never contribute to a version.
func NewProvider(kind string, gitExecutor GitExecutor, excludedDirectories ...string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case ProviderKindGit, "":
		gitProvider, creationError := NewGitProvider(gitExecutor, excludedDirectories...)
		if creationError != nil {
			return nil, creationError
		}
		return gitProvider, nil
	case ProviderKindContent:
		return NewContentProvider(excludedDirectories...), nil
	default:
		return nil, fmt.Errorf(unknownProviderKindTemplateConstant, ErrUnknownProviderKind, kind, ProviderKindGit, ProviderKindContent)
	}
}

func canonicalDirectories(directories []string) []string {
	canonical := make([]string, 0, len(directories))
	for _, directory := range directories {
		if len(strings.TrimSpace(directory)) == 0 {
			continue
		}
		canonical = append(canonical, canonicalDirectory(directory))
	}
	return canonical
}

// canonicalDirectory returns the absolute, symlink-free form of directory when it can be resolved.
func canonicalDirectory(directory string) string {
	absoluteDirectory, absoluteError := filepath.Abs(strings.TrimSpace(directory))
	if absoluteError != nil {
		return filepath.Clean(directory)
	}
	resolved, resolveError := filepath.EvalSymlinks(absoluteDirectory)
	if resolveError != nil {
		return absoluteDirectory
	}
	return resolved
}

func isExcluded(path string, excludedDirectories []string) bool {
	for _, excludedDirectory := range excludedDirectories {
		if path == excludedDirectory || strings.HasPrefix(path, excludedDirectory+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

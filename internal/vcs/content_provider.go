package vcs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/sumdb/dirhash"
)

const (
	gitDirectoryNameConstant       = ".git"
	stateDirectoryNameConstant     = ".stagehand"
	hashTreeTemplateConstant       = "hash tree %s: %w"
	walkTreeTemplateConstant       = "walk tree %s: %w"
	emptyTreeVersionStringConstant = "h1:empty"
)

// ContentProvider derives versions from file contents alone. Two trees with the same
// files and bytes resolve to the same version regardless of history or timestamps.
type ContentProvider struct {
	excludedDirectories []string
}

// NewContentProvider constructs a ContentProvider that skips the excluded directories.
func NewContentProvider(excludedDirectories ...string) ContentProvider {
	return ContentProvider{excludedDirectories: canonicalDirectories(excludedDirectories)}
}

// ResolveVersion hashes every regular file under path with the dirhash h1 algorithm.
// The .git and .stagehand directories and the excluded directories are not part of the tree.
func (provider ContentProvider) ResolveVersion(executionContext context.Context, path string) (TreeVersion, error) {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return TreeVersion{}, fmt.Errorf(resolvePathTemplateConstant, path, absoluteError)
	}
	info, statError := os.Stat(absolutePath)
	if statError != nil {
		return TreeVersion{}, fmt.Errorf(resolvePathTemplateConstant, path, statError)
	}

	root := absolutePath
	files := []string{filepath.Base(absolutePath)}
	if info.IsDir() {
		collected, walkError := collectFiles(executionContext, absolutePath, provider.excludedDirectories)
		if walkError != nil {
			return TreeVersion{}, walkError
		}
		files = collected
	} else {
		root = filepath.Dir(absolutePath)
	}

	if len(files) == 0 {
		return TreeVersion{VersionString: emptyTreeVersionStringConstant}, nil
	}

	hash, hashError := dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(root, filepath.FromSlash(name)))
	})
	if hashError != nil {
		return TreeVersion{}, fmt.Errorf(hashTreeTemplateConstant, path, hashError)
	}
	return TreeVersion{VersionString: hash}, nil
}

func collectFiles(executionContext context.Context, root string, excludedDirectories []string) ([]string, error) {
	canonicalRoot := canonicalDirectory(root)
	files := make([]string, 0)
	walkError := filepath.WalkDir(root, func(current string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if entry.IsDir() {
			if entry.Name() == gitDirectoryNameConstant || entry.Name() == stateDirectoryNameConstant {
				return filepath.SkipDir
			}
			if current != root && len(excludedDirectories) > 0 {
				relativeDirectory, relativeError := filepath.Rel(root, current)
				if relativeError == nil && isExcluded(filepath.Join(canonicalRoot, relativeDirectory), excludedDirectories) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(root, current)
		if relativeError != nil {
			return relativeError
		}
		files = append(files, filepath.ToSlash(relativePath))
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(walkTreeTemplateConstant, root, walkError)
	}
	return files, nil
}

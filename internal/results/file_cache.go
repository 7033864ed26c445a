package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	cacheFileExtensionConstant           = ".yaml"
	readCacheEntryTemplateConstant       = "read cache entry %s: %w"
	writeCacheEntryTemplateConstant      = "write cache entry %s: %w"
	createCacheDirectoryTemplateConstant = "create cache directory %s: %w"
)

type fileCacheEntry struct {
	BaseKey string `yaml:"base_key"`
	Version string `yaml:"version"`
	Result  any    `yaml:"result"`
}

// FileCache persists the most recent result per base key as YAML documents so
// unchanged tasks are skipped across invocations. Results come back as generic
// maps and scalars; consumers decode them with task.DecodeResult.
type FileCache struct {
	directory string
	mutex     sync.Mutex
}

// NewFileCache constructs a FileCache rooted at directory, creating it when missing.
func NewFileCache(directory string) (*FileCache, error) {
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return nil, fmt.Errorf(createCacheDirectoryTemplateConstant, directory, mkdirError)
	}
	return &FileCache{directory: directory}, nil
}

// Lookup returns the stored result when its recorded version equals version.
func (cache *FileCache) Lookup(_ context.Context, baseKey string, version task.Version) (any, bool, error) {
	if version == nil {
		return nil, false, nil
	}

	cache.mutex.Lock()
	content, readError := os.ReadFile(cache.path(baseKey))
	cache.mutex.Unlock()
	if errors.Is(readError, os.ErrNotExist) {
		return nil, false, nil
	}
	if readError != nil {
		return nil, false, fmt.Errorf(readCacheEntryTemplateConstant, baseKey, readError)
	}

	var entry fileCacheEntry
	if unmarshalError := yaml.Unmarshal(content, &entry); unmarshalError != nil {
		return nil, false, fmt.Errorf(readCacheEntryTemplateConstant, baseKey, unmarshalError)
	}
	if entry.BaseKey != baseKey || !version.Equal(task.StaticVersion(entry.Version)) {
		return nil, false, nil
	}
	return entry.Result, true, nil
}

// Store replaces the entry recorded for baseKey.
func (cache *FileCache) Store(_ context.Context, baseKey string, version task.Version, result any) error {
	if version == nil {
		return nil
	}
	content, marshalError := yaml.Marshal(fileCacheEntry{BaseKey: baseKey, Version: version.String(), Result: result})
	if marshalError != nil {
		return fmt.Errorf(writeCacheEntryTemplateConstant, baseKey, marshalError)
	}

	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if writeError := writeFileAtomically(cache.directory, cache.path(baseKey), content); writeError != nil {
		return fmt.Errorf(writeCacheEntryTemplateConstant, baseKey, writeError)
	}
	return nil
}

func (cache *FileCache) path(baseKey string) string {
	return filepath.Join(cache.directory, filepath.Base(baseKey)+cacheFileExtensionConstant)
}

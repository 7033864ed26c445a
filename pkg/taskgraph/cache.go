package taskgraph

import (
	"context"
	"sync"

	"github.com/tyemirov/stagehand/pkg/task"
)

// ResultCache memoizes results of cacheable tasks by base key and version.
type ResultCache interface {
	Lookup(executionContext context.Context, baseKey string, version task.Version) (any, bool, error)
	Store(executionContext context.Context, baseKey string, version task.Version, result any) error
}

type memoryCacheEntry struct {
	version task.Version
	result  any
}

// MemoryCache keeps the most recent result per base key for the lifetime of the process.
type MemoryCache struct {
	mutex   sync.RWMutex
	entries map[string]memoryCacheEntry
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

// Lookup returns the stored result when the stored version equals version.
func (cache *MemoryCache) Lookup(_ context.Context, baseKey string, version task.Version) (any, bool, error) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()

	entry, found := cache.entries[baseKey]
	if !found || version == nil || !version.Equal(entry.version) {
		return nil, false, nil
	}
	return entry.result, true, nil
}

// Store replaces the result recorded for baseKey.
func (cache *MemoryCache) Store(_ context.Context, baseKey string, version task.Version, result any) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	cache.entries[baseKey] = memoryCacheEntry{version: version, result: result}
	return nil
}

package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	runNotFoundMessageConstant      = "run not found"
	runNotFoundTemplateConstant     = "%w: %s"
	invalidRunIDMessageConstant     = "invalid run identifier"
	runFileExtensionConstant        = ".yaml"
	temporaryFilePatternConstant    = ".run-*.tmp"
	directoryPermissionsConstant    = 0o755
	createDirectoryTemplateConstant = "create results directory %s: %w"
	writeRunTemplateConstant        = "write run %s: %w"
	readRunTemplateConstant         = "read run %s: %w"
	listRunsTemplateConstant        = "list runs in %s: %w"
)

var (
	// ErrRunNotFound indicates no run is stored under the requested identifier.
	ErrRunNotFound = errors.New(runNotFoundMessageConstant)
	// ErrInvalidRunID indicates an identifier that cannot name a stored run.
	ErrInvalidRunID = errors.New(invalidRunIDMessageConstant)
)

// Store persists run records.
type Store interface {
	Save(executionContext context.Context, run Run) error
	Load(executionContext context.Context, runID string) (Run, error)
	// List returns stored runs, newest first.
	List(executionContext context.Context) ([]Run, error)
}

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mutex sync.RWMutex
	runs  map[string]Run
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

// Save stores or replaces run.
func (store *MemoryStore) Save(_ context.Context, run Run) error {
	if validationError := validateRunID(run.ID); validationError != nil {
		return validationError
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.runs[run.ID] = run
	return nil
}

// Load returns the run stored under runID.
func (store *MemoryStore) Load(_ context.Context, runID string) (Run, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	run, found := store.runs[runID]
	if !found {
		return Run{}, fmt.Errorf(runNotFoundTemplateConstant, ErrRunNotFound, runID)
	}
	return run, nil
}

// List returns every stored run, newest first.
func (store *MemoryStore) List(_ context.Context) ([]Run, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	runs := make([]Run, 0, len(store.runs))
	for _, run := range store.runs {
		runs = append(runs, run)
	}
	sortNewestFirst(runs)
	return runs, nil
}

// FileStore keeps one YAML document per run in a directory.
type FileStore struct {
	directory string
}

// NewFileStore constructs a FileStore rooted at directory, creating it when missing.
func NewFileStore(directory string) (*FileStore, error) {
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return nil, fmt.Errorf(createDirectoryTemplateConstant, directory, mkdirError)
	}
	return &FileStore{directory: directory}, nil
}

// Save writes the run atomically.
func (store *FileStore) Save(_ context.Context, run Run) error {
	if validationError := validateRunID(run.ID); validationError != nil {
		return validationError
	}
	content, marshalError := yaml.Marshal(run)
	if marshalError != nil {
		return fmt.Errorf(writeRunTemplateConstant, run.ID, marshalError)
	}
	if writeError := writeFileAtomically(store.directory, store.path(run.ID), content); writeError != nil {
		return fmt.Errorf(writeRunTemplateConstant, run.ID, writeError)
	}
	return nil
}

// Load reads the run stored under runID.
func (store *FileStore) Load(_ context.Context, runID string) (Run, error) {
	if validationError := validateRunID(runID); validationError != nil {
		return Run{}, validationError
	}
	return readRunFile(store.path(runID), runID)
}

// List reads every stored run, newest first.
func (store *FileStore) List(executionContext context.Context) ([]Run, error) {
	entries, readError := os.ReadDir(store.directory)
	if readError != nil {
		return nil, fmt.Errorf(listRunsTemplateConstant, store.directory, readError)
	}

	runs := make([]Run, 0, len(entries))
	for _, entry := range entries {
		if contextError := executionContext.Err(); contextError != nil {
			return nil, contextError
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != runFileExtensionConstant {
			continue
		}
		runID := strings.TrimSuffix(entry.Name(), runFileExtensionConstant)
		run, loadError := readRunFile(filepath.Join(store.directory, entry.Name()), runID)
		if loadError != nil {
			return nil, loadError
		}
		runs = append(runs, run)
	}
	sortNewestFirst(runs)
	return runs, nil
}

func (store *FileStore) path(runID string) string {
	return filepath.Join(store.directory, runID+runFileExtensionConstant)
}

func readRunFile(path string, runID string) (Run, error) {
	content, readError := os.ReadFile(path)
	if errors.Is(readError, os.ErrNotExist) {
		return Run{}, fmt.Errorf(runNotFoundTemplateConstant, ErrRunNotFound, runID)
	}
	if readError != nil {
		return Run{}, fmt.Errorf(readRunTemplateConstant, runID, readError)
	}
	var run Run
	if unmarshalError := yaml.Unmarshal(content, &run); unmarshalError != nil {
		return Run{}, fmt.Errorf(readRunTemplateConstant, runID, unmarshalError)
	}
	return run, nil
}

func writeFileAtomically(directory string, path string, content []byte) error {
	temporaryFile, createError := os.CreateTemp(directory, temporaryFilePatternConstant)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()
	if _, writeError := temporaryFile.Write(content); writeError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return writeError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		os.Remove(temporaryPath)
		return closeError
	}
	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		os.Remove(temporaryPath)
		return renameError
	}
	return nil
}

func validateRunID(runID string) error {
	trimmed := strings.TrimSpace(runID)
	if len(trimmed) == 0 || trimmed != runID || strings.ContainsAny(runID, `/\.`) {
		return fmt.Errorf(runNotFoundTemplateConstant, ErrInvalidRunID, runID)
	}
	return nil
}

// sortNewestFirst orders runs by start time, breaking ties by identifier.
func sortNewestFirst(runs []Run) {
	sort.SliceStable(runs, func(left int, right int) bool {
		if !runs[left].StartedAt.Equal(runs[right].StartedAt) {
			return runs[left].StartedAt.After(runs[right].StartedAt)
		}
		return runs[left].ID > runs[right].ID
	})
}

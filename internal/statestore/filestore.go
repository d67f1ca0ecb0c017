package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/alexhughson/reflo/internal/resource"
)

type taskEntry struct {
	Deps   map[string]*resource.State `yaml:"deps,omitempty"`
	Result any                        `yaml:"result,omitempty"`
}

type fileDoc struct {
	Tasks map[string]*taskEntry `yaml:"tasks"`
}

// FileStore persists state as YAML, buffering writes in memory and
// flushing them to disk with a write-temp-then-rename on Commit, so a
// crash mid-write never leaves a torn file (spec §4.2's "atomic commit").
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  fileDoc
}

// NewFileStore loads path if it exists, or starts empty.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, doc: fileDoc{Tasks: make(map[string]*taskEntry)}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreIO, path, err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := yaml.Unmarshal(data, &fs.doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrStoreIO, path, err)
	}
	if fs.doc.Tasks == nil {
		fs.doc.Tasks = make(map[string]*taskEntry)
	}
	return fs, nil
}

func (s *FileStore) entry(taskName string) *taskEntry {
	e, ok := s.doc.Tasks[taskName]
	if !ok {
		e = &taskEntry{Deps: make(map[string]*resource.State)}
		s.doc.Tasks[taskName] = e
	}
	if e.Deps == nil {
		e.Deps = make(map[string]*resource.State)
	}
	return e
}

func (s *FileStore) Get(taskName, depKey string) (*resource.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.doc.Tasks[taskName]
	if !ok {
		return nil, false
	}
	st, ok := e.Deps[depKey]
	return st, ok
}

func (s *FileStore) Put(taskName, depKey string, state *resource.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(taskName).Deps[depKey] = state
}

func (s *FileStore) PutResult(taskName string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(taskName).Result = value
}

func (s *FileStore) GetResult(taskName string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.doc.Tasks[taskName]
	if !ok || e.Result == nil {
		return nil, false
	}
	return e.Result, true
}

func (s *FileStore) Clear(taskName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Tasks, taskName)
}

// Commit flushes the buffered state to disk atomically: write to a
// sibling temp file, then rename over the target path.
func (s *FileStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("%w: marshaling: %v", ErrStoreIO, err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating %s: %v", ErrStoreIO, dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".reflo-state-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrStoreIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %v", ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", ErrStoreIO, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: renaming into place: %v", ErrStoreIO, err)
	}
	return nil
}

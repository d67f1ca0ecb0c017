package statestore

import (
	"sync"

	"github.com/alexhughson/reflo/internal/resource"
)

// MemoryStore is a non-persistent Store, used by tests and by callers
// that don't need change-detection to survive a process restart. It
// mirrors original_source/doit's InMemoryStateStore.
type MemoryStore struct {
	mu      sync.Mutex
	deps    map[string]map[string]*resource.State
	results map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deps:    make(map[string]map[string]*resource.State),
		results: make(map[string]any),
	}
}

func (s *MemoryStore) Get(taskName, depKey string) (*resource.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.deps[taskName][depKey]
	return st, ok
}

func (s *MemoryStore) Put(taskName, depKey string, state *resource.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deps[taskName] == nil {
		s.deps[taskName] = make(map[string]*resource.State)
	}
	s.deps[taskName][depKey] = state
}

func (s *MemoryStore) PutResult(taskName string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[taskName] = value
}

func (s *MemoryStore) GetResult(taskName string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.results[taskName]
	return v, ok
}

func (s *MemoryStore) Commit() error { return nil }

func (s *MemoryStore) Clear(taskName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deps, taskName)
	delete(s.results, taskName)
}

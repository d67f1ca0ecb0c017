// Package matching implements the strategy-indexed producer-resolution
// engine from spec §4.4: exact, prefix, and custom indexes composed
// behind one Engine, with per-key result caching.
package matching

import (
	"fmt"
	"sync"

	"github.com/alexhughson/reflo/internal/resource"
	"github.com/alexhughson/reflo/internal/trie"
)

// ErrDuplicateTarget is returned when a target's key or prefix collides
// with one already registered under the same strategy.
type ErrDuplicateTarget struct {
	Key string
}

func (e *ErrDuplicateTarget) Error() string {
	return fmt.Sprintf("duplicate target: %s", e.Key)
}

type customEntry struct {
	target   resource.Target
	taskName string
}

// Engine is the central coordinator for dependency-to-target matching.
// Call RegisterTarget during static graph construction only; FindProducer
// caches by dependency key and the cache is invalidated on every
// RegisterTarget call (cheap because registration is a static phase, see
// DESIGN.md's confirmation of this invariant).
type Engine struct {
	mu sync.RWMutex

	exact  map[string]string // key -> task name
	prefix *trie.Trie[string]
	// prefixKeys tracks registered prefixes for duplicate detection,
	// since Trie itself doesn't expose a "was this key freshly inserted"
	// signal.
	prefixKeys map[string]string
	custom     []customEntry

	cache map[string]string
}

// NewEngine returns an Engine with empty indexes.
func NewEngine() *Engine {
	return &Engine{
		exact:      make(map[string]string),
		prefix:     trie.New[string]("/"),
		prefixKeys: make(map[string]string),
		cache:      make(map[string]string),
	}
}

// RegisterTarget routes target to the index implied by its match
// strategy. Duplicate exact keys or duplicate prefixes are always
// errors (spec §9 resolves this Open Question explicitly).
func (e *Engine) RegisterTarget(target resource.Target, taskName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := target.Key()
	switch target.Strategy() {
	case resource.MatchExact:
		if _, exists := e.exact[key]; exists {
			return &ErrDuplicateTarget{Key: key}
		}
		e.exact[key] = taskName
	case resource.MatchPrefix:
		normalized := resource.NormalizeDirKey(key)
		if _, exists := e.prefixKeys[normalized]; exists {
			return &ErrDuplicateTarget{Key: normalized}
		}
		e.prefixKeys[normalized] = taskName
		e.prefix.Insert(normalized, taskName)
	case resource.MatchCustom:
		e.custom = append(e.custom, customEntry{target: target, taskName: taskName})
	}

	e.cache = make(map[string]string)
	return nil
}

// FindProducer returns the name of the task that produces a target
// matching dep, trying exact, then longest-prefix, then custom linear
// scan, in that order (spec §4.4's priority rationale).
func (e *Engine) FindProducer(dep resource.Dependency) (string, bool) {
	key := dep.Key()

	e.mu.RLock()
	if name, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		if name == "" {
			return "", false
		}
		return name, true
	}
	e.mu.RUnlock()

	name, found := e.resolve(dep, key)

	e.mu.Lock()
	e.cache[key] = name
	e.mu.Unlock()

	return name, found
}

func (e *Engine) resolve(dep resource.Dependency, key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if name, ok := e.exact[key]; ok {
		return name, true
	}
	if name, ok := e.prefix.LongestPrefix(key); ok {
		return name, true
	}
	for _, entry := range e.custom {
		if entry.target.Matches(dep) {
			return entry.taskName, true
		}
	}
	return "", false
}

// FindAllProducers unions all three indexes without the priority rule,
// used for diagnostics and conflict detection (spec §4.4, §9).
func (e *Engine) FindAllProducers(dep resource.Dependency) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var results []string
	key := dep.Key()
	if name, ok := e.exact[key]; ok {
		results = append(results, name)
	}
	for _, name := range e.prefix.AllPrefixes(key) {
		results = append(results, name)
	}
	for _, entry := range e.custom {
		if entry.target.Matches(dep) {
			results = append(results, entry.taskName)
		}
	}
	return results
}

// ExactCount, PrefixCount, CustomCount, and TotalCount are diagnostic
// introspection properties kept from original_source/doit/matching/engine.py.
func (e *Engine) ExactCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.exact)
}

func (e *Engine) PrefixCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.prefixKeys)
}

func (e *Engine) CustomCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.custom)
}

func (e *Engine) TotalCount() int {
	return e.ExactCount() + e.PrefixCount() + e.CustomCount()
}

// ClearCache drops all cached producer lookups. Exposed for callers that
// mutate targets after initial registration (normally unnecessary).
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]string)
}

// Package merger diffs freshly generated tasks against the tasks a
// Merger has already seen, classifying each as added, updated, or
// unchanged, and invalidating completed tasks whose inputs changed.
// Grounded on original_source/doit's reactive.merger.TaskMerger.
package merger

import (
	"sort"

	"github.com/alexhughson/reflo/internal/task"
)

// Result categorizes one merge() call's newly generated tasks.
type Result struct {
	Added     []*task.Task
	Updated   []*task.Task
	Unchanged []string
}

// HasChanges reports whether any task was added or updated.
func (r Result) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0
}

// AllNewTasks returns every task that needs to be injected into the
// running graph: additions and updates, in that order.
func (r Result) AllNewTasks() []*task.Task {
	out := make([]*task.Task, 0, len(r.Added)+len(r.Updated))
	out = append(out, r.Added...)
	out = append(out, r.Updated...)
	return out
}

// Merger tracks every task seen so far, which of them have completed
// execution, and each task's last-known set of dependency keys so it
// can detect when a regenerated task's inputs changed.
type Merger struct {
	tasks       map[string]*task.Task
	completed   map[string]bool
	inputHashes map[string]map[string]bool
}

func New() *Merger {
	return &Merger{
		tasks:       make(map[string]*task.Task),
		completed:   make(map[string]bool),
		inputHashes: make(map[string]map[string]bool),
	}
}

// Merge classifies newTasks against what the Merger has already seen.
func (m *Merger) Merge(newTasks []*task.Task) Result {
	var result Result

	for _, t := range newTasks {
		newHash := inputHash(t)

		if _, seen := m.tasks[t.Name]; !seen {
			m.tasks[t.Name] = t
			m.inputHashes[t.Name] = newHash
			result.Added = append(result.Added, t)
			continue
		}

		oldHash := m.inputHashes[t.Name]
		if !sameHash(oldHash, newHash) {
			m.tasks[t.Name] = t
			m.inputHashes[t.Name] = newHash
			if m.completed[t.Name] {
				m.invalidate(t.Name)
			}
			result.Updated = append(result.Updated, t)
		} else {
			result.Unchanged = append(result.Unchanged, t.Name)
		}
	}

	return result
}

// MarkCompleted records that taskName finished execution.
func (m *Merger) MarkCompleted(taskName string) { m.completed[taskName] = true }

// IsCompleted reports whether taskName has finished execution.
func (m *Merger) IsCompleted(taskName string) bool { return m.completed[taskName] }

// GetTask looks up a previously merged task by name.
func (m *Merger) GetTask(taskName string) (*task.Task, bool) {
	t, ok := m.tasks[taskName]
	return t, ok
}

// AllTasks returns every task the Merger currently knows about, sorted
// by name for deterministic iteration.
func (m *Merger) AllTasks() []*task.Task {
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*task.Task, 0, len(names))
	for _, name := range names {
		out = append(out, m.tasks[name])
	}
	return out
}

func (m *Merger) invalidate(taskName string) { delete(m.completed, taskName) }

// Clear drops all tracked state.
func (m *Merger) Clear() {
	m.tasks = make(map[string]*task.Task)
	m.completed = make(map[string]bool)
	m.inputHashes = make(map[string]map[string]bool)
}

func (m *Merger) TotalTasks() int     { return len(m.tasks) }
func (m *Merger) CompletedCount() int { return len(m.completed) }

func inputHash(t *task.Task) map[string]bool {
	h := make(map[string]bool, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		h[dep.Key()] = true
	}
	return h
}

func sameHash(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

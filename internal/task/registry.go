package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexhughson/reflo/internal/matching"
	"github.com/alexhughson/reflo/internal/resource"
)

// ErrMissingInput is returned at graph-build time when a dependency does
// not exist and no producer task is registered for it (spec §7).
var ErrMissingInput = errors.New("missing input")

// ErrDuplicateTarget mirrors matching.ErrDuplicateTarget at the registry
// boundary so callers only need to depend on the task package's errors.
type ErrDuplicateTarget struct {
	Key  string
	Task string
}

func (e *ErrDuplicateTarget) Error() string {
	return fmt.Sprintf("task %q: duplicate target %s", e.Task, e.Key)
}

// Registry holds the full task set and the matching engine used to wire
// implicit dependencies between them (spec §4.5).
type Registry struct {
	tasks    map[string]*Task
	order    []string
	matching *matching.Engine
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks:    make(map[string]*Task),
		matching: matching.NewEngine(),
	}
}

// Matching exposes the underlying matching engine, e.g. for diagnostics.
func (r *Registry) Matching() *matching.Engine { return r.matching }

// Tasks returns all registered tasks in registration order.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

func (r *Registry) Get(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Add registers a task's targets with the matching engine. It does not
// yet derive implicit dependencies; call BuildGraph once every task has
// been added so wildcard task dependencies can be resolved against the
// full set (spec §4.5 step 3).
func (r *Registry) Add(t *Task) error {
	if _, exists := r.tasks[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tasks[t.Name] = t

	return RegisterTargets(r.matching, []*Task{t}, false)
}

// RegisterTargets registers every target of each task with m. When
// tolerant is true, a target whose key is already registered is treated
// as a no-op instead of returning ErrDuplicateTarget, for a caller (like
// reactive.Engine.wireGraph) that hands the same unchanged task back on
// every regeneration round rather than pre-filtering to only new tasks.
func RegisterTargets(m *matching.Engine, tasks []*Task, tolerant bool) error {
	for _, t := range tasks {
		for _, target := range t.Targets {
			if err := m.RegisterTarget(target, t.Name); err != nil {
				var dup *matching.ErrDuplicateTarget
				if errors.As(err, &dup) {
					if tolerant {
						continue
					}
					return &ErrDuplicateTarget{Key: dup.Key, Task: t.Name}
				}
				return err
			}
		}
	}
	return nil
}

// BuildGraph derives implicit task-ordering edges for every dependency of
// every task (spec §4.5 steps 2-3), and fails fast on any dependency that
// is missing with no producer (spec §7: surfaced before execution).
func (r *Registry) BuildGraph() error {
	return DeriveOrdering(r.matching, r.Tasks(), r.order)
}

// DeriveOrdering expands wildcard task dependencies against knownNames and
// resolves every remaining dependency's producer in m, adding an implicit
// task-ordering edge (spec §4.5 steps 2-3); it fails fast on a dependency
// that is missing with no producer anywhere in m (spec §7). Shared by
// Registry.BuildGraph, which calls it once over a closed task set after
// every target has been registered, and reactive.Engine.wireGraph, which
// calls it incrementally every regeneration round against a knownNames set
// wider than the batch being wired -- both need the identical two-step
// algorithm, only the target-registration step ahead of it differs (strict
// vs tolerant of a re-registered unchanged task).
func DeriveOrdering(m *matching.Engine, tasks []*Task, knownNames []string) error {
	// Step 3: expand wildcard task dependencies now that the full set is
	// known. A wildcard dependency "build:*" expands to a task-ordering
	// edge on every currently-known task whose name matches the
	// glob-style prefix before the "*".
	for _, t := range tasks {
		expanded := make([]resource.Dependency, 0, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			ord, ok := dep.(*resource.TaskOrderingDependency)
			if !ok || !strings.Contains(ord.TaskName, "*") {
				expanded = append(expanded, dep)
				continue
			}
			prefix := strings.TrimSuffix(ord.TaskName, "*")
			for _, candidate := range knownNames {
				if candidate != t.Name && strings.HasPrefix(candidate, prefix) {
					expanded = append(expanded, resource.NewTaskOrderingDependency(candidate))
				}
			}
		}
		t.Dependencies = expanded
	}

	// Step 2: for every dependency, resolve its producer and add an
	// implicit task-ordering edge, idempotently, skipping self-edges.
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			producer, found := m.FindProducer(dep)
			if !found {
				if !dep.Exists() {
					return fmt.Errorf("%w: task %q depends on %s", ErrMissingInput, t.Name, dep.Key())
				}
				continue
			}
			if producer == t.Name {
				continue
			}
			t.AddTaskOrdering(producer)
		}
	}

	return nil
}

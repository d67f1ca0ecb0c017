// Package task defines the Task record and the Registry that wires
// implicit task-ordering edges from target/dependency matches, per
// spec §3 and §4.5.
package task

import (
	"fmt"
	"strings"

	"github.com/alexhughson/reflo/internal/backoff"
	"github.com/alexhughson/reflo/internal/resource"
)

// Action is one executable step of a task: a shell command string, an
// invocable function, or (via Task.Actions) a list of either. Spec §9
// models this dispatch as a sum variant resolved at construction time.
type Action struct {
	Command string
	Func    func() error
}

func CommandAction(cmd string) Action { return Action{Command: cmd} }

func FuncAction(fn func() error) Action { return Action{Func: fn} }

// Run executes the action, dispatching on which variant is populated.
func (a Action) Run(runCommand func(cmd string) error) error {
	if a.Func != nil {
		return a.Func()
	}
	if runCommand != nil {
		return runCommand(a.Command)
	}
	return fmt.Errorf("action has no runnable command or function")
}

// Task is a unit of work: a name, its actions, dependencies, and targets,
// plus bookkeeping the scheduler and executor read and write.
type Task struct {
	Name         string
	Actions      []Action
	Teardown     []Action
	Dependencies []resource.Dependency
	Targets      []resource.Target
	Doc          string
	Verbose      bool
	Meta         map[string]string
	Result       any
	Values       map[string]any

	// RetryPolicy, when set, makes internal/runner retry a failing
	// action's execution according to this policy before giving up.
	RetryPolicy backoff.RetryPolicy
}

// OutputKeys returns the canonical keys of every target this task
// produces (spec §9: the unified typed collection is authoritative over
// the legacy string/typed split).
func (t *Task) OutputKeys() []string {
	keys := make([]string, 0, len(t.Targets))
	for _, target := range t.Targets {
		keys = append(keys, target.Key())
	}
	return keys
}

// InputKeys returns the canonical keys of every dependency -- the same
// keys internal/merger collects (via its own inputHash) to detect when a
// task's inputs have changed.
func (t *Task) InputKeys() []string {
	keys := make([]string, 0, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		keys = append(keys, dep.Key())
	}
	return keys
}

// HasWildcardDependency reports whether any task-ordering dependency
// names a wildcard task ("name contains *"), deferred for expansion
// after the full task set is known (spec §4.5 step 3).
func (t *Task) HasWildcardDependency() bool {
	for _, dep := range t.Dependencies {
		if ord, ok := dep.(*resource.TaskOrderingDependency); ok {
			if strings.Contains(ord.TaskName, "*") {
				return true
			}
		}
	}
	return false
}

// AddTaskOrdering appends a task-ordering dependency on taskName,
// idempotently (spec §3: "added idempotently").
func (t *Task) AddTaskOrdering(taskName string) {
	key := resource.TaskOrderingKey(taskName)
	for _, dep := range t.Dependencies {
		if dep.Key() == key {
			return
		}
	}
	t.Dependencies = append(t.Dependencies, resource.NewTaskOrderingDependency(taskName))
}

// Package runner is the bounded worker-pool executor that drives a task
// graph to completion: it decides whether a task needs to run by
// consulting the state store and matching engine, executes its actions
// (retrying per the task's RetryPolicy), and records fresh state,
// mirroring the ready_wrapper/DoitEngine shape original_source/doit's
// reactive engine drives.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexhughson/reflo/internal/backoff"
	"github.com/alexhughson/reflo/internal/matching"
	"github.com/alexhughson/reflo/internal/resource"
	"github.com/alexhughson/reflo/internal/statestore"
	"github.com/alexhughson/reflo/internal/task"
)

// ErrUpstreamFailure is the error recorded on a task skipped because a
// task-ordering producer it depends on (directly or transitively)
// failed, per spec §5's cancellation policy: a failed task propagates
// failure to every dependent instead of letting them run against a
// producer that never completed.
var ErrUpstreamFailure = errors.New("skipped: upstream dependency failed")

// Status is a task's position in the executor's state machine.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Wrapper tracks one task's execution state within the graph, the way
// original_source/doit's ready_wrapper tracks should_run/execute_and_submit.
type Wrapper struct {
	Task   *task.Task
	Status Status
	Err    error

	dependees []string // tasks blocked on this one via task-ordering
}

// ShouldRun decides whether w's task needs to execute, by checking every
// non-ordering dependency against the state store (spec §4.1/§4.2). A
// task with no dependencies always runs (it has no up-to-date signal).
func (w *Wrapper) ShouldRun(store statestore.Store, m *matching.Engine) bool {
	hasRealDep := false
	for _, dep := range w.Task.Dependencies {
		if _, ok := dep.(*resource.TaskOrderingDependency); ok {
			continue
		}
		hasRealDep = true
		previous, _ := store.Get(w.Task.Name, dep.Key())
		_, hasProducer := m.FindProducer(dep)
		result := dep.Check(previous, hasProducer)
		if result.Status != resource.StatusUpToDate {
			return true
		}
	}
	return !hasRealDep
}

// OnTaskDone is invoked after a task finishes, so the reactive layer can
// regenerate affected generators and hand back new tasks to inject.
type OnTaskDone func(t *task.Task, err error) []*task.Task

// Executor runs a graph of tasks with bounded concurrency, resolving
// task-ordering dependencies before a task becomes eligible and allowing
// new tasks to be added while the graph is running.
type Executor struct {
	mu       sync.Mutex
	store    statestore.Store
	matching *matching.Engine
	workers  int
	runCmd   func(cmd string) error

	wrappers  map[string]*Wrapper
	remaining map[string]int
	ready     []*Wrapper

	// pendingDependees holds, for a producer task name not yet
	// registered, the names of tasks already blocked on it -- so
	// ordering is correct regardless of which order tasks are added in.
	pendingDependees map[string][]string

	poisoned int // tasks skipped via upstream-failure propagation
}

// Result summarizes one Run call.
type Result struct {
	Executed int
	Failed   int
	Skipped  int
}

// New builds an Executor. runCmd executes a task's shell-command
// actions; pass nil to use os/exec's default (internal/runner/exec.go).
func New(store statestore.Store, m *matching.Engine, workers int, runCmd func(cmd string) error) *Executor {
	if workers < 1 {
		workers = 1
	}
	if runCmd == nil {
		runCmd = runShellCommand
	}
	return &Executor{
		store:            store,
		matching:         m,
		workers:          workers,
		runCmd:           runCmd,
		wrappers:         make(map[string]*Wrapper),
		remaining:        make(map[string]int),
		pendingDependees: make(map[string][]string),
	}
}

// AddTask registers t into the graph. If all of its task-ordering
// dependencies already resolved, it becomes immediately ready. Safe to
// call while Run is in progress.
func (e *Executor) AddTask(t *task.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addTaskLocked(t)
}

func (e *Executor) addTaskLocked(t *task.Task) {
	w, exists := e.wrappers[t.Name]
	if exists {
		w.Task = t
		w.Status = StatusPending
	} else {
		w = &Wrapper{Task: t, Status: StatusPending}
		e.wrappers[t.Name] = w
	}

	// A task just (re-)registered may itself be a producer other tasks
	// were already waiting on, registered before it was.
	for _, dependeeName := range e.pendingDependees[t.Name] {
		w.dependees = appendUnique(w.dependees, dependeeName)
	}
	delete(e.pendingDependees, t.Name)

	remaining := 0
	for _, dep := range t.Dependencies {
		ord, ok := dep.(*resource.TaskOrderingDependency)
		if !ok {
			continue
		}
		producer, ok := e.wrappers[ord.TaskName]
		if ok {
			if producer.Status == StatusSucceeded || producer.Status == StatusSkipped {
				continue
			}
			remaining++
			producer.dependees = appendUnique(producer.dependees, t.Name)
		} else {
			remaining++
			e.pendingDependees[ord.TaskName] = appendUnique(e.pendingDependees[ord.TaskName], t.Name)
		}
	}
	e.remaining[t.Name] = remaining

	if remaining > 0 && w.Status == StatusReady {
		w.Status = StatusPending
		e.removeFromReadyLocked(w)
	}
	if remaining == 0 && w.Status == StatusPending {
		w.Status = StatusReady
		e.ready = append(e.ready, w)
	}
}

func (e *Executor) removeFromReadyLocked(w *Wrapper) {
	for i, candidate := range e.ready {
		if candidate == w {
			e.ready = append(e.ready[:i], e.ready[i+1:]...)
			return
		}
	}
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

// Run drains the ready queue with a bounded pool of workers, calling
// onDone after each task finishes so the caller can inject regenerated
// tasks via AddTask before the graph is considered drained.
func (e *Executor) Run(ctx context.Context, onDone OnTaskDone) (Result, error) {
	var result Result
	var wg sync.WaitGroup
	resultCh := make(chan *Wrapper)

	active := 0
	for {
		e.mu.Lock()
		for len(e.ready) > 0 && active < e.workers {
			w := e.ready[0]
			e.ready = e.ready[1:]
			w.Status = StatusRunning
			active++
			e.mu.Unlock()

			wg.Add(1)
			go func(w *Wrapper) {
				defer wg.Done()
				e.execute(ctx, w)
				resultCh <- w
			}(w)

			e.mu.Lock()
		}
		done := active == 0 && len(e.ready) == 0
		e.mu.Unlock()
		if done {
			break
		}

		w := <-resultCh
		active--

		switch w.Status {
		case StatusSucceeded:
			result.Executed++
		case StatusFailed:
			result.Failed++
		case StatusSkipped:
			result.Skipped++
		}

		var injected []*task.Task
		if onDone != nil {
			injected = onDone(w.Task, w.Err)
		}

		e.mu.Lock()
		e.resolveDependeesLocked(w)
		for _, t := range injected {
			e.addTaskLocked(t)
		}
		e.mu.Unlock()
	}

	wg.Wait()
	result.Skipped += e.poisoned
	return result, nil
}

// resolveDependeesLocked reacts to w's completion: a succeeded (or
// already-skipped) producer simply frees its dependees' remaining
// count, but a failed producer poisons every dependee transitively
// (spec §5 "Cancellation") instead of letting them become ready.
func (e *Executor) resolveDependeesLocked(w *Wrapper) {
	if w.Status == StatusFailed {
		for _, name := range w.dependees {
			if dependee, ok := e.wrappers[name]; ok {
				e.poisonLocked(dependee)
			}
		}
		return
	}
	for _, name := range w.dependees {
		e.remaining[name]--
		if e.remaining[name] <= 0 {
			dependee, ok := e.wrappers[name]
			if ok && dependee.Status == StatusPending {
				dependee.Status = StatusReady
				e.ready = append(e.ready, dependee)
			}
		}
	}
}

// poisonLocked marks w as skipped due to an upstream failure and
// recurses into its own dependees, so an entire downstream branch of
// the DAG is cancelled rather than only the immediate dependent.
func (e *Executor) poisonLocked(w *Wrapper) {
	if w.Status == StatusSucceeded || w.Status == StatusFailed || w.Status == StatusSkipped {
		return
	}
	e.removeFromReadyLocked(w)
	w.Status = StatusSkipped
	w.Err = ErrUpstreamFailure
	e.poisoned++
	for _, name := range w.dependees {
		if dependee, ok := e.wrappers[name]; ok {
			e.poisonLocked(dependee)
		}
	}
}

func (e *Executor) execute(ctx context.Context, w *Wrapper) {
	if !w.ShouldRun(e.store, e.matching) {
		w.Status = StatusSkipped
		return
	}

	if err := e.runActions(ctx, w.Task); err != nil {
		w.Status = StatusFailed
		w.Err = fmt.Errorf("task %q: %w", w.Task.Name, err)
		return
	}

	e.recordState(w.Task)

	// Flush before the task is considered done: a later dependent's
	// ShouldRun check must never observe state that a crash could
	// still roll back (spec §5's "a buffered store must flush before
	// the scheduler considers the task's state visible to later reads").
	if err := e.store.Commit(); err != nil {
		w.Status = StatusFailed
		w.Err = fmt.Errorf("task %q: committing state: %w", w.Task.Name, err)
		return
	}

	w.Status = StatusSucceeded
}

func (e *Executor) runActions(ctx context.Context, t *task.Task) error {
	for _, action := range t.Actions {
		if err := e.runOneAction(ctx, action, t.RetryPolicy); err != nil {
			return err
		}
	}
	return nil
}

// runOneAction runs action, retrying per policy when set (spec §4.8's
// ambient retry behavior, grounded on internal/backoff.Retrier).
func (e *Executor) runOneAction(ctx context.Context, action task.Action, policy backoff.RetryPolicy) error {
	if policy == nil {
		return action.Run(e.runCmd)
	}

	retrier := backoff.NewRetrier(policy)
	for {
		err := action.Run(e.runCmd)
		if err == nil {
			return nil
		}
		if waitErr := retrier.Next(ctx, err); waitErr != nil {
			return err
		}
	}
}

func (e *Executor) recordState(t *task.Task) {
	for _, dep := range t.Dependencies {
		if _, ok := dep.(*resource.TaskOrderingDependency); ok {
			continue
		}
		previous, _ := e.store.Get(t.Name, dep.Key())
		state, ok := dep.CurrentState(previous)
		if ok {
			e.store.Put(t.Name, dep.Key(), state)
		}
	}
	if t.Result != nil {
		e.store.PutResult(t.Name, t.Result)
	}
}

// Get returns the wrapper tracking taskName, if any.
func (e *Executor) Get(taskName string) (*Wrapper, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.wrappers[taskName]
	return w, ok
}

// ExecutedCount returns how many tasks have finished (succeeded, failed,
// or skipped) so far in the current Run.
func (e *Executor) ExecutedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, w := range e.wrappers {
		switch w.Status {
		case StatusSucceeded, StatusFailed, StatusSkipped:
			n++
		}
	}
	return n
}

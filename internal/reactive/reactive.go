// Package reactive is the streaming fixed-point engine: it generates an
// initial task set from every registered generator, hands the graph to
// internal/runner, and after each task completes immediately regenerates
// only the generators whose inputs the task's outputs could affect,
// injecting any new or changed tasks back into the running executor.
// Grounded on original_source/doit's reactive.engine.ReactiveEngine and
// reactive.manager.GeneratorManager.
package reactive

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/alexhughson/reflo/internal/matching"
	"github.com/alexhughson/reflo/internal/merger"
	"github.com/alexhughson/reflo/internal/outputindex"
	"github.com/alexhughson/reflo/internal/runner"
	"github.com/alexhughson/reflo/internal/statestore"
	"github.com/alexhughson/reflo/internal/task"
	"github.com/alexhughson/reflo/internal/taskgen"
)

// Result reports a Run's outcome (spec §4.7's ReactiveResult).
type Result struct {
	RunID         string
	TasksExecuted int
	TotalTasks    int
	HitLimit      bool
	Regenerations int
}

// Converged reports whether the run reached a fixed point rather than
// stopping because it hit MaxTasks.
func (r Result) Converged() bool { return !r.HitLimit }

// Engine drives generators to a fixed point, executing tasks as they
// become ready and regenerating affected generators as outputs appear.
type Engine struct {
	generators []*taskgen.Generator
	index      *outputindex.Index
	merger     *merger.Merger

	Store    statestore.Store
	Matching *matching.Engine
	Workers  int

	// MaxTasks bounds total executions to guard against a generator loop
	// that never reaches a fixed point. Zero means the package default.
	MaxTasks int

	regenerations int
}

const defaultMaxTasks = 10000

// New builds an Engine over the given generators.
func New(generators []*taskgen.Generator, store statestore.Store) *Engine {
	idx := outputindex.New()
	idx.RegisterAll(generators)
	return &Engine{
		generators: generators,
		index:      idx,
		merger:     merger.New(),
		Store:      store,
		Matching:   matching.NewEngine(),
		Workers:    4,
	}
}

// AddGenerator registers an additional generator, useful for generators
// discovered or constructed after the engine was built.
func (e *Engine) AddGenerator(gen *taskgen.Generator) {
	e.generators = append(e.generators, gen)
	e.index.Register(gen)
}

// Run executes generators and tasks until no generator produces a new
// or changed task and no task remains runnable -- the fixed point -- or
// until MaxTasks executions have happened.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	runID := uuid.New().String()
	maxTasks := e.MaxTasks
	if maxTasks == 0 {
		maxTasks = defaultMaxTasks
	}

	initial, err := e.regenerateAll()
	if err != nil {
		return Result{}, fmt.Errorf("initial generation: %w", err)
	}
	mergeResult := e.merger.Merge(initial)
	e.regenerations++

	if e.merger.TotalTasks() == 0 {
		return Result{RunID: runID, Regenerations: e.regenerations}, nil
	}

	// Graph build time (spec §4.5/§7): register every target, then derive
	// implicit task-ordering edges from each dependency's resolved
	// producer, and fail fast on a dependency that is missing with no
	// producer anywhere in the initial task set.
	if err := e.wireGraph(e.merger.AllTasks()); err != nil {
		return Result{}, err
	}

	exec := runner.New(e.Store, e.Matching, e.Workers, nil)
	for _, t := range mergeResult.AllNewTasks() {
		exec.AddTask(t)
	}

	hitLimit := false
	executed := 0
	var regenErr error
	onDone := func(t *task.Task, _ error) []*task.Task {
		// Spec §4.10 step 3: only a task whose should_run was true (it
		// actually executed, successfully or not) gets marked completed;
		// a task skipped because it was already up-to-date never ran and
		// so never enters the completed set. Wrapper.Status distinguishes
		// the two here because a poisoned (upstream-failure) skip never
		// reaches onDone at all -- it bypasses the executor's result
		// channel entirely -- so StatusSkipped inside onDone always means
		// the up-to-date case.
		if w, ok := exec.Get(t.Name); ok && w.Status != runner.StatusSkipped {
			e.merger.MarkCompleted(t.Name)
			executed++
		}
		if executed >= maxTasks {
			hitLimit = true
			return nil
		}
		newTasks, err := e.regenerateAffected(t.OutputKeys())
		if err != nil {
			regenErr = err
			return nil
		}
		if len(newTasks) == 0 {
			return nil
		}
		if err := e.wireGraph(newTasks); err != nil {
			regenErr = err
			return nil
		}
		mr := e.merger.Merge(newTasks)
		e.regenerations++
		return mr.AllNewTasks()
	}

	runResult, err := exec.Run(ctx, onDone)
	if err != nil {
		return Result{}, err
	}
	if regenErr != nil {
		return Result{}, regenErr
	}

	return Result{
		RunID:         runID,
		TasksExecuted: runResult.Executed,
		TotalTasks:    e.merger.TotalTasks(),
		HitLimit:      hitLimit,
		Regenerations: e.regenerations,
	}, nil
}

func (e *Engine) regenerateAll() ([]*task.Task, error) {
	var tasks []*task.Task
	for _, gen := range e.generators {
		generated, err := gen.Generate()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, generated...)
	}
	return tasks, nil
}

func (e *Engine) regenerateAffected(outputs []string) ([]*task.Task, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	affected := e.index.FindAffected(outputs)

	var tasks []*task.Task
	for _, gen := range affected {
		generated, err := gen.Generate()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, generated...)
	}
	return tasks, nil
}

// wireGraph registers each task's targets with the shared matching engine
// and then, once every target in the batch is visible, expands wildcard
// task dependencies and derives implicit task-ordering edges from each
// dependency's resolved producer (spec §4.5 steps 1-3), failing fast on a
// dependency that doesn't exist and has no producer anywhere in the graph
// built so far (spec §7's input-missing error, surfaced before the task
// would execute). Delegates the actual algorithm to
// internal/task.RegisterTargets/DeriveOrdering, the same code
// task.Registry.BuildGraph uses, registering tolerantly since
// regenerateAffected's batches are not filtered down to only new-or-
// changed tasks the way Registry.Add expects its callers to do.
func (e *Engine) wireGraph(tasks []*task.Task) error {
	if err := task.RegisterTargets(e.Matching, tasks, true); err != nil {
		return err
	}

	// Expand wildcard task dependencies ("build:*") against the full task
	// set known so far, not just this batch -- this batch's own tasks
	// included, since at regeneration time they haven't been merged into
	// e.merger yet.
	knownNames := map[string]bool{}
	for _, t := range e.merger.AllTasks() {
		knownNames[t.Name] = true
	}
	for _, t := range tasks {
		knownNames[t.Name] = true
	}
	sortedNames := make([]string, 0, len(knownNames))
	for name := range knownNames {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	return task.DeriveOrdering(e.Matching, tasks, sortedNames)
}

// Reset clears merge and regeneration state, keeping the generators, so
// the engine can be run again from scratch.
func (e *Engine) Reset() {
	e.merger.Clear()
	e.regenerations = 0
}

func (e *Engine) TotalTasks() int { return e.merger.TotalTasks() }

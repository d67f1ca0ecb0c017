package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhughson/reflo/internal/matching"
	"github.com/alexhughson/reflo/internal/resource"
	"github.com/alexhughson/reflo/internal/statestore"
	"github.com/alexhughson/reflo/internal/task"
)

func newExecutor() (*Executor, *statestore.MemoryStore, *matching.Engine) {
	store := statestore.NewMemoryStore()
	m := matching.NewEngine()
	return New(store, m, 4, nil), store, m
}

func TestExecutor_RunsFuncActionAndRecordsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, store, _ := newExecutor()

	var ran int32
	t1 := &task.Task{
		Name:         "build",
		Dependencies: []resource.Dependency{resource.NewFileDependency(path)},
		Actions: []task.Action{
			task.FuncAction(func() error {
				atomic.AddInt32(&ran, 1)
				return nil
			}),
		},
	}
	e.AddTask(t1)

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)
	assert.EqualValues(t, 1, ran)

	_, ok := store.Get("build", path)
	assert.True(t, ok, "successful run records dependency state")
}

func TestExecutor_SkipsWhenUpToDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, store, m := newExecutor()
	dep := resource.NewFileDependency(path)
	state, _ := dep.CurrentState(nil)
	store.Put("build", path, state)
	_ = m

	var ran int32
	t1 := &task.Task{
		Name:         "build",
		Dependencies: []resource.Dependency{dep},
		Actions: []task.Action{
			task.FuncAction(func() error { atomic.AddInt32(&ran, 1); return nil }),
		},
	}
	e.AddTask(t1)

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.EqualValues(t, 0, ran)
}

func TestExecutor_OrderingDependencyBlocksUntilProducerDone(t *testing.T) {
	e, _, _ := newExecutor()

	var order []string
	producer := &task.Task{
		Name: "gen",
		Actions: []task.Action{
			task.FuncAction(func() error { order = append(order, "gen"); return nil }),
		},
	}
	consumer := &task.Task{
		Name: "use",
		Dependencies: []resource.Dependency{
			resource.NewTaskOrderingDependency("gen"),
		},
		Actions: []task.Action{
			task.FuncAction(func() error { order = append(order, "use"); return nil }),
		},
	}

	e.AddTask(consumer)
	e.AddTask(producer)

	_, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"gen", "use"}, order)
}

func TestExecutor_FailedActionReportsFailure(t *testing.T) {
	e, _, _ := newExecutor()
	t1 := &task.Task{
		Name: "broken",
		Actions: []task.Action{
			task.FuncAction(func() error { return errors.New("boom") }),
		},
	}
	e.AddTask(t1)

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestExecutor_OnDoneInjectsNewTasks(t *testing.T) {
	e, _, _ := newExecutor()
	var ranSecond int32

	first := &task.Task{
		Name:    "first",
		Actions: []task.Action{task.FuncAction(func() error { return nil })},
	}
	e.AddTask(first)

	onDone := func(t *task.Task, err error) []*task.Task {
		if t.Name != "first" {
			return nil
		}
		return []*task.Task{{
			Name:    "second",
			Actions: []task.Action{task.FuncAction(func() error { atomic.AddInt32(&ranSecond, 1); return nil })},
		}}
	}

	result, err := e.Run(context.Background(), onDone)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Executed)
	assert.EqualValues(t, 1, ranSecond)
}

func TestExecutor_RetryPolicyRetriesBeforeFailing(t *testing.T) {
	e, _, _ := newExecutor()
	var attempts int32
	t1 := &task.Task{
		Name: "flaky",
		Actions: []task.Action{
			task.FuncAction(func() error {
				if atomic.AddInt32(&attempts, 1) < 3 {
					return errors.New("transient")
				}
				return nil
			}),
		},
		RetryPolicy: &testPolicy{max: 5},
	}
	e.AddTask(t1)

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)
	assert.EqualValues(t, 3, attempts)
}

func TestExecutor_FailurePropagatesToDependents(t *testing.T) {
	e, _, _ := newExecutor()

	var ranConsumer, ranGrandchild int32
	producer := &task.Task{
		Name: "producer",
		Actions: []task.Action{
			task.FuncAction(func() error { return errors.New("boom") }),
		},
	}
	consumer := &task.Task{
		Name: "consumer",
		Dependencies: []resource.Dependency{
			resource.NewTaskOrderingDependency("producer"),
		},
		Actions: []task.Action{
			task.FuncAction(func() error { atomic.AddInt32(&ranConsumer, 1); return nil }),
		},
	}
	grandchild := &task.Task{
		Name: "grandchild",
		Dependencies: []resource.Dependency{
			resource.NewTaskOrderingDependency("consumer"),
		},
		Actions: []task.Action{
			task.FuncAction(func() error { atomic.AddInt32(&ranGrandchild, 1); return nil }),
		},
	}

	e.AddTask(producer)
	e.AddTask(consumer)
	e.AddTask(grandchild)

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Skipped, "both the direct and transitive dependent are skipped")
	assert.EqualValues(t, 0, ranConsumer)
	assert.EqualValues(t, 0, ranGrandchild)

	w, ok := e.Get("consumer")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, w.Status)
	assert.ErrorIs(t, w.Err, ErrUpstreamFailure)

	gw, ok := e.Get("grandchild")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, gw.Status)
}

func TestExecutor_IndependentBranchStillRunsAfterSiblingFailure(t *testing.T) {
	e, _, _ := newExecutor()

	var ranIndependent int32
	broken := &task.Task{
		Name:    "broken",
		Actions: []task.Action{task.FuncAction(func() error { return errors.New("boom") })},
	}
	independent := &task.Task{
		Name:    "independent",
		Actions: []task.Action{task.FuncAction(func() error { atomic.AddInt32(&ranIndependent, 1); return nil })},
	}
	e.AddTask(broken)
	e.AddTask(independent)

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Executed)
	assert.EqualValues(t, 1, ranIndependent)
}

type testPolicy struct{ max int }

func (p *testPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if retryCount >= p.max {
		return 0, errors.New("retries exhausted")
	}
	return time.Millisecond, nil
}

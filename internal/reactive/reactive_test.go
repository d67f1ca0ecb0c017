package reactive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhughson/reflo/internal/statestore"
	"github.com/alexhughson/reflo/internal/task"
	"github.com/alexhughson/reflo/internal/taskgen"
)

func TestEngine_RunsGeneratedTasksToFixedPoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "b.txt"), []byte("b"), 0o644))

	var built []string
	gen := &taskgen.Generator{
		NameTemplate: "copy:<name>",
		Inputs: []taskgen.Input{
			{Label: "source", Pattern: "src/<name>.txt", Base: dir},
		},
		Outputs: []taskgen.Output{
			{Template: filepath.Join(dir, "out", "<name>.txt")},
		},
		Action: func(attrs map[string]string, items map[string][]string) []task.Action {
			return []task.Action{task.FuncAction(func() error {
				built = append(built, attrs["name"])
				return nil
			})}
		},
	}

	e := New([]*taskgen.Generator{gen}, statestore.NewMemoryStore())
	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Converged())
	assert.Equal(t, 2, result.TasksExecuted)
	assert.ElementsMatch(t, []string{"a", "b"}, built)
}

func TestEngine_NoGeneratedTasksConverges(t *testing.T) {
	gen := &taskgen.Generator{
		NameTemplate: "copy:<name>",
		Inputs: []taskgen.Input{
			{Label: "source", Pattern: "src/<name>.txt", Base: t.TempDir()},
		},
	}
	e := New([]*taskgen.Generator{gen}, statestore.NewMemoryStore())
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TasksExecuted)
	assert.True(t, result.Converged())
}

// TestEngine_ImplicitOrderingViaDirectoryTarget is spec §8 scenario 4:
// a task depending on a file under a directory target must never run
// before the task that owns that directory target, even though nothing
// declares the edge explicitly -- it's derived from matching.
func TestEngine_ImplicitOrderingViaDirectoryTarget(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("s"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trigger.txt"), []byte("t"), 0o644))
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	var order []string
	producer := &taskgen.Generator{
		NameTemplate: "produce",
		Inputs: []taskgen.Input{
			{Label: "seed", Pattern: "seed.txt", Base: dir},
		},
		Outputs: []taskgen.Output{
			{Template: outDir + string(filepath.Separator), Dir: true},
		},
		Action: func(map[string]string, map[string][]string) []task.Action {
			return []task.Action{task.FuncAction(func() error {
				order = append(order, "produce")
				return os.WriteFile(filepath.Join(outDir, "x.txt"), []byte("x"), 0o644)
			})}
		},
	}

	consumer := &taskgen.Generator{
		NameTemplate: "consume",
		Inputs: []taskgen.Input{
			{Label: "trigger", Pattern: "trigger.txt", Base: dir},
		},
		ExtraDeps: []string{filepath.Join(outDir, "x.txt")},
		Action: func(map[string]string, map[string][]string) []task.Action {
			return []task.Action{task.FuncAction(func() error {
				order = append(order, "consume")
				return nil
			})}
		},
	}
	e := New([]*taskgen.Generator{producer, consumer}, statestore.NewMemoryStore())
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged())

	require.Equal(t, []string{"produce", "consume"}, order)
}

// TestEngine_WildcardTaskDependencyExpandsAgainstFullTaskSet is spec
// §4.5 step 3: a task-ordering dependency on "name:*" must expand to an
// edge on every task whose name has that prefix, once the full task set
// generation produced is known.
func TestEngine_WildcardTaskDependencyExpandsAgainstFullTaskSet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "all.txt"), []byte("all"), 0o644))

	var order []string
	compile := &taskgen.Generator{
		NameTemplate: "compile:<name>",
		Inputs: []taskgen.Input{
			{Label: "source", Pattern: "src/<name>.txt", Base: dir},
		},
		Action: func(attrs map[string]string, _ map[string][]string) []task.Action {
			name := attrs["name"]
			return []task.Action{task.FuncAction(func() error {
				order = append(order, "compile:"+name)
				return nil
			})}
		},
	}
	link := &taskgen.Generator{
		NameTemplate: "link",
		Inputs: []taskgen.Input{
			{Label: "all", Pattern: "all.txt", Base: dir},
		},
		TaskDeps: []string{"compile:*"},
		Action: func(map[string]string, map[string][]string) []task.Action {
			return []task.Action{task.FuncAction(func() error {
				order = append(order, "link")
				return nil
			})}
		},
	}

	e := New([]*taskgen.Generator{compile, link}, statestore.NewMemoryStore())
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged())

	require.Equal(t, "link", order[len(order)-1], "link must run only after every compile:* task")
	assert.ElementsMatch(t, []string{"compile:a", "compile:b", "link"}, order)
}

// TestEngine_ReactiveCascadeHitsMaxTasks is spec §8 scenario 5: two
// generators that keep re-triggering each other -- S1 (raw/<n>.txt ->
// stage2/<n>.json) and S2 (stage2/<n>.json -> raw/<n>_next.txt) -- so
// that every completion writes a file the other generator's pattern
// now matches, extending the chain by one link forever. The streaming
// property (a newly regenerated task is injected into the same ready
// queue immediately, not deferred to a later wave) is what makes the
// chain advance one task at a time; with MaxTasks set low the run must
// halt with HitLimit true / Converged false instead of spinning.
func TestEngine_ReactiveCascadeHitsMaxTasks(t *testing.T) {
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	stage2Dir := filepath.Join(dir, "stage2")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	require.NoError(t, os.MkdirAll(stage2Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "seed.txt"), []byte("seed"), 0o644))

	s1 := &taskgen.Generator{
		NameTemplate: "s1:<n>",
		Inputs: []taskgen.Input{
			{Label: "source", Pattern: "raw/<n>.txt", Base: dir},
		},
		Outputs: []taskgen.Output{
			{Template: filepath.Join(dir, "stage2", "<n>.json")},
		},
		Action: func(attrs map[string]string, _ map[string][]string) []task.Action {
			n := attrs["n"]
			return []task.Action{task.FuncAction(func() error {
				return os.WriteFile(filepath.Join(stage2Dir, n+".json"), []byte("{}"), 0o644)
			})}
		},
	}
	s2 := &taskgen.Generator{
		NameTemplate: "s2:<n>",
		Inputs: []taskgen.Input{
			{Label: "source", Pattern: "stage2/<n>.json", Base: dir},
		},
		Outputs: []taskgen.Output{
			{Template: filepath.Join(dir, "raw", "<n>_next.txt")},
		},
		Action: func(attrs map[string]string, _ map[string][]string) []task.Action {
			n := attrs["n"]
			return []task.Action{task.FuncAction(func() error {
				return os.WriteFile(filepath.Join(rawDir, n+"_next.txt"), []byte("next"), 0o644)
			})}
		},
	}

	e := New([]*taskgen.Generator{s1, s2}, statestore.NewMemoryStore())
	e.MaxTasks = 5
	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Converged())
	assert.True(t, result.HitLimit)
	assert.Equal(t, 5, result.TasksExecuted, "the cascade is strictly sequential, so exactly MaxTasks tasks run before the limit is observed")
}

func TestEngine_Reset(t *testing.T) {
	e := New(nil, statestore.NewMemoryStore())
	e.Reset()
	assert.Equal(t, 0, e.TotalTasks())
}

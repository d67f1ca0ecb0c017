package matching

import (
	"testing"

	"github.com/alexhughson/reflo/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatch(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewFileTarget("/out/a.txt"), "compile"))

	dep := resource.NewFileDependency("/out/a.txt")
	name, ok := e.FindProducer(dep)
	assert.True(t, ok)
	assert.Equal(t, "compile", name)
}

func TestDuplicateExactIsError(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewFileTarget("/out/a.txt"), "t1"))
	err := e.RegisterTarget(resource.NewFileTarget("/out/a.txt"), "t2")
	assert.Error(t, err)
}

func TestDuplicatePrefixIsError(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewDirectoryTarget("/out/"), "t1"))
	err := e.RegisterTarget(resource.NewDirectoryTarget("/out"), "t2")
	assert.Error(t, err)
}

// TestPrefixPrecedence grounds spec §8 scenario 6: an exact target under
// a registered directory prefix wins over the directory's producer.
func TestPrefixPrecedence(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewDirectoryTarget("/output/"), "D"))
	require.NoError(t, e.RegisterTarget(resource.NewFileTarget("/output/special.txt"), "F"))

	name, ok := e.FindProducer(resource.NewFileDependency("/output/special.txt"))
	require.True(t, ok)
	assert.Equal(t, "F", name)

	name, ok = e.FindProducer(resource.NewFileDependency("/output/other.txt"))
	require.True(t, ok)
	assert.Equal(t, "D", name)
}

func TestLongestPrefixWins(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewDirectoryTarget("/data/"), "shallow"))
	require.NoError(t, e.RegisterTarget(resource.NewDirectoryTarget("/data/output/"), "deep"))

	name, ok := e.FindProducer(resource.NewFileDependency("/data/output/file.txt"))
	require.True(t, ok)
	assert.Equal(t, "deep", name)
}

func TestCustomFallback(t *testing.T) {
	e := NewEngine()
	target := &resource.CustomTarget{
		TargetKey: "custom:even",
		MatchFunc: func(dep resource.Dependency) bool { return dep.Key() == "special-key" },
	}
	require.NoError(t, e.RegisterTarget(target, "custom-task"))

	_, ok := e.FindProducer(resource.NewTaskOrderingDependency(""))
	assert.False(t, ok, "task-ordering key is \"task:\", never \"special-key\"")

	dep := &fakeKeyDependency{key: "special-key"}
	name, ok := e.FindProducer(dep)
	assert.True(t, ok)
	assert.Equal(t, "custom-task", name)
}

func TestFindAllProducers_Unions(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewDirectoryTarget("/data/"), "shallow"))
	require.NoError(t, e.RegisterTarget(resource.NewDirectoryTarget("/data/output/"), "deep"))

	all := e.FindAllProducers(resource.NewFileDependency("/data/output/file.txt"))
	assert.ElementsMatch(t, []string{"shallow", "deep"}, all)
}

func TestFindProducerCaches(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterTarget(resource.NewFileTarget("/a"), "t1"))
	dep := resource.NewFileDependency("/a")

	_, _ = e.FindProducer(dep)
	assert.Equal(t, 1, e.ExactCount())

	// Registering a new target clears the cache but doesn't affect the
	// earlier lookup's correctness.
	require.NoError(t, e.RegisterTarget(resource.NewFileTarget("/b"), "t2"))
	name, ok := e.FindProducer(dep)
	assert.True(t, ok)
	assert.Equal(t, "t1", name)
}

func TestFindProducer_NotFound(t *testing.T) {
	e := NewEngine()
	_, ok := e.FindProducer(resource.NewFileDependency("/nowhere"))
	assert.False(t, ok)
}

type fakeKeyDependency struct{ key string }

func (f *fakeKeyDependency) Key() string          { return f.key }
func (f *fakeKeyDependency) Exists() bool         { return true }
func (f *fakeKeyDependency) IsModified(*resource.State) bool { return false }

func (f *fakeKeyDependency) CurrentState(*resource.State) (*resource.State, bool) {
	return nil, false
}

func (f *fakeKeyDependency) Check(*resource.State, bool) resource.CheckResult {
	return resource.CheckResult{Status: resource.StatusUpToDate}
}

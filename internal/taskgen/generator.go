// Package taskgen expands a Generator's input patterns into concrete
// Tasks, one per combination of captured values, grounded on
// original_source/doit's taskgen.generator.Generator.
package taskgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexhughson/reflo/internal/pattern"
	"github.com/alexhughson/reflo/internal/resource"
	"github.com/alexhughson/reflo/internal/task"
)

// Input describes one of a generator's input patterns: where its
// candidate resources are enumerated from, and how matches against it
// become resource.Dependency values on the generated task.
type Input struct {
	Label   string
	Pattern string

	// Base is the local directory Pattern is enumerated under. Leave
	// empty when Keys is set instead.
	Base string

	// Keys, when non-nil, supplies the candidate resource keys directly
	// (e.g. an object-store listing or a directory walk the caller
	// already performed) instead of a filesystem glob.
	Keys []string

	// IsObject marks this input as object-store backed, so generated
	// dependencies are ObjectDependency rather than FileDependency.
	IsObject   bool
	Scheme     string
	Bucket     string
	ObjectStat resource.ObjectStat

	// Optional, when true, lets task generation proceed even if this
	// label has no consistent match for a given capture assignment
	// (spec §4.6 step 5's "required" rule; Input is required by default,
	// matching original_source/doit's Input.required=True default).
	Optional bool
}

// Output describes one output template. Dir marks a directory/prefix
// target (spec §4.6's directory-producer case) instead of a single
// file.
type Output struct {
	Template string
	Dir      bool
	IsObject bool
	Scheme   string
	Bucket   string
}

// ActionFactory builds the actions for one generated task from its
// captured attributes and, per label, the matched resource keys (more
// than one when the label's pattern is list-valued).
type ActionFactory func(attrs map[string]string, items map[string][]string) []task.Action

// Generator produces a family of tasks from a name template, a set of
// input patterns, and an action factory, the way original_source/doit's
// generator.Generator turns a TaskGen declaration into TaskInfo objects.
type Generator struct {
	NameTemplate string
	DocTemplate  string
	Inputs       []Input
	Outputs      []Output
	ExtraDeps    []string

	// TaskDeps names tasks this generator's tasks must run after,
	// resolved as task-ordering dependencies rather than resource
	// dependencies. A trailing "*" ("compile:*") expands at graph-build
	// time to every currently-known task with that prefix (spec §4.5
	// step 3), the way original_source/doit's wildcard task dependency
	// resolves once the full task set exists.
	TaskDeps []string

	Action ActionFactory
	Meta   map[string]string
}

// Generate compiles every input pattern, enumerates its candidates,
// builds the Cartesian product of consistent capture combinations, and
// returns one Task per resulting InputSet (spec §4.6/§4.7).
func (g *Generator) Generate() ([]*task.Task, error) {
	labelSpecs := make([]pattern.LabelSpec, 0, len(g.Inputs))
	byLabel := make(map[string][]pattern.Candidate, len(g.Inputs))
	inputByLabel := make(map[string]Input, len(g.Inputs))

	for _, in := range g.Inputs {
		compiled, err := pattern.Compile(in.Pattern)
		if err != nil {
			return nil, fmt.Errorf("generator %q: input %q: %w", g.NameTemplate, in.Label, err)
		}

		var candidates []pattern.Candidate
		switch {
		case in.Keys != nil:
			candidates = pattern.EnumerateKeys(in.Keys, compiled)
		default:
			candidates, err = pattern.EnumerateFiles(in.Base, compiled)
			if err != nil {
				return nil, fmt.Errorf("generator %q: input %q: %w", g.NameTemplate, in.Label, err)
			}
		}
		byLabel[in.Label] = candidates
		inputByLabel[in.Label] = in

		labelSpecs = append(labelSpecs, pattern.LabelSpec{
			Label:        in.Label,
			CaptureNames: compiled.CaptureNames,
			IsList:       compiled.IsList,
			Required:     !in.Optional,
		})
	}
	// Deterministic label order. BuildInputSets' output order depends only
	// on sorted capture values, and each label's candidates are scanned in
	// that label's own enumeration order, so this sort does not change
	// which candidates are selected; it only fixes the labelSpecs order.
	sort.Slice(labelSpecs, func(i, j int) bool { return labelSpecs[i].Label < labelSpecs[j].Label })

	sets := pattern.BuildInputSets(labelSpecs, byLabel)

	tasks := make([]*task.Task, 0, len(sets))
	for _, set := range sets {
		t, err := g.buildTask(set, inputByLabel)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (g *Generator) buildTask(set *pattern.InputSet, inputByLabel map[string]Input) (*task.Task, error) {
	name := pattern.Render(g.NameTemplate, set.Attrs)

	t := &task.Task{
		Name: name,
		Doc:  pattern.Render(g.DocTemplate, set.Attrs),
		Meta: g.Meta,
	}

	items := make(map[string][]string, len(set.Items))
	for _, label := range sortedKeys(set.Items) {
		in := inputByLabel[label]
		keys := make([]string, 0, len(set.Items[label]))
		for _, cand := range set.Items[label] {
			keys = append(keys, cand.Key)
			if in.IsObject {
				t.Dependencies = append(t.Dependencies, &resource.ObjectDependency{
					Scheme:    in.Scheme,
					Bucket:    in.Bucket,
					ObjectKey: cand.Key,
					Stat:      in.ObjectStat,
				})
			} else {
				t.Dependencies = append(t.Dependencies, resource.NewFileDependency(cand.Key))
			}
		}
		items[label] = keys
	}

	for _, dep := range g.ExtraDeps {
		t.Dependencies = append(t.Dependencies, resource.NewFileDependency(pattern.Render(dep, set.Attrs)))
	}

	for _, name := range g.TaskDeps {
		t.Dependencies = append(t.Dependencies, resource.NewTaskOrderingDependency(pattern.Render(name, set.Attrs)))
	}

	for _, out := range g.Outputs {
		rendered := pattern.Render(out.Template, set.Attrs)
		switch {
		case out.Dir && out.IsObject:
			t.Targets = append(t.Targets, resource.NewObjectPrefixTarget(out.Scheme, out.Bucket, rendered))
		case out.Dir:
			t.Targets = append(t.Targets, resource.NewDirectoryTarget(rendered))
		case out.IsObject:
			t.Targets = append(t.Targets, &resource.ObjectTarget{Scheme: out.Scheme, Bucket: out.Bucket, ObjectKey: rendered})
		default:
			t.Targets = append(t.Targets, resource.NewFileTarget(rendered))
		}
	}

	if g.Action != nil {
		t.Actions = g.Action(set.Attrs, items)
	}

	return t, nil
}

func sortedKeys(m map[string][]pattern.Candidate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JoinItems renders a label's matched keys for substitution into a
// shell command template: a single match renders bare, multiple matches
// (a list-valued label) render space-joined as a shell word list.
func JoinItems(keys []string) string {
	return strings.Join(keys, " ")
}

// Package manifest loads a declarative YAML build file into
// taskgen.Generators, the Go-native equivalent of original_source/doit's
// Python task-definition modules: rather than importing Python functions
// as task generators, reflo's manifest format describes the same shape
// (input patterns, output patterns, a command template) as data, parsed
// with github.com/goccy/go-yaml like internal/statestore's file format.
package manifest

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/alexhughson/reflo/internal/objectstore"
	"github.com/alexhughson/reflo/internal/pattern"
	"github.com/alexhughson/reflo/internal/task"
	"github.com/alexhughson/reflo/internal/taskgen"
)

// InputSpec declares one generator input.
type InputSpec struct {
	Label    string `yaml:"label"`
	Pattern  string `yaml:"pattern"`
	Base     string `yaml:"base"`
	IsObject bool   `yaml:"object"`
	Scheme   string `yaml:"scheme"`
	Bucket   string `yaml:"bucket"`
	// Optional marks this input as not required for task generation
	// (spec §4.6 step 5); unset, an input must have a consistent match
	// for every capture assignment, matching original_source/doit's
	// Input.required=True default.
	Optional bool `yaml:"optional"`
}

// OutputSpec declares one generator output.
type OutputSpec struct {
	Template string `yaml:"template"`
	Dir      bool   `yaml:"dir"`
	IsObject bool   `yaml:"object"`
	Scheme   string `yaml:"scheme"`
	Bucket   string `yaml:"bucket"`
}

// GeneratorSpec is one generator's declarative form.
type GeneratorSpec struct {
	Name    string            `yaml:"name"`
	Doc     string            `yaml:"doc"`
	Inputs  []InputSpec       `yaml:"inputs"`
	Outputs []OutputSpec      `yaml:"outputs"`
	// TaskDeps names tasks to order after, supporting a trailing "*"
	// wildcard expanded against the full generated task set.
	TaskDeps []string `yaml:"task_deps"`
	Command  string   `yaml:"command"`
	Meta     map[string]string `yaml:"meta"`
}

// Manifest is the top-level build file shape.
type Manifest struct {
	Generators []GeneratorSpec `yaml:"generators"`
}

// Load reads and parses path into a Manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// BuildGenerators converts every declared GeneratorSpec into a
// taskgen.Generator, rendering Command as a shell action templated on
// the generated task's captured attributes. objStore is consulted for
// any input or output marked `object: true`; pass nil when the manifest
// has no object-store-backed generators.
func (m *Manifest) BuildGenerators(objStore *objectstore.Client) []*taskgen.Generator {
	gens := make([]*taskgen.Generator, 0, len(m.Generators))
	for _, spec := range m.Generators {
		spec := spec
		gen := &taskgen.Generator{
			NameTemplate: spec.Name,
			DocTemplate:  spec.Doc,
			TaskDeps:     spec.TaskDeps,
			Meta:         spec.Meta,
		}
		for _, in := range spec.Inputs {
			input := taskgen.Input{
				Label:    in.Label,
				Pattern:  in.Pattern,
				Base:     in.Base,
				IsObject: in.IsObject,
				Scheme:   in.Scheme,
				Bucket:   in.Bucket,
				Optional: in.Optional,
			}
			if in.IsObject && objStore != nil {
				input.ObjectStat = objStore
				// An object-store input has no local directory to glob;
				// list the bucket once up front and hand the generator
				// the concrete key set to match patterns against.
				keys, err := objStore.List(context.Background(), in.Bucket, pattern.StaticPrefix(in.Pattern))
				if err == nil {
					input.Keys = keys
				}
			}
			gen.Inputs = append(gen.Inputs, input)
		}
		for _, out := range spec.Outputs {
			gen.Outputs = append(gen.Outputs, taskgen.Output{
				Template: out.Template,
				Dir:      out.Dir,
				IsObject: out.IsObject,
				Scheme:   out.Scheme,
				Bucket:   out.Bucket,
			})
		}
		if spec.Command != "" {
			command := spec.Command
			gen.Action = func(attrs map[string]string, items map[string][]string) []task.Action {
				rendered := pattern.Render(command, attrs)
				for label, keys := range items {
					rendered = pattern.Render(rendered, map[string]string{"item:" + label: taskgen.JoinItems(keys)})
				}
				return []task.Action{task.CommandAction(rendered)}
			}
		}
		gens = append(gens, gen)
	}
	return gens
}

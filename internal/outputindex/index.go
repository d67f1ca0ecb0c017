// Package outputindex maps output path prefixes to the generators whose
// input patterns could match resources under those prefixes, so the
// reactive engine only re-runs generators that a task's outputs could
// plausibly affect. Grounded on original_source/doit's
// reactive.index.OutputPatternIndex.
package outputindex

import (
	"path/filepath"
	"strings"

	"github.com/alexhughson/reflo/internal/pattern"
	"github.com/alexhughson/reflo/internal/taskgen"
)

// Index maps static path prefixes to the generators registered under
// them, and supports finding every generator a set of new outputs might
// affect.
type Index struct {
	prefixToGenerators map[string][]*taskgen.Generator
	generators         []*taskgen.Generator
}

func New() *Index {
	return &Index{prefixToGenerators: make(map[string][]*taskgen.Generator)}
}

// Register records every input pattern of gen under its static prefix.
func (idx *Index) Register(gen *taskgen.Generator) {
	idx.generators = append(idx.generators, gen)
	for _, in := range gen.Inputs {
		prefix := absolutePrefix(in)
		idx.prefixToGenerators[prefix] = appendUnique(idx.prefixToGenerators[prefix], gen)
	}
}

// RegisterAll registers each of gens.
func (idx *Index) RegisterAll(gens []*taskgen.Generator) {
	for _, g := range gens {
		idx.Register(g)
	}
}

// FindAffected returns, with no duplicates, every generator whose
// registered prefix overlaps one of outputs -- either the output starts
// with the prefix, or the prefix starts with the output (the latter
// covers a directory output that contains the generator's base).
func (idx *Index) FindAffected(outputs []string) []*taskgen.Generator {
	var affected []*taskgen.Generator
	seen := make(map[*taskgen.Generator]bool)

	for _, output := range outputs {
		normalized := normalizePath(output)
		for prefix, gens := range idx.prefixToGenerators {
			trimmedPrefix := strings.TrimRight(prefix, "/")
			if strings.HasPrefix(normalized, trimmedPrefix) || strings.HasPrefix(trimmedPrefix, normalized) {
				for _, g := range gens {
					if !seen[g] {
						seen[g] = true
						affected = append(affected, g)
					}
				}
			}
		}
	}
	return affected
}

// AllGenerators returns every generator registered so far.
func (idx *Index) AllGenerators() []*taskgen.Generator {
	return append([]*taskgen.Generator(nil), idx.generators...)
}

func (idx *Index) Clear() {
	idx.prefixToGenerators = make(map[string][]*taskgen.Generator)
	idx.generators = nil
}

func (idx *Index) PrefixCount() int    { return len(idx.prefixToGenerators) }
func (idx *Index) GeneratorCount() int { return len(idx.generators) }

func absolutePrefix(in taskgen.Input) string {
	relative := pattern.StaticPrefix(in.Pattern)
	if in.Base == "" {
		return relative
	}
	abs, err := filepath.Abs(filepath.Join(in.Base, relative))
	if err != nil {
		return relative
	}
	return abs + "/"
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "s3://") {
		rest := path[len("s3://"):]
		bucket, key, found := strings.Cut(rest, "/")
		if !found {
			return "s3://" + strings.TrimRight(rest, "/")
		}
		return "s3://" + bucket + "/" + strings.TrimRight(key, "/")
	}
	return strings.TrimRight(path, "/")
}

func appendUnique(gens []*taskgen.Generator, g *taskgen.Generator) []*taskgen.Generator {
	for _, existing := range gens {
		if existing == g {
			return gens
		}
	}
	return append(gens, g)
}

package pattern

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// EnumerateFiles expands c's glob against the local filesystem rooted at
// base and returns one Candidate per matching path whose captures were
// extracted by the anchored capture regex. Grounded on
// original_source/doit's FileInput.enumerate/_get_match_key split:
// list_resources yields the absolute path as the dependency's identity
// while _get_match_key re-derives the base-relative path the pattern
// itself is written against (taskgen/inputs.py:171-183) -- base is
// never the process working directory, per spec §9.
func EnumerateFiles(base string, c *Compiled) ([]Candidate, error) {
	matches, err := doublestar.Glob(os.DirFS(base), c.Glob)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		captures, ok := c.Match(m)
		if !ok {
			continue
		}
		out = append(out, Candidate{Key: filepath.Join(base, m), Match: m, Captures: captures})
	}
	return out, nil
}

// EnumerateKeys matches c's capture regex against an already-known list
// of resource keys (e.g. object-store listing results, or directory
// entries gathered by the caller), used for inputs that doublestar
// cannot enumerate directly such as S3Input/DirectoryInput in
// original_source/doit. These keys already are their own match key --
// there is no separate base to resolve against.
func EnumerateKeys(keys []string, c *Compiled) []Candidate {
	var out []Candidate
	for _, key := range keys {
		captures, ok := c.Match(key)
		if !ok {
			continue
		}
		out = append(out, Candidate{Key: key, Match: key, Captures: captures})
	}
	return out
}

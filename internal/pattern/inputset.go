package pattern

import (
	"sort"
	"strings"
)

// Candidate is one resource matched against an input pattern. Key is
// the resource's canonical identity (an absolute path for files, the
// bare key for object-store/other enumerated keys); Match is the string
// the capture regex was actually run against -- for files, the path
// relative to the input's base directory, since patterns like
// "<name>.txt" are written relative to a base, not absolute (spec §9:
// "require an explicit base directory on every input"). Captures holds
// the values extracted from Match.
type Candidate struct {
	Key      string
	Match    string
	Captures map[string]string
}

// LabelSpec carries the per-label metadata BuildInputSets needs beyond
// the raw candidate list: which captures the label's pattern declares,
// whether it is list-valued (spec §4.6's auto-list detection), and
// whether a consistent match is mandatory for the assignment to survive
// (spec §4.6 step 5's "required" rule, mirroring original_source/doit's
// Input.required).
type LabelSpec struct {
	Label        string
	CaptureNames []string
	IsList       bool
	Required     bool
}

// InputSet is one Cartesian-product combination of captured attribute
// values across a generator's input patterns, together with every
// resource match consistent with that combination (spec §4.6's
// "one combination of captures per generated task"). Items holds one
// entry per label; a list-valued label may hold more than one Candidate,
// a scalar label holds at most one.
type InputSet struct {
	Attrs map[string]string
	Items map[string][]Candidate
}

// Hash returns a stable identity for this combination, built from the
// sorted labels and sorted candidate keys. internal/merger does not call
// it; the merger hashes a task's dependency keys itself.
func (s *InputSet) Hash() string {
	labels := make([]string, 0, len(s.Items))
	for label := range s.Items {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var b strings.Builder
	for _, label := range labels {
		keys := make([]string, 0, len(s.Items[label]))
		for _, c := range s.Items[label] {
			keys = append(keys, c.Key)
		}
		sort.Strings(keys)
		b.WriteString(label)
		b.WriteByte('=')
		b.WriteString(strings.Join(keys, ","))
		b.WriteByte('|')
	}
	return b.String()
}

// BuildInputSets takes, per input label, the candidate matches found for
// that label's pattern, and returns one InputSet per combination of
// capture values that is consistent across every label -- the Cartesian
// product over observed capture values, pruned to combinations where
// every required label has at least one consistent match. Mirrors
// original_source/doit's build_input_sets (doit/taskgen/groups.py).
func BuildInputSets(labels []LabelSpec, byLabel map[string][]Candidate) []*InputSet {
	if len(labels) == 0 {
		return nil
	}

	allNames := map[string]bool{}
	for _, l := range labels {
		for _, n := range l.CaptureNames {
			allNames[n] = true
		}
	}

	// Zero-captures case (spec §4.6): one InputSet holding, per label,
	// the full list (or first match) of whatever the patterns enumerated.
	if len(allNames) == 0 {
		items := make(map[string][]Candidate, len(labels))
		satisfied := true
		for _, l := range labels {
			cands := byLabel[l.Label]
			switch {
			case l.IsList:
				items[l.Label] = cands
			case len(cands) > 0:
				items[l.Label] = cands[:1]
			}
			if l.Required && len(cands) == 0 {
				satisfied = false
			}
		}
		if !satisfied {
			return nil
		}
		return []*InputSet{{Attrs: map[string]string{}, Items: items}}
	}

	values := make(map[string]map[string]bool, len(allNames))
	for name := range allNames {
		values[name] = map[string]bool{}
	}
	for _, l := range labels {
		for _, c := range byLabel[l.Label] {
			for _, name := range l.CaptureNames {
				if v, ok := c.Captures[name]; ok {
					values[name][v] = true
				}
			}
		}
	}

	names := make([]string, 0, len(allNames))
	for n := range allNames {
		names = append(names, n)
	}
	sort.Strings(names)

	valueLists := make([][]string, len(names))
	for i, n := range names {
		vs := make([]string, 0, len(values[n]))
		for v := range values[n] {
			vs = append(vs, v)
		}
		sort.Strings(vs)
		if len(vs) == 0 {
			// Empty-product rule: a capture with no observed values means
			// the whole product yields nothing.
			return nil
		}
		valueLists[i] = vs
	}

	var sets []*InputSet
	for _, attrs := range cartesianProduct(names, valueLists) {
		items := make(map[string][]Candidate, len(labels))
		satisfied := true
		for _, l := range labels {
			matching := consistentCandidates(byLabel[l.Label], l.CaptureNames, attrs)
			switch {
			case l.IsList:
				items[l.Label] = matching
			case len(matching) > 0:
				items[l.Label] = matching[:1]
			}
			if l.Required && len(matching) == 0 {
				satisfied = false
			}
		}
		if satisfied {
			sets = append(sets, &InputSet{Attrs: attrs, Items: items})
		}
	}
	return sets
}

func consistentCandidates(candidates []Candidate, captureNames []string, attrs map[string]string) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		ok := true
		for _, name := range captureNames {
			if c.Captures[name] != attrs[name] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// cartesianProduct returns one attrs map per combination of valueLists,
// names[len(names)-1] varying fastest -- the same order itertools.product
// yields, which keeps generated task order the stable, lexicographic
// order spec §5 requires.
func cartesianProduct(names []string, valueLists [][]string) []map[string]string {
	if len(names) == 0 {
		return []map[string]string{{}}
	}
	rest := cartesianProduct(names[1:], valueLists[1:])

	out := make([]map[string]string, 0, len(valueLists[0])*len(rest))
	for _, v := range valueLists[0] {
		for _, r := range rest {
			m := make(map[string]string, len(r)+1)
			m[names[0]] = v
			for k, vv := range r {
				m[k] = vv
			}
			out = append(out, m)
		}
	}
	return out
}

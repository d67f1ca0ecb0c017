package resource

// CustomTarget wraps a user-supplied MatchFunc, giving the matching engine
// an escape hatch for resource kinds the core doesn't know about (spec §9,
// "Extension arm carrying a trait object / interface for user-defined
// kinds").
type CustomTarget struct {
	TargetKey string
	MatchFunc func(dep Dependency) bool
}

func (t *CustomTarget) Key() string { return t.TargetKey }

func (t *CustomTarget) Strategy() MatchStrategy { return MatchCustom }

func (t *CustomTarget) Matches(dep Dependency) bool {
	if t.MatchFunc == nil {
		return false
	}
	return t.MatchFunc(dep)
}

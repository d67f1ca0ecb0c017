// Package resource implements the self-describing Dependency and Target
// value types that make up reflo's change-detection and matching model.
//
// Every dependency and target carries its own canonical key and knows how
// to test itself for change; the scheduler and matching engine never
// special-case a resource kind directly, they only call through these
// interfaces.
package resource

import "fmt"

// MatchStrategy determines which index in the matching engine a target is
// routed to, and therefore how producer lookups against it behave.
type MatchStrategy int

const (
	// MatchExact requires the dependency's key to equal the target's key.
	MatchExact MatchStrategy = iota
	// MatchPrefix matches any dependency key that falls under the target's
	// path prefix (longest prefix wins).
	MatchPrefix
	// MatchCustom defers to the target's own Matches method.
	MatchCustom
)

func (s MatchStrategy) String() string {
	switch s {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchCustom:
		return "custom"
	default:
		return fmt.Sprintf("MatchStrategy(%d)", int(s))
	}
}

// Status is the outcome of checking a Dependency against its stored state.
type Status int

const (
	// StatusUpToDate means the dependency has not changed; the task does
	// not need to re-run because of this dependency.
	StatusUpToDate Status = iota
	// StatusChanged means the dependency differs from its stored state.
	StatusChanged
	// StatusMissing means the dependency does not exist and no producer
	// task is registered to create it.
	StatusMissing
	// StatusError means the check itself failed (e.g. a transport error
	// talking to an object store).
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusChanged:
		return "changed"
	case StatusMissing:
		return "missing"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// CheckResult is the single answer the scheduler needs from a dependency:
// its status and a human-readable reason for diagnostics.
type CheckResult struct {
	Status Status
	Reason string
	Err    error
}

// Matchable is implemented by both Dependency and Target: anything that
// participates in producer resolution needs a canonical key.
type Matchable interface {
	Key() string
}

// Dependency is a typed reference to an input resource with
// change-detection semantics. See package doc and spec §4.1.
type Dependency interface {
	Matchable

	// Exists reports whether the resource is physically present.
	Exists() bool

	// IsModified compares the dependency's current condition against a
	// previously stored state. It must be cheap when possible (the file
	// variant's three-level test exists precisely to keep this cheap).
	IsModified(previous *State) bool

	// CurrentState computes the state to persist after the owning task
	// completes successfully. ok=false ("no change, reuse stored") lets
	// the caller skip a write when nothing changed.
	CurrentState(previous *State) (next *State, ok bool)

	// Check is the single call the scheduler makes. hasProducer tells the
	// dependency whether some task in the graph claims to produce it, so
	// a missing-but-produced resource isn't reported as an error.
	Check(previous *State, hasProducer bool) CheckResult
}

// Target is a typed declaration of a resource a task produces.
type Target interface {
	Matchable

	// Strategy reports which matching index this target is routed to.
	Strategy() MatchStrategy

	// Matches is consulted only for MatchCustom targets; it decides
	// whether this target is considered the producer of dep.
	Matches(dep Dependency) bool
}

// TaskOrderingKey renders the canonical key for a task-ordering
// pseudo-dependency, "task:<name>".
func TaskOrderingKey(taskName string) string {
	return "task:" + taskName
}

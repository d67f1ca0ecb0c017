// Package statestore implements the per-task key/value persistence
// contract from spec §4.2: a (task_name, dep_key) -> resource.State map
// with buffered writes and atomic commit.
package statestore

import (
	"errors"

	"github.com/alexhughson/reflo/internal/resource"
)

// ErrStoreIO wraps any error the store encounters reading or committing
// state, surfaced as an abort-the-run diagnostic per spec §7.
var ErrStoreIO = errors.New("state store i/o error")

// Store is the full surface the core depends on (spec §4.2).
type Store interface {
	Get(taskName, depKey string) (*resource.State, bool)
	Put(taskName, depKey string, state *resource.State)
	PutResult(taskName string, value any)
	GetResult(taskName string) (any, bool)
	// Commit makes buffered changes durable. The scheduler only
	// considers a task's state visible to later reads once Commit
	// returns (spec §5).
	Commit() error
	Clear(taskName string)
}

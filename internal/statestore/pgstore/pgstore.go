// Package pgstore is a SQL-backed statestore.Store implementation for
// deployments that run the reactive scheduler from more than one host
// against a shared database. It exercises the same statestore.Store
// interface as the file-backed default (see internal/statestore), using
// github.com/jackc/pgx/v5 directly rather than database/sql, matching
// how the teacher's own go.mod prefers the native pgx driver.
package pgstore

import (
	"context"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexhughson/reflo/internal/resource"
	"github.com/alexhughson/reflo/internal/statestore"
)

const schema = `
CREATE TABLE IF NOT EXISTS reflo_state (
	task_name TEXT NOT NULL,
	dep_key   TEXT NOT NULL,
	state     TEXT NOT NULL,
	PRIMARY KEY (task_name, dep_key)
);
CREATE TABLE IF NOT EXISTS reflo_results (
	task_name TEXT PRIMARY KEY,
	result    TEXT NOT NULL
);
`

// Store is a statestore.Store backed by a Postgres pool. Writes are
// buffered in memory and flushed inside a single transaction on Commit,
// mirroring the file store's buffer-then-flush contract.
type Store struct {
	pool *pgxpool.Pool

	pending    map[[2]string]*resource.State
	pendingRes map[string]any
	cleared    map[string]bool
}

// Open connects to dsn and ensures the backing tables exist.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %v", statestore.ErrStoreIO, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", statestore.ErrStoreIO, err)
	}
	return &Store{
		pool:       pool,
		pending:    make(map[[2]string]*resource.State),
		pendingRes: make(map[string]any),
		cleared:    make(map[string]bool),
	}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Get reads through any uncommitted Put for the same key first, then
// falls back to the database.
func (s *Store) Get(taskName, depKey string) (*resource.State, bool) {
	if st, ok := s.pending[[2]string{taskName, depKey}]; ok {
		return st, true
	}
	ctx := context.Background()
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM reflo_state WHERE task_name=$1 AND dep_key=$2`,
		taskName, depKey,
	).Scan(&raw)
	if err != nil {
		return nil, false
	}
	var st resource.State
	if err := yaml.Unmarshal([]byte(raw), &st); err != nil {
		return nil, false
	}
	return &st, true
}

func (s *Store) Put(taskName, depKey string, state *resource.State) {
	s.pending[[2]string{taskName, depKey}] = state
}

func (s *Store) PutResult(taskName string, value any) {
	s.pendingRes[taskName] = value
}

func (s *Store) GetResult(taskName string) (any, bool) {
	if v, ok := s.pendingRes[taskName]; ok {
		return v, true
	}
	ctx := context.Background()
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM reflo_results WHERE task_name=$1`, taskName,
	).Scan(&raw)
	if err != nil {
		return nil, false
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

func (s *Store) Clear(taskName string) {
	s.cleared[taskName] = true
	for k := range s.pending {
		if k[0] == taskName {
			delete(s.pending, k)
		}
	}
	delete(s.pendingRes, taskName)
}

// Commit flushes every buffered write inside one transaction.
func (s *Store) Commit() error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", statestore.ErrStoreIO, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for taskName := range s.cleared {
		if _, err := tx.Exec(ctx, `DELETE FROM reflo_state WHERE task_name=$1`, taskName); err != nil {
			return fmt.Errorf("%w: clearing %s: %v", statestore.ErrStoreIO, taskName, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM reflo_results WHERE task_name=$1`, taskName); err != nil {
			return fmt.Errorf("%w: clearing %s: %v", statestore.ErrStoreIO, taskName, err)
		}
	}

	for key, state := range s.pending {
		data, err := yaml.Marshal(state)
		if err != nil {
			return fmt.Errorf("%w: marshaling state: %v", statestore.ErrStoreIO, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO reflo_state (task_name, dep_key, state) VALUES ($1, $2, $3)
			ON CONFLICT (task_name, dep_key) DO UPDATE SET state = EXCLUDED.state
		`, key[0], key[1], string(data))
		if err != nil {
			return fmt.Errorf("%w: upserting state: %v", statestore.ErrStoreIO, err)
		}
	}

	for taskName, value := range s.pendingRes {
		data, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: marshaling result: %v", statestore.ErrStoreIO, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO reflo_results (task_name, result) VALUES ($1, $2)
			ON CONFLICT (task_name) DO UPDATE SET result = EXCLUDED.result
		`, taskName, string(data))
		if err != nil {
			return fmt.Errorf("%w: upserting result: %v", statestore.ErrStoreIO, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", statestore.ErrStoreIO, err)
	}

	s.pending = make(map[[2]string]*resource.State)
	s.pendingRes = make(map[string]any)
	s.cleared = make(map[string]bool)
	return nil
}

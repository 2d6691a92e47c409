// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/carbonledger/lib/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID;
`

// SQLiteConfig configures a persistent store.
type SQLiteConfig struct {
	// Path is the database file. Created if absent.
	Path string

	// PoolSize is passed to sqlitepool. Zero uses the pool default.
	PoolSize int

	Logger *slog.Logger
}

// SQLite is a persistent [Committer] backed by a single SQLite table
// of byte keys and byte values. Each Commit is one IMMEDIATE
// transaction.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the state database at
// cfg.Path.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Schema:   sqliteSchema,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: %w", err)
	}
	return &SQLite{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

// Get reads one value.
func (s *SQLite) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM state WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = columnBlob(stmt, 0)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get: %w", err)
	}
	return value, found, nil
}

// Iterate reads every entry under prefix into memory and then calls
// fn, so fn may issue further reads without holding a connection.
func (s *SQLite) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var query string
	var args []any
	switch end := PrefixEnd(prefix); {
	case len(prefix) == 0:
		query = "SELECT key, value FROM state ORDER BY key"
	case end == nil:
		query = "SELECT key, value FROM state WHERE key >= ? ORDER BY key"
		args = []any{prefix}
	default:
		query = "SELECT key, value FROM state WHERE key >= ? AND key < ? ORDER BY key"
		args = []any{prefix, end}
	}

	type entry struct{ key, value []byte }
	var entries []entry
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, entry{key: columnBlob(stmt, 0), value: columnBlob(stmt, 1)})
				return nil
			},
		})
	})
	if err != nil {
		return fmt.Errorf("kvstore: iterate: %w", err)
	}

	for _, e := range entries {
		proceed, err := iterateCallback(fn, e.key, e.value)
		if !proceed {
			return err
		}
	}
	return nil
}

// Commit applies changes in one IMMEDIATE transaction.
func (s *SQLite) Commit(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	err := s.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		for _, change := range changes {
			if change.Delete {
				if err := sqlitex.Execute(conn, "DELETE FROM state WHERE key = ?",
					&sqlitex.ExecOptions{Args: []any{change.Key}}); err != nil {
					return err
				}
				continue
			}
			if err := sqlitex.Execute(conn,
				"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
				&sqlitex.ExecOptions{Args: []any{change.Key, change.Value}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kvstore: commit %d changes: %w", len(changes), err)
	}
	s.logger.Debug("state committed", "changes", len(changes))
	return nil
}

func columnBlob(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}

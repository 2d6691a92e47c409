// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// persistent ledger store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and prepares every
// connection with the same pragmas:
//
//   - journal_mode=WAL: queries never block the writer.
//   - synchronous=FULL: a committed operation survives power loss.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock.
//   - foreign_keys=OFF, cache_size=-8192, temp_store=MEMORY.
//
// Callers either Take/Put connections directly or use [Pool.With] and
// [Pool.Immediate]:
//
//	err := pool.Immediate(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM state WHERE key = ?",
//	        &sqlitex.ExecOptions{Args: []any{key}})
//	})
//
// SQL is written by hand and executed with sqlitex.Execute; there is no
// query builder.
package sqlitepool

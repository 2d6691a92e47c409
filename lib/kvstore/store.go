// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"bytes"
	"context"
	"errors"
)

// ErrStop may be returned by an Iterate or Walk callback to end the
// iteration early. The iterating call then returns nil.
var ErrStop = errors.New("kvstore: stop iteration")

// Reader is read access to an ordered byte-keyed store.
type Reader interface {
	// Get returns the value stored under key. The returned slice is
	// owned by the caller.
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)

	// Iterate calls fn for every entry whose key starts with prefix,
	// in ascending byte order of key. An empty prefix visits every
	// entry. The key and value passed to fn are owned by fn.
	Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
}

// Store is a Reader that accepts individual writes. Writes through a
// Store are not atomic as a group; module code writes through an
// [Overlay] and the runtime commits the overlay with [Committer].
type Store interface {
	Reader
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
}

// Committer is a durable store that applies a set of changes
// atomically: either every change lands or none does.
type Committer interface {
	Reader
	Commit(ctx context.Context, changes []Change) error
}

// Change is a single pending write. Delete changes carry no value.
type Change struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// PrefixEnd returns the smallest key greater than every key that
// starts with prefix, or nil when no such key exists (empty prefix or
// a prefix of all 0xff bytes).
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// iterateCallback runs fn and maps ErrStop to a clean stop. The
// returned bool reports whether iteration should continue.
func iterateCallback(fn func(key, value []byte) error, key, value []byte) (bool, error) {
	if err := fn(key, value); err != nil {
		if errors.Is(err, ErrStop) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

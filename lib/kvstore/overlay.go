// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"bytes"
	"context"
	"slices"
	"strings"
)

// Overlay buffers writes on top of a base Reader. Reads see the
// buffered writes first and fall through to the base. Nothing reaches
// the base until the owner passes [Overlay.Changes] to a Committer;
// discarding the overlay discards every write.
//
// An Overlay is used by one operation at a time and is not safe for
// concurrent use.
type Overlay struct {
	base Reader

	// pending maps key to its buffered state. A nil *[]byte marks a
	// buffered delete.
	pending map[string]*[]byte
}

// NewOverlay returns an empty overlay on base.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{base: base, pending: make(map[string]*[]byte)}
}

// Get returns the buffered value for key, or the base value when key
// has no buffered write.
func (o *Overlay) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if entry, ok := o.pending[string(key)]; ok {
		if entry == nil {
			return nil, false, nil
		}
		return bytes.Clone(*entry), true, nil
	}
	return o.base.Get(ctx, key)
}

// Iterate merges the base entries under prefix with buffered writes
// and visits the result in key order.
func (o *Overlay) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := o.base.Iterate(ctx, prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	})
	if err != nil {
		return err
	}
	for key, entry := range o.pending {
		if !strings.HasPrefix(key, string(prefix)) {
			continue
		}
		if entry == nil {
			delete(merged, key)
			continue
		}
		merged[key] = bytes.Clone(*entry)
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		proceed, err := iterateCallback(fn, []byte(key), merged[key])
		if !proceed {
			return err
		}
	}
	return nil
}

// Set buffers a write.
func (o *Overlay) Set(_ context.Context, key, value []byte) error {
	stored := bytes.Clone(value)
	o.pending[string(key)] = &stored
	return nil
}

// Delete buffers a delete.
func (o *Overlay) Delete(_ context.Context, key []byte) error {
	o.pending[string(key)] = nil
	return nil
}

// Changes returns the buffered writes in key order.
func (o *Overlay) Changes() []Change {
	keys := make([]string, 0, len(o.pending))
	for key := range o.pending {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	changes := make([]Change, 0, len(keys))
	for _, key := range keys {
		entry := o.pending[key]
		if entry == nil {
			changes = append(changes, Change{Key: []byte(key), Delete: true})
			continue
		}
		changes = append(changes, Change{Key: []byte(key), Value: bytes.Clone(*entry)})
	}
	return changes
}

// Len returns the number of buffered writes, deletes included.
func (o *Overlay) Len() int { return len(o.pending) }

// Reset discards every buffered write.
func (o *Overlay) Reset() { clear(o.pending) }

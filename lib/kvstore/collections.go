// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/codec"
)

// Map is a typed region of the store: every key is the one-byte region
// prefix followed by the encoded K, and every value is CBOR-encoded V.
// A Map holds no state; reads take a Reader and writes take a Store.
type Map[K, V any] struct {
	prefix byte
	keys   KeyCodec[K]
}

// NewMap returns a map over the region identified by prefix.
func NewMap[K, V any](prefix byte, keys KeyCodec[K]) Map[K, V] {
	return Map[K, V]{prefix: prefix, keys: keys}
}

// Prefix returns the region prefix.
func (m Map[K, V]) Prefix() byte { return m.prefix }

// Key returns the full store key for key.
func (m Map[K, V]) Key(key K) []byte {
	return m.keys.Append([]byte{m.prefix}, key)
}

// Get returns the value for key and whether it exists.
func (m Map[K, V]) Get(ctx context.Context, r Reader, key K) (V, bool, error) {
	var value V
	data, found, err := r.Get(ctx, m.Key(key))
	if err != nil || !found {
		return value, false, err
	}
	if err := codec.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("kvstore: decoding region 0x%02x value: %w", m.prefix, err)
	}
	return value, true, nil
}

// Has reports whether key exists.
func (m Map[K, V]) Has(ctx context.Context, r Reader, key K) (bool, error) {
	_, found, err := r.Get(ctx, m.Key(key))
	return found, err
}

// Set stores value under key.
func (m Map[K, V]) Set(ctx context.Context, s Store, key K, value V) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: encoding region 0x%02x value: %w", m.prefix, err)
	}
	return s.Set(ctx, m.Key(key), data)
}

// Delete removes key.
func (m Map[K, V]) Delete(ctx context.Context, s Store, key K) error {
	return s.Delete(ctx, m.Key(key))
}

// Walk visits every entry in key order.
func (m Map[K, V]) Walk(ctx context.Context, r Reader, fn func(key K, value V) error) error {
	return m.WalkPrefix(ctx, r, nil, fn)
}

// WalkPrefix visits the entries whose encoded key starts with
// keyPrefix (for example a [PairCodec.Prefix]), in key order.
func (m Map[K, V]) WalkPrefix(ctx context.Context, r Reader, keyPrefix []byte, fn func(key K, value V) error) error {
	prefix := append([]byte{m.prefix}, keyPrefix...)
	return r.Iterate(ctx, prefix, func(rawKey, rawValue []byte) error {
		key, consumed, err := m.keys.Decode(rawKey[1:])
		if err != nil {
			return fmt.Errorf("kvstore: decoding region 0x%02x key %x: %w", m.prefix, rawKey, err)
		}
		if consumed != len(rawKey)-1 {
			return fmt.Errorf("kvstore: region 0x%02x key %x has %d trailing bytes", m.prefix, rawKey, len(rawKey)-1-consumed)
		}
		var value V
		if err := codec.Unmarshal(rawValue, &value); err != nil {
			return fmt.Errorf("kvstore: decoding region 0x%02x value: %w", m.prefix, err)
		}
		return fn(key, value)
	})
}

// Item is a single-value region: the key is the prefix byte alone.
type Item[V any] struct {
	prefix byte
}

// NewItem returns an item stored under prefix.
func NewItem[V any](prefix byte) Item[V] {
	return Item[V]{prefix: prefix}
}

// Get returns the stored value, or the zero value when unset.
func (i Item[V]) Get(ctx context.Context, r Reader) (V, error) {
	var value V
	data, found, err := r.Get(ctx, []byte{i.prefix})
	if err != nil || !found {
		return value, err
	}
	if err := codec.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("kvstore: decoding item 0x%02x: %w", i.prefix, err)
	}
	return value, nil
}

// Set stores value.
func (i Item[V]) Set(ctx context.Context, s Store, value V) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: encoding item 0x%02x: %w", i.prefix, err)
	}
	return s.Set(ctx, []byte{i.prefix}, data)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KeyCodec encodes typed keys into the ordered byte keys of a store.
// Encodings must be prefix-free so composite keys decode without
// ambiguity.
type KeyCodec[K any] interface {
	// Append appends the encoding of key to dst.
	Append(dst []byte, key K) []byte

	// Decode decodes a key from the front of data and reports how many
	// bytes it consumed.
	Decode(data []byte) (key K, consumed int, err error)
}

// hashedPrefixLength is the length of the blake2b-128 digest that
// leads every hashed key.
const hashedPrefixLength = 16

// Hashed encodes string-like keys as blake2b-128(x) ‖ uvarint(len x) ‖ x.
// The digest spreads keys evenly across the keyspace regardless of how
// callers choose identifiers; the raw bytes that follow keep the key
// recoverable during iteration.
type Hashed[T ~string] struct{}

// Append implements KeyCodec.
func (Hashed[T]) Append(dst []byte, key T) []byte {
	digest := blake2b128([]byte(key))
	dst = append(dst, digest[:]...)
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	return append(dst, string(key)...)
}

// Decode implements KeyCodec. The digest is verified against the raw
// bytes; a mismatch means the key was not written by this codec.
func (Hashed[T]) Decode(data []byte) (T, int, error) {
	if len(data) < hashedPrefixLength+1 {
		return "", 0, fmt.Errorf("kvstore: hashed key too short (%d bytes)", len(data))
	}
	length, n := binary.Uvarint(data[hashedPrefixLength:])
	if n <= 0 {
		return "", 0, fmt.Errorf("kvstore: hashed key has malformed length")
	}
	start := hashedPrefixLength + n
	if uint64(len(data)-start) < length {
		return "", 0, fmt.Errorf("kvstore: hashed key truncated: need %d bytes, have %d", length, len(data)-start)
	}
	end := start + int(length)
	raw := data[start:end]
	digest := blake2b128(raw)
	if !bytes.Equal(digest[:], data[:hashedPrefixLength]) {
		return "", 0, fmt.Errorf("kvstore: hashed key digest mismatch")
	}
	return T(raw), end, nil
}

func blake2b128(data []byte) [hashedPrefixLength]byte {
	hasher, err := blake2b.New(hashedPrefixLength, nil)
	if err != nil {
		panic("kvstore: blake2b-128 initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest [hashedPrefixLength]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Uint64 encodes integers big-endian so byte order matches numeric
// order.
type Uint64 struct{}

// Append implements KeyCodec.
func (Uint64) Append(dst []byte, key uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, key)
}

// Decode implements KeyCodec.
func (Uint64) Decode(data []byte) (uint64, int, error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("kvstore: uint64 key needs 8 bytes, have %d", len(data))
	}
	return binary.BigEndian.Uint64(data), 8, nil
}

// Pair is a two-part composite key.
type Pair[K1, K2 any] struct {
	First  K1
	Second K2
}

// PairCodec encodes a Pair as the concatenation of its parts. Entries
// sharing a first part are contiguous, which [PairCodec.Prefix] uses
// for range iteration.
type PairCodec[K1, K2 any] struct {
	first  KeyCodec[K1]
	second KeyCodec[K2]
}

// PairKeys returns a codec for Pair[K1, K2].
func PairKeys[K1, K2 any](first KeyCodec[K1], second KeyCodec[K2]) PairCodec[K1, K2] {
	return PairCodec[K1, K2]{first: first, second: second}
}

// Append implements KeyCodec.
func (c PairCodec[K1, K2]) Append(dst []byte, key Pair[K1, K2]) []byte {
	dst = c.first.Append(dst, key.First)
	return c.second.Append(dst, key.Second)
}

// Decode implements KeyCodec.
func (c PairCodec[K1, K2]) Decode(data []byte) (Pair[K1, K2], int, error) {
	var key Pair[K1, K2]
	first, n1, err := c.first.Decode(data)
	if err != nil {
		return key, 0, err
	}
	second, n2, err := c.second.Decode(data[n1:])
	if err != nil {
		return key, 0, err
	}
	key.First, key.Second = first, second
	return key, n1 + n2, nil
}

// Prefix returns the encoding of first alone, for iterating every
// entry that shares it.
func (c PairCodec[K1, K2]) Prefix(first K1) []byte {
	return c.first.Append(nil, first)
}

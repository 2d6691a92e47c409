// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"context"
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// String returns the hex encoding.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Domain keys for BLAKE3 keyed hashing: ASCII names zero-padded to 32
// bytes. Changing either invalidates every recorded state root.
var (
	entryDomainKey = [32]byte{
		'c', 'a', 'r', 'b', 'o', 'n', 'l', 'e', 'd', 'g', 'e', 'r', '.', 's', 't', 'a',
		't', 'e', '.', 'e', 'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0,
	}
	nodeDomainKey = [32]byte{
		'c', 'a', 'r', 'b', 'o', 'n', 'l', 'e', 'd', 'g', 'e', 'r', '.', 's', 't', 'a',
		't', 'e', '.', 'n', 'o', 'd', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Root computes a commitment to every entry in r: a binary Merkle tree
// over per-entry keyed hashes, in key order. Two stores with identical
// contents have identical roots. The empty store's root is the
// node-domain hash of no input.
func Root(ctx context.Context, r Reader) (Hash, error) {
	entryHasher := newKeyedHasher(entryDomainKey)
	var leaves []Hash
	var scratch []byte
	err := r.Iterate(ctx, nil, func(key, value []byte) error {
		scratch = scratch[:0]
		scratch = binary.AppendUvarint(scratch, uint64(len(key)))
		scratch = append(scratch, key...)
		scratch = binary.AppendUvarint(scratch, uint64(len(value)))
		scratch = append(scratch, value...)

		entryHasher.Reset()
		entryHasher.Write(scratch)
		var leaf Hash
		copy(leaf[:], entryHasher.Sum(nil))
		leaves = append(leaves, leaf)
		return nil
	})
	if err != nil {
		return Hash{}, err
	}
	return merkleRoot(leaves), nil
}

// merkleRoot pairs adjacent hashes level by level. An odd node is
// promoted unhashed; duplicating it would let two different leaf
// lists share a root.
func merkleRoot(leaves []Hash) Hash {
	hasher := newKeyedHasher(nodeDomainKey)
	if len(leaves) == 0 {
		var empty Hash
		copy(empty[:], hasher.Sum(nil))
		return empty
	}

	level := leaves
	var combined [64]byte
	for len(level) > 1 {
		next := make([]Hash, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			copy(combined[:32], level[i][:])
			copy(combined[32:], level[i+1][:])
			hasher.Reset()
			hasher.Write(combined[:])
			copy(next[i/2][:], hasher.Sum(nil))
		}
		if len(level)%2 == 1 {
			next[len(next)-1] = level[len(level)-1]
		}
		level = next
	}
	return level[0]
}

func newKeyedHasher(key [32]byte) *blake3.Hasher {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("kvstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kvstore is the ordered key-value layer under every ledger
// module.
//
// A store is a flat byte-keyed map iterated in ascending key order.
// Each module owns one or more regions, identified by a one-byte key
// prefix, and accesses them through typed collections:
//
//   - [Map] maps a typed key (through a [KeyCodec]) to a CBOR value.
//   - [Item] holds a single CBOR value.
//
// String identifiers are keyed with [Hashed] (blake2b-128 digest
// followed by the length-prefixed raw bytes); integer identifiers use
// [Uint64] (big-endian). [PairCodec] composes two codecs so that, for
// example, every vote on one proposal is a contiguous range.
//
// Atomicity comes from [Overlay]: the runtime opens an overlay per
// operation, module code reads and writes through it, and only a
// successful operation hands [Overlay.Changes] to a [Committer].
// [Memory] is the in-process committer; [SQLite] persists state in a
// single WITHOUT ROWID table and commits each operation in one
// IMMEDIATE transaction.
//
// [Root] computes a BLAKE3 Merkle commitment over every entry. Equal
// contents give equal roots, which is how tests and operators check
// that a rejected operation left state untouched.
package kvstore

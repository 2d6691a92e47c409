// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the ledger's CBOR encoding configuration.
//
// Every value written to the key-value store (device records, reports,
// balances, proposals, votes) is CBOR. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2) so that the same state always
// hashes to the same state root, regardless of which node wrote it.
//
// JSON is used only at the edges: batch files, configuration echoes,
// and CLI --json output.
//
//	data, err := codec.Marshal(device)
//	device, err := codec.Decode[registry.Device](data)
//
// # Struct Tag Rules
//
// Types persisted in state and also printed by the CLI use `json` tags;
// fxamacker/cbor reads `json` tags when `cbor` tags are absent, so one
// tag controls naming for both formats. Types that only ever appear in
// CBOR (snapshot envelopes) use `cbor` tags. Never put both on one
// field.
package codec

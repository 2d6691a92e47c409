// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package oraclekey manages the Ed25519 keys oracle nodes use to sign
// telemetry digests.
//
// A [Key] keeps its 32-byte seed in mmap memory outside the Go heap,
// locked against swap and excluded from core dumps. At rest the seed is
// sealed with filippo.io/age, either to X25519 recipients ([SealTo]) or
// to a passphrase ([SealWithPassphrase]), and written ASCII-armored.
//
//	key, err := oraclekey.Generate("oracle-1")
//	sealed, err := oraclekey.SealTo(key, []string{recipient})
//	digest, signature, err := key.SignReading(device, ts, co2, wh)
//
// The signature verifies under oracle.Ed25519Verifier once the node is
// registered with key.PublicKey().
package oraclekey

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oraclekey

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// Key is an oracle node's Ed25519 signing key. The seed lives in locked
// memory; the public key is an ordinary value safe to publish in an
// add_oracle_node operation.
//
// The caller must call Close when the key is no longer needed.
type Key struct {
	account   schema.AccountID
	publicKey schema.PublicKey
	seed      *lockedSeed
}

// Generate creates a fresh key for account.
func Generate(account schema.AccountID) (*Key, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("oraclekey: reading random seed: %w", err)
	}
	return FromSeed(account, seed)
}

// FromSeed builds a key from a 32-byte Ed25519 seed. The seed slice is
// zeroed.
func FromSeed(account schema.AccountID, seed []byte) (*Key, error) {
	if err := account.Validate(); err != nil {
		zero(seed)
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		zero(seed)
		return nil, fmt.Errorf("oraclekey: seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}

	private := ed25519.NewKeyFromSeed(seed)
	publicKey, err := schema.PublicKeyFromBytes(private.Public().(ed25519.PublicKey))
	zero(private)
	if err != nil {
		zero(seed)
		return nil, err
	}

	locked, err := lockSeed(seed)
	if err != nil {
		zero(seed)
		return nil, err
	}
	return &Key{account: account, publicKey: publicKey, seed: locked}, nil
}

// Account returns the oracle account the key signs for.
func (k *Key) Account() schema.AccountID { return k.account }

// PublicKey returns the Ed25519 public key.
func (k *Key) PublicKey() schema.PublicKey { return k.publicKey }

// Sign signs digest and returns the signature attributed to the key's
// account.
func (k *Key) Sign(digest schema.Digest) (oracle.Signature, error) {
	var signature []byte
	err := k.seed.use(func(seed []byte) error {
		private := ed25519.NewKeyFromSeed(seed)
		signature = ed25519.Sign(private, digest[:])
		zero(private)
		return nil
	})
	if err != nil {
		return oracle.Signature{}, err
	}
	return oracle.Signature{Signer: k.account, Signature: signature}, nil
}

// SignReading computes the canonical digest of a telemetry reading and
// signs it. The digest is what a submission carries as its data hash.
func (k *Key) SignReading(device schema.DeviceID, timestamp, co2Grams, energyWh uint64) (schema.Digest, oracle.Signature, error) {
	digest := oracle.Digest(device, timestamp, co2Grams, energyWh)
	signature, err := k.Sign(digest)
	return digest, signature, err
}

// Close zeros and releases the seed. Idempotent.
func (k *Key) Close() error {
	return k.seed.close()
}

// withSeed exposes the seed to the sealing code.
func (k *Key) withSeed(fn func(seed []byte) error) error {
	return k.seed.use(fn)
}

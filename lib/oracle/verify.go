// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"crypto/ed25519"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// NodeLookup resolves an account to its oracle node record.
type NodeLookup func(account schema.AccountID) (Node, bool, error)

// SignatureVerifier decides which of a submission's signatures count
// toward the quorum. It returns the number of authentic signatures, or
// an error when the set as a whole must be rejected.
type SignatureVerifier interface {
	Authenticate(digest schema.Digest, signatures []Signature, lookup NodeLookup) (int, error)
}

// CountOnly accepts every signature without checking it. Only the
// number of signatures counts toward the quorum. Useful for replaying
// historical submissions that were never signed.
type CountOnly struct{}

// Authenticate returns len(signatures).
func (CountOnly) Authenticate(_ schema.Digest, signatures []Signature, _ NodeLookup) (int, error) {
	return len(signatures), nil
}

// Ed25519Verifier requires each signature to be a valid Ed25519
// signature over the digest by a distinct registered oracle node.
type Ed25519Verifier struct{}

// Authenticate checks every signature. Any failing signature rejects
// the submission.
func (Ed25519Verifier) Authenticate(digest schema.Digest, signatures []Signature, lookup NodeLookup) (int, error) {
	seen := make(map[schema.AccountID]struct{}, len(signatures))
	for i, signature := range signatures {
		if _, duplicate := seen[signature.Signer]; duplicate {
			return 0, fmt.Errorf("signature %d by %s: %w", i, signature.Signer, ErrDuplicateSigner)
		}
		seen[signature.Signer] = struct{}{}

		node, found, err := lookup(signature.Signer)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("signature %d by %s: %w", i, signature.Signer, ErrUnknownSigner)
		}
		if node.PublicKey == nil {
			return 0, fmt.Errorf("signature %d by %s: %w", i, signature.Signer, ErrSignerHasNoKey)
		}
		if len(signature.Signature) != ed25519.SignatureSize ||
			!ed25519.Verify(ed25519.PublicKey(node.PublicKey[:]), digest[:], signature.Signature) {
			return 0, fmt.Errorf("signature %d by %s: %w", i, signature.Signer, ErrInvalidSignature)
		}
	}
	return len(signatures), nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import "github.com/bureau-foundation/carbonledger/lib/failure"

var (
	ErrNotOracle        = failure.New(failure.KindUnauthorized, "caller is not a registered oracle node")
	ErrDeviceNotActive  = failure.New(failure.KindPolicyViolation, "device is not active")
	ErrReplay           = failure.New(failure.KindReplayDetected, "nonce already consumed for device")
	ErrQuorumNotMet     = failure.New(failure.KindQuorumNotMet, "not enough oracle signatures")
	ErrInvalidSignature = failure.New(failure.KindValidation, "invalid oracle signature")
	ErrDuplicateSigner  = failure.New(failure.KindValidation, "oracle signed the same report twice")
	ErrUnknownSigner    = failure.New(failure.KindValidation, "signature from an account that is not an oracle node")
	ErrSignerHasNoKey   = failure.New(failure.KindValidation, "oracle node has no registered public key")
	ErrDataHashMismatch = failure.New(failure.KindValidation, "data hash does not match the reported values")

	ErrInvalidDeviceSignature = failure.New(failure.KindValidation, "invalid device signature")
)

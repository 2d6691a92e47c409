// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"crypto/sha256"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// Signature is one oracle node's attestation of a report's data hash.
type Signature struct {
	Signer    schema.AccountID `json:"signer"`
	Signature schema.HexBytes  `json:"signature"`
}

// Submission is the input of SubmitTelemetry.
type Submission struct {
	Device    schema.DeviceID
	Timestamp uint64
	CO2Grams  uint64
	EnergyWh  uint64
	DataHash  []byte
	Nonce     uint64

	Signatures []Signature

	// DeviceSignature, when present, must be an Ed25519 signature over
	// DataHash by the device's registered public key.
	DeviceSignature []byte
}

// Report is a stored, accepted telemetry submission. Reports are
// append-only: once stored they are never modified.
type Report struct {
	Device      schema.DeviceID  `json:"device"`
	Sequence    uint64           `json:"sequence"`
	Timestamp   uint64           `json:"timestamp"`
	CO2Grams    uint64           `json:"co2_grams"`
	EnergyWh    uint64           `json:"energy_wh"`
	DataHash    schema.Digest    `json:"data_hash"`
	Nonce       uint64           `json:"nonce"`
	Signatures  []Signature      `json:"signatures"`
	Submitter   schema.AccountID `json:"submitter"`
	SubmittedAt height.Height    `json:"submitted_at"`
	Reward      uint64           `json:"reward"`

	DeviceSigned bool `json:"device_signed,omitempty"`
}

// Node is a registered oracle node. PublicKey is required for the
// node's signatures to count under the Ed25519 verifier.
type Node struct {
	Account   schema.AccountID  `json:"account"`
	PublicKey *schema.PublicKey `json:"public_key,omitempty"`
	AddedAt   height.Height     `json:"added_at"`
}

// Params are the validator's configured rules.
type Params struct {
	// MinOracleCount is the quorum: the minimum number of signatures
	// a submission must carry.
	MinOracleCount int

	// BindDataHash requires DataHash to equal Digest over the
	// submission's own fields.
	BindDataHash bool
}

// DefaultParams returns the rules used when configuration does not
// override them.
func DefaultParams() Params {
	return Params{MinOracleCount: 2}
}

// Digest returns the canonical data hash of a telemetry reading:
// SHA-256 over "device:timestamp:co2:energy" with decimal integers.
// Oracle nodes sign this digest.
func Digest(device schema.DeviceID, timestamp, co2Grams, energyWh uint64) schema.Digest {
	return schema.Digest(sha256.Sum256(fmt.Appendf(nil, "%s:%d:%d:%d", string(device), timestamp, co2Grams, energyWh)))
}

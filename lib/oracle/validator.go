// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"cmp"
	"context"
	"crypto/ed25519"
	"fmt"
	"slices"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/state"
)

// Region prefixes.
const (
	PrefixNodes       byte = 0x10
	PrefixReportCount byte = 0x11
	PrefixReports     byte = 0x12
	PrefixNonces      byte = 0x13
)

// DeviceRegistry is the validator's view of the device registry: a
// read of the device record and the single mutation it is allowed to
// make.
type DeviceRegistry interface {
	Device(ctx context.Context, reader kvstore.Reader, id schema.DeviceID) (registry.Device, error)
	RecordTelemetry(tx *state.Tx, id schema.DeviceID) error
}

// RewardCalculator converts verified energy into a credit amount.
type RewardCalculator interface {
	Reward(energyWh uint64) (uint64, error)
}

// RewardSink accrues pending rewards in the token ledger.
type RewardSink interface {
	CreditPendingReward(tx *state.Tx, account schema.AccountID, amount uint64) error
}

// Validator accepts telemetry from oracle nodes, guards against
// replay, enforces the signature quorum, and credits rewards.
type Validator struct {
	params   Params
	devices  DeviceRegistry
	rewards  RewardCalculator
	sink     RewardSink
	verifier SignatureVerifier

	nodes       kvstore.Map[schema.AccountID, Node]
	reportCount kvstore.Map[schema.DeviceID, uint64]
	reports     kvstore.Map[kvstore.Pair[schema.DeviceID, uint64], Report]
	nonces      kvstore.Map[kvstore.Pair[schema.DeviceID, uint64], bool]
	sequenceKey kvstore.PairCodec[schema.DeviceID, uint64]
}

// NewValidator wires a validator to its collaborators. A nil verifier
// means Ed25519Verifier.
func NewValidator(params Params, devices DeviceRegistry, rewards RewardCalculator, sink RewardSink, verifier SignatureVerifier) *Validator {
	if verifier == nil {
		verifier = Ed25519Verifier{}
	}
	sequenceKey := kvstore.PairKeys[schema.DeviceID, uint64](kvstore.Hashed[schema.DeviceID]{}, kvstore.Uint64{})
	return &Validator{
		params:      params,
		devices:     devices,
		rewards:     rewards,
		sink:        sink,
		verifier:    verifier,
		nodes:       kvstore.NewMap[schema.AccountID, Node](PrefixNodes, kvstore.Hashed[schema.AccountID]{}),
		reportCount: kvstore.NewMap[schema.DeviceID, uint64](PrefixReportCount, kvstore.Hashed[schema.DeviceID]{}),
		reports:     kvstore.NewMap[kvstore.Pair[schema.DeviceID, uint64], Report](PrefixReports, sequenceKey),
		nonces:      kvstore.NewMap[kvstore.Pair[schema.DeviceID, uint64], bool](PrefixNonces, sequenceKey),
		sequenceKey: sequenceKey,
	}
}

// Params returns the validator's configured rules.
func (v *Validator) Params() Params { return v.params }

// SubmitTelemetry validates and stores a telemetry report. The checks
// run in a fixed order: oracle membership, device existence, device
// status, nonce replay, quorum count, data hash binding, device
// signature, oracle signature authenticity. Only a submission passing
// all of them changes state.
func (v *Validator) SubmitTelemetry(tx *state.Tx, caller origin.Caller, submission Submission) error {
	ctx, store := tx.Context(), tx.Store()

	submitter, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	isOracle, err := v.IsOracle(ctx, store, submitter)
	if err != nil {
		return err
	}
	if !isOracle {
		return fmt.Errorf("%s: %w", submitter, ErrNotOracle)
	}

	device, err := v.devices.Device(ctx, store, submission.Device)
	if err != nil {
		return err
	}
	if device.Status != registry.StatusActive {
		return fmt.Errorf("device %q is %s: %w", device.ID, device.Status, ErrDeviceNotActive)
	}

	nonceKey := kvstore.Pair[schema.DeviceID, uint64]{First: submission.Device, Second: submission.Nonce}
	consumed, err := v.nonces.Has(ctx, store, nonceKey)
	if err != nil {
		return failure.Internal(err)
	}
	if consumed {
		return fmt.Errorf("device %q nonce %d: %w", submission.Device, submission.Nonce, ErrReplay)
	}

	if len(submission.Signatures) < v.params.MinOracleCount {
		return fmt.Errorf("%d signatures, need %d: %w", len(submission.Signatures), v.params.MinOracleCount, ErrQuorumNotMet)
	}

	dataHash, err := schema.DigestFromBytes(submission.DataHash)
	if err != nil {
		return err
	}
	if v.params.BindDataHash {
		expected := Digest(submission.Device, submission.Timestamp, submission.CO2Grams, submission.EnergyWh)
		if expected != dataHash {
			return fmt.Errorf("got %s, computed %s: %w", dataHash, expected, ErrDataHashMismatch)
		}
	}

	if submission.DeviceSignature != nil {
		if len(submission.DeviceSignature) != ed25519.SignatureSize ||
			!ed25519.Verify(ed25519.PublicKey(device.PublicKey[:]), dataHash[:], submission.DeviceSignature) {
			return fmt.Errorf("device %q: %w", device.ID, ErrInvalidDeviceSignature)
		}
	}

	authentic, err := v.verifier.Authenticate(dataHash, submission.Signatures, func(account schema.AccountID) (Node, bool, error) {
		node, found, err := v.nodes.Get(ctx, store, account)
		return node, found, failure.Internal(err)
	})
	if err != nil {
		return err
	}
	if authentic < v.params.MinOracleCount {
		return fmt.Errorf("%d authentic signatures, need %d: %w", authentic, v.params.MinOracleCount, ErrQuorumNotMet)
	}

	reward, err := v.rewards.Reward(submission.EnergyWh)
	if err != nil {
		return fmt.Errorf("computing reward for %d Wh: %w", submission.EnergyWh, err)
	}

	sequence, _, err := v.reportCount.Get(ctx, store, submission.Device)
	if err != nil {
		return failure.Internal(err)
	}
	nextSequence, err := schema.CheckedAdd(sequence, 1)
	if err != nil {
		return err
	}
	report := Report{
		Device:      submission.Device,
		Sequence:    sequence,
		Timestamp:   submission.Timestamp,
		CO2Grams:    submission.CO2Grams,
		EnergyWh:    submission.EnergyWh,
		DataHash:    dataHash,
		Nonce:       submission.Nonce,
		Signatures:  submission.Signatures,
		Submitter:   submitter,
		SubmittedAt: tx.Height(),
		Reward:      reward,

		DeviceSigned: submission.DeviceSignature != nil,
	}
	reportKey := kvstore.Pair[schema.DeviceID, uint64]{First: submission.Device, Second: sequence}
	if err := v.reports.Set(ctx, store, reportKey, report); err != nil {
		return failure.Internal(err)
	}
	if err := v.reportCount.Set(ctx, store, submission.Device, nextSequence); err != nil {
		return failure.Internal(err)
	}
	if err := v.nonces.Set(ctx, store, nonceKey, true); err != nil {
		return failure.Internal(err)
	}

	if err := v.devices.RecordTelemetry(tx, submission.Device); err != nil {
		return err
	}
	if reward > 0 {
		if err := v.sink.CreditPendingReward(tx, device.Owner, reward); err != nil {
			return fmt.Errorf("crediting reward to %s: %w", device.Owner, err)
		}
	}

	tx.Emit("oracle.telemetry_verified",
		state.Attr("device", submission.Device),
		state.Attr("sequence", sequence),
		state.Attr("nonce", submission.Nonce),
		state.Attr("co2_grams", submission.CO2Grams),
		state.Attr("energy_wh", submission.EnergyWh),
		state.Attr("owner", device.Owner),
		state.Attr("reward", reward),
	)
	return nil
}

// AddOracleNode registers account as an oracle node. Root only. An
// existing node is replaced, which is how a node's key is rotated.
// publicKey may be empty; otherwise it must be 32 bytes.
func (v *Validator) AddOracleNode(tx *state.Tx, caller origin.Caller, account schema.AccountID, publicKey []byte) error {
	if err := caller.EnsureRoot(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}
	node := Node{Account: account, AddedAt: tx.Height()}
	if len(publicKey) > 0 {
		key, err := schema.PublicKeyFromBytes(publicKey)
		if err != nil {
			return err
		}
		node.PublicKey = &key
	}
	if err := v.nodes.Set(tx.Context(), tx.Store(), account, node); err != nil {
		return failure.Internal(err)
	}
	tx.Emit("oracle.node_added", state.Attr("account", account), state.Attr("has_key", node.PublicKey != nil))
	return nil
}

// RemoveOracleNode removes account from the oracle set. Root only.
// Removing a non-member succeeds.
func (v *Validator) RemoveOracleNode(tx *state.Tx, caller origin.Caller, account schema.AccountID) error {
	if err := caller.EnsureRoot(); err != nil {
		return err
	}
	if err := v.nodes.Delete(tx.Context(), tx.Store(), account); err != nil {
		return failure.Internal(err)
	}
	tx.Emit("oracle.node_removed", state.Attr("account", account))
	return nil
}

// IsOracle reports whether account is a registered oracle node.
func (v *Validator) IsOracle(ctx context.Context, reader kvstore.Reader, account schema.AccountID) (bool, error) {
	found, err := v.nodes.Has(ctx, reader, account)
	return found, failure.Internal(err)
}

// Node returns the oracle node record for account.
func (v *Validator) Node(ctx context.Context, reader kvstore.Reader, account schema.AccountID) (Node, bool, error) {
	node, found, err := v.nodes.Get(ctx, reader, account)
	return node, found, failure.Internal(err)
}

// Nodes returns every oracle node sorted by account. Storage order is
// hashed and carries no meaning.
func (v *Validator) Nodes(ctx context.Context, reader kvstore.Reader) ([]Node, error) {
	var nodes []Node
	err := v.nodes.Walk(ctx, reader, func(_ schema.AccountID, node Node) error {
		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return nil, failure.Internal(err)
	}
	slices.SortFunc(nodes, func(a, b Node) int { return cmp.Compare(a.Account, b.Account) })
	return nodes, nil
}

// ReportCount returns the number of reports stored for device.
func (v *Validator) ReportCount(ctx context.Context, reader kvstore.Reader, device schema.DeviceID) (uint64, error) {
	count, _, err := v.reportCount.Get(ctx, reader, device)
	return count, failure.Internal(err)
}

// Reports returns device's reports in submission order.
func (v *Validator) Reports(ctx context.Context, reader kvstore.Reader, device schema.DeviceID) ([]Report, error) {
	var reports []Report
	err := v.reports.WalkPrefix(ctx, reader, v.sequenceKey.Prefix(device),
		func(_ kvstore.Pair[schema.DeviceID, uint64], report Report) error {
			reports = append(reports, report)
			return nil
		})
	return reports, failure.Internal(err)
}

// WalkReports visits every stored report across all devices.
func (v *Validator) WalkReports(ctx context.Context, reader kvstore.Reader, fn func(Report) error) error {
	return v.reports.Walk(ctx, reader, func(_ kvstore.Pair[schema.DeviceID, uint64], report Report) error {
		return fn(report)
	})
}

// NonceConsumed reports whether (device, nonce) has been used.
func (v *Validator) NonceConsumed(ctx context.Context, reader kvstore.Reader, device schema.DeviceID, nonce uint64) (bool, error) {
	consumed, err := v.nonces.Has(ctx, reader, kvstore.Pair[schema.DeviceID, uint64]{First: device, Second: nonce})
	return consumed, failure.Internal(err)
}

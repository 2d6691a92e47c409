// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// Operation is one externally submitted state transition. The set of
// operations is closed: Apply rejects types not declared in this file.
type Operation interface {
	// Name is the snake_case operation name used in batch files,
	// receipts and logs.
	Name() string

	// Caller is the origin the operation executes as.
	Caller() origin.Caller
}

// --- Device registry ---

type RegisterDevice struct {
	Origin       origin.Caller
	Device       schema.DeviceID
	PublicKey    []byte
	Manufacturer string
	MetadataURI  string
}

type UpdateDeviceStatus struct {
	Origin origin.Caller
	Device schema.DeviceID
	Status registry.Status
}

type UpdateDeviceMetadata struct {
	Origin      origin.Caller
	Device      schema.DeviceID
	MetadataURI string
}

type RevokeDevice struct {
	Origin origin.Caller
	Device schema.DeviceID
}

type WhitelistManufacturer struct {
	Origin       origin.Caller
	Manufacturer string
}

// --- Oracle ---

type SubmitTelemetry struct {
	Origin     origin.Caller
	Submission oracle.Submission
}

type AddOracleNode struct {
	Origin    origin.Caller
	Account   schema.AccountID
	PublicKey []byte
}

type RemoveOracleNode struct {
	Origin  origin.Caller
	Account schema.AccountID
}

// --- Token ---

type Mint struct {
	Origin origin.Caller
	To     schema.AccountID
	Amount uint64
}

type Transfer struct {
	Origin origin.Caller
	To     schema.AccountID
	Amount uint64
}

// TransferFrom moves Amount from Owner to To, spending the caller's
// allowance.
type TransferFrom struct {
	Origin origin.Caller
	Owner  schema.AccountID
	To     schema.AccountID
	Amount uint64
}

type Burn struct {
	Origin origin.Caller
	Amount uint64
}

type ClaimRewards struct {
	Origin origin.Caller
}

type Approve struct {
	Origin  origin.Caller
	Spender schema.AccountID
	Amount  uint64
}

// --- Governance ---

type CreateProposal struct {
	Origin      origin.Caller
	Title       string
	Description string
}

type Vote struct {
	Origin   origin.Caller
	Proposal uint64
	Support  bool
}

type ExecuteProposal struct {
	Origin   origin.Caller
	Proposal uint64
}

// --- Deposits ---

// Endow credits free native deposit balance. Root only.
type Endow struct {
	Origin  origin.Caller
	Account schema.AccountID
	Amount  uint64
}

func (RegisterDevice) Name() string        { return "register_device" }
func (UpdateDeviceStatus) Name() string    { return "update_device_status" }
func (UpdateDeviceMetadata) Name() string  { return "update_device_metadata" }
func (RevokeDevice) Name() string          { return "revoke_device" }
func (WhitelistManufacturer) Name() string { return "whitelist_manufacturer" }
func (SubmitTelemetry) Name() string       { return "submit_telemetry" }
func (AddOracleNode) Name() string         { return "add_oracle_node" }
func (RemoveOracleNode) Name() string      { return "remove_oracle_node" }
func (Mint) Name() string                  { return "mint" }
func (Transfer) Name() string              { return "transfer" }
func (TransferFrom) Name() string          { return "transfer_from" }
func (Burn) Name() string                  { return "burn" }
func (ClaimRewards) Name() string          { return "claim_rewards" }
func (Approve) Name() string               { return "approve" }
func (CreateProposal) Name() string        { return "create_proposal" }
func (Vote) Name() string                  { return "vote" }
func (ExecuteProposal) Name() string       { return "execute_proposal" }
func (Endow) Name() string                 { return "endow" }

func (o RegisterDevice) Caller() origin.Caller        { return o.Origin }
func (o UpdateDeviceStatus) Caller() origin.Caller    { return o.Origin }
func (o UpdateDeviceMetadata) Caller() origin.Caller  { return o.Origin }
func (o RevokeDevice) Caller() origin.Caller          { return o.Origin }
func (o WhitelistManufacturer) Caller() origin.Caller { return o.Origin }
func (o SubmitTelemetry) Caller() origin.Caller       { return o.Origin }
func (o AddOracleNode) Caller() origin.Caller         { return o.Origin }
func (o RemoveOracleNode) Caller() origin.Caller      { return o.Origin }
func (o Mint) Caller() origin.Caller                  { return o.Origin }
func (o Transfer) Caller() origin.Caller              { return o.Origin }
func (o TransferFrom) Caller() origin.Caller          { return o.Origin }
func (o Burn) Caller() origin.Caller                  { return o.Origin }
func (o ClaimRewards) Caller() origin.Caller          { return o.Origin }
func (o Approve) Caller() origin.Caller               { return o.Origin }
func (o CreateProposal) Caller() origin.Caller        { return o.Origin }
func (o Vote) Caller() origin.Caller                  { return o.Origin }
func (o ExecuteProposal) Caller() origin.Caller       { return o.Origin }
func (o Endow) Caller() origin.Caller                 { return o.Origin }

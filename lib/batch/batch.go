// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch parses operation batches authored as JSONC files (JSON
// extended with comments and trailing commas) into runtime operations.
//
// A batch is an optional height and a list of operations:
//
//	{
//	  "height": 12, // omit to use the ledger's next height
//	  "operations": [
//	    {"op": "whitelist_manufacturer", "root": true, "manufacturer": "acme"},
//	    {"op": "transfer", "signer": "bob", "to": "alice", "amount": 40},
//	  ],
//	}
//
// Every entry names its caller with either "signer" (an account id) or
// "root": true. Byte fields (pubkey, data_hash, signatures,
// device_signature) are hex.
// A submit_telemetry entry without data_hash uses the canonical digest
// of its reading.
package batch

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/runtime"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// File is a parsed batch file.
type File struct {
	// Height, when set, is the height every operation in the batch
	// executes at.
	Height *height.Height `json:"height,omitempty"`

	Entries []Entry `json:"operations"`
}

// Entry is one operation as written in a batch file. Which fields are
// meaningful depends on Op.
type Entry struct {
	Op     string `json:"op"`
	Signer string `json:"signer,omitempty"`
	Root   bool   `json:"root,omitempty"`

	Device       string `json:"device,omitempty"`
	PublicKey    string `json:"pubkey,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	MetadataURI  string `json:"metadata_uri,omitempty"`
	Status       string `json:"status,omitempty"`

	Timestamp  uint64           `json:"timestamp,omitempty"`
	CO2Grams   uint64           `json:"co2_grams,omitempty"`
	EnergyWh   uint64           `json:"energy_wh,omitempty"`
	DataHash   string           `json:"data_hash,omitempty"`
	Nonce      uint64           `json:"nonce,omitempty"`
	Signatures []SignatureEntry `json:"signatures,omitempty"`

	DeviceSignature string `json:"device_signature,omitempty"`

	Account string `json:"account,omitempty"`
	To      string `json:"to,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Proposal    uint64 `json:"proposal,omitempty"`
	Support     bool   `json:"support,omitempty"`
}

// SignatureEntry is one oracle signature, hex encoded.
type SignatureEntry struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// Parse strips JSONC comments and trailing commas from data and
// decodes the batch. Unknown fields are rejected so that a misspelled
// field is not silently ignored.
func Parse(data []byte) (*File, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var file File
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing batch: %w", err)
	}
	return &file, nil
}

// ReadFile reads and parses a JSONC batch file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Operations converts every entry, reporting all invalid entries at
// once.
func (f *File) Operations() ([]runtime.Operation, error) {
	operations := make([]runtime.Operation, 0, len(f.Entries))
	var errs []error
	for i, entry := range f.Entries {
		operation, err := entry.Operation()
		if err != nil {
			errs = append(errs, fmt.Errorf("operations[%d] (%s): %w", i, entry.Op, err))
			continue
		}
		operations = append(operations, operation)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return operations, nil
}

// Operation converts one entry.
func (e Entry) Operation() (runtime.Operation, error) {
	caller, err := e.caller()
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "register_device":
		publicKey, err := decodeHex("pubkey", e.PublicKey)
		if err != nil {
			return nil, err
		}
		return runtime.RegisterDevice{
			Origin:       caller,
			Device:       schema.DeviceID(e.Device),
			PublicKey:    publicKey,
			Manufacturer: e.Manufacturer,
			MetadataURI:  e.MetadataURI,
		}, nil
	case "update_device_status":
		status, err := registry.ParseStatus(e.Status)
		if err != nil {
			return nil, err
		}
		return runtime.UpdateDeviceStatus{Origin: caller, Device: schema.DeviceID(e.Device), Status: status}, nil
	case "update_device_metadata":
		return runtime.UpdateDeviceMetadata{Origin: caller, Device: schema.DeviceID(e.Device), MetadataURI: e.MetadataURI}, nil
	case "revoke_device":
		return runtime.RevokeDevice{Origin: caller, Device: schema.DeviceID(e.Device)}, nil
	case "whitelist_manufacturer":
		return runtime.WhitelistManufacturer{Origin: caller, Manufacturer: e.Manufacturer}, nil
	case "submit_telemetry":
		submission, err := e.submission()
		if err != nil {
			return nil, err
		}
		return runtime.SubmitTelemetry{Origin: caller, Submission: submission}, nil
	case "add_oracle_node":
		account, err := parseAccount("account", e.Account)
		if err != nil {
			return nil, err
		}
		publicKey, err := decodeHex("pubkey", e.PublicKey)
		if err != nil {
			return nil, err
		}
		return runtime.AddOracleNode{Origin: caller, Account: account, PublicKey: publicKey}, nil
	case "remove_oracle_node":
		account, err := parseAccount("account", e.Account)
		if err != nil {
			return nil, err
		}
		return runtime.RemoveOracleNode{Origin: caller, Account: account}, nil
	case "mint":
		to, err := parseAccount("to", e.To)
		if err != nil {
			return nil, err
		}
		return runtime.Mint{Origin: caller, To: to, Amount: e.Amount}, nil
	case "transfer":
		to, err := parseAccount("to", e.To)
		if err != nil {
			return nil, err
		}
		return runtime.Transfer{Origin: caller, To: to, Amount: e.Amount}, nil
	case "transfer_from":
		owner, err := parseAccount("owner", e.Owner)
		if err != nil {
			return nil, err
		}
		to, err := parseAccount("to", e.To)
		if err != nil {
			return nil, err
		}
		return runtime.TransferFrom{Origin: caller, Owner: owner, To: to, Amount: e.Amount}, nil
	case "burn":
		return runtime.Burn{Origin: caller, Amount: e.Amount}, nil
	case "claim_rewards":
		return runtime.ClaimRewards{Origin: caller}, nil
	case "approve":
		spender, err := parseAccount("spender", e.Spender)
		if err != nil {
			return nil, err
		}
		return runtime.Approve{Origin: caller, Spender: spender, Amount: e.Amount}, nil
	case "create_proposal":
		return runtime.CreateProposal{Origin: caller, Title: e.Title, Description: e.Description}, nil
	case "vote":
		return runtime.Vote{Origin: caller, Proposal: e.Proposal, Support: e.Support}, nil
	case "execute_proposal":
		return runtime.ExecuteProposal{Origin: caller, Proposal: e.Proposal}, nil
	case "endow":
		account, err := parseAccount("account", e.Account)
		if err != nil {
			return nil, err
		}
		return runtime.Endow{Origin: caller, Account: account, Amount: e.Amount}, nil
	case "":
		return nil, fmt.Errorf("op is required")
	default:
		return nil, fmt.Errorf("unknown op %q", e.Op)
	}
}

func (e Entry) caller() (origin.Caller, error) {
	switch {
	case e.Root && e.Signer != "":
		return origin.Caller{}, fmt.Errorf("signer and root are mutually exclusive")
	case e.Root:
		return origin.Root(), nil
	case e.Signer != "":
		account, err := parseAccount("signer", e.Signer)
		if err != nil {
			return origin.Caller{}, err
		}
		return origin.Signed(account), nil
	default:
		return origin.Caller{}, fmt.Errorf("one of signer or root is required")
	}
}

func (e Entry) submission() (oracle.Submission, error) {
	device := schema.DeviceID(e.Device)
	submission := oracle.Submission{
		Device:    device,
		Timestamp: e.Timestamp,
		CO2Grams:  e.CO2Grams,
		EnergyWh:  e.EnergyWh,
		Nonce:     e.Nonce,
	}

	if e.DataHash == "" {
		digest := oracle.Digest(device, e.Timestamp, e.CO2Grams, e.EnergyWh)
		submission.DataHash = digest[:]
	} else {
		dataHash, err := decodeHex("data_hash", e.DataHash)
		if err != nil {
			return oracle.Submission{}, err
		}
		submission.DataHash = dataHash
	}

	for i, entry := range e.Signatures {
		signer, err := parseAccount(fmt.Sprintf("signatures[%d].signer", i), entry.Signer)
		if err != nil {
			return oracle.Submission{}, err
		}
		signature, err := decodeHex(fmt.Sprintf("signatures[%d].signature", i), entry.Signature)
		if err != nil {
			return oracle.Submission{}, err
		}
		submission.Signatures = append(submission.Signatures, oracle.Signature{Signer: signer, Signature: signature})
	}

	if e.DeviceSignature != "" {
		signature, err := decodeHex("device_signature", e.DeviceSignature)
		if err != nil {
			return oracle.Submission{}, err
		}
		submission.DeviceSignature = signature
	}
	return submission, nil
}

func parseAccount(field, raw string) (schema.AccountID, error) {
	account, err := schema.ParseAccountID(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return account, nil
}

func decodeHex(field, raw string) ([]byte, error) {
	data, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", field, err)
	}
	return data, nil
}

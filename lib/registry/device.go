// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// Status is a device's lifecycle state. Devices are created Pending
// and only Active devices may submit telemetry.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusSuspended
	StatusRevoked
)

var statusNames = [...]string{
	StatusPending:   "pending",
	StatusActive:    "active",
	StatusSuspended: "suspended",
	StatusRevoked:   "revoked",
}

// String returns the lowercase status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseStatus parses a lowercase status name.
func ParseStatus(name string) (Status, error) {
	for i, candidate := range statusNames {
		if candidate == name {
			return Status(i), nil
		}
	}
	return 0, failure.Newf(failure.KindValidation, "unknown device status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("registry: cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(data []byte) error {
	parsed, err := ParseStatus(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Device is the stored record of a registered device.
type Device struct {
	ID           schema.DeviceID  `json:"id"`
	Owner        schema.AccountID `json:"owner"`
	PublicKey    schema.PublicKey `json:"public_key"`
	Manufacturer string           `json:"manufacturer"`
	MetadataURI  string           `json:"metadata_uri"`
	Status       Status           `json:"status"`

	// Deposit is the amount reserved from the owner at registration.
	// Revocation releases exactly this amount, even if the configured
	// registration deposit has since changed.
	Deposit uint64 `json:"deposit"`

	RegisteredAt    height.Height `json:"registered_at"`
	LastTelemetryAt height.Height `json:"last_telemetry_at"`
}

// Params are the registry's configured limits.
type Params struct {
	// RegistrationDeposit is reserved from the owner's native balance
	// for as long as the device is registered.
	RegistrationDeposit uint64

	// MaxMetadataLength bounds MetadataURI, in bytes.
	MaxMetadataLength int

	// MaxManufacturerLength bounds manufacturer tags, in bytes.
	MaxManufacturerLength int

	// MaxDevicesPerOwner bounds each owner's device index.
	MaxDevicesPerOwner int
}

// DefaultParams returns the limits used when configuration does not
// override them.
func DefaultParams() Params {
	return Params{
		RegistrationDeposit:   100,
		MaxMetadataLength:     256,
		MaxManufacturerLength: 64,
		MaxDevicesPerOwner:    100,
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "github.com/bureau-foundation/carbonledger/lib/failure"

// MaxAccountIDLength is the longest account identifier accepted.
const MaxAccountIDLength = 64

// MaxDeviceIDLength is the longest device identifier accepted.
const MaxDeviceIDLength = 128

// AccountID identifies a ledger participant: a device owner, an oracle
// node, a token holder, a proposer or a voter. Account identifiers are
// compared byte-for-byte; there is no case folding.
type AccountID string

// ParseAccountID validates raw and returns it as an AccountID.
// Accepted characters are ASCII letters, digits, and the punctuation
// '.', '_', '-', ':' and '@'.
func ParseAccountID(raw string) (AccountID, error) {
	if err := AccountID(raw).Validate(); err != nil {
		return "", err
	}
	return AccountID(raw), nil
}

// MustParseAccountID is ParseAccountID for constants and tests. Panics
// on invalid input.
func MustParseAccountID(raw string) AccountID {
	id, err := ParseAccountID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// Validate reports whether the account identifier is well formed.
func (a AccountID) Validate() error {
	if a == "" {
		return failure.New(failure.KindValidation, "account id is empty")
	}
	if len(a) > MaxAccountIDLength {
		return failure.Newf(failure.KindValidation,
			"account id %q is %d bytes, maximum is %d", string(a[:16])+"...", len(a), MaxAccountIDLength)
	}
	for i := 0; i < len(a); i++ {
		if !isAccountByte(a[i]) {
			return failure.Newf(failure.KindValidation,
				"account id %q contains invalid byte %q at offset %d", string(a), a[i], i)
		}
	}
	return nil
}

// String returns the identifier.
func (a AccountID) String() string { return string(a) }

// IsZero reports whether the identifier is empty.
func (a AccountID) IsZero() bool { return a == "" }

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with validation.
func (a *AccountID) UnmarshalText(data []byte) error {
	parsed, err := ParseAccountID(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func isAccountByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '.', b == '_', b == '-', b == ':', b == '@':
		return true
	}
	return false
}

// DeviceID is an opaque device identifier. Any non-empty byte sequence
// up to MaxDeviceIDLength bytes is valid.
type DeviceID string

// Validate reports whether the device identifier is usable.
func (d DeviceID) Validate() error {
	if d == "" {
		return failure.New(failure.KindValidation, "device id is empty")
	}
	if len(d) > MaxDeviceIDLength {
		return failure.Newf(failure.KindValidation,
			"device id is %d bytes, maximum is %d", len(d), MaxDeviceIDLength)
	}
	return nil
}

// String returns the identifier. Non-printable bytes are passed
// through unchanged; use %q when logging untrusted identifiers.
func (d DeviceID) String() string { return string(d) }

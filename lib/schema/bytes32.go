// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/hex"

	"github.com/bureau-foundation/carbonledger/lib/failure"
)

// PublicKey is a 32-byte device or oracle public key. It serializes as
// lowercase hex in both JSON and CBOR.
type PublicKey [32]byte

// PublicKeyFromBytes returns raw as a PublicKey, or a ValidationError
// when raw is not exactly 32 bytes.
func PublicKeyFromBytes(raw []byte) (PublicKey, error) {
	var key PublicKey
	if len(raw) != len(key) {
		return key, failure.Newf(failure.KindValidation, "public key is %d bytes, want %d", len(raw), len(key))
	}
	copy(key[:], raw)
	return key, nil
}

// String returns the hex encoding.
func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// IsZero reports whether every byte is zero.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(data []byte) error {
	parsed, err := decodeHex32(data, "public key")
	if err != nil {
		return err
	}
	*k = PublicKey(parsed)
	return nil
}

// Digest is a 32-byte hash, such as the data hash of a telemetry
// report. It serializes as lowercase hex.
type Digest [32]byte

// DigestFromBytes returns raw as a Digest, or a ValidationError when
// raw is not exactly 32 bytes.
func DigestFromBytes(raw []byte) (Digest, error) {
	var digest Digest
	if len(raw) != len(digest) {
		return digest, failure.Newf(failure.KindValidation, "digest is %d bytes, want %d", len(raw), len(digest))
	}
	copy(digest[:], raw)
	return digest, nil
}

// String returns the hex encoding.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(data []byte) error {
	parsed, err := decodeHex32(data, "digest")
	if err != nil {
		return err
	}
	*d = Digest(parsed)
	return nil
}

func decodeHex32(data []byte, what string) ([32]byte, error) {
	var out [32]byte
	if len(data) != hex.EncodedLen(len(out)) {
		return out, failure.Newf(failure.KindValidation, "%s is %d hex characters, want %d", what, len(data), hex.EncodedLen(len(out)))
	}
	if _, err := hex.Decode(out[:], data); err != nil {
		return out, failure.Newf(failure.KindValidation, "decoding %s: %w", what, err)
	}
	return out, nil
}

// HexBytes is a variable-length byte string that serializes as
// lowercase hex, used for signatures.
type HexBytes []byte

// String returns the hex encoding.
func (b HexBytes) String() string { return hex.EncodeToString(b) }

// MarshalText implements encoding.TextMarshaler.
func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *HexBytes) UnmarshalText(data []byte) error {
	decoded := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(decoded, data); err != nil {
		return failure.Newf(failure.KindValidation, "decoding hex bytes: %w", err)
	}
	*b = decoded
	return nil
}

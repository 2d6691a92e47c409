// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2).
// State values feed the state root, so the same logical value must
// always produce identical bytes.
var encMode cbor.EncMode

// decMode decodes stored state. It rejects duplicate map keys: a
// stored record with two "balance" entries is corruption, not
// something to resolve by last-wins.
var decMode cbor.DecMode

// lenientDecMode decodes values of unknown shape for diagnostics and
// snapshot inspection. It accepts duplicate keys.
var lenientDecMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// schema.AccountID and friends serialize through MarshalText.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decOptions := cbor.DecOptions{
		// any-typed targets decode maps as map[string]any so the result
		// can be printed with encoding/json.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
	}
	decMode, err = decOptions.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	decOptions.DupMapKey = cbor.DupMapKeyQuiet
	lenientDecMode, err = decOptions.DecMode()
	if err != nil {
		panic("codec: lenient CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Decode is Unmarshal for a value type known at compile time.
func Decode[T any](data []byte) (T, error) {
	var value T
	err := decMode.Unmarshal(data, &value)
	return value, err
}

// UnmarshalAny decodes data of unknown shape into a generic value
// (maps become map[string]any). Duplicate keys are tolerated.
func UnmarshalAny(data []byte) (any, error) {
	var value any
	err := lenientDecMode.Unmarshal(data, &value)
	return value, err
}

// Encoder is a CBOR stream encoder.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value, used to carry stored bytes
// through a snapshot without re-encoding them.
type RawMessage = cbor.RawMessage

// NewEncoder returns a deterministic CBOR encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// DiagnoseFirst returns the diagnostic notation for the first item in
// data and the unconsumed remainder.
func DiagnoseFirst(data []byte) (string, []byte, error) {
	return cbor.DiagnoseFirst(data)
}

// Valid reports whether data is exactly one well-formed CBOR item.
func Valid(data []byte) error {
	return cbor.Wellformed(data)
}

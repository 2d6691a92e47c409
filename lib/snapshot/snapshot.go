// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot exports and imports the complete ledger state.
//
// A snapshot is a CBOR envelope holding a [Header] and a payload. The
// payload is the CBOR encoding of every key/value pair in key order,
// compressed with zstd, LZ4, or not at all. The header records the
// state root, which Import recomputes from the payload before writing
// anything, so a snapshot that does not reproduce its root is
// rejected.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/codec"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/version"
)

var (
	// ErrFormatMismatch is returned for snapshots of a different
	// state format.
	ErrFormatMismatch = errors.New("snapshot: state format mismatch")

	// ErrRootMismatch is returned when the payload does not hash to
	// the recorded state root.
	ErrRootMismatch = errors.New("snapshot: state root mismatch")

	// ErrTargetNotEmpty is returned when importing into a store that
	// already holds state.
	ErrTargetNotEmpty = errors.New("snapshot: target store is not empty")
)

// Header describes a snapshot.
type Header struct {
	Format      int           `cbor:"format"`
	Height      height.Height `cbor:"height"`
	Root        kvstore.Hash  `cbor:"root"`
	Entries     int           `cbor:"entries"`
	Compression Compression   `cbor:"compression"`

	// Size is the uncompressed payload length.
	Size int `cbor:"size"`

	CreatedBy string `cbor:"created_by"`
}

type envelope struct {
	Header  Header `cbor:"header"`
	Payload []byte `cbor:"payload"`
}

type entry struct {
	_     struct{} `cbor:",toarray"`
	Key   []byte
	Value []byte
}

// Export captures every entry readable from reader. h is recorded in
// the header as the height the state corresponds to. Payloads that do
// not shrink under the requested compression are stored uncompressed.
func Export(ctx context.Context, reader kvstore.Reader, h height.Height, algorithm Compression) ([]byte, Header, error) {
	var entries []entry
	err := reader.Iterate(ctx, nil, func(key, value []byte) error {
		entries = append(entries, entry{Key: bytes.Clone(key), Value: bytes.Clone(value)})
		return nil
	})
	if err != nil {
		return nil, Header{}, fmt.Errorf("snapshot: reading state: %w", err)
	}

	root, err := kvstore.Root(ctx, reader)
	if err != nil {
		return nil, Header{}, fmt.Errorf("snapshot: computing root: %w", err)
	}

	payload, err := codec.Marshal(entries)
	if err != nil {
		return nil, Header{}, fmt.Errorf("snapshot: encoding entries: %w", err)
	}

	compressed, err := compress(payload, algorithm)
	if errors.Is(err, errIncompressible) {
		compressed, algorithm = payload, CompressionNone
	} else if err != nil {
		return nil, Header{}, fmt.Errorf("snapshot: %w", err)
	}

	header := Header{
		Format:      version.StateFormat,
		Height:      h,
		Root:        root,
		Entries:     len(entries),
		Compression: algorithm,
		Size:        len(payload),
		CreatedBy:   "carbonledger " + version.Info(),
	}
	data, err := codec.Marshal(envelope{Header: header, Payload: compressed})
	if err != nil {
		return nil, Header{}, fmt.Errorf("snapshot: encoding envelope: %w", err)
	}
	return data, header, nil
}

// ReadHeader decodes only the header of a snapshot.
func ReadHeader(data []byte) (Header, error) {
	var snapshot envelope
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return Header{}, fmt.Errorf("snapshot: decoding envelope: %w", err)
	}
	return snapshot.Header, nil
}

// Import verifies a snapshot and writes its entries into target in one
// commit. target must be empty.
func Import(ctx context.Context, data []byte, target kvstore.Committer) (Header, error) {
	var snapshot envelope
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return Header{}, fmt.Errorf("snapshot: decoding envelope: %w", err)
	}
	header := snapshot.Header
	if header.Format != version.StateFormat {
		return header, fmt.Errorf("snapshot has format %d, this build reads %d: %w", header.Format, version.StateFormat, ErrFormatMismatch)
	}

	payload, err := decompress(snapshot.Payload, header.Compression, header.Size)
	if err != nil {
		return header, fmt.Errorf("snapshot: %w", err)
	}
	var entries []entry
	if err := codec.Unmarshal(payload, &entries); err != nil {
		return header, fmt.Errorf("snapshot: decoding entries: %w", err)
	}
	if len(entries) != header.Entries {
		return header, fmt.Errorf("snapshot: header lists %d entries, payload has %d", header.Entries, len(entries))
	}

	changes := make([]kvstore.Change, len(entries))
	for i, e := range entries {
		if i > 0 && bytes.Compare(entries[i-1].Key, e.Key) >= 0 {
			return header, fmt.Errorf("snapshot: entry %d is out of key order", i)
		}
		changes[i] = kvstore.Change{Key: e.Key, Value: e.Value}
	}

	staged := kvstore.NewMemory()
	if err := staged.Commit(ctx, changes); err != nil {
		return header, err
	}
	root, err := kvstore.Root(ctx, staged)
	if err != nil {
		return header, err
	}
	if root != header.Root {
		return header, fmt.Errorf("payload hashes to %s, header says %s: %w", root, header.Root, ErrRootMismatch)
	}

	empty := true
	err = target.Iterate(ctx, nil, func(_, _ []byte) error {
		empty = false
		return kvstore.ErrStop
	})
	if err != nil {
		return header, fmt.Errorf("snapshot: reading target: %w", err)
	}
	if !empty {
		return header, ErrTargetNotEmpty
	}

	if err := target.Commit(ctx, changes); err != nil {
		return header, fmt.Errorf("snapshot: writing target: %w", err)
	}
	return header, nil
}

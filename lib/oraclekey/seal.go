// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oraclekey

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/carbonledger/lib/codec"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// sealedFormat is the version of the plaintext inside a sealed key
// file.
const sealedFormat = 1

// passphraseWorkFactor is the scrypt log2(N) used for passphrase
// sealing.
var passphraseWorkFactor = 18

// sealedKey is the plaintext encrypted inside a key file.
type sealedKey struct {
	Format  int    `cbor:"format"`
	Account string `cbor:"account"`
	Seed    []byte `cbor:"seed"`
}

// Seal encrypts k to the given recipients and returns an ASCII-armored
// age file.
func Seal(k *Key, recipients ...age.Recipient) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("oraclekey: at least one recipient is required")
	}

	var plaintext []byte
	err := k.withSeed(func(seed []byte) error {
		var err error
		plaintext, err = codec.Marshal(sealedKey{
			Format:  sealedFormat,
			Account: string(k.account),
			Seed:    seed,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("oraclekey: encoding key: %w", err)
	}
	defer zero(plaintext)

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("oraclekey: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("oraclekey: writing key to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("oraclekey: finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("oraclekey: finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// SealTo encrypts k to age X25519 public keys in age1... form.
func SealTo(k *Key, recipientKeys []string) ([]byte, error) {
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("oraclekey: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return Seal(k, recipients...)
}

// SealWithPassphrase encrypts k with an scrypt-derived key.
func SealWithPassphrase(k *Key, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("oraclekey: passphrase is empty")
	}
	recipient, err := age.NewScryptRecipient(string(passphrase))
	if err != nil {
		return nil, fmt.Errorf("oraclekey: %w", err)
	}
	recipient.SetWorkFactor(passphraseWorkFactor)
	return Seal(k, recipient)
}

// Open decrypts a key file produced by Seal with any of identities.
func Open(data []byte, identities ...age.Identity) (*Key, error) {
	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(data)), identities...)
	if err != nil {
		return nil, fmt.Errorf("oraclekey: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("oraclekey: reading decrypted key: %w", err)
	}
	defer zero(plaintext)

	sealed, err := codec.Decode[sealedKey](plaintext)
	if err != nil {
		return nil, fmt.Errorf("oraclekey: decoding key: %w", err)
	}
	if sealed.Format != sealedFormat {
		zero(sealed.Seed)
		return nil, fmt.Errorf("oraclekey: key file format %d, want %d", sealed.Format, sealedFormat)
	}
	return FromSeed(schema.AccountID(sealed.Account), sealed.Seed)
}

// OpenWithPassphrase decrypts a key file produced by SealWithPassphrase.
func OpenWithPassphrase(data, passphrase []byte) (*Key, error) {
	identity, err := age.NewScryptIdentity(string(passphrase))
	if err != nil {
		return nil, fmt.Errorf("oraclekey: %w", err)
	}
	return Open(data, identity)
}

// ParseIdentities reads age identities (AGE-SECRET-KEY-1... lines) from
// an identity file.
func ParseIdentities(path string) ([]age.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("oraclekey: parsing identities in %s: %w", path, err)
	}
	return identities, nil
}

// WriteFile writes a sealed key with owner-only permissions and refuses
// to overwrite an existing file.
func WriteFile(path string, sealed []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := file.Write(sealed); err != nil {
		file.Close()
		return fmt.Errorf("oraclekey: writing %s: %w", path, err)
	}
	return file.Close()
}

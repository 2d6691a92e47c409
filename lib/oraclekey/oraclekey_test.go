// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oraclekey

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

func init() {
	// Keep passphrase tests fast.
	passphraseWorkFactor = 10
}

func testSeed(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, ed25519.SeedSize)
}

func mustKey(t *testing.T, account schema.AccountID, fill byte) *Key {
	t.Helper()
	key, err := FromSeed(account, testSeed(fill))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func TestFromSeedDerivesPublicKey(t *testing.T) {
	seed := testSeed(7)
	want := ed25519.NewKeyFromSeed(testSeed(7)).Public().(ed25519.PublicKey)

	key, err := FromSeed("oracle-a", seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	defer key.Close()

	publicKey := key.PublicKey()
	if !bytes.Equal(publicKey[:], want) {
		t.Errorf("public key = %s, want %x", publicKey, want)
	}
	if key.Account() != "oracle-a" {
		t.Errorf("account = %q, want oracle-a", key.Account())
	}
	if !bytes.Equal(seed, make([]byte, ed25519.SeedSize)) {
		t.Error("FromSeed did not zero the caller's seed")
	}
}

func TestFromSeedRejectsBadInput(t *testing.T) {
	if _, err := FromSeed("oracle-a", make([]byte, 31)); err == nil {
		t.Error("31-byte seed accepted")
	}
	if _, err := FromSeed("bad account", testSeed(1)); err == nil {
		t.Error("invalid account accepted")
	}
}

func TestGenerateProducesDistinctKeys(t *testing.T) {
	first, err := Generate("oracle-a")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer first.Close()
	second, err := Generate("oracle-a")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer second.Close()

	if first.PublicKey() == second.PublicKey() {
		t.Error("two generated keys share a public key")
	}
}

func TestSignReadingVerifies(t *testing.T) {
	alpha := mustKey(t, "oracle-a", 1)
	beta := mustKey(t, "oracle-b", 2)

	digest, first, err := alpha.SignReading("meter-1", 100, 25, 5000)
	if err != nil {
		t.Fatalf("SignReading: %v", err)
	}
	if digest != oracle.Digest("meter-1", 100, 25, 5000) {
		t.Error("SignReading digest differs from oracle.Digest")
	}
	second, err := beta.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	alphaKey, betaKey := alpha.PublicKey(), beta.PublicKey()
	nodes := map[schema.AccountID]oracle.Node{
		"oracle-a": {Account: "oracle-a", PublicKey: &alphaKey},
		"oracle-b": {Account: "oracle-b", PublicKey: &betaKey},
	}
	lookup := func(account schema.AccountID) (oracle.Node, bool, error) {
		node, found := nodes[account]
		return node, found, nil
	}

	count, err := oracle.Ed25519Verifier{}.Authenticate(digest, []oracle.Signature{first, second}, lookup)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if count != 2 {
		t.Errorf("authentic signatures = %d, want 2", count)
	}

	// The same signature does not verify over a different reading.
	other := oracle.Digest("meter-1", 100, 25, 5001)
	if _, err := (oracle.Ed25519Verifier{}).Authenticate(other, []oracle.Signature{first}, lookup); !errors.Is(err, oracle.ErrInvalidSignature) {
		t.Errorf("Authenticate(other digest) = %v, want ErrInvalidSignature", err)
	}
}

func TestSignAfterClose(t *testing.T) {
	key, err := FromSeed("oracle-a", testSeed(3))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	if err := key.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := key.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, err := key.Sign(schema.Digest{}); err == nil {
		t.Error("Sign on a closed key succeeded")
	}
}

func TestSealToRecipient(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	key := mustKey(t, "oracle-a", 4)

	sealed, err := SealTo(key, []string{identity.Recipient().String()})
	if err != nil {
		t.Fatalf("SealTo: %v", err)
	}
	if !strings.HasPrefix(string(sealed), "-----BEGIN AGE ENCRYPTED FILE-----") {
		t.Errorf("sealed output is not armored: %q", sealed[:min(len(sealed), 40)])
	}
	if bytes.Contains(sealed, []byte("oracle-a")) {
		t.Error("sealed output leaks the account in plaintext")
	}

	opened, err := Open(sealed, identity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()
	if opened.PublicKey() != key.PublicKey() {
		t.Error("opened key has a different public key")
	}
	if opened.Account() != "oracle-a" {
		t.Errorf("opened account = %q, want oracle-a", opened.Account())
	}

	wrong, _ := age.GenerateX25519Identity()
	if _, err := Open(sealed, wrong); err == nil {
		t.Error("Open with the wrong identity succeeded")
	}
}

func TestSealToRejectsBadRecipients(t *testing.T) {
	key := mustKey(t, "oracle-a", 5)
	if _, err := SealTo(key, nil); err == nil {
		t.Error("SealTo with no recipients succeeded")
	}
	if _, err := SealTo(key, []string{"age1notakey"}); err == nil {
		t.Error("SealTo with a malformed recipient succeeded")
	}
}

func TestSealWithPassphrase(t *testing.T) {
	key := mustKey(t, "oracle-b", 6)

	sealed, err := SealWithPassphrase(key, []byte("correct horse"))
	if err != nil {
		t.Fatalf("SealWithPassphrase: %v", err)
	}
	opened, err := OpenWithPassphrase(sealed, []byte("correct horse"))
	if err != nil {
		t.Fatalf("OpenWithPassphrase: %v", err)
	}
	defer opened.Close()
	if opened.PublicKey() != key.PublicKey() {
		t.Error("opened key has a different public key")
	}

	if _, err := OpenWithPassphrase(sealed, []byte("wrong horse")); err == nil {
		t.Error("OpenWithPassphrase with the wrong passphrase succeeded")
	}
	if _, err := SealWithPassphrase(key, nil); err == nil {
		t.Error("SealWithPassphrase with an empty passphrase succeeded")
	}
}

func TestFileRoundTrip(t *testing.T) {
	directory := t.TempDir()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	identityPath := filepath.Join(directory, "identity.txt")
	if err := os.WriteFile(identityPath, []byte("# test identity\n"+identity.String()+"\n"), 0o600); err != nil {
		t.Fatalf("writing identity: %v", err)
	}

	key := mustKey(t, "oracle-c", 8)
	sealed, err := SealTo(key, []string{identity.Recipient().String()})
	if err != nil {
		t.Fatalf("SealTo: %v", err)
	}

	keyPath := filepath.Join(directory, "oracle-c.age")
	if err := WriteFile(keyPath, sealed); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %o, want 600", info.Mode().Perm())
	}
	if err := WriteFile(keyPath, sealed); err == nil {
		t.Error("WriteFile overwrote an existing key file")
	}

	identities, err := ParseIdentities(identityPath)
	if err != nil {
		t.Fatalf("ParseIdentities: %v", err)
	}
	data, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	opened, err := Open(data, identities...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()
	if opened.PublicKey() != key.PublicKey() {
		t.Error("opened key has a different public key")
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"errors"
	"testing"
)

func TestSignedCaller(t *testing.T) {
	caller := Signed("alice")
	account, err := caller.EnsureSigned()
	if err != nil {
		t.Fatalf("EnsureSigned: %v", err)
	}
	if account != "alice" {
		t.Errorf("account = %q, want alice", account)
	}
	if err := caller.EnsureRoot(); !errors.Is(err, ErrNotRoot) {
		t.Errorf("EnsureRoot = %v, want ErrNotRoot", err)
	}
	if err := caller.EnsureIdentified(); err != nil {
		t.Errorf("EnsureIdentified: %v", err)
	}
	if caller.String() != "alice" {
		t.Errorf("String = %q", caller.String())
	}
}

func TestRootCaller(t *testing.T) {
	caller := Root()
	if err := caller.EnsureRoot(); err != nil {
		t.Errorf("EnsureRoot: %v", err)
	}
	if _, err := caller.EnsureSigned(); !errors.Is(err, ErrNotSigned) {
		t.Errorf("EnsureSigned = %v, want ErrNotSigned", err)
	}
	if err := caller.EnsureIdentified(); err != nil {
		t.Errorf("EnsureIdentified: %v", err)
	}
	if caller.String() != "root" {
		t.Errorf("String = %q", caller.String())
	}
}

func TestAnonymousCaller(t *testing.T) {
	var caller Caller
	if _, err := caller.EnsureSigned(); !errors.Is(err, ErrNotSigned) {
		t.Errorf("EnsureSigned = %v, want ErrNotSigned", err)
	}
	if err := caller.EnsureRoot(); !errors.Is(err, ErrNotRoot) {
		t.Errorf("EnsureRoot = %v, want ErrNotRoot", err)
	}
	if err := caller.EnsureIdentified(); !errors.Is(err, ErrAnonymous) {
		t.Errorf("EnsureIdentified = %v, want ErrAnonymous", err)
	}
	if caller.String() != "anonymous" {
		t.Errorf("String = %q", caller.String())
	}
}

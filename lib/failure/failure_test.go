// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrappedSentinel(t *testing.T) {
	sentinel := New(KindReplayDetected, "nonce already used")
	wrapped := fmt.Errorf("device dev-1 nonce 7: %w", sentinel)

	if got := KindOf(wrapped); got != KindReplayDetected {
		t.Errorf("KindOf = %v, want ReplayDetected", got)
	}
	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is(wrapped, sentinel) = false, want true")
	}
	if !Is(wrapped, KindReplayDetected) {
		t.Error("Is(wrapped, ReplayDetected) = false, want true")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("disk full")); got != KindInternal {
		t.Errorf("KindOf(plain) = %v, want Internal", got)
	}
	if Is(nil, KindInternal) {
		t.Error("Is(nil, Internal) = true, want false")
	}
}

func TestInternalPreservesExistingKind(t *testing.T) {
	categorized := New(KindNotFound, "missing")
	if got := KindOf(Internal(categorized)); got != KindNotFound {
		t.Errorf("KindOf(Internal(NotFound)) = %v, want NotFound", got)
	}
	if Internal(nil) != nil {
		t.Error("Internal(nil) != nil")
	}
	if got := KindOf(Internal(errors.New("io"))); got != KindInternal {
		t.Errorf("KindOf(Internal(io)) = %v, want Internal", got)
	}
}

func TestNewfWrapsCause(t *testing.T) {
	cause := errors.New("cbor: unexpected EOF")
	err := Newf(KindValidation, "decoding signature: %w", cause)
	if !errors.Is(err, cause) {
		t.Error("Newf did not wrap cause")
	}
	if err.Error() != "decoding signature: cbor: unexpected EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCategories(t *testing.T) {
	tests := []struct {
		kind     Kind
		category Category
		name     string
	}{
		{KindNotFound, CategoryMissing, "NotFound"},
		{KindAlreadyExists, CategoryIdempotency, "AlreadyExists"},
		{KindAlreadyVoted, CategoryIdempotency, "AlreadyVoted"},
		{KindReplayDetected, CategoryIdempotency, "ReplayDetected"},
		{KindUnauthorized, CategoryForbidden, "Unauthorized"},
		{KindPolicyViolation, CategoryPolicy, "PolicyViolation"},
		{KindVotingClosed, CategoryPolicy, "VotingClosed"},
		{KindVotingNotEnded, CategoryPolicy, "VotingNotEnded"},
		{KindValidation, CategoryValidation, "ValidationError"},
		{KindQuorumNotMet, CategoryQuorum, "QuorumNotMet"},
		{KindInsufficientFunds, CategoryFunds, "InsufficientFunds"},
		{KindNothingToClaim, CategoryFunds, "NothingToClaim"},
		{KindArithmeticOverflow, CategoryArithmetic, "ArithmeticOverflow"},
		{KindCapacityExceeded, CategoryCapacity, "CapacityExceeded"},
		{KindInternal, CategoryInternal, "Internal"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.kind.Category(); got != test.category {
				t.Errorf("Category() = %q, want %q", got, test.category)
			}
			if got := test.kind.String(); got != test.name {
				t.Errorf("String() = %q, want %q", got, test.name)
			}
		})
	}
}

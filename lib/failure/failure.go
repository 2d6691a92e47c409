// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package failure

import (
	"errors"
	"fmt"
)

// Kind identifies a caller-visible failure condition. Every operation
// that fails returns an error carrying exactly one Kind, so that
// drivers can report outcomes without parsing error text.
type Kind uint8

const (
	// KindInternal marks a storage or encoding fault. It never
	// describes a rule violation by the caller.
	KindInternal Kind = iota

	KindNotFound
	KindAlreadyExists
	KindAlreadyVoted
	KindReplayDetected
	KindUnauthorized
	KindPolicyViolation
	KindVotingClosed
	KindVotingNotEnded
	KindValidation
	KindQuorumNotMet
	KindInsufficientFunds
	KindArithmeticOverflow
	KindCapacityExceeded
	KindNothingToClaim
)

// Category groups kinds into the broad classes a driver cares about
// (fix the input, stop retrying, escalate).
type Category string

const (
	CategoryMissing     Category = "missing"
	CategoryIdempotency Category = "idempotency"
	CategoryForbidden   Category = "forbidden"
	CategoryPolicy      Category = "policy"
	CategoryValidation  Category = "validation"
	CategoryQuorum      Category = "quorum"
	CategoryFunds       Category = "funds"
	CategoryArithmetic  Category = "arithmetic"
	CategoryCapacity    Category = "capacity"
	CategoryInternal    Category = "internal"
)

var kindNames = map[Kind]string{
	KindInternal:           "Internal",
	KindNotFound:           "NotFound",
	KindAlreadyExists:      "AlreadyExists",
	KindAlreadyVoted:       "AlreadyVoted",
	KindReplayDetected:     "ReplayDetected",
	KindUnauthorized:       "Unauthorized",
	KindPolicyViolation:    "PolicyViolation",
	KindVotingClosed:       "VotingClosed",
	KindVotingNotEnded:     "VotingNotEnded",
	KindValidation:         "ValidationError",
	KindQuorumNotMet:       "QuorumNotMet",
	KindInsufficientFunds:  "InsufficientFunds",
	KindArithmeticOverflow: "ArithmeticOverflow",
	KindCapacityExceeded:   "CapacityExceeded",
	KindNothingToClaim:     "NothingToClaim",
}

// String returns the canonical name of the kind (e.g., "ReplayDetected").
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Category returns the taxonomy class of the kind.
func (k Kind) Category() Category {
	switch k {
	case KindNotFound:
		return CategoryMissing
	case KindAlreadyExists, KindAlreadyVoted, KindReplayDetected:
		return CategoryIdempotency
	case KindUnauthorized:
		return CategoryForbidden
	case KindPolicyViolation, KindVotingClosed, KindVotingNotEnded:
		return CategoryPolicy
	case KindValidation:
		return CategoryValidation
	case KindQuorumNotMet:
		return CategoryQuorum
	case KindInsufficientFunds, KindNothingToClaim:
		return CategoryFunds
	case KindArithmeticOverflow:
		return CategoryArithmetic
	case KindCapacityExceeded:
		return CategoryCapacity
	default:
		return CategoryInternal
	}
}

// Error is a categorized operation failure. It wraps an inner error,
// preserving the chain for errors.Is and errors.As while adding the
// Kind that drivers report.
//
// Modules declare their specific conditions as package-level *Error
// sentinels (e.g., registry.ErrDeviceNotFound) and return them either
// directly or wrapped with fmt.Errorf("...: %w", sentinel).
type Error struct {
	Kind Kind
	Err  error
}

// New returns an *Error of the given kind with a fixed message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Err: errors.New(message)}
}

// Newf returns an *Error of the given kind with a formatted message.
// The format may use %w to wrap a cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Error returns the inner message. The kind travels separately.
func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the inner error.
func (e *Error) Unwrap() error { return e.Err }

// Internal wraps a storage or encoding fault. Returns nil for a nil
// err so call sites can wrap unconditionally.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var categorized *Error
	if errors.As(err, &categorized) {
		return err
	}
	return &Error{Kind: KindInternal, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain. Errors
// without a categorized wrapper are reported as KindInternal. KindOf
// of nil is KindInternal as well; check err != nil first.
func KindOf(err error) Kind {
	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

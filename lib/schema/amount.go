// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"math/bits"

	"github.com/bureau-foundation/carbonledger/lib/failure"
)

// Amount is a non-negative quantity of credits or native currency.
type Amount = uint64

// ErrOverflow is returned by CheckedAdd and CheckedMul when the result
// does not fit in an Amount.
var ErrOverflow = failure.New(failure.KindArithmeticOverflow, "arithmetic overflow")

// ErrUnderflow is returned by CheckedSub when b exceeds a. Callers
// usually translate this into their own InsufficientFunds sentinel.
var ErrUnderflow = failure.New(failure.KindInsufficientFunds, "arithmetic underflow")

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrUnderflow.
func CheckedSub(a, b Amount) (Amount, error) {
	difference, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return difference, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b Amount) (Amount, error) {
	high, low := bits.Mul64(a, b)
	if high != 0 {
		return 0, ErrOverflow
	}
	return low, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import "github.com/bureau-foundation/carbonledger/lib/failure"

var (
	ErrInsufficientBalance   = failure.New(failure.KindInsufficientFunds, "insufficient token balance")
	ErrInsufficientAllowance = failure.New(failure.KindInsufficientFunds, "insufficient allowance")
	ErrNothingToClaim        = failure.New(failure.KindNothingToClaim, "no pending rewards to claim")
)

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema holds the identifier and amount types shared by every
// ledger module.
//
// [AccountID] and [DeviceID] are string-backed so they can be used as
// map keys and compared with ==. Amounts are plain uint64 values; all
// arithmetic on balances, supply, rewards, deposits and vote tallies
// goes through [CheckedAdd], [CheckedSub] and [CheckedMul], which
// return categorized failures instead of wrapping.
package schema

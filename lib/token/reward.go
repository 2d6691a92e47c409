// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import "github.com/bureau-foundation/carbonledger/lib/schema"

// RewardCalculator converts verified energy production into credits.
// Only whole kilowatt-hours earn credit; the remainder is discarded.
type RewardCalculator struct {
	// RatePerKWh is the number of credits minted per whole kWh.
	RatePerKWh uint64
}

// Reward returns floor(energyWh/1000) * RatePerKWh, or an
// ArithmeticOverflow failure if the product does not fit.
func (c RewardCalculator) Reward(energyWh uint64) (uint64, error) {
	return schema.CheckedMul(energyWh/1000, c.RatePerKWh)
}

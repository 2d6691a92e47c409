// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"errors"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/state"
)

// ErrAlreadyInitialized is returned by Genesis on a non-empty store.
var ErrAlreadyInitialized = failure.New(failure.KindAlreadyExists, "ledger state is already initialized")

// Genesis is the initial ledger state, applied as root.
type Genesis struct {
	Manufacturers []string
	Oracles       []GenesisOracle

	// Deposits endow free native balance for device registration.
	Deposits []GenesisBalance

	// Balances mint initial credits.
	Balances []GenesisBalance
}

// GenesisOracle is an oracle node present from the start.
type GenesisOracle struct {
	Account   schema.AccountID
	PublicKey []byte
}

// GenesisBalance is an initial amount for one account.
type GenesisBalance struct {
	Account schema.AccountID
	Amount  uint64
}

// Genesis applies the initial state in one transaction. It fails with
// ErrAlreadyInitialized unless the store is empty.
func (r *Runtime) Genesis(ctx context.Context, genesis Genesis) Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()

	root := origin.Root()
	return r.atomically(ctx, "genesis", root, func(tx *state.Tx) error {
		empty, err := r.Empty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrAlreadyInitialized
		}

		var errs []error
		for _, manufacturer := range genesis.Manufacturers {
			errs = append(errs, r.Registry.WhitelistManufacturer(tx, root, manufacturer))
		}
		for _, node := range genesis.Oracles {
			errs = append(errs, r.Oracle.AddOracleNode(tx, root, node.Account, node.PublicKey))
		}
		for _, endowment := range genesis.Deposits {
			errs = append(errs, r.Deposits.Endow(tx, root, endowment.Account, endowment.Amount))
		}
		for _, balance := range genesis.Balances {
			errs = append(errs, r.Ledger.Mint(tx, root, balance.Account, balance.Amount))
		}
		return errors.Join(errs...)
	})
}

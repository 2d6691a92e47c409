// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package deposit holds accounts' native-currency balances, split into
// a free part and a reserved part. The registry reserves a deposit when
// a device is registered and releases it when the device is revoked.
//
// Native currency is separate from the credit token: reserving a
// deposit never changes token supply or token balances.
package deposit

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/state"
)

// Region prefixes.
const (
	PrefixFree     byte = 0x40
	PrefixReserved byte = 0x41
)

// ErrInsufficientFree is returned by Reserve when the free balance is
// below the requested amount.
var ErrInsufficientFree = failure.New(failure.KindInsufficientFunds, "insufficient free balance to reserve")

// Service reads and writes deposit balances. The zero value is not
// usable; call New.
type Service struct {
	free     kvstore.Map[schema.AccountID, uint64]
	reserved kvstore.Map[schema.AccountID, uint64]
}

// New returns a deposit service over the standard regions.
func New() *Service {
	return &Service{
		free:     kvstore.NewMap[schema.AccountID, uint64](PrefixFree, kvstore.Hashed[schema.AccountID]{}),
		reserved: kvstore.NewMap[schema.AccountID, uint64](PrefixReserved, kvstore.Hashed[schema.AccountID]{}),
	}
}

// Endow credits amount to account's free balance. Root only; used by
// genesis and operators to fund accounts.
func (s *Service) Endow(tx *state.Tx, caller origin.Caller, account schema.AccountID, amount uint64) error {
	if err := caller.EnsureRoot(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}
	free, err := s.Free(tx.Context(), tx.Store(), account)
	if err != nil {
		return err
	}
	updated, err := schema.CheckedAdd(free, amount)
	if err != nil {
		return fmt.Errorf("endowing %s: %w", account, err)
	}
	if err := s.setBalance(tx, s.free, account, updated); err != nil {
		return err
	}
	tx.Emit("deposit.endowed", state.Attr("account", account), state.Attr("amount", amount))
	return nil
}

// Reserve moves amount from account's free balance to its reserved
// balance.
func (s *Service) Reserve(tx *state.Tx, account schema.AccountID, amount uint64) error {
	free, err := s.Free(tx.Context(), tx.Store(), account)
	if err != nil {
		return err
	}
	if free < amount {
		return fmt.Errorf("%s has %d free, needs %d: %w", account, free, amount, ErrInsufficientFree)
	}
	reserved, err := s.Reserved(tx.Context(), tx.Store(), account)
	if err != nil {
		return err
	}
	updatedReserved, err := schema.CheckedAdd(reserved, amount)
	if err != nil {
		return fmt.Errorf("reserving for %s: %w", account, err)
	}
	if err := s.setBalance(tx, s.free, account, free-amount); err != nil {
		return err
	}
	return s.setBalance(tx, s.reserved, account, updatedReserved)
}

// Unreserve moves up to amount from the reserved balance back to the
// free balance and returns how much was actually released. Releasing
// more than is reserved releases everything reserved.
func (s *Service) Unreserve(tx *state.Tx, account schema.AccountID, amount uint64) (uint64, error) {
	reserved, err := s.Reserved(tx.Context(), tx.Store(), account)
	if err != nil {
		return 0, err
	}
	released := min(amount, reserved)
	if released == 0 {
		return 0, nil
	}
	free, err := s.Free(tx.Context(), tx.Store(), account)
	if err != nil {
		return 0, err
	}
	updatedFree, err := schema.CheckedAdd(free, released)
	if err != nil {
		return 0, fmt.Errorf("unreserving for %s: %w", account, err)
	}
	if err := s.setBalance(tx, s.reserved, account, reserved-released); err != nil {
		return 0, err
	}
	if err := s.setBalance(tx, s.free, account, updatedFree); err != nil {
		return 0, err
	}
	return released, nil
}

// Free returns account's free balance.
func (s *Service) Free(ctx context.Context, r kvstore.Reader, account schema.AccountID) (uint64, error) {
	amount, _, err := s.free.Get(ctx, r, account)
	return amount, failure.Internal(err)
}

// Reserved returns account's reserved balance.
func (s *Service) Reserved(ctx context.Context, r kvstore.Reader, account schema.AccountID) (uint64, error) {
	amount, _, err := s.reserved.Get(ctx, r, account)
	return amount, failure.Internal(err)
}

// setBalance writes a balance, deleting the entry when it reaches
// zero so that empty accounts leave no trace in state.
func (s *Service) setBalance(tx *state.Tx, region kvstore.Map[schema.AccountID, uint64], account schema.AccountID, amount uint64) error {
	if amount == 0 {
		return failure.Internal(region.Delete(tx.Context(), tx.Store(), account))
	}
	return failure.Internal(region.Set(tx.Context(), tx.Store(), account, amount))
}

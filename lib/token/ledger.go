// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

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
	PrefixSupply     byte = 0x20
	PrefixBalances   byte = 0x21
	PrefixPending    byte = 0x22
	PrefixAllowances byte = 0x23
)

// Ledger owns credit supply, balances, pending reward accruals and
// allowances. Every mutation keeps total supply equal to the sum of
// all balances.
type Ledger struct {
	supply     kvstore.Item[uint64]
	balances   kvstore.Map[schema.AccountID, uint64]
	pending    kvstore.Map[schema.AccountID, uint64]
	allowances kvstore.Map[kvstore.Pair[schema.AccountID, schema.AccountID], uint64]
}

// New returns a ledger over the standard regions.
func New() *Ledger {
	accountKey := kvstore.Hashed[schema.AccountID]{}
	return &Ledger{
		supply:     kvstore.NewItem[uint64](PrefixSupply),
		balances:   kvstore.NewMap[schema.AccountID, uint64](PrefixBalances, accountKey),
		pending:    kvstore.NewMap[schema.AccountID, uint64](PrefixPending, accountKey),
		allowances: kvstore.NewMap[kvstore.Pair[schema.AccountID, schema.AccountID], uint64](PrefixAllowances, kvstore.PairKeys[schema.AccountID, schema.AccountID](accountKey, accountKey)),
	}
}

// Mint creates amount credits in to's balance. Root only.
func (l *Ledger) Mint(tx *state.Tx, caller origin.Caller, to schema.AccountID, amount uint64) error {
	if err := caller.EnsureRoot(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if err := l.issue(tx, to, amount); err != nil {
		return fmt.Errorf("minting %d to %s: %w", amount, to, err)
	}
	tx.Emit("token.minted", state.Attr("to", to), state.Attr("amount", amount))
	return nil
}

// Transfer moves amount from the caller to to.
func (l *Ledger) Transfer(tx *state.Tx, caller origin.Caller, to schema.AccountID, amount uint64) error {
	from, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if err := l.move(tx, from, to, amount); err != nil {
		return err
	}
	tx.Emit("token.transferred", state.Attr("from", from), state.Attr("to", to), state.Attr("amount", amount))
	return nil
}

// TransferFrom moves amount from owner to to on behalf of the caller,
// spending the caller's allowance from owner.
func (l *Ledger) TransferFrom(tx *state.Tx, caller origin.Caller, owner, to schema.AccountID, amount uint64) error {
	spender, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	allowed, err := l.Allowance(tx.Context(), tx.Store(), owner, spender)
	if err != nil {
		return err
	}
	if allowed < amount {
		return fmt.Errorf("%s may spend %d of %s's credits, requested %d: %w", spender, allowed, owner, amount, ErrInsufficientAllowance)
	}
	if err := l.setAllowance(tx, owner, spender, allowed-amount); err != nil {
		return err
	}
	if err := l.move(tx, owner, to, amount); err != nil {
		return err
	}
	tx.Emit("token.transferred",
		state.Attr("from", owner),
		state.Attr("to", to),
		state.Attr("amount", amount),
		state.Attr("spender", spender),
	)
	return nil
}

// Burn destroys amount of the caller's credits.
func (l *Ledger) Burn(tx *state.Tx, caller origin.Caller, amount uint64) error {
	account, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	ctx, store := tx.Context(), tx.Store()
	balance, err := l.BalanceOf(ctx, store, account)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%s holds %d, burning %d: %w", account, balance, amount, ErrInsufficientBalance)
	}
	supply, err := l.TotalSupply(ctx, store)
	if err != nil {
		return err
	}
	remaining, err := schema.CheckedSub(supply, amount)
	if err != nil {
		return failure.Newf(failure.KindInternal, "supply %d below burned amount %d: %w", supply, amount, err)
	}
	if err := l.setBalance(tx, account, balance-amount); err != nil {
		return err
	}
	if err := failure.Internal(l.supply.Set(ctx, store, remaining)); err != nil {
		return err
	}
	tx.Emit("token.burned", state.Attr("from", account), state.Attr("amount", amount))
	return nil
}

// ClaimRewards moves the caller's whole pending accrual into its
// balance. Claimed rewards are issued at claim time, so total supply
// grows by the same amount.
func (l *Ledger) ClaimRewards(tx *state.Tx, caller origin.Caller) error {
	account, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	ctx, store := tx.Context(), tx.Store()
	pending, err := l.PendingRewards(ctx, store, account)
	if err != nil {
		return err
	}
	if pending == 0 {
		return fmt.Errorf("%s: %w", account, ErrNothingToClaim)
	}
	if err := failure.Internal(l.pending.Delete(ctx, store, account)); err != nil {
		return err
	}
	if err := l.issue(tx, account, pending); err != nil {
		return fmt.Errorf("claiming %d for %s: %w", pending, account, err)
	}
	tx.Emit("token.rewards_claimed", state.Attr("account", account), state.Attr("amount", pending))
	return nil
}

// Approve sets the caller's allowance for spender to amount,
// replacing any previous allowance.
func (l *Ledger) Approve(tx *state.Tx, caller origin.Caller, spender schema.AccountID, amount uint64) error {
	owner, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	if err := spender.Validate(); err != nil {
		return err
	}
	if err := l.setAllowance(tx, owner, spender, amount); err != nil {
		return err
	}
	tx.Emit("token.approved", state.Attr("owner", owner), state.Attr("spender", spender), state.Attr("amount", amount))
	return nil
}

// CreditPendingReward adds amount to account's pending accrual. This
// is the oracle validator's entry point into the ledger.
func (l *Ledger) CreditPendingReward(tx *state.Tx, account schema.AccountID, amount uint64) error {
	ctx, store := tx.Context(), tx.Store()
	pending, err := l.PendingRewards(ctx, store, account)
	if err != nil {
		return err
	}
	updated, err := schema.CheckedAdd(pending, amount)
	if err != nil {
		return err
	}
	return failure.Internal(l.pending.Set(ctx, store, account, updated))
}

// OnFinalize runs after the last operation of a batch. Rewards are
// credited per report today, so there is nothing to distribute.
func (l *Ledger) OnFinalize(*state.Tx) error {
	return nil
}

// TotalSupply returns the total credit supply.
func (l *Ledger) TotalSupply(ctx context.Context, reader kvstore.Reader) (uint64, error) {
	supply, err := l.supply.Get(ctx, reader)
	return supply, failure.Internal(err)
}

// BalanceOf returns account's spendable balance.
func (l *Ledger) BalanceOf(ctx context.Context, reader kvstore.Reader, account schema.AccountID) (uint64, error) {
	balance, _, err := l.balances.Get(ctx, reader, account)
	return balance, failure.Internal(err)
}

// PendingRewards returns account's unclaimed reward accrual.
func (l *Ledger) PendingRewards(ctx context.Context, reader kvstore.Reader, account schema.AccountID) (uint64, error) {
	pending, _, err := l.pending.Get(ctx, reader, account)
	return pending, failure.Internal(err)
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(ctx context.Context, reader kvstore.Reader, owner, spender schema.AccountID) (uint64, error) {
	allowed, _, err := l.allowances.Get(ctx, reader, kvstore.Pair[schema.AccountID, schema.AccountID]{First: owner, Second: spender})
	return allowed, failure.Internal(err)
}

// SumBalances returns the sum of every balance and the number of
// accounts holding a nonzero balance. For a consistent ledger the sum
// equals TotalSupply.
func (l *Ledger) SumBalances(ctx context.Context, reader kvstore.Reader) (sum uint64, holders int, err error) {
	err = l.balances.Walk(ctx, reader, func(_ schema.AccountID, balance uint64) error {
		var addErr error
		sum, addErr = schema.CheckedAdd(sum, balance)
		holders++
		return addErr
	})
	return sum, holders, failure.Internal(err)
}

// issue credits amount to account and grows supply by the same
// amount, failing on overflow of either.
func (l *Ledger) issue(tx *state.Tx, account schema.AccountID, amount uint64) error {
	ctx, store := tx.Context(), tx.Store()
	supply, err := l.TotalSupply(ctx, store)
	if err != nil {
		return err
	}
	newSupply, err := schema.CheckedAdd(supply, amount)
	if err != nil {
		return err
	}
	balance, err := l.BalanceOf(ctx, store, account)
	if err != nil {
		return err
	}
	newBalance, err := schema.CheckedAdd(balance, amount)
	if err != nil {
		return err
	}
	if err := l.setBalance(tx, account, newBalance); err != nil {
		return err
	}
	return failure.Internal(l.supply.Set(ctx, store, newSupply))
}

// move debits from and credits to. Both writes land in the same
// overlay, so either both commit or neither does.
func (l *Ledger) move(tx *state.Tx, from, to schema.AccountID, amount uint64) error {
	ctx, store := tx.Context(), tx.Store()
	fromBalance, err := l.BalanceOf(ctx, store, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%s holds %d, sending %d: %w", from, fromBalance, amount, ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.BalanceOf(ctx, store, to)
	if err != nil {
		return err
	}
	credited, err := schema.CheckedAdd(toBalance, amount)
	if err != nil {
		return fmt.Errorf("crediting %s: %w", to, err)
	}
	if err := l.setBalance(tx, from, fromBalance-amount); err != nil {
		return err
	}
	return l.setBalance(tx, to, credited)
}

// setBalance writes a balance; zero balances are deleted.
func (l *Ledger) setBalance(tx *state.Tx, account schema.AccountID, amount uint64) error {
	if amount == 0 {
		return failure.Internal(l.balances.Delete(tx.Context(), tx.Store(), account))
	}
	return failure.Internal(l.balances.Set(tx.Context(), tx.Store(), account, amount))
}

func (l *Ledger) setAllowance(tx *state.Tx, owner, spender schema.AccountID, amount uint64) error {
	key := kvstore.Pair[schema.AccountID, schema.AccountID]{First: owner, Second: spender}
	if amount == 0 {
		return failure.Internal(l.allowances.Delete(tx.Context(), tx.Store(), key))
	}
	return failure.Internal(l.allowances.Set(tx.Context(), tx.Store(), key, amount))
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/state"
)

var (
	alice = origin.Signed("alice")
	bob   = origin.Signed("bob")
	carol = origin.Signed("carol")
	root  = origin.Root()
)

type fixture struct {
	store  *kvstore.Memory
	ledger *Ledger
}

func newFixture() *fixture {
	return &fixture{store: kvstore.NewMemory(), ledger: New()}
}

// apply runs fn in its own transaction and commits only on success.
func (f *fixture) apply(t *testing.T, fn func(tx *state.Tx) error) (*state.Tx, error) {
	t.Helper()
	overlay := kvstore.NewOverlay(f.store)
	tx := state.NewTx(context.Background(), overlay, 1)
	if err := fn(tx); err != nil {
		return tx, err
	}
	if err := f.store.Commit(context.Background(), overlay.Changes()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return tx, nil
}

func (f *fixture) mustApply(t *testing.T, fn func(tx *state.Tx) error) *state.Tx {
	t.Helper()
	tx, err := f.apply(t, fn)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	return tx
}

func (f *fixture) balance(t *testing.T, account schema.AccountID) uint64 {
	t.Helper()
	balance, err := f.ledger.BalanceOf(context.Background(), f.store, account)
	if err != nil {
		t.Fatalf("BalanceOf(%s): %v", account, err)
	}
	return balance
}

func (f *fixture) supply(t *testing.T) uint64 {
	t.Helper()
	supply, err := f.ledger.TotalSupply(context.Background(), f.store)
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	return supply
}

func (f *fixture) checkConservation(t *testing.T) {
	t.Helper()
	sum, _, err := f.ledger.SumBalances(context.Background(), f.store)
	if err != nil {
		t.Fatalf("SumBalances: %v", err)
	}
	if supply := f.supply(t); sum != supply {
		t.Fatalf("conservation violated: supply %d, sum of balances %d", supply, sum)
	}
}

// --- Reward calculator ---

func TestRewardCalculator(t *testing.T) {
	calculator := RewardCalculator{RatePerKWh: 10}
	tests := []struct {
		energyWh uint64
		want     uint64
	}{
		{0, 0},
		{999, 0},
		{1000, 10},
		{1999, 10},
		{5000, 50},
	}
	for _, test := range tests {
		got, err := calculator.Reward(test.energyWh)
		if err != nil {
			t.Fatalf("Reward(%d): %v", test.energyWh, err)
		}
		if got != test.want {
			t.Errorf("Reward(%d) = %d, want %d", test.energyWh, got, test.want)
		}
	}

	_, err := RewardCalculator{RatePerKWh: math.MaxUint64}.Reward(2000)
	if failure.KindOf(err) != failure.KindArithmeticOverflow {
		t.Errorf("overflowing reward err = %v, want ArithmeticOverflow", err)
	}
}

// --- Mint and burn ---

func TestMint(t *testing.T) {
	f := newFixture()

	if _, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.Mint(tx, alice, "alice", 10) }); !errors.Is(err, origin.ErrNotRoot) {
		t.Errorf("Mint as alice = %v, want ErrNotRoot", err)
	}

	tx := f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "alice", 1000) })
	if got := f.balance(t, "alice"); got != 1000 {
		t.Errorf("balance = %d, want 1000", got)
	}
	if got := f.supply(t); got != 1000 {
		t.Errorf("supply = %d, want 1000", got)
	}
	if tx.Events()[0].Name != "token.minted" {
		t.Errorf("event = %s", tx.Events()[0].Name)
	}

	_, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "bob", math.MaxUint64) })
	if failure.KindOf(err) != failure.KindArithmeticOverflow {
		t.Errorf("overflowing mint = %v, want ArithmeticOverflow", err)
	}
	if got := f.supply(t); got != 1000 {
		t.Errorf("supply after failed mint = %d, want 1000", got)
	}
}

func TestBurn(t *testing.T) {
	f := newFixture()
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "alice", 100) })

	_, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.Burn(tx, alice, 101) })
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("over-burn = %v, want ErrInsufficientBalance", err)
	}

	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Burn(tx, alice, 40) })
	if got := f.balance(t, "alice"); got != 60 {
		t.Errorf("balance = %d, want 60", got)
	}
	if got := f.supply(t); got != 60 {
		t.Errorf("supply = %d, want 60", got)
	}
}

// --- Transfers ---

func TestTransfer(t *testing.T) {
	f := newFixture()
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "alice", 100) })

	tx := f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Transfer(tx, alice, "bob", 30) })
	if f.balance(t, "alice") != 70 || f.balance(t, "bob") != 30 {
		t.Errorf("balances alice=%d bob=%d, want 70/30", f.balance(t, "alice"), f.balance(t, "bob"))
	}
	if event := tx.Events()[0]; event.Get("from") != "alice" || event.Get("to") != "bob" || event.Get("amount") != "30" {
		t.Errorf("event = %+v", event)
	}

	_, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.Transfer(tx, bob, "alice", 31) })
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraft = %v, want ErrInsufficientBalance", err)
	}
	if f.balance(t, "bob") != 30 {
		t.Errorf("bob's balance changed on failed transfer: %d", f.balance(t, "bob"))
	}

	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Transfer(tx, alice, "alice", 70) })
	if f.balance(t, "alice") != 70 {
		t.Errorf("self-transfer changed balance: %d", f.balance(t, "alice"))
	}

	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Transfer(tx, bob, "alice", 30) })
	sum, holders, _ := f.ledger.SumBalances(context.Background(), f.store)
	if sum != 100 || holders != 1 {
		t.Errorf("sum=%d holders=%d, want 100/1 (zero balances removed)", sum, holders)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	f := newFixture()
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "alice", 100) })

	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Approve(tx, alice, "bob", 50) })
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Approve(tx, alice, "bob", 40) })
	allowed, _ := f.ledger.Allowance(context.Background(), f.store, "alice", "bob")
	if allowed != 40 {
		t.Errorf("allowance = %d, want 40 (overwrite, not additive)", allowed)
	}

	_, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.TransferFrom(tx, bob, "alice", "carol", 41) })
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("over-allowance = %v, want ErrInsufficientAllowance", err)
	}
	if failure.KindOf(err) != failure.KindInsufficientFunds {
		t.Errorf("kind = %v, want InsufficientFunds", failure.KindOf(err))
	}

	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.TransferFrom(tx, bob, "alice", "carol", 25) })
	if f.balance(t, "alice") != 75 || f.balance(t, "carol") != 25 {
		t.Errorf("balances alice=%d carol=%d", f.balance(t, "alice"), f.balance(t, "carol"))
	}
	allowed, _ = f.ledger.Allowance(context.Background(), f.store, "alice", "bob")
	if allowed != 15 {
		t.Errorf("remaining allowance = %d, want 15", allowed)
	}

	// Allowance covers the request but the owner's balance does not.
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.Approve(tx, alice, "carol", 1000) })
	_, err = f.apply(t, func(tx *state.Tx) error { return f.ledger.TransferFrom(tx, carol, "alice", "carol", 76) })
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("over-balance TransferFrom = %v, want ErrInsufficientBalance", err)
	}
	allowed, _ = f.ledger.Allowance(context.Background(), f.store, "alice", "carol")
	if allowed != 1000 {
		t.Errorf("allowance spent by failed TransferFrom: %d", allowed)
	}
}

// --- Rewards ---

func TestClaimRewards(t *testing.T) {
	f := newFixture()

	_, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.ClaimRewards(tx, alice) })
	if !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("empty claim = %v, want ErrNothingToClaim", err)
	}

	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.CreditPendingReward(tx, "alice", 30) })
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.CreditPendingReward(tx, "alice", 20) })
	pending, _ := f.ledger.PendingRewards(context.Background(), f.store, "alice")
	if pending != 50 {
		t.Errorf("pending = %d, want 50", pending)
	}

	tx := f.mustApply(t, func(tx *state.Tx) error { return f.ledger.ClaimRewards(tx, alice) })
	if got := tx.Events()[0].Get("amount"); got != "50" {
		t.Errorf("claimed amount = %s, want 50", got)
	}
	if f.balance(t, "alice") != 50 {
		t.Errorf("balance = %d, want 50", f.balance(t, "alice"))
	}
	pending, _ = f.ledger.PendingRewards(context.Background(), f.store, "alice")
	if pending != 0 {
		t.Errorf("pending after claim = %d, want 0", pending)
	}
	f.checkConservation(t)
}

func TestCreditPendingRewardOverflow(t *testing.T) {
	f := newFixture()
	f.mustApply(t, func(tx *state.Tx) error { return f.ledger.CreditPendingReward(tx, "alice", math.MaxUint64) })
	_, err := f.apply(t, func(tx *state.Tx) error { return f.ledger.CreditPendingReward(tx, "alice", 1) })
	if failure.KindOf(err) != failure.KindArithmeticOverflow {
		t.Errorf("overflowing credit = %v, want ArithmeticOverflow", err)
	}
}

// --- Conservation ---

func TestConservationAcrossMixedSequence(t *testing.T) {
	f := newFixture()
	steps := []func(tx *state.Tx) error{
		func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "alice", 1000) },
		func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "bob", 250) },
		func(tx *state.Tx) error { return f.ledger.Transfer(tx, alice, "carol", 300) },
		func(tx *state.Tx) error { return f.ledger.Transfer(tx, carol, "bob", 301) },
		func(tx *state.Tx) error { return f.ledger.Burn(tx, bob, 50) },
		func(tx *state.Tx) error { return f.ledger.Burn(tx, carol, 10_000) },
		func(tx *state.Tx) error { return f.ledger.Approve(tx, carol, "alice", 100) },
		func(tx *state.Tx) error { return f.ledger.TransferFrom(tx, alice, "carol", "bob", 100) },
		func(tx *state.Tx) error { return f.ledger.CreditPendingReward(tx, "carol", 70) },
		func(tx *state.Tx) error { return f.ledger.ClaimRewards(tx, carol) },
		func(tx *state.Tx) error { return f.ledger.ClaimRewards(tx, carol) },
		func(tx *state.Tx) error { return f.ledger.Mint(tx, root, "dave", math.MaxUint64) },
		func(tx *state.Tx) error { return f.ledger.Transfer(tx, bob, "alice", 300) },
	}
	for i, step := range steps {
		// Failing steps are expected; conservation must hold either way.
		f.apply(t, step)
		sum, _, err := f.ledger.SumBalances(context.Background(), f.store)
		if err != nil {
			t.Fatalf("step %d: SumBalances: %v", i, err)
		}
		if supply := f.supply(t); supply != sum {
			t.Fatalf("step %d: supply %d != sum of balances %d", i, supply, sum)
		}
	}
	if got := f.supply(t); got != 1000+250-50+70 {
		t.Errorf("final supply = %d, want %d", got, 1000+250-50+70)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/governance"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/state"
)

var (
	root     = origin.Root()
	alice    = origin.Signed("alice")
	bob      = origin.Signed("bob")
	oracle1  = origin.Signed("oracle-1")
	deviceID = schema.DeviceID("capture-unit-7")
)

type harness struct {
	rt      *Runtime
	heights *height.Manual
	keys    []ed25519.PrivateKey
	oracles []schema.AccountID
}

// newHarness returns a runtime over store with manufacturer "acme"
// allow-listed, three keyed oracle nodes, a 500 deposit endowment for
// alice and 2000 credits minted to bob.
func newHarness(t *testing.T, store kvstore.Committer) *harness {
	t.Helper()
	h := &harness{heights: height.NewManual(1)}
	h.rt = New(store, h.heights, DefaultConfig())

	genesis := Genesis{
		Manufacturers: []string{"acme"},
		Deposits:      []GenesisBalance{{Account: "alice", Amount: 500}},
		Balances:      []GenesisBalance{{Account: "bob", Amount: 2000}},
	}
	for i, name := range []schema.AccountID{"oracle-1", "oracle-2", "oracle-3"} {
		key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{byte(0x10 + i)}, ed25519.SeedSize))
		h.keys = append(h.keys, key)
		h.oracles = append(h.oracles, name)
		genesis.Oracles = append(genesis.Oracles, GenesisOracle{Account: name, PublicKey: key.Public().(ed25519.PublicKey)})
	}
	if receipt := h.rt.Genesis(context.Background(), genesis); receipt.Err != nil {
		t.Fatalf("Genesis: %v", receipt.Err)
	}
	return h
}

func (h *harness) apply(t *testing.T, op Operation) Receipt {
	t.Helper()
	h.heights.Advance(1)
	return h.rt.Apply(context.Background(), op)
}

func (h *harness) mustApply(t *testing.T, op Operation) Receipt {
	t.Helper()
	receipt := h.apply(t, op)
	if receipt.Err != nil {
		t.Fatalf("%s: %v", op.Name(), receipt.Err)
	}
	return receipt
}

// telemetry returns a submission signed by the first n oracles.
func (h *harness) telemetry(nonce, energyWh uint64, n int) SubmitTelemetry {
	digest := oracle.Digest(deviceID, 1_700_000_000+nonce, 1200, energyWh)
	submission := oracle.Submission{
		Device:    deviceID,
		Timestamp: 1_700_000_000 + nonce,
		CO2Grams:  1200,
		EnergyWh:  energyWh,
		DataHash:  digest[:],
		Nonce:     nonce,
	}
	for i := range n {
		submission.Signatures = append(submission.Signatures, oracle.Signature{
			Signer:    h.oracles[i],
			Signature: ed25519.Sign(h.keys[i], digest[:]),
		})
	}
	return SubmitTelemetry{Origin: oracle1, Submission: submission}
}

func (h *harness) registerActive(t *testing.T) {
	t.Helper()
	h.mustApply(t, RegisterDevice{
		Origin:       alice,
		Device:       deviceID,
		PublicKey:    bytes.Repeat([]byte{0xd7}, 32),
		Manufacturer: "acme",
		MetadataURI:  "ipfs://bafy-capture-unit-7",
	})
	h.mustApply(t, UpdateDeviceStatus{Origin: alice, Device: deviceID, Status: registry.StatusActive})
}

func (h *harness) root(t *testing.T) kvstore.Hash {
	t.Helper()
	hash, err := h.rt.Root(context.Background())
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	return hash
}

func (h *harness) checkConservation(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	supply, err := h.rt.Ledger.TotalSupply(ctx, h.rt.Store())
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	sum, _, err := h.rt.Ledger.SumBalances(ctx, h.rt.Store())
	if err != nil {
		t.Fatalf("SumBalances: %v", err)
	}
	if supply != sum {
		t.Fatalf("total supply %d != sum of balances %d", supply, sum)
	}
}

// --- End to end ---

func TestTelemetryToClaimedReward(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	ctx := context.Background()

	h.mustApply(t, RegisterDevice{
		Origin:       alice,
		Device:       deviceID,
		PublicKey:    bytes.Repeat([]byte{0xd7}, 32),
		Manufacturer: "acme",
	})
	device, err := h.rt.Registry.Device(ctx, h.rt.Store(), deviceID)
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if device.Status != registry.StatusPending {
		t.Errorf("status after registration = %s, want pending", device.Status)
	}
	if reserved, _ := h.rt.Deposits.Reserved(ctx, h.rt.Store(), "alice"); reserved != 100 {
		t.Errorf("reserved deposit = %d, want 100", reserved)
	}

	h.mustApply(t, UpdateDeviceStatus{Origin: alice, Device: deviceID, Status: registry.StatusActive})

	receipt := h.mustApply(t, h.telemetry(1, 5000, 3))
	if len(receipt.Events) == 0 || receipt.Events[len(receipt.Events)-1].Name != "oracle.telemetry_verified" {
		t.Errorf("events = %+v", receipt.Events)
	}
	pending, _ := h.rt.Ledger.PendingRewards(ctx, h.rt.Store(), "alice")
	if pending != 50 {
		t.Fatalf("pending reward = %d, want 50", pending)
	}

	h.mustApply(t, ClaimRewards{Origin: alice})
	balance, _ := h.rt.Ledger.BalanceOf(ctx, h.rt.Store(), "alice")
	if balance != 50 {
		t.Errorf("balance after claim = %d, want 50", balance)
	}
	pending, _ = h.rt.Ledger.PendingRewards(ctx, h.rt.Store(), "alice")
	if pending != 0 {
		t.Errorf("pending after claim = %d, want 0", pending)
	}
	h.checkConservation(t)

	if receipt := h.apply(t, ClaimRewards{Origin: alice}); failure.KindOf(receipt.Err) != failure.KindNothingToClaim {
		t.Errorf("second claim err = %v, want NothingToClaim", receipt.Err)
	}

	stats, err := h.rt.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSupply != 2050 || stats.Devices != 1 || stats.ActiveDevices != 1 ||
		stats.Reports != 1 || stats.TotalEnergyWh != 5000 || stats.TotalCO2Grams != 1200 || stats.OracleNodes != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRejectedOperationLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	h.registerActive(t)

	tests := []struct {
		name string
		op   Operation
		kind failure.Kind
	}{
		{"telemetry below quorum", h.telemetry(1, 5000, 1), failure.KindQuorumNotMet},
		{"transfer beyond balance", Transfer{Origin: bob, To: "alice", Amount: 2001}, failure.KindInsufficientFunds},
		{"mint by signed account", Mint{Origin: bob, To: "bob", Amount: 1}, failure.KindUnauthorized},
		{"duplicate device", RegisterDevice{Origin: alice, Device: deviceID, PublicKey: make([]byte, 32), Manufacturer: "acme"}, failure.KindAlreadyExists},
		{"unknown manufacturer", RegisterDevice{Origin: alice, Device: "other", PublicKey: make([]byte, 32), Manufacturer: "nobody"}, failure.KindPolicyViolation},
		{"vote on missing proposal", Vote{Origin: bob, Proposal: 3, Support: true}, failure.KindNotFound},
		{"endow by signed account", Endow{Origin: alice, Account: "alice", Amount: 1}, failure.KindUnauthorized},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			before := h.root(t)
			receipt := h.apply(t, test.op)
			if receipt.OK() {
				t.Fatal("operation succeeded, want failure")
			}
			if kind := failure.KindOf(receipt.Err); kind != test.kind {
				t.Errorf("kind = %v, want %v (err: %v)", kind, test.kind, receipt.Err)
			}
			if receipt.FailureKind != test.kind.String() || receipt.Failure == "" {
				t.Errorf("receipt failure fields = %q, %q", receipt.Failure, receipt.FailureKind)
			}
			if len(receipt.Events) != 0 {
				t.Errorf("rejected operation carried events: %+v", receipt.Events)
			}
			if after := h.root(t); after != before {
				t.Error("state root changed after a rejected operation")
			}
		})
	}
}

func TestReplayAcrossOperations(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	h.registerActive(t)
	h.mustApply(t, h.telemetry(9, 4000, 2))

	receipt := h.apply(t, h.telemetry(9, 4000, 2))
	if !errors.Is(receipt.Err, oracle.ErrReplay) {
		t.Fatalf("replay err = %v, want ErrReplay", receipt.Err)
	}
	pending, _ := h.rt.Ledger.PendingRewards(context.Background(), h.rt.Store(), "alice")
	if pending != 40 {
		t.Errorf("pending = %d, want 40", pending)
	}
}

func TestDepositSymmetry(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	ctx := context.Background()
	freeBefore, _ := h.rt.Deposits.Free(ctx, h.rt.Store(), "alice")

	h.registerActive(t)
	h.mustApply(t, RevokeDevice{Origin: alice, Device: deviceID})

	freeAfter, _ := h.rt.Deposits.Free(ctx, h.rt.Store(), "alice")
	reserved, _ := h.rt.Deposits.Reserved(ctx, h.rt.Store(), "alice")
	if freeAfter != freeBefore || reserved != 0 {
		t.Errorf("after revoke free = %d (was %d), reserved = %d", freeAfter, freeBefore, reserved)
	}
	owned, _ := h.rt.Registry.DevicesByOwner(ctx, h.rt.Store(), "alice")
	if len(owned) != 0 {
		t.Errorf("owner index = %v, want empty", owned)
	}
}

func TestGovernanceThroughRuntime(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	ctx := context.Background()
	h.mustApply(t, Transfer{Origin: bob, To: "alice", Amount: 40})

	receipt := h.mustApply(t, CreateProposal{Origin: bob, Title: "add manufacturer", Description: "allow-list globex"})
	if id := receipt.Events[0].Get("id"); id != "0" {
		t.Fatalf("proposal id = %q, want 0", id)
	}
	h.mustApply(t, Vote{Origin: bob, Proposal: 0, Support: true})
	h.mustApply(t, Vote{Origin: alice, Proposal: 0, Support: false})
	if receipt := h.apply(t, Vote{Origin: alice, Proposal: 0, Support: true}); !errors.Is(receipt.Err, governance.ErrAlreadyVoted) {
		t.Errorf("double vote err = %v, want ErrAlreadyVoted", receipt.Err)
	}

	if receipt := h.apply(t, ExecuteProposal{Origin: alice, Proposal: 0}); failure.KindOf(receipt.Err) != failure.KindVotingNotEnded {
		t.Errorf("early execute err = %v, want VotingNotEnded", receipt.Err)
	}
	h.heights.Advance(DefaultConfig().Governance.VotingPeriod)
	receipt = h.mustApply(t, ExecuteProposal{Origin: alice, Proposal: 0})
	if receipt.Events[0].Name != "governance.proposal_executed" {
		t.Errorf("events = %+v", receipt.Events)
	}

	proposal, err := h.rt.Governance.Proposal(ctx, h.rt.Store(), 0)
	if err != nil {
		t.Fatalf("Proposal: %v", err)
	}
	if proposal.VotesFor != 1960 || proposal.VotesAgainst != 40 || proposal.Status != governance.StatusExecuted {
		t.Errorf("proposal = %+v", proposal)
	}
}

func TestConservationAcrossMixedSequence(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	h.registerActive(t)

	ops := []Operation{
		Transfer{Origin: bob, To: "carol", Amount: 300},
		Transfer{Origin: origin.Signed("carol"), To: "dave", Amount: 301},
		h.telemetry(1, 12_345, 2),
		ClaimRewards{Origin: alice},
		Burn{Origin: bob, Amount: 100},
		Approve{Origin: bob, Spender: "alice", Amount: 500},
		TransferFrom{Origin: alice, Owner: "bob", To: "dave", Amount: 200},
		TransferFrom{Origin: alice, Owner: "bob", To: "dave", Amount: 301},
		Mint{Origin: root, To: "erin", Amount: 75},
		Burn{Origin: origin.Signed("erin"), Amount: 76},
		h.telemetry(2, 900, 3),
		ClaimRewards{Origin: alice},
	}
	for _, op := range ops {
		h.apply(t, op)
		h.checkConservation(t)
	}

	supply, _ := h.rt.Ledger.TotalSupply(context.Background(), h.rt.Store())
	// 2000 genesis + 120 claimed - 100 burned + 75 minted.
	if supply != 2095 {
		t.Errorf("supply = %d, want 2095", supply)
	}
}

func TestApplyBatchRunsFinalizers(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	var finalized []height.Height
	h.rt.RegisterFinalizer(finalizerFunc(func(tx *state.Tx) error {
		finalized = append(finalized, tx.Height())
		return nil
	}))

	h.heights.Advance(1)
	receipts, err := h.rt.ApplyBatch(context.Background(), []Operation{
		Transfer{Origin: bob, To: "alice", Amount: 1},
		Transfer{Origin: alice, To: "bob", Amount: 5},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(receipts) != 2 || !receipts[0].OK() || receipts[1].OK() {
		t.Errorf("receipts = %+v", receipts)
	}
	if len(finalized) != 1 || finalized[0] != 2 {
		t.Errorf("finalized at %v, want [2]", finalized)
	}

	failing := errors.New("distribution failed")
	h.rt.RegisterFinalizer(finalizerFunc(func(*state.Tx) error { return failing }))
	if _, err := h.rt.ApplyBatch(context.Background(), nil); !errors.Is(err, failing) {
		t.Errorf("ApplyBatch err = %v, want finalizer error", err)
	}
}

type finalizerFunc func(tx *state.Tx) error

func (f finalizerFunc) OnFinalize(tx *state.Tx) error { return f(tx) }

func TestGenesisRunsOnce(t *testing.T) {
	h := newHarness(t, kvstore.NewMemory())
	before := h.root(t)
	receipt := h.rt.Genesis(context.Background(), Genesis{Balances: []GenesisBalance{{Account: "mallory", Amount: 1}}})
	if !errors.Is(receipt.Err, ErrAlreadyInitialized) {
		t.Fatalf("second Genesis err = %v, want ErrAlreadyInitialized", receipt.Err)
	}
	if h.root(t) != before {
		t.Error("rejected genesis changed state")
	}
}

func TestGenesisIsAtomic(t *testing.T) {
	rt := New(kvstore.NewMemory(), height.Fixed(0), DefaultConfig())
	receipt := rt.Genesis(context.Background(), Genesis{
		Manufacturers: []string{"acme"},
		Oracles:       []GenesisOracle{{Account: "oracle-1", PublicKey: []byte{1, 2}}},
	})
	if failure.KindOf(receipt.Err) != failure.KindValidation {
		t.Fatalf("Genesis err = %v, want ValidationError", receipt.Err)
	}
	empty, err := rt.Empty(context.Background())
	if err != nil || !empty {
		t.Errorf("Empty = %v, %v after failed genesis", empty, err)
	}
}

func TestUnsupportedOperation(t *testing.T) {
	rt := New(kvstore.NewMemory(), height.Fixed(1), DefaultConfig())
	receipt := rt.Apply(context.Background(), unknownOperation{})
	if failure.KindOf(receipt.Err) != failure.KindValidation {
		t.Errorf("err = %v, want ValidationError", receipt.Err)
	}
}

type unknownOperation struct{}

func (unknownOperation) Name() string          { return "unknown" }
func (unknownOperation) Caller() origin.Caller { return origin.Root() }

func TestLastHeightAndStale(t *testing.T) {
	config := DefaultConfig()
	config.TelemetryTimeout = 5
	heights := height.NewManual(1)
	rt := New(kvstore.NewMemory(), heights, config)
	ctx := context.Background()

	rt.Genesis(ctx, Genesis{Manufacturers: []string{"acme"}, Deposits: []GenesisBalance{{Account: "alice", Amount: 100}}})
	heights.Set(3)
	rt.Apply(ctx, RegisterDevice{Origin: alice, Device: deviceID, PublicKey: make([]byte, 32), Manufacturer: "acme"})
	rt.Apply(ctx, UpdateDeviceStatus{Origin: alice, Device: deviceID, Status: registry.StatusActive})

	if last, _ := rt.LastHeight(ctx); last != 3 {
		t.Errorf("LastHeight = %d, want 3", last)
	}
	if stale, _ := rt.StaleDevices(ctx); len(stale) != 0 {
		t.Errorf("stale at height 3 = %v", stale)
	}

	heights.Set(8)
	rt.Apply(ctx, Mint{Origin: root, To: "alice", Amount: 1})
	stale, err := rt.StaleDevices(ctx)
	if err != nil {
		t.Fatalf("StaleDevices: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != deviceID {
		t.Errorf("stale at height 8 = %v, want [%s]", stale, deviceID)
	}
}

func TestSQLiteBackedRuntimeMatchesMemory(t *testing.T) {
	sqliteStore, err := kvstore.OpenSQLite(kvstore.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	persistent := newHarness(t, sqliteStore)
	memory := newHarness(t, kvstore.NewMemory())
	for _, h := range []*harness{persistent, memory} {
		h.registerActive(t)
		h.mustApply(t, h.telemetry(1, 7000, 2))
		h.mustApply(t, ClaimRewards{Origin: alice})
		h.apply(t, Transfer{Origin: alice, To: "bob", Amount: 1000})
	}
	if persistent.root(t) != memory.root(t) {
		t.Error("SQLite and in-memory runtimes diverged")
	}
	balance, _ := persistent.rt.Ledger.BalanceOf(context.Background(), sqliteStore, "alice")
	if balance != 70 {
		t.Errorf("alice balance = %d, want 70", balance)
	}
}

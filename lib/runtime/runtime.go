// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/carbonledger/lib/deposit"
	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/governance"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/state"
	"github.com/bureau-foundation/carbonledger/lib/token"
)

// PrefixSystem holds runtime bookkeeping. Its only entry is the height
// of the last committed operation.
const PrefixSystem byte = 0x00

// Config holds the parameters of every module.
type Config struct {
	Registry   registry.Params
	Oracle     oracle.Params
	Governance governance.Params
	Reward     token.RewardCalculator

	// Verifier authenticates oracle signatures. Nil means
	// oracle.Ed25519Verifier.
	Verifier oracle.SignatureVerifier

	// TelemetryTimeout is the number of heights after which an
	// active device with no telemetry is reported stale.
	TelemetryTimeout height.Height

	// Logger receives one record per applied operation. Defaults to
	// a discard logger.
	Logger *slog.Logger
}

// DefaultConfig returns every module's default parameters.
func DefaultConfig() Config {
	return Config{
		Registry:         registry.DefaultParams(),
		Oracle:           oracle.DefaultParams(),
		Governance:       governance.DefaultParams(),
		Reward:           token.RewardCalculator{RatePerKWh: 10},
		TelemetryTimeout: 1000,
	}
}

// Finalizer is invoked once after the last operation of a batch, in
// its own transaction.
type Finalizer interface {
	OnFinalize(tx *state.Tx) error
}

// Runtime composes the ledger modules over one committed store and
// applies operations to it one at a time.
type Runtime struct {
	mu      sync.Mutex
	store   kvstore.Committer
	heights height.Source
	logger  *slog.Logger
	config  Config

	Deposits   *deposit.Service
	Registry   *registry.Registry
	Oracle     *oracle.Validator
	Ledger     *token.Ledger
	Governance *governance.Engine

	finalizers []Finalizer
	lastHeight kvstore.Item[height.Height]
}

// New wires the modules together over store. heights is read once at
// the start of every operation.
func New(store kvstore.Committer, heights height.Source, config Config) *Runtime {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	deposits := deposit.New()
	devices := registry.New(config.Registry, deposits)
	ledger := token.New()
	rt := &Runtime{
		store:      store,
		heights:    heights,
		logger:     logger,
		config:     config,
		Deposits:   deposits,
		Registry:   devices,
		Oracle:     oracle.NewValidator(config.Oracle, devices, config.Reward, ledger, config.Verifier),
		Ledger:     ledger,
		Governance: governance.New(config.Governance, ledger),
		lastHeight: kvstore.NewItem[height.Height](PrefixSystem),
	}
	rt.RegisterFinalizer(ledger)
	return rt
}

// RegisterFinalizer adds a hook run by ApplyBatch.
func (r *Runtime) RegisterFinalizer(finalizer Finalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizers = append(r.finalizers, finalizer)
}

// Store returns the committed store for queries.
func (r *Runtime) Store() kvstore.Reader { return r.store }

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() Config { return r.config }

// Receipt is the outcome of one applied operation. Events is empty
// when Err is set.
type Receipt struct {
	Operation string        `json:"operation"`
	Caller    string        `json:"caller"`
	Height    height.Height `json:"height"`
	Events    []state.Event `json:"events,omitempty"`

	Err error `json:"-"`

	// Failure and FailureKind render Err for JSON output.
	Failure     string `json:"error,omitempty"`
	FailureKind string `json:"kind,omitempty"`
}

// OK reports whether the operation committed.
func (r Receipt) OK() bool { return r.Err == nil }

// Apply executes op atomically: its writes and events are committed
// together when it succeeds and discarded when it fails.
func (r *Runtime) Apply(ctx context.Context, op Operation) Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(ctx, op)
}

// ApplyBatch applies ops in order and then runs the registered
// finalizers. A failing operation does not stop the batch; a failing
// finalizer is returned as an error.
func (r *Runtime) ApplyBatch(ctx context.Context, ops []Operation) ([]Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	receipts := make([]Receipt, 0, len(ops))
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return receipts, err
		}
		receipts = append(receipts, r.apply(ctx, op))
	}

	receipt := r.atomically(ctx, "finalize", origin.Root(), func(tx *state.Tx) error {
		for _, finalizer := range r.finalizers {
			if err := finalizer.OnFinalize(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if receipt.Err != nil {
		return receipts, fmt.Errorf("finalizing batch: %w", receipt.Err)
	}
	return receipts, nil
}

func (r *Runtime) apply(ctx context.Context, op Operation) Receipt {
	return r.atomically(ctx, op.Name(), op.Caller(), func(tx *state.Tx) error {
		return r.dispatch(tx, op)
	})
}

// atomically runs fn over a fresh overlay and commits the overlay only
// if fn succeeds.
func (r *Runtime) atomically(ctx context.Context, name string, caller origin.Caller, fn func(tx *state.Tx) error) Receipt {
	receipt := Receipt{Operation: name, Caller: caller.String()}

	h, err := r.heights.Current(ctx)
	if err != nil {
		return r.finish(receipt, failure.Internal(fmt.Errorf("reading height: %w", err)))
	}
	receipt.Height = h

	overlay := kvstore.NewOverlay(r.store)
	tx := state.NewTx(ctx, overlay, h)
	if err := fn(tx); err != nil {
		return r.finish(receipt, err)
	}
	if err := r.lastHeight.Set(ctx, overlay, h); err != nil {
		return r.finish(receipt, failure.Internal(err))
	}
	if err := r.store.Commit(ctx, overlay.Changes()); err != nil {
		return r.finish(receipt, failure.Internal(fmt.Errorf("committing %s: %w", name, err)))
	}
	receipt.Events = tx.Events()
	return r.finish(receipt, nil)
}

func (r *Runtime) finish(receipt Receipt, err error) Receipt {
	if err == nil {
		r.logger.Info("operation applied",
			"operation", receipt.Operation,
			"caller", receipt.Caller,
			"height", receipt.Height,
			"events", len(receipt.Events),
		)
		return receipt
	}

	kind := failure.KindOf(err)
	receipt.Err = err
	receipt.Failure = err.Error()
	receipt.FailureKind = kind.String()

	level := slog.LevelWarn
	if kind == failure.KindInternal {
		level = slog.LevelError
	}
	r.logger.Log(context.Background(), level, "operation rejected",
		"operation", receipt.Operation,
		"caller", receipt.Caller,
		"height", receipt.Height,
		"kind", kind,
		"category", kind.Category(),
		"error", err,
	)
	return receipt
}

func (r *Runtime) dispatch(tx *state.Tx, op Operation) error {
	switch op := op.(type) {
	case RegisterDevice:
		return r.Registry.RegisterDevice(tx, op.Origin, op.Device, op.PublicKey, op.Manufacturer, op.MetadataURI)
	case UpdateDeviceStatus:
		return r.Registry.UpdateDeviceStatus(tx, op.Origin, op.Device, op.Status)
	case UpdateDeviceMetadata:
		return r.Registry.UpdateDeviceMetadata(tx, op.Origin, op.Device, op.MetadataURI)
	case RevokeDevice:
		return r.Registry.RevokeDevice(tx, op.Origin, op.Device)
	case WhitelistManufacturer:
		return r.Registry.WhitelistManufacturer(tx, op.Origin, op.Manufacturer)
	case SubmitTelemetry:
		return r.Oracle.SubmitTelemetry(tx, op.Origin, op.Submission)
	case AddOracleNode:
		return r.Oracle.AddOracleNode(tx, op.Origin, op.Account, op.PublicKey)
	case RemoveOracleNode:
		return r.Oracle.RemoveOracleNode(tx, op.Origin, op.Account)
	case Mint:
		return r.Ledger.Mint(tx, op.Origin, op.To, op.Amount)
	case Transfer:
		return r.Ledger.Transfer(tx, op.Origin, op.To, op.Amount)
	case TransferFrom:
		return r.Ledger.TransferFrom(tx, op.Origin, op.Owner, op.To, op.Amount)
	case Burn:
		return r.Ledger.Burn(tx, op.Origin, op.Amount)
	case ClaimRewards:
		return r.Ledger.ClaimRewards(tx, op.Origin)
	case Approve:
		return r.Ledger.Approve(tx, op.Origin, op.Spender, op.Amount)
	case CreateProposal:
		_, err := r.Governance.CreateProposal(tx, op.Origin, op.Title, op.Description)
		return err
	case Vote:
		return r.Governance.Vote(tx, op.Origin, op.Proposal, op.Support)
	case ExecuteProposal:
		_, err := r.Governance.ExecuteProposal(tx, op.Origin, op.Proposal)
		return err
	case Endow:
		return r.Deposits.Endow(tx, op.Origin, op.Account, op.Amount)
	default:
		return failure.Newf(failure.KindValidation, "unsupported operation %T", op)
	}
}

// LastHeight returns the height of the last committed operation, or
// zero for an empty ledger.
func (r *Runtime) LastHeight(ctx context.Context) (height.Height, error) {
	h, err := r.lastHeight.Get(ctx, r.store)
	return h, failure.Internal(err)
}

// Root returns the state root of the committed store.
func (r *Runtime) Root(ctx context.Context) (kvstore.Hash, error) {
	return kvstore.Root(ctx, r.store)
}

// Empty reports whether nothing has been committed yet.
func (r *Runtime) Empty(ctx context.Context) (bool, error) {
	empty := true
	err := r.store.Iterate(ctx, nil, func(_, _ []byte) error {
		empty = false
		return kvstore.ErrStop
	})
	if err != nil && !errors.Is(err, kvstore.ErrStop) {
		return false, failure.Internal(err)
	}
	return empty, nil
}

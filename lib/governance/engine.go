// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package governance

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
	PrefixProposals     byte = 0x30
	PrefixProposalCount byte = 0x31
	PrefixVotes         byte = 0x32
)

// BalanceReader is the engine's read-only view of token balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, reader kvstore.Reader, account schema.AccountID) (uint64, error)
}

// Engine owns proposals and votes.
type Engine struct {
	params   Params
	balances BalanceReader

	proposals kvstore.Map[uint64, Proposal]
	count     kvstore.Item[uint64]
	votes     kvstore.Map[kvstore.Pair[uint64, schema.AccountID], Vote]
	voteKey   kvstore.PairCodec[uint64, schema.AccountID]
}

// New returns an engine that gates and weights by balances.
func New(params Params, balances BalanceReader) *Engine {
	voteKey := kvstore.PairKeys[uint64, schema.AccountID](kvstore.Uint64{}, kvstore.Hashed[schema.AccountID]{})
	return &Engine{
		params:    params,
		balances:  balances,
		proposals: kvstore.NewMap[uint64, Proposal](PrefixProposals, kvstore.Uint64{}),
		count:     kvstore.NewItem[uint64](PrefixProposalCount),
		votes:     kvstore.NewMap[kvstore.Pair[uint64, schema.AccountID], Vote](PrefixVotes, voteKey),
		voteKey:   voteKey,
	}
}

// Params returns the engine's configured rules.
func (e *Engine) Params() Params { return e.params }

// CreateProposal opens a proposal for voting until the current height
// plus the voting period. The proposer must hold at least the minimum
// proposal deposit; nothing is reserved. Returns the new proposal id.
func (e *Engine) CreateProposal(tx *state.Tx, caller origin.Caller, title, description string) (uint64, error) {
	proposer, err := caller.EnsureSigned()
	if err != nil {
		return 0, err
	}
	if len(title) > e.params.MaxTitleLength {
		return 0, fmt.Errorf("%d bytes, maximum %d: %w", len(title), e.params.MaxTitleLength, ErrTitleTooLong)
	}
	if len(description) > e.params.MaxDescriptionLength {
		return 0, fmt.Errorf("%d bytes, maximum %d: %w", len(description), e.params.MaxDescriptionLength, ErrDescriptionTooLong)
	}
	ctx, store := tx.Context(), tx.Store()

	balance, err := e.balances.BalanceOf(ctx, store, proposer)
	if err != nil {
		return 0, err
	}
	if balance < e.params.MinProposalDeposit {
		return 0, fmt.Errorf("%s holds %d, needs %d: %w", proposer, balance, e.params.MinProposalDeposit, ErrInsufficientStake)
	}

	id, err := e.count.Get(ctx, store)
	if err != nil {
		return 0, failure.Internal(err)
	}
	next, err := schema.CheckedAdd(id, 1)
	if err != nil {
		return 0, err
	}
	votingEnds, err := schema.CheckedAdd(tx.Height(), e.params.VotingPeriod)
	if err != nil {
		return 0, err
	}

	proposal := Proposal{
		ID:          id,
		Proposer:    proposer,
		Title:       title,
		Description: description,
		Status:      StatusActive,
		CreatedAt:   tx.Height(),
		VotingEnds:  votingEnds,
	}
	if err := e.proposals.Set(ctx, store, id, proposal); err != nil {
		return 0, failure.Internal(err)
	}
	if err := e.count.Set(ctx, store, next); err != nil {
		return 0, failure.Internal(err)
	}

	tx.Emit("governance.proposal_created",
		state.Attr("id", id),
		state.Attr("proposer", proposer),
		state.Attr("voting_ends", votingEnds),
	)
	return id, nil
}

// Vote records the caller's vote on an open proposal. The vote's
// weight is the caller's balance now, not at proposal creation.
func (e *Engine) Vote(tx *state.Tx, caller origin.Caller, id uint64, support bool) error {
	voter, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	ctx, store := tx.Context(), tx.Store()

	proposal, err := e.Proposal(ctx, store, id)
	if err != nil {
		return err
	}
	if tx.Height() >= proposal.VotingEnds || proposal.Status != StatusActive {
		return fmt.Errorf("proposal %d closed at height %d: %w", id, proposal.VotingEnds, ErrVotingClosed)
	}

	key := kvstore.Pair[uint64, schema.AccountID]{First: id, Second: voter}
	voted, err := e.votes.Has(ctx, store, key)
	if err != nil {
		return failure.Internal(err)
	}
	if voted {
		return fmt.Errorf("%s on proposal %d: %w", voter, id, ErrAlreadyVoted)
	}

	weight, err := e.balances.BalanceOf(ctx, store, voter)
	if err != nil {
		return err
	}
	if support {
		proposal.VotesFor, err = schema.CheckedAdd(proposal.VotesFor, weight)
	} else {
		proposal.VotesAgainst, err = schema.CheckedAdd(proposal.VotesAgainst, weight)
	}
	if err != nil {
		return fmt.Errorf("tallying proposal %d: %w", id, err)
	}

	if err := e.proposals.Set(ctx, store, id, proposal); err != nil {
		return failure.Internal(err)
	}
	if err := e.votes.Set(ctx, store, key, Vote{Support: support, Weight: weight, CastAt: tx.Height()}); err != nil {
		return failure.Internal(err)
	}

	tx.Emit("governance.vote_cast",
		state.Attr("id", id),
		state.Attr("voter", voter),
		state.Attr("support", support),
		state.Attr("weight", weight),
	)
	return nil
}

// ExecuteProposal decides a proposal whose voting window has closed.
// Strictly more weight for than against executes it; anything else,
// including a tie, rejects it. Root or any signed account may call it.
func (e *Engine) ExecuteProposal(tx *state.Tx, caller origin.Caller, id uint64) (Status, error) {
	if err := caller.EnsureIdentified(); err != nil {
		return 0, err
	}
	ctx, store := tx.Context(), tx.Store()

	proposal, err := e.Proposal(ctx, store, id)
	if err != nil {
		return 0, err
	}
	if proposal.Status != StatusActive {
		return 0, fmt.Errorf("proposal %d is %s: %w", id, proposal.Status, ErrAlreadyDecided)
	}
	if tx.Height() < proposal.VotingEnds {
		return 0, fmt.Errorf("proposal %d voting ends at %d, now %d: %w", id, proposal.VotingEnds, tx.Height(), ErrVotingNotEnded)
	}

	event := "governance.proposal_rejected"
	proposal.Status = StatusRejected
	if proposal.VotesFor > proposal.VotesAgainst {
		event = "governance.proposal_executed"
		proposal.Status = StatusExecuted
	}
	if err := e.proposals.Set(ctx, store, id, proposal); err != nil {
		return 0, failure.Internal(err)
	}

	tx.Emit(event,
		state.Attr("id", id),
		state.Attr("votes_for", proposal.VotesFor),
		state.Attr("votes_against", proposal.VotesAgainst),
	)
	return proposal.Status, nil
}

// Proposal returns proposal id, or ErrProposalNotFound.
func (e *Engine) Proposal(ctx context.Context, reader kvstore.Reader, id uint64) (Proposal, error) {
	proposal, found, err := e.proposals.Get(ctx, reader, id)
	if err != nil {
		return Proposal{}, failure.Internal(err)
	}
	if !found {
		return Proposal{}, fmt.Errorf("proposal %d: %w", id, ErrProposalNotFound)
	}
	return proposal, nil
}

// Proposals returns every proposal in id order.
func (e *Engine) Proposals(ctx context.Context, reader kvstore.Reader) ([]Proposal, error) {
	var proposals []Proposal
	err := e.proposals.Walk(ctx, reader, func(_ uint64, proposal Proposal) error {
		proposals = append(proposals, proposal)
		return nil
	})
	return proposals, failure.Internal(err)
}

// ProposalCount returns the number of proposals ever created, which is
// also the next proposal id.
func (e *Engine) ProposalCount(ctx context.Context, reader kvstore.Reader) (uint64, error) {
	count, err := e.count.Get(ctx, reader)
	return count, failure.Internal(err)
}

// VoteOf returns voter's vote on proposal id, if any.
func (e *Engine) VoteOf(ctx context.Context, reader kvstore.Reader, id uint64, voter schema.AccountID) (Vote, bool, error) {
	vote, found, err := e.votes.Get(ctx, reader, kvstore.Pair[uint64, schema.AccountID]{First: id, Second: voter})
	return vote, found, failure.Internal(err)
}

// Votes returns every vote on proposal id keyed by voter.
func (e *Engine) Votes(ctx context.Context, reader kvstore.Reader, id uint64) (map[schema.AccountID]Vote, error) {
	votes := make(map[schema.AccountID]Vote)
	err := e.votes.WalkPrefix(ctx, reader, e.voteKey.Prefix(id), func(key kvstore.Pair[uint64, schema.AccountID], vote Vote) error {
		votes[key.Second] = vote
		return nil
	})
	return votes, failure.Internal(err)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// Status is a proposal's lifecycle state. Active is the only state
// with outgoing transitions.
type Status uint8

const (
	StatusActive Status = iota
	StatusExecuted
	StatusRejected
)

var statusNames = [...]string{
	StatusActive:   "active",
	StatusExecuted: "executed",
	StatusRejected: "rejected",
}

// String returns the lowercase status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("governance: cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(data []byte) error {
	for i, name := range statusNames {
		if name == string(data) {
			*s = Status(i)
			return nil
		}
	}
	return failure.Newf(failure.KindValidation, "unknown proposal status %q", data)
}

// Proposal is a stored governance proposal. Tallies are
// balance-weighted and frozen once Status leaves Active.
type Proposal struct {
	ID           uint64           `json:"id"`
	Proposer     schema.AccountID `json:"proposer"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	VotesFor     uint64           `json:"votes_for"`
	VotesAgainst uint64           `json:"votes_against"`
	Status       Status           `json:"status"`
	CreatedAt    height.Height    `json:"created_at"`
	VotingEnds   height.Height    `json:"voting_ends"`
}

// Vote is a stored vote. Its presence is the cast flag: there is at
// most one per (proposal, voter).
type Vote struct {
	Support bool          `json:"support"`
	Weight  uint64        `json:"weight"`
	CastAt  height.Height `json:"cast_at"`
}

// Params are the governance engine's configured rules.
type Params struct {
	// MinProposalDeposit is the balance a proposer must hold. It is
	// checked, not reserved.
	MinProposalDeposit uint64

	// VotingPeriod is the number of heights a proposal stays open.
	VotingPeriod height.Height

	MaxTitleLength       int
	MaxDescriptionLength int
}

// DefaultParams returns the rules used when configuration does not
// override them.
func DefaultParams() Params {
	return Params{
		MinProposalDeposit:   1000,
		VotingPeriod:         100,
		MaxTitleLength:       128,
		MaxDescriptionLength: 1024,
	}
}

var (
	ErrProposalNotFound   = failure.New(failure.KindNotFound, "proposal not found")
	ErrInsufficientStake  = failure.New(failure.KindInsufficientFunds, "balance below minimum proposal deposit")
	ErrVotingClosed       = failure.New(failure.KindVotingClosed, "voting period has ended")
	ErrVotingNotEnded     = failure.New(failure.KindVotingNotEnded, "voting period has not ended")
	ErrAlreadyVoted       = failure.New(failure.KindAlreadyVoted, "account already voted on proposal")
	ErrAlreadyDecided     = failure.New(failure.KindPolicyViolation, "proposal has already been decided")
	ErrTitleTooLong       = failure.New(failure.KindValidation, "proposal title exceeds maximum length")
	ErrDescriptionTooLong = failure.New(failure.KindValidation, "proposal description exceeds maximum length")
)

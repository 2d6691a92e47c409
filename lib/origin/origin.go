// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// ErrNotSigned is returned when an operation requires an ordinary
// signed account and the caller is root or anonymous.
var ErrNotSigned = failure.New(failure.KindUnauthorized, "caller is not a signed account")

// ErrAnonymous is returned when an operation accepts any identified
// caller, signed or root, and the caller is neither.
var ErrAnonymous = failure.New(failure.KindUnauthorized, "caller is anonymous")

// ErrNotRoot is returned when an operation requires the privileged
// root caller.
var ErrNotRoot = failure.New(failure.KindUnauthorized, "caller is not root")

// Caller is the resolved identity of whoever submitted an operation.
// The zero value is an anonymous caller that passes none of
// EnsureSigned, EnsureRoot and EnsureIdentified.
type Caller struct {
	account schema.AccountID
	root    bool
}

// Signed returns a caller acting as the given account.
func Signed(account schema.AccountID) Caller {
	return Caller{account: account}
}

// Root returns the privileged caller used for allow-list edits, oracle
// set changes, minting and genesis funding.
func Root() Caller {
	return Caller{root: true}
}

// IsRoot reports whether the caller is the privileged root.
func (c Caller) IsRoot() bool { return c.root }

// Account returns the signing account, or the zero AccountID for root
// and anonymous callers.
func (c Caller) Account() schema.AccountID { return c.account }

// EnsureSigned returns the caller's account, or ErrNotSigned if the
// caller is not an ordinary signed account.
func (c Caller) EnsureSigned() (schema.AccountID, error) {
	if c.root || c.account.IsZero() {
		return "", ErrNotSigned
	}
	return c.account, nil
}

// EnsureIdentified returns ErrAnonymous for the zero Caller. Root and
// every signed account pass.
func (c Caller) EnsureIdentified() error {
	if !c.root && c.account.IsZero() {
		return ErrAnonymous
	}
	return nil
}

// EnsureRoot returns ErrNotRoot unless the caller is root.
func (c Caller) EnsureRoot() error {
	if !c.root {
		return ErrNotRoot
	}
	return nil
}

// String renders the caller for logs: "root", "anonymous", or the
// account id.
func (c Caller) String() string {
	switch {
	case c.root:
		return "root"
	case c.account.IsZero():
		return "anonymous"
	default:
		return c.account.String()
	}
}

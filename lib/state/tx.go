// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state carries the context of a single ledger operation: the
// store it writes through, the height it executes at, and the events
// it emits.
//
// Module mutations take a *Tx as their first argument. The runtime
// creates one per operation over a fresh [kvstore.Overlay]; when the
// operation fails the Tx is dropped, taking its writes and events
// with it.
package state

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
)

// Attribute is one key/value pair attached to an event. Values are
// rendered to strings when the event is emitted so receipts print the
// same way in text and JSON.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attr builds an Attribute, formatting value with %v.
func Attr(key string, value any) Attribute {
	return Attribute{Key: key, Value: fmt.Sprint(value)}
}

// Event is an externally observable record of a committed state
// change, such as "token.transferred".
type Event struct {
	Name       string      `json:"name"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Get returns the value of the named attribute, or "" if absent.
func (e Event) Get(key string) string {
	for _, attribute := range e.Attributes {
		if attribute.Key == key {
			return attribute.Value
		}
	}
	return ""
}

// Tx is the execution context of one operation. Not safe for
// concurrent use.
type Tx struct {
	ctx    context.Context
	store  kvstore.Store
	height height.Height
	events []Event
}

// NewTx returns a Tx writing through store at height h.
func NewTx(ctx context.Context, store kvstore.Store, h height.Height) *Tx {
	return &Tx{ctx: ctx, store: store, height: h}
}

// Context returns the operation's context.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Store returns the store the operation reads and writes.
func (tx *Tx) Store() kvstore.Store { return tx.store }

// Height returns the height read at the start of the operation.
func (tx *Tx) Height() height.Height { return tx.height }

// Emit buffers an event.
func (tx *Tx) Emit(name string, attributes ...Attribute) {
	tx.events = append(tx.events, Event{Name: name, Attributes: attributes})
}

// Events returns the buffered events in emission order.
func (tx *Tx) Events() []Event { return tx.events }

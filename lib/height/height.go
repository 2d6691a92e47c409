// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package height abstracts the monotonic logical clock that orders
// ledger operations. The core never reads wall-clock time: voting
// windows, registration heights and telemetry staleness are all
// measured in heights obtained from a [Source].
//
// Production drivers use [Fixed] with the height of the batch being
// applied. Tests use [Manual] and advance it explicitly.
package height

import (
	"context"
	"sync"
)

// Height is a block-like logical time unit.
type Height = uint64

// Source returns the current height. Every operation reads it once,
// at the start of application.
type Source interface {
	Current(ctx context.Context) (Height, error)
}

// Fixed is a Source that always reports the same height.
type Fixed Height

// Current returns the fixed height.
func (f Fixed) Current(context.Context) (Height, error) {
	return Height(f), nil
}

// Manual is a Source controlled by the caller. Advance moves it
// forward; it never moves backward. Safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	current Height
}

// NewManual returns a Manual source starting at initial.
func NewManual(initial Height) *Manual {
	return &Manual{current: initial}
}

// Current returns the current height.
func (m *Manual) Current(context.Context) (Height, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

// Advance moves the height forward by delta and returns the new
// height.
func (m *Manual) Advance(delta Height) Height {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current += delta
	return m.current
}

// Set moves the height to h. Panics if h is below the current height,
// since a height source must be monotonic.
func (m *Manual) Set(h Height) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h < m.current {
		panic("height: Manual.Set would move height backward")
	}
	m.current = h
}

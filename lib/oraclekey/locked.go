// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oraclekey

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// lockedSeed holds an Ed25519 seed in anonymous mmap memory that is
// locked against swap and excluded from core dumps. The garbage
// collector never sees the region, so the seed cannot be copied around
// the heap. Close zeros and unmaps it.
type lockedSeed struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// lockSeed copies seed into a new locked region and zeros seed.
func lockSeed(seed []byte) (*lockedSeed, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("oraclekey: empty seed")
	}

	data, err := unix.Mmap(-1, 0, len(seed), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("oraclekey: mmap failed: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("oraclekey: mlock failed: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("oraclekey: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	copy(data, seed)
	zero(seed)
	return &lockedSeed{data: data}, nil
}

// use calls fn with the seed bytes while holding the lock. fn must not
// retain the slice.
func (s *lockedSeed) use(fn func(seed []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("oraclekey: key is closed")
	}
	return fn(s.data)
}

func (s *lockedSeed) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	zero(s.data)

	var firstError error
	if err := unix.Munlock(s.data); err != nil {
		firstError = fmt.Errorf("oraclekey: munlock failed: %w", err)
	}
	if err := unix.Munmap(s.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("oraclekey: munmap failed: %w", err)
	}
	s.data = nil
	return firstError
}

func zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package failure defines the ledger's caller-visible error taxonomy.
//
// Every state-transition operation either commits or returns an error
// whose chain contains a [*Error]. The [Kind] names the condition
// (NotFound, ReplayDetected, QuorumNotMet, ...) and [Kind.Category]
// groups kinds into the classes a driver acts on. Failures are never
// retried or recovered inside the core: the operation is discarded and
// the error is returned to whoever submitted it.
//
// Modules declare sentinels with [New] so callers can match either the
// precise condition or only the kind:
//
//	var ErrDeviceNotFound = failure.New(failure.KindNotFound, "device not found")
//
//	if errors.Is(err, registry.ErrDeviceNotFound) { ... }
//	if failure.KindOf(err) == failure.KindNotFound { ... }
//
// This package has no internal dependencies.
package failure

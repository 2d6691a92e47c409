// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime composes the ledger modules and applies operations
// to a committed store.
//
// Each module is wired to the others through narrow interfaces: the
// registry reserves deposits through the deposit service, the oracle
// validator reads the registry and credits rewards through the token
// ledger, and governance weighs votes by token balance. The runtime is
// the only place that knows every concrete type.
//
// [Runtime.Apply] runs one [Operation] in isolation. Writes go to a
// [kvstore.Overlay] over the committed store and are committed only if
// the operation succeeds, so a failure leaves state, and the state
// root, exactly as it was:
//
//	rt := runtime.New(store, height.NewManual(1), runtime.DefaultConfig())
//	receipt := rt.Apply(ctx, runtime.Transfer{Origin: origin.Signed("alice"), To: "bob", Amount: 10})
//	if receipt.Err != nil {
//	    // nothing was written
//	}
//
// Operations are serialized. The height is read from the configured
// [height.Source] once per operation and is the only notion of time.
package runtime

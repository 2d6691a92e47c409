// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// carbonledger binary.
//
// Version information is injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/carbonledger/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [StateFormat] versions the persisted state layout independently of
// the binary version.
package version

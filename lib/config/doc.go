// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for carbonledger
// nodes.
//
// Configuration is loaded from a single file specified by either the
// CARBONLEDGER_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file supports environment-specific sections (development,
// staging, production) that override store, log and oracle settings
// when [Config].Environment matches. Production defaults are stricter:
// signatures are verified and bound to the submitted reading, and
// count-only verification is rejected by [Config.Validate].
//
// Ledger rules (registry deposits, quorum, mint rate, governance
// windows) and the genesis state live in the same file and are
// converted with [Config.RuntimeConfig] and [Config.GenesisState].
//
// Variable expansion is performed on store.path after loading: ${HOME}
// and ${VAR:-default} patterns are expanded.
package config

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the carbonledger
// binary.
//
// A [Command] tree dispatches on the first positional argument, parses
// flags with github.com/spf13/pflag, and offers "did you mean"
// suggestions for mistyped commands and flags. Parameter structs bind
// their flags through struct tags ([FlagsFromParams]); embedding
// [JSONOutput] adds --json. [NewCommandLogger] picks a text or JSON
// slog handler depending on whether stderr is a terminal.
package cli

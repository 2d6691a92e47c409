// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the carbonledger command tree.
//
// Commands that touch state open the SQLite database named by the
// configuration (--config or $CARBONLEDGER_CONFIG), build a
// runtime.Runtime over it, and close it before returning. One process
// applies at a time; SQLite's write lock serializes concurrent apply
// invocations against the same file.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/version"
)

// Root builds and returns the complete carbonledger command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "carbonledger",
		Description: `carbonledger: permissioned ledger for carbon-capture and energy devices.

Registers devices, verifies their telemetry through an oracle quorum,
issues credits for verified energy, and lets credit holders govern by
proposal and vote. State lives in a local SQLite database.`,
		Subcommands: []*cli.Command{
			initCommand(),
			applyCommand(),
			queryCommand(),
			oracleCommand(),
			snapshotCommand(),
			cborCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("carbonledger %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Create the database and apply genesis",
				Command:     "carbonledger init --config carbonledger.yaml",
			},
			{
				Description: "Apply a batch of operations",
				Command:     "carbonledger apply ops.jsonc",
			},
			{
				Description: "Check an account",
				Command:     "carbonledger query balance alice",
			},
			{
				Description: "Sign a reading as an oracle",
				Command:     "carbonledger oracle sign --key oracle-1.age --device meter-1 --timestamp 1700000000 --co2 2500 --energy 5000",
			},
		},
	}
}

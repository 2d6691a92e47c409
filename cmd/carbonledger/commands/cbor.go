// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/codec"
)

func cborCommand() *cli.Command {
	return &cli.Command{
		Name:    "cbor",
		Summary: "Inspect CBOR-encoded state",
		Subcommands: []*cli.Command{
			cborDiagnoseCommand(),
		},
	}
}

type diagnoseParams struct {
	nodeParams
	Prefix string `json:"prefix" flag:"prefix" desc:"hex key prefix: diagnose every stored value under it (\"\" with --all)"`
	All    bool   `json:"all" flag:"all" desc:"diagnose every stored value"`
}

func cborDiagnoseCommand() *cli.Command {
	var params diagnoseParams

	return &cli.Command{
		Name:    "diagnose",
		Summary: "Print CBOR diagnostic notation",
		Description: `Print RFC 8949 Extended Diagnostic Notation for CBOR values.

Without --prefix or --all, reads CBOR from stdin; a CBOR sequence prints
one line per item. With --prefix, reads every value stored under the key
prefix from the state database and prints "key-hex  notation" lines.
State regions are one-byte prefixes: 01 devices, 10 oracle nodes,
12 telemetry reports, 21 balances, 30 proposals, 40 deposits.`,
		Usage: "carbonledger cbor diagnose [--prefix <hex> | --all] [flags]",
		Examples: []cli.Example{
			{
				Description: "Show every stored device record",
				Command:     "carbonledger cbor diagnose --prefix 01",
			},
			{
				Description: "Diagnose a snapshot file's envelope",
				Command:     "carbonledger cbor diagnose < ledger.snap",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("diagnose", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("diagnose takes no positional arguments, got %q", args[0])
			}
			if params.Prefix == "" && !params.All {
				return diagnoseStream(os.Stdin, os.Stdout)
			}
			return runDiagnoseStore(ctx, params, os.Stdout)
		},
	}
}

func runDiagnoseStore(ctx context.Context, params diagnoseParams, w io.Writer) error {
	prefix, err := hex.DecodeString(params.Prefix)
	if err != nil {
		return fmt.Errorf("--prefix: %w", err)
	}

	ledger, err := openNode(ctx, params.nodeParams)
	if err != nil {
		return err
	}
	defer ledger.Close()

	return ledger.runtime.Store().Iterate(ctx, prefix, func(key, value []byte) error {
		notation, err := codec.Diagnose(value)
		if err != nil {
			return fmt.Errorf("diagnose value at key %x: %w", key, err)
		}
		_, err = fmt.Fprintf(w, "%x  %s\n", key, notation)
		return err
	})
}

// diagnoseStream reads CBOR from r and writes diagnostic notation to w,
// one line per item of a CBOR sequence.
func diagnoseStream(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty input: expected CBOR data on stdin")
	}

	remaining := data
	for len(remaining) > 0 {
		notation, rest, err := codec.DiagnoseFirst(remaining)
		if err != nil {
			offset := len(data) - len(remaining)
			return fmt.Errorf("diagnose CBOR at byte %d: %w", offset, err)
		}
		if _, err := fmt.Fprintln(w, notation); err != nil {
			return err
		}
		remaining = rest
	}
	return nil
}

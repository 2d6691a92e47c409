// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/batch"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/runtime"
)

type initParams struct {
	nodeParams
	cli.JSONOutput
}

// applyResult is the --json output of init and apply.
type applyResult struct {
	Height   height.Height     `json:"height"`
	Root     string            `json:"root"`
	Receipts []runtime.Receipt `json:"receipts"`
	Rejected int               `json:"rejected"`
}

func initCommand() *cli.Command {
	var params initParams

	return &cli.Command{
		Name:    "init",
		Summary: "Create the state database and apply genesis",
		Description: `Create the SQLite state database named by store.path and apply the
genesis section of the configuration in a single transaction: allow-listed
manufacturers, oracle nodes, deposit endowments and initial credit
balances. Fails if the database already holds state.`,
		Usage: "carbonledger init [flags]",
		Examples: []cli.Example{
			{
				Description: "Initialize a development ledger",
				Command:     "carbonledger init --config ./carbonledger.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("init", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runInit(ctx, params, os.Stdout)
		},
	}
}

func runInit(ctx context.Context, params initParams, w io.Writer) error {
	ledger, err := openNode(ctx, params.nodeParams)
	if err != nil {
		return err
	}
	defer ledger.Close()

	genesis, err := ledger.config.GenesisState()
	if err != nil {
		return err
	}
	receipt := ledger.runtime.Genesis(ctx, genesis)
	if receipt.Err != nil {
		return fmt.Errorf("applying genesis: %w", receipt.Err)
	}
	return writeReceipts(ctx, w, ledger, params.JSONOutput, []runtime.Receipt{receipt})
}

type applyParams struct {
	nodeParams
	cli.JSONOutput
}

func applyCommand() *cli.Command {
	var params applyParams

	return &cli.Command{
		Name:    "apply",
		Summary: "Apply a batch of operations",
		Description: `Apply the operations in a JSONC batch file, in order, at one height.
The height is the batch's "height" field, or one past the last committed
height when absent. Each operation commits on its own; a rejected
operation leaves no trace in state. Finalize hooks run after the last
operation.

Prints one receipt per operation and the new state root. Exits 1 if any
operation was rejected.`,
		Usage: "carbonledger apply <batch.jsonc> [flags]",
		Examples: []cli.Example{
			{
				Description: "Apply a batch and print receipts",
				Command:     "carbonledger apply ./ops/day-12.jsonc",
			},
			{
				Description: "Apply from stdin with JSON receipts",
				Command:     "carbonledger apply - --json < ops.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("apply", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("apply takes exactly one batch file (or - for stdin)")
			}
			return runApply(ctx, params, args[0], os.Stdin, os.Stdout)
		},
	}
}

func runApply(ctx context.Context, params applyParams, path string, stdin io.Reader, w io.Writer) error {
	var file *batch.File
	var err error
	if path == "-" {
		data, readErr := io.ReadAll(stdin)
		if readErr != nil {
			return fmt.Errorf("reading stdin: %w", readErr)
		}
		file, err = batch.Parse(data)
	} else {
		file, err = batch.ReadFile(path)
	}
	if err != nil {
		return err
	}
	operations, err := file.Operations()
	if err != nil {
		return fmt.Errorf("invalid batch:\n%w", err)
	}

	ledger, err := openNode(ctx, params.nodeParams)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.requireInitialized(ctx); err != nil {
		return err
	}

	last, err := ledger.runtime.LastHeight(ctx)
	if err != nil {
		return err
	}
	next := last + 1
	if file.Height != nil {
		if *file.Height <= last {
			return fmt.Errorf("batch height %d is not after the last committed height %d", *file.Height, last)
		}
		next = *file.Height
	}
	ledger.heights.Set(next)

	ledger.logger.Info("applying batch", "operations", len(operations), "height", next)
	receipts, err := ledger.runtime.ApplyBatch(ctx, operations)
	if writeErr := writeReceipts(ctx, w, ledger, params.JSONOutput, receipts); writeErr != nil {
		return writeErr
	}
	if err != nil {
		return err
	}
	for _, receipt := range receipts {
		if !receipt.OK() {
			return &cli.ExitError{Code: 1}
		}
	}
	return nil
}

func writeReceipts(ctx context.Context, w io.Writer, ledger *node, output cli.JSONOutput, receipts []runtime.Receipt) error {
	root, err := ledger.runtime.Root(ctx)
	if err != nil {
		return err
	}
	last, err := ledger.runtime.LastHeight(ctx)
	if err != nil {
		return err
	}

	result := applyResult{Height: last, Root: root.String(), Receipts: receipts}
	for _, receipt := range receipts {
		if !receipt.OK() {
			result.Rejected++
		}
	}
	if done, err := output.EmitJSON(w, result); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tOPERATION\tCALLER\tRESULT\n")
	for i, receipt := range receipts {
		outcome := "ok"
		if !receipt.OK() {
			outcome = fmt.Sprintf("%s: %s", receipt.FailureKind, receipt.Failure)
		} else if len(receipt.Events) > 0 {
			names := make([]string, len(receipt.Events))
			for j, event := range receipt.Events {
				names[j] = event.Name
			}
			outcome = "ok (" + strings.Join(names, ", ") + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, receipt.Operation, receipt.Caller, outcome)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\nheight %d, root %s, %d of %d rejected\n", result.Height, result.Root, result.Rejected, len(receipts))
	return err
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/snapshot"
)

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Export or import the whole ledger state",
		Description: `A snapshot is a CBOR envelope holding every key-value entry of the
state, compressed with zstd or lz4, together with the state root. Import
recomputes the root before writing anything and refuses a non-empty
database.`,
		Subcommands: []*cli.Command{
			snapshotExportCommand(),
			snapshotImportCommand(),
			snapshotInfoCommand(),
		},
	}
}

type exportParams struct {
	nodeParams
	cli.JSONOutput
	Compression string `json:"compression" flag:"compression" default:"zstd" desc:"payload compression: zstd, lz4 or none"`
}

func snapshotExportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Write a snapshot of the committed state",
		Usage:   "carbonledger snapshot export <file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Export with zstd",
				Command:     "carbonledger snapshot export ledger-1200.snap",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("export", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: carbonledger snapshot export <file>")
			}
			return runExport(ctx, params, args[0], os.Stdout)
		},
	}
}

func runExport(ctx context.Context, params exportParams, path string, w io.Writer) error {
	algorithm, err := snapshot.ParseCompression(params.Compression)
	if err != nil {
		return fmt.Errorf("--compression: %w", err)
	}

	ledger, err := openNode(ctx, params.nodeParams)
	if err != nil {
		return err
	}
	defer ledger.Close()

	last, err := ledger.runtime.LastHeight(ctx)
	if err != nil {
		return err
	}
	data, header, err := snapshot.Export(ctx, ledger.runtime.Store(), last, algorithm)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	ledger.logger.Info("snapshot exported", "path", path, "height", header.Height, "entries", header.Entries, "bytes", len(data))
	return writeHeader(w, params.JSONOutput, header)
}

type importParams struct {
	nodeParams
	cli.JSONOutput
}

func snapshotImportCommand() *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Load a snapshot into an empty database",
		Usage:   "carbonledger snapshot import <file> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("import", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: carbonledger snapshot import <file>")
			}
			return runImport(ctx, params, args[0], os.Stdout)
		},
	}
}

func runImport(ctx context.Context, params importParams, path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ledger, err := openNode(ctx, params.nodeParams)
	if err != nil {
		return err
	}
	defer ledger.Close()

	header, err := snapshot.Import(ctx, data, ledger.store)
	if err != nil {
		return err
	}
	ledger.logger.Info("snapshot imported", "path", path, "height", header.Height, "entries", header.Entries)
	return writeHeader(w, params.JSONOutput, header)
}

type infoParams struct {
	cli.JSONOutput
}

func snapshotInfoCommand() *cli.Command {
	var params infoParams

	return &cli.Command{
		Name:    "info",
		Summary: "Show a snapshot's header",
		Usage:   "carbonledger snapshot info <file> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("info", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: carbonledger snapshot info <file>")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			header, err := snapshot.ReadHeader(data)
			if err != nil {
				return err
			}
			return writeHeader(os.Stdout, params.JSONOutput, header)
		},
	}
}

// headerOutput renders a snapshot header for --json.
type headerOutput struct {
	Format      int    `json:"format"`
	Height      uint64 `json:"height"`
	Root        string `json:"root"`
	Entries     int    `json:"entries"`
	Compression string `json:"compression"`
	Size        int    `json:"size"`
	CreatedBy   string `json:"created_by"`
}

func writeHeader(w io.Writer, output cli.JSONOutput, header snapshot.Header) error {
	rendered := headerOutput{
		Format:      header.Format,
		Height:      header.Height,
		Root:        header.Root.String(),
		Entries:     header.Entries,
		Compression: string(header.Compression),
		Size:        header.Size,
		CreatedBy:   header.CreatedBy,
	}
	if done, err := output.EmitJSON(w, rendered); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "format\t%d\n", rendered.Format)
	fmt.Fprintf(tw, "height\t%d\n", rendered.Height)
	fmt.Fprintf(tw, "root\t%s\n", rendered.Root)
	fmt.Fprintf(tw, "entries\t%d\n", rendered.Entries)
	fmt.Fprintf(tw, "compression\t%s\n", rendered.Compression)
	fmt.Fprintf(tw, "size\t%d\n", rendered.Size)
	fmt.Fprintf(tw, "created by\t%s\n", rendered.CreatedBy)
	return tw.Flush()
}

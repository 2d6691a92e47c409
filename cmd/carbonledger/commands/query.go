// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/governance"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

type queryParams struct {
	nodeParams
	cli.JSONOutput
}

// queryFunc answers one query against an opened ledger.
type queryFunc func(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:    "query",
		Aliases: []string{"q"},
		Summary: "Read committed ledger state",
		Description: `Read committed state. Queries never modify the database and may run
while another process applies batches.`,
		Subcommands: []*cli.Command{
			querySubcommand("device", "Show one device", "carbonledger query device <device-id>", 1, queryDevice),
			querySubcommand("devices", "List devices, optionally by owner", "carbonledger query devices [owner]", -1, queryDevices),
			querySubcommand("reports", "List verified telemetry reports of a device", "carbonledger query reports <device-id>", 1, queryReports),
			querySubcommand("balance", "Show credit, pending reward and deposit balances", "carbonledger query balance <account>", 1, queryBalance),
			querySubcommand("supply", "Show total credit supply", "carbonledger query supply", 0, querySupply),
			querySubcommand("allowance", "Show a spending allowance", "carbonledger query allowance <owner> <spender>", 2, queryAllowance),
			querySubcommand("oracles", "List registered oracle nodes", "carbonledger query oracles", 0, queryOracles),
			querySubcommand("proposal", "Show one proposal and its votes", "carbonledger query proposal <id>", 1, queryProposal),
			querySubcommand("proposals", "List proposals", "carbonledger query proposals", 0, queryProposals),
			querySubcommand("stats", "Summarize the ledger", "carbonledger query stats", 0, queryStats),
			querySubcommand("stale", "List active devices without recent telemetry", "carbonledger query stale", 0, queryStale),
		},
	}
}

// querySubcommand builds a query command. arity is the exact number of
// positional arguments, or -1 for "zero or one".
func querySubcommand(name, summary, usage string, arity int, query queryFunc) *cli.Command {
	var params queryParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage + " [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams(name, &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if arity >= 0 && len(args) != arity {
				return fmt.Errorf("usage: %s", usage)
			}
			if arity < 0 && len(args) > 1 {
				return fmt.Errorf("usage: %s", usage)
			}
			return runQuery(ctx, params, args, os.Stdout, query)
		},
	}
}

func runQuery(ctx context.Context, params queryParams, args []string, w io.Writer, query queryFunc) error {
	ledger, err := openNode(ctx, params.nodeParams)
	if err != nil {
		return err
	}
	defer ledger.Close()
	return query(ctx, ledger, ledger.runtime.Store(), args, params.JSONOutput, w)
}

func queryDevice(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error {
	id, err := parseDeviceID(args[0])
	if err != nil {
		return err
	}
	device, err := ledger.runtime.Registry.Device(ctx, store, id)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, device); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", device.ID)
	fmt.Fprintf(tw, "owner\t%s\n", device.Owner)
	fmt.Fprintf(tw, "status\t%s\n", device.Status)
	fmt.Fprintf(tw, "manufacturer\t%s\n", device.Manufacturer)
	fmt.Fprintf(tw, "metadata\t%s\n", device.MetadataURI)
	fmt.Fprintf(tw, "public key\t%s\n", device.PublicKey)
	fmt.Fprintf(tw, "deposit\t%d\n", device.Deposit)
	fmt.Fprintf(tw, "registered at\t%d\n", device.RegisteredAt)
	fmt.Fprintf(tw, "last telemetry at\t%d\n", device.LastTelemetryAt)
	return tw.Flush()
}

func queryDevices(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error {
	var devices []registry.Device
	if len(args) == 1 {
		owner, err := schema.ParseAccountID(args[0])
		if err != nil {
			return err
		}
		ids, err := ledger.runtime.Registry.DevicesByOwner(ctx, store, owner)
		if err != nil {
			return err
		}
		for _, id := range ids {
			device, err := ledger.runtime.Registry.Device(ctx, store, id)
			if err != nil {
				return err
			}
			devices = append(devices, device)
		}
	} else {
		err := ledger.runtime.Registry.WalkDevices(ctx, store, func(device registry.Device) error {
			devices = append(devices, device)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return writeDevices(w, output, devices)
}

func queryStale(ctx context.Context, ledger *node, _ kvstore.Reader, _ []string, output cli.JSONOutput, w io.Writer) error {
	devices, err := ledger.runtime.StaleDevices(ctx)
	if err != nil {
		return err
	}
	return writeDevices(w, output, devices)
}

func writeDevices(w io.Writer, output cli.JSONOutput, devices []registry.Device) error {
	if done, err := output.EmitJSON(w, devices); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "DEVICE\tOWNER\tSTATUS\tMANUFACTURER\tLAST TELEMETRY\n")
	for _, device := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", device.ID, device.Owner, device.Status, device.Manufacturer, device.LastTelemetryAt)
	}
	return tw.Flush()
}

func queryReports(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error {
	id, err := parseDeviceID(args[0])
	if err != nil {
		return err
	}
	reports, err := ledger.runtime.Oracle.Reports(ctx, store, id)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, reports); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SEQ\tHEIGHT\tTIMESTAMP\tCO2 (g)\tENERGY (Wh)\tREWARD\tSIGNERS\tNONCE\n")
	for _, report := range reports {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			report.Sequence, report.SubmittedAt, report.Timestamp, report.CO2Grams,
			report.EnergyWh, report.Reward, len(report.Signatures), report.Nonce)
	}
	return tw.Flush()
}

// accountBalances is the output of "query balance".
type accountBalances struct {
	Account         schema.AccountID `json:"account"`
	Balance         uint64           `json:"balance"`
	PendingRewards  uint64           `json:"pending_rewards"`
	DepositFree     uint64           `json:"deposit_free"`
	DepositReserved uint64           `json:"deposit_reserved"`
	Devices         int              `json:"devices"`
}

func queryBalance(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error {
	account, err := schema.ParseAccountID(args[0])
	if err != nil {
		return err
	}
	rt := ledger.runtime
	result := accountBalances{Account: account}
	if result.Balance, err = rt.Ledger.BalanceOf(ctx, store, account); err != nil {
		return err
	}
	if result.PendingRewards, err = rt.Ledger.PendingRewards(ctx, store, account); err != nil {
		return err
	}
	if result.DepositFree, err = rt.Deposits.Free(ctx, store, account); err != nil {
		return err
	}
	if result.DepositReserved, err = rt.Deposits.Reserved(ctx, store, account); err != nil {
		return err
	}
	devices, err := rt.Registry.DevicesByOwner(ctx, store, account)
	if err != nil {
		return err
	}
	result.Devices = len(devices)

	if done, err := output.EmitJSON(w, result); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "account\t%s\n", result.Account)
	fmt.Fprintf(tw, "balance\t%d\n", result.Balance)
	fmt.Fprintf(tw, "pending rewards\t%d\n", result.PendingRewards)
	fmt.Fprintf(tw, "deposit free\t%d\n", result.DepositFree)
	fmt.Fprintf(tw, "deposit reserved\t%d\n", result.DepositReserved)
	fmt.Fprintf(tw, "devices\t%d\n", result.Devices)
	return tw.Flush()
}

func querySupply(ctx context.Context, ledger *node, store kvstore.Reader, _ []string, output cli.JSONOutput, w io.Writer) error {
	supply, err := ledger.runtime.Ledger.TotalSupply(ctx, store)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, map[string]uint64{"total_supply": supply}); done {
		return err
	}
	_, err = fmt.Fprintln(w, supply)
	return err
}

func queryAllowance(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error {
	owner, err := schema.ParseAccountID(args[0])
	if err != nil {
		return err
	}
	spender, err := schema.ParseAccountID(args[1])
	if err != nil {
		return err
	}
	amount, err := ledger.runtime.Ledger.Allowance(ctx, store, owner, spender)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, map[string]any{"owner": owner, "spender": spender, "allowance": amount}); done {
		return err
	}
	_, err = fmt.Fprintln(w, amount)
	return err
}

func queryOracles(ctx context.Context, ledger *node, store kvstore.Reader, _ []string, output cli.JSONOutput, w io.Writer) error {
	nodes, err := ledger.runtime.Oracle.Nodes(ctx, store)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, nodes); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ACCOUNT\tADDED AT\tPUBLIC KEY\n")
	for _, oracleNode := range nodes {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", oracleNode.Account, oracleNode.AddedAt, nodeKey(oracleNode))
	}
	return tw.Flush()
}

func nodeKey(oracleNode oracle.Node) string {
	if oracleNode.PublicKey == nil {
		return "-"
	}
	return oracleNode.PublicKey.String()
}

// proposalDetail is the output of "query proposal".
type proposalDetail struct {
	governance.Proposal
	Votes map[schema.AccountID]governance.Vote `json:"votes"`
}

func queryProposal(ctx context.Context, ledger *node, store kvstore.Reader, args []string, output cli.JSONOutput, w io.Writer) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("proposal id %q: %w", args[0], err)
	}
	proposal, err := ledger.runtime.Governance.Proposal(ctx, store, id)
	if err != nil {
		return err
	}
	votes, err := ledger.runtime.Governance.Votes(ctx, store, id)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, proposalDetail{Proposal: proposal, Votes: votes}); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%d\n", proposal.ID)
	fmt.Fprintf(tw, "title\t%s\n", proposal.Title)
	fmt.Fprintf(tw, "proposer\t%s\n", proposal.Proposer)
	fmt.Fprintf(tw, "status\t%s\n", proposal.Status)
	fmt.Fprintf(tw, "votes for\t%d\n", proposal.VotesFor)
	fmt.Fprintf(tw, "votes against\t%d\n", proposal.VotesAgainst)
	fmt.Fprintf(tw, "created at\t%d\n", proposal.CreatedAt)
	fmt.Fprintf(tw, "voting ends\t%d\n", proposal.VotingEnds)
	if err := tw.Flush(); err != nil {
		return err
	}
	if proposal.Description != "" {
		fmt.Fprintf(w, "\n%s\n", proposal.Description)
	}
	if len(votes) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "VOTER\tSUPPORT\tWEIGHT\tHEIGHT\n")
		for voter, vote := range sortedVotes(votes) {
			fmt.Fprintf(tw, "%s\t%t\t%d\t%d\n", voter, vote.Support, vote.Weight, vote.CastAt)
		}
		return tw.Flush()
	}
	return nil
}

func sortedVotes(votes map[schema.AccountID]governance.Vote) iter.Seq2[schema.AccountID, governance.Vote] {
	return func(yield func(schema.AccountID, governance.Vote) bool) {
		for _, voter := range slices.Sorted(maps.Keys(votes)) {
			if !yield(voter, votes[voter]) {
				return
			}
		}
	}
}

func queryProposals(ctx context.Context, ledger *node, store kvstore.Reader, _ []string, output cli.JSONOutput, w io.Writer) error {
	proposals, err := ledger.runtime.Governance.Proposals(ctx, store)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, proposals); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tSTATUS\tFOR\tAGAINST\tENDS\tTITLE\n")
	for _, proposal := range proposals {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n",
			proposal.ID, proposal.Status, proposal.VotesFor, proposal.VotesAgainst, proposal.VotingEnds, proposal.Title)
	}
	return tw.Flush()
}

func queryStats(ctx context.Context, ledger *node, _ kvstore.Reader, _ []string, output cli.JSONOutput, w io.Writer) error {
	stats, err := ledger.runtime.Stats(ctx)
	if err != nil {
		return err
	}
	if done, err := output.EmitJSON(w, stats); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "height\t%d\n", stats.Height)
	fmt.Fprintf(tw, "total supply\t%d\n", stats.TotalSupply)
	fmt.Fprintf(tw, "holders\t%d\n", stats.Holders)
	fmt.Fprintf(tw, "devices\t%d (%d active)\n", stats.Devices, stats.ActiveDevices)
	fmt.Fprintf(tw, "oracle nodes\t%d\n", stats.OracleNodes)
	fmt.Fprintf(tw, "reports\t%d\n", stats.Reports)
	fmt.Fprintf(tw, "co2 captured (g)\t%d\n", stats.TotalCO2Grams)
	fmt.Fprintf(tw, "energy (Wh)\t%d\n", stats.TotalEnergyWh)
	fmt.Fprintf(tw, "proposals\t%d\n", stats.Proposals)
	return tw.Flush()
}

func parseDeviceID(raw string) (schema.DeviceID, error) {
	id := schema.DeviceID(raw)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

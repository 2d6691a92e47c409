// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/batch"
	"github.com/bureau-foundation/carbonledger/lib/oraclekey"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

func oracleCommand() *cli.Command {
	return &cli.Command{
		Name:    "oracle",
		Summary: "Manage oracle signing keys",
		Description: `Generate Ed25519 oracle signing keys and sign telemetry readings.

Keys are sealed at rest with age, either to one or more age X25519
recipients or to a passphrase read from the terminal. The printed public
key goes into an add_oracle_node operation or the genesis oracle list.`,
		Subcommands: []*cli.Command{
			oracleKeygenCommand(),
			oracleSignCommand(),
		},
	}
}

type keygenParams struct {
	cli.JSONOutput
	Account    string   `json:"account" flag:"account" required:"true" desc:"oracle account the key signs for"`
	Out        string   `json:"out" flag:"out,o" desc:"sealed key file to create (default: <account>.age)"`
	Recipients []string `json:"recipients" flag:"recipient,r" desc:"age X25519 recipient (repeatable); prompts for a passphrase when absent"`
}

// keygenResult is the output of "oracle keygen".
type keygenResult struct {
	Account   schema.AccountID `json:"account"`
	PublicKey schema.PublicKey `json:"public_key"`
	Path      string           `json:"path"`
}

func oracleKeygenCommand() *cli.Command {
	var params keygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a sealed oracle signing key",
		Usage:   "carbonledger oracle keygen --account <account> [flags]",
		Examples: []cli.Example{
			{
				Description: "Seal a new key to an operator's age key",
				Command:     "carbonledger oracle keygen --account oracle-eu-1 --recipient age1...",
			},
			{
				Description: "Seal with a passphrase",
				Command:     "carbonledger oracle keygen --account oracle-eu-1 --out /etc/carbonledger/oracle.age",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runKeygen(params, terminalPassphrase(true), os.Stdout, logger)
		},
	}
}

// passphraseSource returns a sealing or opening passphrase.
type passphraseSource func() ([]byte, error)

func runKeygen(params keygenParams, passphrase passphraseSource, w io.Writer, logger *slog.Logger) error {
	account, err := schema.ParseAccountID(params.Account)
	if err != nil {
		return fmt.Errorf("--account: %w", err)
	}
	path := params.Out
	if path == "" {
		path = string(account) + ".age"
	}

	key, err := oraclekey.Generate(account)
	if err != nil {
		return err
	}
	defer key.Close()

	var sealed []byte
	if len(params.Recipients) > 0 {
		sealed, err = oraclekey.SealTo(key, params.Recipients)
	} else {
		secret, promptErr := passphrase()
		if promptErr != nil {
			return promptErr
		}
		sealed, err = oraclekey.SealWithPassphrase(key, secret)
		clear(secret)
	}
	if err != nil {
		return err
	}
	if err := oraclekey.WriteFile(path, sealed); err != nil {
		return err
	}
	logger.Info("oracle key written", "account", account, "path", path, "recipients", len(params.Recipients))

	result := keygenResult{Account: account, PublicKey: key.PublicKey(), Path: path}
	if done, err := params.EmitJSON(w, result); done {
		return err
	}
	_, err = fmt.Fprintf(w, "account     %s\npublic key  %s\nsealed to   %s\n", result.Account, result.PublicKey, result.Path)
	return err
}

type signParams struct {
	cli.JSONOutput
	Key       string `json:"key" flag:"key,k" required:"true" desc:"sealed oracle key file"`
	Identity  string `json:"identity" flag:"identity,i" desc:"age identity file; prompts for a passphrase when absent"`
	Device    string `json:"device" flag:"device" required:"true" desc:"device id"`
	Timestamp uint64 `json:"timestamp" flag:"timestamp" desc:"reading timestamp"`
	CO2Grams  uint64 `json:"co2_grams" flag:"co2" desc:"captured CO2 in grams"`
	EnergyWh  uint64 `json:"energy_wh" flag:"energy" desc:"produced energy in Wh"`
}

// signResult is the output of "oracle sign": the data hash and one
// entry of a submit_telemetry operation's signature list.
type signResult struct {
	DataHash  schema.Digest        `json:"data_hash"`
	Signature batch.SignatureEntry `json:"signature"`
}

func oracleSignCommand() *cli.Command {
	var params signParams

	return &cli.Command{
		Name:    "sign",
		Summary: "Sign a telemetry reading",
		Description: `Compute the canonical digest of a telemetry reading (SHA-256 over
"device:timestamp:co2:energy") and sign it with a sealed oracle key. The
output is the data hash and a signature entry ready to paste into a
submit_telemetry operation.`,
		Usage: "carbonledger oracle sign --key <file> --device <id> --timestamp <t> --co2 <g> --energy <wh> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("sign", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runSign(params, terminalPassphrase(false), os.Stdout)
		},
	}
}

func runSign(params signParams, passphrase passphraseSource, w io.Writer) error {
	if params.Key == "" {
		return fmt.Errorf("--key is required")
	}
	device, err := parseDeviceID(params.Device)
	if err != nil {
		return fmt.Errorf("--device: %w", err)
	}
	sealed, err := os.ReadFile(params.Key)
	if err != nil {
		return err
	}

	var key *oraclekey.Key
	if params.Identity != "" {
		identities, err := oraclekey.ParseIdentities(params.Identity)
		if err != nil {
			return err
		}
		key, err = oraclekey.Open(sealed, identities...)
		if err != nil {
			return err
		}
	} else {
		secret, err := passphrase()
		if err != nil {
			return err
		}
		key, err = oraclekey.OpenWithPassphrase(sealed, secret)
		clear(secret)
		if err != nil {
			return err
		}
	}
	defer key.Close()

	digest, signature, err := key.SignReading(device, params.Timestamp, params.CO2Grams, params.EnergyWh)
	if err != nil {
		return err
	}
	result := signResult{
		DataHash: digest,
		Signature: batch.SignatureEntry{
			Signer:    string(signature.Signer),
			Signature: signature.Signature.String(),
		},
	}
	if done, err := params.EmitJSON(w, result); done {
		return err
	}
	_, err = fmt.Fprintf(w, "data_hash  %s\nsigner     %s\nsignature  %s\n", result.DataHash, result.Signature.Signer, result.Signature.Signature)
	return err
}

// terminalPassphrase prompts on stderr and reads without echo. confirm
// asks twice and requires both entries to match.
func terminalPassphrase(confirm bool) passphraseSource {
	return func() ([]byte, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return nil, fmt.Errorf("passphrase prompt needs a terminal on stdin; use an age recipient or identity file instead")
		}
		fmt.Fprint(os.Stderr, "Passphrase: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		if len(first) == 0 {
			return nil, fmt.Errorf("passphrase is empty")
		}
		if !confirm {
			return first, nil
		}
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			clear(first)
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		defer clear(second)
		if !bytes.Equal(first, second) {
			clear(first)
			return nil, fmt.Errorf("passphrases do not match")
		}
		return first, nil
	}
}

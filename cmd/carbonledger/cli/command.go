// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// HelpOutput receives help text printed during dispatch.
var HelpOutput io.Writer = os.Stderr

// Command is one node of the command tree. A leaf sets Run; a group
// sets Subcommands.
type Command struct {
	Name    string
	Aliases []string

	// Summary is the one-line description listed under the parent.
	Summary string

	// Description is shown at the top of the command's own help. Falls
	// back to Summary.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags builds the command's flag set. It is called once per parse
	// and once per help rendering, so it must return a fresh set bound
	// to the same params struct each time.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing
	// and a logger carrying the command path.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	parent *Command
}

// Example is one entry of a command's help examples.
type Example struct {
	Description string
	Command     string
}

// UsageError reports a command line that could not be dispatched:
// unknown command, unknown flag or a missing subcommand.
type UsageError struct {
	Command    string
	Problem    string
	Suggestion string
}

func (e *UsageError) Error() string {
	var message strings.Builder
	message.WriteString(e.Problem)
	if e.Suggestion != "" {
		fmt.Fprintf(&message, " (did you mean %s?)", e.Suggestion)
	}
	fmt.Fprintf(&message, "\n\nRun '%s --help' for usage.", e.Command)
	return message.String()
}

// Execute dispatches args through the tree rooted at c.
func (c *Command) Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(HelpOutput)
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub := c.lookup(args[0])
		if sub == nil {
			return c.unknownCommand(args[0])
		}
		sub.parent = c
		return sub.Execute(ctx, args[1:], logger)
	}

	if c.Run == nil {
		c.PrintHelp(HelpOutput)
		problem := "subcommand required"
		if len(args) > 0 {
			problem = fmt.Sprintf("subcommand required (got flag %q)", args[0])
		}
		return &UsageError{Command: c.fullName(), Problem: problem}
	}

	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(ctx, positional, logger.With("command", c.path()))
}

func (c *Command) lookup(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name || slices.Contains(sub.Aliases, name) {
			return sub
		}
	}
	return nil
}

func (c *Command) unknownCommand(name string) error {
	names := make([]string, 0, len(c.Subcommands))
	for _, sub := range c.Subcommands {
		names = append(names, sub.Name)
	}
	usageErr := &UsageError{Command: c.fullName(), Problem: fmt.Sprintf("unknown command %q", name)}
	if closest := closestName(name, names); closest != "" {
		usageErr.Suggestion = fmt.Sprintf("%q", closest)
	}
	return usageErr
}

// parseFlags parses args against the command's flag set and returns the
// remaining positional arguments.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		usageErr := &UsageError{Command: c.fullName(), Problem: err.Error()}
		if strings.Contains(err.Error(), "unknown flag") || strings.Contains(err.Error(), "unknown shorthand flag") {
			usageErr.Suggestion = suggestFlag(args, c.Flags())
		}
		return nil, usageErr
	}
	if missing := missingRequired(flagSet); len(missing) > 0 {
		return nil, &UsageError{
			Command: c.fullName(),
			Problem: "required flag(s) not set: " + strings.Join(missing, ", "),
		}
	}
	return flagSet.Args(), nil
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		usage = name + " [flags]"
		if len(c.Subcommands) > 0 {
			usage = name + " <command> [flags]"
		}
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", usage)

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			label := sub.Name
			if len(sub.Aliases) > 0 {
				label += " (" + strings.Join(sub.Aliases, ", ") + ")"
			}
			fmt.Fprintf(tw, "  %s\t%s\n", label, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		if defaults := c.Flags().FlagUsages(); defaults != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for i, example := range c.Examples {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName is the command line that reaches c, e.g. "carbonledger
// query balance".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

// path is the slash-separated command path below the root, used as the
// "command" log attribute: "query/balance".
func (c *Command) path() string {
	switch {
	case c.parent == nil, c.parent.parent == nil:
		return c.Name
	default:
		return c.parent.path() + "/" + c.Name
	}
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}

package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/soltrack/client"
	"github.com/urfave/cli/v2"
)

var jqFlag = &cli.StringSliceFlag{
	Name:  "jq",
	Usage: "Keep only transfers for which this jq expression is truthy (repeatable, all must match)",
}

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "Read transfers through the HTTP API",
		Subcommands: []*cli.Command{
			clientListCommand(),
			clientGetCommand(),
		},
	}
}

func clientListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored transfers",
		Description: `Fetch every transfer from GET /transactions and optionally filter them.

Examples:
  soltrack client list --jq '.sol_amount > 1000000000'
  soltrack client list --jq '.sender == "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"'`,
		Flags: []cli.Flag{
			jqFlag,
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			filter, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			cl := newAPIClient(c)
			transfers, err := cl.ListTransfers(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list transfers: %w", err)
			}

			matched := make([]*client.Transfer, 0, len(transfers))
			for _, t := range transfers {
				ok, err := filter.Match(t)
				if err != nil {
					return fmt.Errorf("jq filter failed on %s: %w", t.Signature, err)
				}
				if ok {
					matched = append(matched, t)
				}
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, matched)
			}
			for i, t := range matched {
				if i > 0 {
					fmt.Fprintln(c.App.Writer, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				}
				printTransferDetailed(c.App.Writer, t.Signature, t.Sender, t.Receiver, t.SolAmount, t.Fee, t.Timestamp, t.PrevBlockhash)
			}
			fmt.Fprintf(c.App.ErrWriter, "\nMatched: %d of %d transfers\n", len(matched), len(transfers))
			return nil
		},
	}
}

func clientGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one transfer",
		ArgsUsage: "<signature>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}

			t, err := newAPIClient(c).GetTransfer(c.Context, c.Args().First())
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("transfer %s not found", c.Args().First())
			}
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, t)
			}
			printTransferDetailed(c.App.Writer, t.Signature, t.Sender, t.Receiver, t.SolAmount, t.Fee, t.Timestamp, t.PrevBlockhash)
			return nil
		},
	}
}

func newAPIClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: c.Duration("timeout")}, cliLogger())
}

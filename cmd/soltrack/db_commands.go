package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/soltrack/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			pool, err := getPool(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(c.Context, pool); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "✓ migrations applied")
			return nil
		},
	}
}

func listTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-transfers",
		Usage:   "List stored transfers, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of transfers to show",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of transfers to skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transfers, err := store.ListTransfers(c.Context, int32(c.Int("limit")), int32(c.Int("offset")))
			if err != nil {
				return fmt.Errorf("failed to list transfers: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, transfers)
			}

			printTransferTable(c.App.Writer, transfers)
			fmt.Fprintf(os.Stderr, "\nTotal: %d transfers\n", len(transfers))
			return nil
		},
	}
}

func getTransferCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-transfer",
		Usage:     "Show one stored transfer",
		Aliases:   []string{"get"},
		ArgsUsage: "<signature>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			t, err := store.GetTransfer(c.Context, c.Args().First())
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("transfer %s not found", c.Args().First())
			}
			if err != nil {
				return fmt.Errorf("failed to get transfer: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, t)
			}
			printTransferDetailed(c.App.Writer, t.Signature, t.Sender, t.Receiver, t.SolAmount, t.Fee, t.Timestamp, t.PrevBlockhash)
			fmt.Fprintf(c.App.Writer, "Stored At:      %s\n", t.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func countTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count stored transfers",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			n, err := store.CountTransfers(c.Context)
			if err != nil {
				return fmt.Errorf("failed to count transfers: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]int64{"count": n})
			}
			fmt.Fprintln(c.App.Writer, n)
			return nil
		},
	}
}

func getPool(c *cli.Context) (*pgxpool.Pool, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return db.NewPool(ctx, dbURL, 2)
}

// getStore connects to the database. The returned func closes the pool.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	pool, err := getPool(c)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(pool, nil), pool.Close, nil
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTransferTable(out io.Writer, transfers []*db.Transfer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNATURE\tSENDER\tRECEIVER\tSOL\tFEE\tBLOCK TIME")
	for _, t := range transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shorten(t.Signature),
			shorten(t.Sender),
			shorten(t.Receiver),
			formatSOL(t.SolAmount),
			t.Fee,
			formatBlockTime(t.Timestamp),
		)
	}
	w.Flush()
}

func printTransferDetailed(w io.Writer, signature, sender, receiver string, amount, fee int64, ts *int64, prevBlockhash string) {
	fmt.Fprintf(w, "Signature:      %s\n", signature)
	fmt.Fprintf(w, "Sender:         %s\n", sender)
	fmt.Fprintf(w, "Receiver:       %s\n", receiver)
	fmt.Fprintf(w, "Amount:         %s SOL (%d lamports)\n", formatSOL(amount), amount)
	fmt.Fprintf(w, "Fee:            %d lamports\n", fee)
	fmt.Fprintf(w, "Block Time:     %s\n", formatBlockTime(ts))
	fmt.Fprintf(w, "Prev Blockhash: %s\n", prevBlockhash)
}

// formatSOL renders lamports as SOL with nine decimals.
func formatSOL(lamports int64) string {
	return fmt.Sprintf("%.9f", float64(lamports)/1e9)
}

func formatBlockTime(ts *int64) string {
	if ts == nil {
		return "(unknown)"
	}
	return time.Unix(*ts, 0).UTC().Format(time.RFC3339)
}

// shorten abbreviates long base58 strings for tables.
func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:5] + "…" + s[len(s)-5:]
}

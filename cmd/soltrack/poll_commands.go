package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/poller"
	"github.com/brojonat/soltrack/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

var commitmentFlag = &cli.StringFlag{
	Name:    "commitment",
	Usage:   "RPC commitment (confirmed or finalized)",
	EnvVars: []string{"RPC_COMMITMENT"},
	Value:   "confirmed",
}

func pollOnceCommand() *cli.Command {
	return &cli.Command{
		Name:  "once",
		Usage: "Run a single poll cycle against the database",
		Flags: []cli.Flag{
			commitmentFlag,
			&cli.IntFlag{
				Name:    "page-size",
				Usage:   "Signatures to list per cycle",
				EnvVars: []string{"SIGNATURE_PAGE_SIZE"},
				Value:   solana.DefaultPageSize,
			},
		},
		Action: func(c *cli.Context) error {
			account, err := accountFlag(c)
			if err != nil {
				return err
			}

			pool, err := getPool(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
			p := poller.New(poller.Config{
				Account: account,
				Ledger:  newLedger(c, c.Int("page-size"), logger),
				Store:   db.NewStore(pool, nil),
				Logger:  logger,
			})

			result, err := p.RunCycle(c.Context)
			if err != nil {
				return fmt.Errorf("poll cycle failed: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, result)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Cycle:          %s\n", result.CycleID)
			fmt.Fprintf(w, "Duration:       %s\n", result.Duration)
			fmt.Fprintf(w, "Listed:         %d\n", result.Listed)
			fmt.Fprintf(w, "Inserted:       %d\n", result.Inserted)
			fmt.Fprintf(w, "Already Stored: %d\n", result.AlreadyStored)
			fmt.Fprintf(w, "Rejected:       %d\n", result.Rejected)
			fmt.Fprintf(w, "Failed:         %d\n", result.FailedOnChain)
			fmt.Fprintf(w, "Not Found:      %d\n", result.NotFound)
			fmt.Fprintf(w, "Errors:         %d\n", result.Errors)
			return nil
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Fetch a transaction and show the transfer it yields, without storing it",
		ArgsUsage: "<signature>",
		Flags:     []cli.Flag{commitmentFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			account, err := accountFlag(c)
			if err != nil {
				return err
			}
			sig, err := solanago.SignatureFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid signature: %w", err)
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			result, err := newLedger(c, 0, logger).GetTransaction(c.Context, sig)
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("transaction %s not found", sig)
			}

			transfer, err := solana.Extract(account, sig.String(), result)
			if rej, ok := solana.IsRejection(err); ok {
				if c.Bool("json") {
					return outputJSON(c.App.Writer, map[string]string{"signature": rej.Signature, "rejected": string(rej.Reason)})
				}
				fmt.Fprintf(c.App.Writer, "Rejected: %s\n", rej.Reason)
				return nil
			}
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, transfer)
			}
			printTransferDetailed(c.App.Writer, transfer.Signature, transfer.Sender, transfer.Receiver,
				int64(transfer.Amount), int64(transfer.Fee), transfer.Timestamp, transfer.PrevBlockhash)
			return nil
		},
	}
}

func accountFlag(c *cli.Context) (solanago.PublicKey, error) {
	raw := c.String("account")
	if raw == "" {
		return solanago.PublicKey{}, fmt.Errorf("account is required (set TRACKED_ACCOUNT env var or use --account)")
	}
	pk, err := solanago.PublicKeyFromBase58(raw)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid account %q: %w", raw, err)
	}
	return pk, nil
}

func newLedger(c *cli.Context, pageSize int, logger *slog.Logger) *solana.Client {
	return solana.NewClient(
		solana.NewRPCClient(c.String("rpc-url")),
		solana.Options{Commitment: c.String("commitment"), PageSize: pageSize},
		nil,
		logger,
	)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	natspkg "github.com/brojonat/soltrack/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand prints transfer events as the poller publishes them.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Print transfer events published to NATS",
		ArgsUsage: "[account]",
		Description: `Subscribe to transfer events for one account, or for every account when
none is given. Runs until interrupted.

Example:
  soltrack nats subscribe 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM`,
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "soltrack-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			account := c.Args().First()
			jsonOutput := c.Bool("json")
			logger := cliLogger()

			sub, err := natspkg.SubscribeTransfers(nc, account, logger, func(e *natspkg.TransferEvent) {
				if jsonOutput {
					data, _ := json.Marshal(e)
					fmt.Fprintln(c.App.Writer, string(data))
					return
				}
				fmt.Fprintln(c.App.Writer, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				fmt.Fprintf(c.App.Writer, "Account:        %s\n", e.Account)
				printTransferDetailed(c.App.Writer, e.Signature, e.Sender, e.Receiver, e.SolAmount, e.Fee, e.Timestamp, e.PrevBlockhash)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			if account == "" {
				account = "all accounts"
			}
			fmt.Fprintf(os.Stderr, "Subscribed to %s (Ctrl+C to stop)\n", account)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the TRANSFERS JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "soltrack-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}
			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Stream:       %s\n", info.Config.Name)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			return nil
		},
	}
}

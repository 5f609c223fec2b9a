package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	natspkg "github.com/brojonat/soltrack/service/nats"
	"github.com/urfave/cli/v2"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Follow new transfers over the server's SSE endpoint",
		ArgsUsage: "[account]",
		Flags:     []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			filter, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			streamURL := c.String("server-url") + "/api/v1/stream/transfers"
			if account := c.Args().First(); account != "" {
				streamURL += "?account=" + url.QueryEscape(account)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Accept", "text/event-stream")

			// No timeout for streaming
			resp, err := (&http.Client{}).Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}

			err = readSSE(resp.Body, func(event, data string) error {
				return handleSSEEvent(c, filter, event, data)
			})
			if ctx.Err() != nil {
				fmt.Fprintln(c.App.ErrWriter, "\nDisconnected")
				return nil
			}
			return err
		},
	}
}

// readSSE calls fn for every complete event in r.
func readSSE(r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" && data != "" {
				if err := fn(event, data); err != nil {
					return err
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}

func handleSSEEvent(c *cli.Context, filter *jqFilter, event, data string) error {
	switch event {
	case "connected":
		var info struct {
			Account string `json:"account"`
		}
		if err := json.Unmarshal([]byte(data), &info); err == nil {
			fmt.Fprintf(c.App.ErrWriter, "✓ Subscribed to %s (Ctrl+C to stop)\n\n", info.Account)
		}
	case "transfer":
		var e natspkg.TransferEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "skipping malformed event: %v\n", err)
			return nil
		}
		ok, err := filter.Match(&e)
		if err != nil || !ok {
			return nil
		}
		if c.Bool("json") {
			fmt.Fprintln(c.App.Writer, data)
			return nil
		}
		printTransferDetailed(c.App.Writer, e.Signature, e.Sender, e.Receiver, e.SolAmount, e.Fee, e.Timestamp, e.PrevBlockhash)
		fmt.Fprintln(c.App.Writer)
	}
	return nil
}

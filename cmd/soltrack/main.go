package main

import (
	"fmt"
	"log"
	"os"

	"github.com/brojonat/soltrack/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "soltrack",
		Usage: "Solana account transfer tracker CLI",
		Description: `A command-line tool for operating and debugging the soltrack service.

Use this CLI to inspect stored transfers, run a poll cycle by hand, manage the
Temporal poll schedule, and follow new transfers as they arrive.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "db",
				Usage: "Database commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listTransfersCommand(),
					getTransferCommand(),
					countTransfersCommand(),
				},
			},
			{
				Name:  "poll",
				Usage: "Run the poller by hand",
				Subcommands: []*cli.Command{
					pollOnceCommand(),
					extractCommand(),
				},
			},
			{
				Name:  "temporal",
				Usage: "Temporal schedule management",
				Subcommands: []*cli.Command{
					upsertScheduleCommand(),
					describeScheduleCommand(),
					triggerScheduleCommand(),
					deleteScheduleCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "NATS transfer event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			streamCommand(),
			clientCommands(),
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana JSON-RPC URL",
				EnvVars: []string{"SOLANA_RPC_URL", "RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "account",
				Usage:   "Tracked account (base58)",
				EnvVars: []string{"TRACKED_ACCOUNT", "ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "soltrack-polling",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Read API base URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

func main() {
	// Flags fall back to .env like the services do.
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

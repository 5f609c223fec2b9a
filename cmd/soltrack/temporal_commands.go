package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/soltrack/service/temporal"
	"github.com/urfave/cli/v2"
)

func upsertScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "upsert-schedule",
		Usage: "Create or update the poll schedule of the tracked account",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Poll interval",
				EnvVars: []string{"POLL_INTERVAL"},
				Value:   10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			account, err := accountFlag(c)
			if err != nil {
				return err
			}
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := temporal.EnsurePollSchedule(c.Context, tc, account.String(), c.Duration("interval"), cliLogger()); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ poll schedule for %s runs every %s\n", account, c.Duration("interval"))
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:    "describe-schedule",
		Usage:   "Describe the poll schedule of the tracked account",
		Aliases: []string{"desc"},
		Action: func(c *cli.Context) error {
			account, err := accountFlag(c)
			if err != nil {
				return err
			}
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			status, err := tc.DescribePollSchedule(c.Context, account.String())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, status)
			}
			printScheduleStatus(c.App.Writer, status)
			return nil
		},
	}
}

func triggerScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Run the poll workflow now",
		Action: func(c *cli.Context) error {
			account, err := accountFlag(c)
			if err != nil {
				return err
			}
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.TriggerPoll(c.Context, account.String()); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ poll triggered")
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-schedule",
		Usage: "Delete the poll schedule of the tracked account",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			account, err := accountFlag(c)
			if err != nil {
				return err
			}

			if !c.Bool("force") {
				fmt.Fprintf(os.Stderr, "Delete the poll schedule for %s? [y/N]: ", account)
				var answer string
				fmt.Scanln(&answer)
				if answer != "y" && answer != "Y" {
					fmt.Fprintln(os.Stderr, "cancelled")
					return nil
				}
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeletePollSchedule(c.Context, account.String()); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ poll schedule deleted")
			return nil
		},
	}
}

func printScheduleStatus(w io.Writer, s *temporal.ScheduleStatus) {
	fmt.Fprintf(w, "Schedule ID:     %s\n", s.ID)
	fmt.Fprintf(w, "Interval:        %s\n", s.Interval)
	fmt.Fprintf(w, "Paused:          %v\n", s.Paused)
	fmt.Fprintf(w, "Runs:            %d\n", s.NumActions)
	fmt.Fprintf(w, "Skipped Overlap: %d\n", s.SkippedOverlap)
	fmt.Fprintf(w, "Running:         %d\n", s.Running)
	for i, next := range s.NextRuns {
		fmt.Fprintf(w, "Next Run %d:      %s\n", i+1, next.Format(time.RFC3339))
	}
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(),
	)
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

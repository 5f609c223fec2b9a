package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler manages the Temporal poll schedule of the tracked account.
// *Client implements it; MockScheduler stands in for tests.
type Scheduler interface {
	UpsertPollSchedule(ctx context.Context, account string, interval time.Duration) error
	DeletePollSchedule(ctx context.Context, account string) error
}

// scheduleID returns the Temporal schedule ID for an account.
func scheduleID(account string) string {
	return "poll-account-" + account
}

// EnsurePollSchedule makes sure account is polled every interval.
func EnsurePollSchedule(ctx context.Context, s Scheduler, account string, interval time.Duration, logger *slog.Logger) error {
	if interval < time.Second {
		return fmt.Errorf("poll interval %v is below one second", interval)
	}
	if err := s.UpsertPollSchedule(ctx, account, interval); err != nil {
		return err
	}
	logger.InfoContext(ctx, "poll schedule ensured", "account", account, "interval", interval)
	return nil
}

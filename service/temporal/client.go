package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client manages the poll schedule in Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient connects to Temporal.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// ScheduleStatus describes the poll schedule of one account.
type ScheduleStatus struct {
	ID             string        `json:"id"`
	Interval       time.Duration `json:"interval"`
	Paused         bool          `json:"paused"`
	NumActions     int           `json:"num_actions"`
	SkippedOverlap int           `json:"skipped_overlap"`
	Running        int           `json:"running"`
	NextRuns       []time.Time   `json:"next_runs"`
}

// UpsertPollSchedule creates the poll schedule for account, or updates its
// interval when it already exists. Overlapping runs are skipped so at most
// one poll runs at a time.
func (c *Client) UpsertPollSchedule(ctx context.Context, account string, interval time.Duration) error {
	id := scheduleID(account)
	handle := c.client.ScheduleClient().GetHandle(ctx, id)

	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating", "schedule_id", id, "error", err)
		return c.createPollSchedule(ctx, account, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{{Every: interval}}
			return &client.ScheduleUpdate{Schedule: &input.Description.Schedule}, nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("poll schedule updated", "schedule_id", id, "interval", interval)
	return nil
}

func (c *Client) createPollSchedule(ctx context.Context, account string, interval time.Duration) error {
	id := scheduleID(account)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "poll-account-" + account,
			Workflow:  PollAccountWorkflow,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{PollAccountInput{Account: account}},
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Memo: map[string]interface{}{
			"account":    account,
			"created_by": "soltrack",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("poll schedule created", "schedule_id", id, "interval", interval)
	return nil
}

// DeletePollSchedule removes the poll schedule for account.
func (c *Client) DeletePollSchedule(ctx context.Context, account string) error {
	id := scheduleID(account)
	if err := c.client.ScheduleClient().GetHandle(ctx, id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}
	c.logger.Info("poll schedule deleted", "schedule_id", id)
	return nil
}

// DescribePollSchedule reports the state of the poll schedule for account.
func (c *Client) DescribePollSchedule(ctx context.Context, account string) (*ScheduleStatus, error) {
	id := scheduleID(account)
	desc, err := c.client.ScheduleClient().GetHandle(ctx, id).Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe schedule %q: %w", id, err)
	}

	status := &ScheduleStatus{
		ID:             id,
		NumActions:     desc.Info.NumActions,
		SkippedOverlap: desc.Info.NumActionsSkippedOverlap,
		Running:        len(desc.Info.RunningWorkflows),
		NextRuns:       desc.Info.NextActionTimes,
	}
	if spec := desc.Schedule.Spec; spec != nil && len(spec.Intervals) > 0 {
		status.Interval = spec.Intervals[0].Every
	}
	if desc.Schedule.State != nil {
		status.Paused = desc.Schedule.State.Paused
	}
	return status, nil
}

// TriggerPoll starts a poll run now, outside the interval.
func (c *Client) TriggerPoll(ctx context.Context, account string) error {
	id := scheduleID(account)
	err := c.client.ScheduleClient().GetHandle(ctx, id).Trigger(ctx, client.ScheduleTriggerOptions{
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if err != nil {
		return fmt.Errorf("failed to trigger schedule %q: %w", id, err)
	}
	return nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.client.Close()
}

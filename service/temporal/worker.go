package temporal

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/soltrack/service/metrics"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	Poller  PollerInterface
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger
}

// Worker wraps a Temporal worker and its client.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker connects to Temporal and registers the poll workflow and its
// activities on the task queue.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	// One activity at a time keeps signature processing sequential.
	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     1,
		MaxConcurrentWorkflowTaskExecutionSize: 2,
	})

	w.RegisterWorkflow(PollAccountWorkflow)
	activities := NewActivities(config.Poller, config.Metrics, logger)
	w.RegisterActivity(activities.ListSignatures)
	w.RegisterActivity(activities.ProcessSignature)

	logger.Info("registered workflow and activities",
		"workflow", "PollAccountWorkflow",
		"activities", []string{"ListSignatures", "ProcessSignature"},
	)

	return &Worker{client: c, worker: w, logger: logger}, nil
}

// Start begins processing workflows and activities without blocking.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	if err := w.worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	return nil
}

// Stop waits for in-flight activities to finish, then closes the client.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}

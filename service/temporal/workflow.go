package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/soltrack/service/poller"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// PollAccountWorkflow runs one poll cycle as a workflow. A schedule starts it
// at the poll interval.
//
// Activities are not retried: a failed listing ends the run and the next
// scheduled run tries again, and a failed signature is left for the next run
// to pick up because nothing was stored for it.
func PollAccountWorkflow(ctx workflow.Context, input PollAccountInput) (*PollAccountResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("PollAccountWorkflow started", "account", input.Account)

	result := &PollAccountResult{
		Account:  input.Account,
		PollTime: workflow.Now(ctx),
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var listed *ListSignaturesResult
	if err := workflow.ExecuteActivity(ctx, a.ListSignatures, input).Get(ctx, &listed); err != nil {
		logger.Error("failed to list signatures", "account", input.Account, "error", err)
		errMsg := fmt.Sprintf("failed to list signatures: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to list signatures: %w", err)
	}
	result.Listed = len(listed.Signatures)

	for _, sig := range listed.Signatures {
		var processed *ProcessSignatureResult
		err := workflow.ExecuteActivity(ctx, a.ProcessSignature, ProcessSignatureInput{
			Account:   input.Account,
			Signature: sig,
		}).Get(ctx, &processed)
		if err != nil {
			result.Errors++
			logger.Warn("failed to process signature", "signature", sig.Signature, "error", err)
			continue
		}

		switch processed.Outcome {
		case poller.OutcomeInserted:
			result.Inserted++
		case poller.OutcomeExists, poller.OutcomeConflict:
			result.AlreadyStored++
		case poller.OutcomeRejected:
			result.Rejected++
		case poller.OutcomeFailedOnChain:
			result.FailedOnChain++
		case poller.OutcomeNotFound:
			result.NotFound++
		}
	}

	logger.Info("PollAccountWorkflow completed",
		"account", input.Account,
		"listed", result.Listed,
		"inserted", result.Inserted,
		"already_stored", result.AlreadyStored,
		"errors", result.Errors,
	)
	return result, nil
}

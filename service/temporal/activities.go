package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/soltrack/service/metrics"
	"github.com/brojonat/soltrack/service/poller"
	"github.com/brojonat/soltrack/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// PollAccountInput is the input of PollAccountWorkflow.
type PollAccountInput struct {
	Account string `json:"account"`
}

// PollAccountResult summarizes one workflow run.
type PollAccountResult struct {
	Account       string    `json:"account"`
	PollTime      time.Time `json:"poll_time"`
	Listed        int       `json:"listed"`
	Inserted      int       `json:"inserted"`
	AlreadyStored int       `json:"already_stored"`
	Rejected      int       `json:"rejected"`
	FailedOnChain int       `json:"failed_on_chain"`
	NotFound      int       `json:"not_found"`
	Errors        int       `json:"errors"`
	Error         *string   `json:"error,omitempty"`
}

// ListSignaturesResult is the result of the ListSignatures activity.
type ListSignaturesResult struct {
	Signatures []solana.SignatureInfo `json:"signatures"`
}

// ProcessSignatureInput is the input of the ProcessSignature activity.
type ProcessSignatureInput struct {
	Account   string               `json:"account"`
	Signature solana.SignatureInfo `json:"signature"`
}

// ProcessSignatureResult is the result of the ProcessSignature activity.
type ProcessSignatureResult struct {
	Outcome poller.Outcome `json:"outcome"`
}

// PollerInterface is the part of the poller the activities drive.
type PollerInterface interface {
	Account() solanago.PublicKey
	ListSignatures(ctx context.Context) ([]solana.SignatureInfo, error)
	ProcessSignature(ctx context.Context, info solana.SignatureInfo) (poller.Outcome, error)
}

// Activities holds the dependencies of the Temporal activities.
type Activities struct {
	poller  PollerInterface
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates Activities. m may be nil.
func NewActivities(p PollerInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{poller: p, metrics: m, logger: logger}
}

// ListSignatures lists recent signatures for the tracked account.
func (a *Activities) ListSignatures(ctx context.Context, input PollAccountInput) (*ListSignaturesResult, error) {
	start := time.Now()
	defer func() { a.metrics.RecordActivityDuration("ListSignatures", metrics.Since(start)) }()

	if err := a.checkAccount(input.Account); err != nil {
		return nil, err
	}
	sigs, err := a.poller.ListSignatures(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to list signatures", "account", input.Account, "error", err)
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	a.logger.DebugContext(ctx, "listed signatures", "account", input.Account, "count", len(sigs))
	return &ListSignaturesResult{Signatures: sigs}, nil
}

// ProcessSignature handles one signature: dedup check, fetch, extract, insert.
func (a *Activities) ProcessSignature(ctx context.Context, input ProcessSignatureInput) (*ProcessSignatureResult, error) {
	start := time.Now()
	defer func() { a.metrics.RecordActivityDuration("ProcessSignature", metrics.Since(start)) }()

	if err := a.checkAccount(input.Account); err != nil {
		return nil, err
	}
	outcome, err := a.poller.ProcessSignature(ctx, input.Signature)
	if err != nil {
		return nil, fmt.Errorf("process signature %s: %w", input.Signature.Signature, err)
	}
	return &ProcessSignatureResult{Outcome: outcome}, nil
}

// checkAccount refuses work scheduled for an account this worker does not track.
func (a *Activities) checkAccount(account string) error {
	if tracked := a.poller.Account().String(); account != tracked {
		return temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("worker tracks %s, not %s", tracked, account),
			"AccountMismatch",
			nil,
		)
	}
	return nil
}

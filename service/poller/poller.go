// Package poller runs the poll cycle: list recent signatures for the tracked
// account, skip the ones already stored, fetch and extract the rest, and
// persist each new transfer exactly once.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/metrics"
	natspkg "github.com/brojonat/soltrack/service/nats"
	"github.com/brojonat/soltrack/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
)

// ErrCycleInProgress is returned by RunCycle when another cycle is running.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// LedgerClient is the read side of the Solana RPC.
type LedgerClient interface {
	ListRecentSignatures(ctx context.Context, account solanago.PublicKey) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature solanago.Signature) (*rpc.GetTransactionResult, error)
}

// TransferStore is the dedup store.
type TransferStore interface {
	TransferExists(ctx context.Context, signature string) (bool, error)
	InsertTransfer(ctx context.Context, params db.InsertTransferParams) (*db.Transfer, error)
}

// State is the poller's lifecycle state.
type State int32

const (
	Idle State = iota
	Cycling
)

func (s State) String() string {
	if s == Cycling {
		return "cycling"
	}
	return "idle"
}

// Outcome is how a single signature was handled.
type Outcome string

const (
	OutcomeExists        Outcome = "exists"
	OutcomeFailedOnChain Outcome = "failed_on_chain"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeRejected      Outcome = "rejected"
	OutcomeInserted      Outcome = "inserted"
	OutcomeConflict      Outcome = "conflict"
)

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	CycleID       string        `json:"cycle_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Listed        int           `json:"listed"`
	Inserted      int           `json:"inserted"`
	AlreadyStored int           `json:"already_stored"`
	Rejected      int           `json:"rejected"`
	FailedOnChain int           `json:"failed_on_chain"`
	NotFound      int           `json:"not_found"`
	Errors        int           `json:"errors"`
	Interrupted   bool          `json:"interrupted,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func (r *CycleResult) count(o Outcome) {
	switch o {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeExists, OutcomeConflict:
		r.AlreadyStored++
	case OutcomeRejected:
		r.Rejected++
	case OutcomeFailedOnChain:
		r.FailedOnChain++
	case OutcomeNotFound:
		r.NotFound++
	}
}

// Config wires a Poller. Publisher and Metrics are optional.
type Config struct {
	Account   solanago.PublicKey
	Ledger    LedgerClient
	Store     TransferStore
	Publisher natspkg.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Poller runs poll cycles for one tracked account.
type Poller struct {
	account   solanago.PublicKey
	ledger    LedgerClient
	store     TransferStore
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	state atomic.Int32

	mu   sync.RWMutex
	last *CycleResult
}

// New creates a Poller.
func New(cfg Config) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		account:   cfg.Account,
		ledger:    cfg.Ledger,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    logger.With("account", cfg.Account.String()),
	}
}

// Account returns the tracked account.
func (p *Poller) Account() solanago.PublicKey { return p.account }

// State reports whether a cycle is running.
func (p *Poller) State() State { return State(p.state.Load()) }

// LastCycle returns the most recent finished cycle, or nil before the first.
func (p *Poller) LastCycle() *CycleResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	r := *p.last
	return &r
}

// RunCycle performs one poll cycle. A listing failure ends the cycle and is
// returned; per-signature failures are logged and counted in the result.
// Cancelling ctx stops the cycle before the next signature, never in the
// middle of an insert.
func (p *Poller) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !p.state.CompareAndSwap(int32(Idle), int32(Cycling)) {
		return nil, ErrCycleInProgress
	}
	defer p.state.Store(int32(Idle))
	p.metrics.SetCycling(true)
	defer p.metrics.SetCycling(false)

	res := &CycleResult{CycleID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := p.logger.With("cycle_id", res.CycleID)

	sigs, err := p.ListSignatures(ctx)
	if err != nil {
		res.Error = err.Error()
		p.finish(res, "list_error")
		return res, fmt.Errorf("list signatures: %w", err)
	}
	res.Listed = len(sigs)

	for _, info := range sigs {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		outcome, err := p.process(ctx, logger, info)
		if err != nil {
			res.Errors++
			logger.WarnContext(ctx, "failed to process signature",
				"signature", info.Signature,
				"error", err,
			)
			continue
		}
		res.count(outcome)
	}

	status := "success"
	if res.Errors > 0 {
		status = "partial"
	}
	if res.Interrupted {
		status = "interrupted"
	}
	p.finish(res, status)

	logger.InfoContext(ctx, "poll cycle complete",
		"listed", res.Listed,
		"inserted", res.Inserted,
		"already_stored", res.AlreadyStored,
		"rejected", res.Rejected,
		"errors", res.Errors,
		"duration", res.Duration,
	)
	return res, nil
}

// ListSignatures returns the recent signatures for the tracked account,
// newest first.
func (p *Poller) ListSignatures(ctx context.Context) ([]solana.SignatureInfo, error) {
	return p.ledger.ListRecentSignatures(ctx, p.account)
}

// ProcessSignature handles one listed signature outside of RunCycle.
func (p *Poller) ProcessSignature(ctx context.Context, info solana.SignatureInfo) (Outcome, error) {
	return p.process(ctx, p.logger, info)
}

func (p *Poller) process(ctx context.Context, logger *slog.Logger, info solana.SignatureInfo) (Outcome, error) {
	outcome, err := p.processSignature(ctx, logger, info)
	if err != nil {
		p.metrics.RecordSignatureOutcome("error")
		return "", err
	}
	p.metrics.RecordSignatureOutcome(string(outcome))
	return outcome, nil
}

func (p *Poller) processSignature(ctx context.Context, logger *slog.Logger, info solana.SignatureInfo) (Outcome, error) {
	logger = logger.With("signature", info.Signature)

	if info.Failed {
		logger.DebugContext(ctx, "skipping failed transaction", "err", info.Err)
		return OutcomeFailedOnChain, nil
	}

	exists, err := p.store.TransferExists(ctx, info.Signature)
	if err != nil {
		return "", err
	}
	if exists {
		return OutcomeExists, nil
	}

	sig, err := solanago.SignatureFromBase58(info.Signature)
	if err != nil {
		return "", fmt.Errorf("parse signature: %w", err)
	}
	result, err := p.ledger.GetTransaction(ctx, sig)
	if err != nil {
		return "", err
	}
	if result == nil {
		logger.DebugContext(ctx, "transaction no longer available")
		return OutcomeNotFound, nil
	}

	transfer, err := solana.Extract(p.account, info.Signature, result)
	if rej, ok := solana.IsRejection(err); ok {
		p.metrics.RecordRejection(string(rej.Reason))
		logger.DebugContext(ctx, "transaction rejected", "reason", rej.Reason)
		return OutcomeRejected, nil
	}
	if err != nil {
		return "", err
	}

	params, err := insertParams(transfer)
	if err != nil {
		return "", err
	}

	// The insert finishes even if shutdown cancels ctx meanwhile.
	stored, err := p.store.InsertTransfer(context.WithoutCancel(ctx), params)
	if errors.Is(err, db.ErrConflict) {
		logger.DebugContext(ctx, "transfer stored concurrently")
		return OutcomeConflict, nil
	}
	if err != nil {
		return "", err
	}

	p.metrics.RecordTransferInserted()
	logger.InfoContext(ctx, "stored transfer",
		"sender", stored.Sender,
		"receiver", stored.Receiver,
		"sol_amount", stored.SolAmount,
		"fee", stored.Fee,
	)
	p.publish(ctx, logger, stored)
	return OutcomeInserted, nil
}

func (p *Poller) publish(ctx context.Context, logger *slog.Logger, t *db.Transfer) {
	if p.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.publisher.PublishTransfer(pubCtx, natspkg.FromDBTransfer(p.account.String(), t)); err != nil {
		logger.WarnContext(ctx, "failed to publish transfer event", "error", err)
	}
}

func (p *Poller) finish(res *CycleResult, status string) {
	res.Duration = time.Since(res.StartedAt)
	p.metrics.RecordCycle(status, res.Duration.Seconds())

	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
}

func insertParams(t *solana.Transfer) (db.InsertTransferParams, error) {
	if t.Amount > math.MaxInt64 || t.Fee > math.MaxInt64 {
		return db.InsertTransferParams{}, fmt.Errorf("transfer %s: amount out of range", t.Signature)
	}
	return db.InsertTransferParams{
		Signature:     t.Signature,
		Sender:        t.Sender,
		Receiver:      t.Receiver,
		SolAmount:     int64(t.Amount),
		Fee:           int64(t.Fee),
		Timestamp:     t.Timestamp,
		PrevBlockhash: t.PrevBlockhash,
	}, nil
}

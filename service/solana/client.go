package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/soltrack/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultPageSize is the number of signatures requested per listing.
const DefaultPageSize = 25

// TransportError reports that the RPC endpoint could not be reached or
// returned an error. The adapter never retries; the next poll cycle does.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("solana rpc %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	// Commitment is "confirmed" or "finalized". Empty means confirmed.
	Commitment string
	// PageSize bounds how many signatures one listing returns.
	PageSize int
}

// Client reads signatures and transactions for the tracked account.
type Client struct {
	rpc        RPCClient
	commitment rpc.CommitmentType
	pageSize   int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a Client. m may be nil.
func NewClient(rpcClient RPCClient, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	commitment := rpc.CommitmentConfirmed
	if opts.Commitment == string(rpc.CommitmentFinalized) {
		commitment = rpc.CommitmentFinalized
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		rpc:        rpcClient,
		commitment: commitment,
		pageSize:   pageSize,
		logger:     logger,
		metrics:    m,
	}
}

// ListRecentSignatures returns the most recent signatures touching account,
// newest first.
func (c *Client) ListRecentSignatures(ctx context.Context, account solana.PublicKey) ([]SignatureInfo, error) {
	limit := c.pageSize
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.commitment,
	}

	start := time.Now()
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, account, opts)
	c.metrics.RecordRPCCall("getSignaturesForAddress", rpcStatus(err), metrics.Since(start))
	if err != nil {
		return nil, &TransportError{Op: "getSignaturesForAddress", Err: err}
	}
	c.metrics.RecordRPCSignaturesPerCall(len(sigs))

	out := make([]SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		out = append(out, signatureInfoFromRPC(s))
	}

	c.logger.DebugContext(ctx, "listed signatures",
		"account", account.String(),
		"limit", limit,
		"count", len(out),
	)
	return out, nil
}

// GetTransaction fetches the full transaction for signature. It returns
// (nil, nil) when the node no longer has it.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, signature, opts)
	if errors.Is(err, rpc.ErrNotFound) {
		c.metrics.RecordRPCCall("getTransaction", "not_found", metrics.Since(start))
		return nil, nil
	}
	c.metrics.RecordRPCCall("getTransaction", rpcStatus(err), metrics.Since(start))
	if err != nil {
		return nil, &TransportError{Op: "getTransaction", Err: err}
	}
	if result == nil {
		c.logger.DebugContext(ctx, "transaction not available", "signature", signature.String())
		return nil, nil
	}
	return result, nil
}

func signatureInfoFromRPC(s *rpc.TransactionSignature) SignatureInfo {
	info := SignatureInfo{
		Signature: s.Signature.String(),
		Slot:      s.Slot,
	}
	if s.BlockTime != nil {
		bt := int64(*s.BlockTime)
		info.BlockTime = &bt
	}
	if s.Err != nil {
		info.Failed = true
		info.Err = fmt.Sprintf("%v", s.Err)
	}
	return info
}

func rpcStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

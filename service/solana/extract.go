package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RejectReason says why a transaction produced no transfer record.
type RejectReason string

const (
	RejectFailed           RejectReason = "failed"
	RejectMissingMeta      RejectReason = "missing_meta"
	RejectBalanceMismatch  RejectReason = "balance_mismatch"
	RejectNoReceiver       RejectReason = "no_receiver"
	RejectNoSender         RejectReason = "no_sender"
	RejectUntracked        RejectReason = "untracked_account"
	RejectZeroAmount       RejectReason = "zero_amount"
	RejectInvalidBlockTime RejectReason = "invalid_block_time"
)

// RejectionError is returned by Extract for transactions that are valid
// ledger data but not a transfer involving the tracked account. Callers skip
// them; they are not failures.
type RejectionError struct {
	Signature string
	Reason    RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %s", e.Signature, e.Reason)
}

// IsRejection reports whether err is a *RejectionError and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Extract derives a Transfer from a fetched transaction using native balance
// changes.
//
// The receiver is the account whose balance grew: the tracked account when
// it grew, otherwise the largest gain. The amount is the receiver's gain,
// plus the fee when the receiver is the fee payer (index 0). The sender is
// an account whose balance dropped by at least the amount, plus the fee when
// it is the fee payer; the tracked account is preferred, then the largest
// drop. The record is kept only when the tracked account is
// the sender or the receiver.
//
// A non-nil error is either a *RejectionError or a decode failure.
func Extract(account solana.PublicKey, signature string, result *rpc.GetTransactionResult) (*Transfer, error) {
	if result == nil {
		return nil, fmt.Errorf("transaction %s: empty result", signature)
	}
	reject := func(reason RejectReason) (*Transfer, error) {
		return nil, &RejectionError{Signature: signature, Reason: reason}
	}

	meta := result.Meta
	if meta == nil {
		return reject(RejectMissingMeta)
	}
	if meta.Err != nil {
		return reject(RejectFailed)
	}
	if result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s: missing transaction payload", signature)
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("transaction %s: decode: %w", signature, err)
	}

	keys := accountKeys(tx, meta)
	if len(meta.PreBalances) != len(meta.PostBalances) || len(meta.PreBalances) > len(keys) {
		return reject(RejectBalanceMismatch)
	}

	deltas := make([]int64, len(meta.PreBalances))
	tracked := -1
	for i := range deltas {
		deltas[i] = int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
		if tracked < 0 && keys[i].Equals(account) {
			tracked = i
		}
	}

	receiver := pickReceiver(deltas, tracked)
	if receiver < 0 {
		return reject(RejectNoReceiver)
	}
	amount := transferAmount(deltas[receiver], receiver, meta.Fee)
	if amount == 0 {
		return reject(RejectZeroAmount)
	}

	sender := pickSender(deltas, tracked, receiver, amount, meta.Fee)
	if sender < 0 {
		return reject(RejectNoSender)
	}
	if tracked != sender && tracked != receiver {
		return reject(RejectUntracked)
	}

	var ts *int64
	if result.BlockTime != nil {
		bt := int64(*result.BlockTime)
		if bt < 0 {
			return reject(RejectInvalidBlockTime)
		}
		ts = &bt
	}

	return &Transfer{
		Signature:     signature,
		Sender:        keys[sender].String(),
		Receiver:      keys[receiver].String(),
		Amount:        amount,
		Fee:           meta.Fee,
		Timestamp:     ts,
		PrevBlockhash: tx.Message.RecentBlockhash.String(),
	}, nil
}

// accountKeys lists keys in balance order: static keys, then addresses
// loaded from lookup tables (writable before readonly).
func accountKeys(tx *solana.Transaction, meta *rpc.TransactionMeta) []solana.PublicKey {
	keys := make([]solana.PublicKey, 0,
		len(tx.Message.AccountKeys)+len(meta.LoadedAddresses.Writable)+len(meta.LoadedAddresses.ReadOnly))
	keys = append(keys, tx.Message.AccountKeys...)
	keys = append(keys, meta.LoadedAddresses.Writable...)
	keys = append(keys, meta.LoadedAddresses.ReadOnly...)
	return keys
}

// transferAmount is the receiver's gain with the fee debit of the fee payer
// added back.
func transferAmount(delta int64, receiver int, fee uint64) uint64 {
	if delta <= 0 {
		return 0
	}
	amount := uint64(delta)
	if receiver == 0 {
		amount += fee
	}
	return amount
}

func pickReceiver(deltas []int64, tracked int) int {
	if tracked >= 0 && deltas[tracked] > 0 {
		return tracked
	}
	best := -1
	for i, d := range deltas {
		if d > 0 && (best < 0 || d > deltas[best]) {
			best = i
		}
	}
	return best
}

func pickSender(deltas []int64, tracked, receiver int, amount, fee uint64) int {
	covers := func(i int) bool {
		if i == receiver || deltas[i] >= 0 {
			return false
		}
		need := amount
		if i == 0 {
			need += fee
		}
		return uint64(-deltas[i]) >= need
	}

	if tracked >= 0 && covers(tracked) {
		return tracked
	}
	best := -1
	for i := range deltas {
		if covers(i) && (best < 0 || deltas[i] < deltas[best]) {
			best = i
		}
	}
	return best
}

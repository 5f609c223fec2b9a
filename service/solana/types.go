package solana

// SignatureInfo is one entry of a signature listing for the tracked account.
// It only carries plain values so it can cross process boundaries (Temporal
// activity payloads, CLI JSON output).
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"block_time,omitempty"`
	// Failed is set when the ledger reports the transaction as failed.
	Failed bool   `json:"failed"`
	Err    string `json:"err,omitempty"`
}

// Transfer is the flat record extracted from one successful transaction.
type Transfer struct {
	Signature     string `json:"signature"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	Amount        uint64 `json:"sol_amount"`
	Fee           uint64 `json:"fee"`
	Timestamp     *int64 `json:"timestamp"`
	PrevBlockhash string `json:"prev_blockhash"`
}

package nats

import (
	"time"

	"github.com/brojonat/soltrack/service/db"
)

// TransferEvent is the JSON payload published for each newly stored transfer.
type TransferEvent struct {
	// Account is the tracked account the transfer was recorded for.
	Account string `json:"account"`

	Signature     string `json:"signature"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	SolAmount     int64  `json:"sol_amount"`
	Fee           int64  `json:"fee"`
	Timestamp     *int64 `json:"timestamp"`
	PrevBlockhash string `json:"prev_blockhash"`

	PublishedAt time.Time `json:"published_at"`
}

// FromDBTransfer builds the event for a stored transfer.
func FromDBTransfer(account string, t *db.Transfer) *TransferEvent {
	return &TransferEvent{
		Account:       account,
		Signature:     t.Signature,
		Sender:        t.Sender,
		Receiver:      t.Receiver,
		SolAmount:     t.SolAmount,
		Fee:           t.Fee,
		Timestamp:     t.Timestamp,
		PrevBlockhash: t.PrevBlockhash,
		PublishedAt:   time.Now().UTC(),
	}
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/soltrack/service/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDBTransfer(t *testing.T) {
	ts := int64(1_700_000_000)
	event := FromDBTransfer("acct", &db.Transfer{
		Signature:     "sig",
		Sender:        "from",
		Receiver:      "to",
		SolAmount:     5_000_000,
		Fee:           5000,
		Timestamp:     &ts,
		PrevBlockhash: "hash",
		CreatedAt:     time.Now(),
	})

	assert.Equal(t, "acct", event.Account)
	assert.Equal(t, "sig", event.Signature)
	assert.Equal(t, int64(5_000_000), event.SolAmount)
	assert.False(t, event.PublishedAt.IsZero())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"signature", "sender", "receiver", "sol_amount", "fee", "timestamp", "prev_blockhash"} {
		assert.Contains(t, fields, key)
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "transfers.abc", Subject("abc"))
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	ctx := context.Background()

	require.NoError(t, m.PublishTransfer(ctx, &TransferEvent{Signature: "a"}))
	m.SetPublishError(errors.New("down"))
	assert.Error(t, m.PublishTransfer(ctx, &TransferEvent{Signature: "b"}))

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Signature)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}

package server_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/brojonat/soltrack/client"
	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/db/dbtest"
	"github.com/brojonat/soltrack/service/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServerIntegration runs the read API against a real store.
func TestServerIntegration(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := server.New(":0", store, nil, nil, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := client.NewClient(ts.URL, &http.Client{Timeout: 5 * time.Second}, logger)

	t.Run("empty store", func(t *testing.T) {
		transfers, err := c.ListTransfers(ctx)
		require.NoError(t, err)
		assert.Empty(t, transfers)
	})

	older, newer := int64(1700000000), int64(1700000100)
	for _, p := range []db.InsertTransferParams{
		{Signature: "5older", Sender: "S1", Receiver: "R1", SolAmount: 10, Fee: 5000, Timestamp: &older, PrevBlockhash: "H1"},
		{Signature: "5newer", Sender: "S2", Receiver: "R2", SolAmount: 20, Fee: 5000, Timestamp: &newer, PrevBlockhash: "H2"},
		{Signature: "5undated", Sender: "S3", Receiver: "R3", SolAmount: 30, Fee: 0, PrevBlockhash: "H3"},
	} {
		_, err := store.InsertTransfer(ctx, p)
		require.NoError(t, err)
	}

	t.Run("list all newest first", func(t *testing.T) {
		transfers, err := c.ListTransfers(ctx)
		require.NoError(t, err)
		require.Len(t, transfers, 3)

		assert.Equal(t, "5newer", transfers[0].Signature)
		assert.Equal(t, "5older", transfers[1].Signature)
		assert.Equal(t, "5undated", transfers[2].Signature)
		assert.Nil(t, transfers[2].Timestamp)
		assert.Equal(t, int64(20), transfers[0].SolAmount)
		assert.Equal(t, "H2", transfers[0].PrevBlockhash)
	})

	t.Run("paged", func(t *testing.T) {
		page, err := c.ListTransfersPage(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page.Transfers, 1)
		assert.Equal(t, "5older", page.Transfers[0].Signature)
	})

	t.Run("get by signature", func(t *testing.T) {
		got, err := c.GetTransfer(ctx, "5older")
		require.NoError(t, err)
		assert.Equal(t, "R1", got.Receiver)
		require.NotNil(t, got.Timestamp)
		assert.Equal(t, older, *got.Timestamp)

		_, err = c.GetTransfer(ctx, "5missing")
		assert.ErrorIs(t, err, client.ErrNotFound)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, c.Health(ctx))
	})
}

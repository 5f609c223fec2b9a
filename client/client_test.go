package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTransfers_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"signature":"sig1","sender":"A","receiver":"B","sol_amount":1000,"fee":5000,"timestamp":1700000000,"prev_blockhash":"H1"},
			{"signature":"sig2","sender":"C","receiver":"D","sol_amount":5,"fee":0,"timestamp":null,"prev_blockhash":"H2"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	transfers, err := client.ListTransfers(context.Background())
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, "sig1", transfers[0].Signature)
	assert.Equal(t, int64(1000), transfers[0].SolAmount)
	assert.Equal(t, int64(5000), transfers[0].Fee)
	require.NotNil(t, transfers[0].Timestamp)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), transfers[0].Time())

	assert.Nil(t, transfers[1].Timestamp)
	assert.True(t, transfers[1].Time().IsZero())
}

func TestListTransfers_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	transfers, err := NewClient(server.URL, nil, nil).ListTransfers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestListTransfers_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).ListTransfers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal server error")
}

func TestListTransfers_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).ListTransfers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestListTransfersPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transfers", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transfers": []map[string]interface{}{{"signature": "sig21", "sol_amount": 3}},
			"count":     1,
			"limit":     10,
			"offset":    20,
		})
	}))
	defer server.Close()

	page, err := NewClient(server.URL, nil, nil).ListTransfersPage(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 20, page.Offset)
	require.Len(t, page.Transfers, 1)
	assert.Equal(t, "sig21", page.Transfers[0].Signature)
}

func TestGetTransfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/transfers/sig1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"signature":"sig1","sender":"A","receiver":"B","sol_amount":7,"fee":5000,"timestamp":1,"prev_blockhash":"H"}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"transfer not found"}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)

	got, err := client.GetTransfer(context.Background(), "sig1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Receiver)
	assert.Equal(t, int64(7), got.SolAmount)

	_, err = client.GetTransfer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransfers_MisroutedBaseURL(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(server.URL+"/wrong-prefix", nil, nil)

	_, err := client.ListTransfers(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "status 404")

	_, err = client.ListTransfersPage(context.Background(), 10, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if healthy.Load() {
			w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))

	healthy.Store(false)
	assert.Error(t, client.Health(context.Background()))
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL, nil, nil).ListTransfers(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

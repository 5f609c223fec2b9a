package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sampleParams(sig string) db.InsertTransferParams {
	return db.InsertTransferParams{
		Signature:     sig,
		Sender:        "7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5",
		Receiver:      "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		SolAmount:     5_000_000,
		Fee:           5000,
		Timestamp:     ptr(int64(1_700_000_000)),
		PrevBlockhash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
	}
}

func TestInsertTransfer_RoundTrip(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	params := sampleParams("sig-roundtrip")
	created, err := store.InsertTransfer(ctx, params)
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	all, err := store.ListAllTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, params.Signature, got.Signature)
	assert.Equal(t, params.Sender, got.Sender)
	assert.Equal(t, params.Receiver, got.Receiver)
	assert.Equal(t, params.SolAmount, got.SolAmount)
	assert.Equal(t, params.Fee, got.Fee)
	require.NotNil(t, got.Timestamp)
	assert.Equal(t, *params.Timestamp, *got.Timestamp)
	assert.Equal(t, params.PrevBlockhash, got.PrevBlockhash)
}

func TestInsertTransfer_NullTimestamp(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	params := sampleParams("sig-no-time")
	params.Timestamp = nil
	_, err := store.InsertTransfer(ctx, params)
	require.NoError(t, err)

	got, err := store.GetTransfer(ctx, "sig-no-time")
	require.NoError(t, err)
	assert.Nil(t, got.Timestamp)
}

func TestInsertTransfer_DuplicateIsConflict(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	first := sampleParams("sig-dup")
	_, err := store.InsertTransfer(ctx, first)
	require.NoError(t, err)

	second := sampleParams("sig-dup")
	second.SolAmount = 1
	_, err = store.InsertTransfer(ctx, second)
	assert.ErrorIs(t, err, db.ErrConflict)

	got, err := store.GetTransfer(ctx, "sig-dup")
	require.NoError(t, err)
	assert.Equal(t, first.SolAmount, got.SolAmount, "existing row must be untouched")

	n, err := store.CountTransfers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsertTransfer_ConcurrentSameSignature(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.InsertTransfer(ctx, sampleParams("sig-race"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, db.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)

	n, err := store.CountTransfers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTransferExists(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	exists, err := store.TransferExists(ctx, "sig-exists")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.InsertTransfer(ctx, sampleParams("sig-exists"))
	require.NoError(t, err)

	exists, err = store.TransferExists(ctx, "sig-exists")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetTransfer_NotFound(t *testing.T) {
	store, _ := dbtest.NewStore(t)

	_, err := store.GetTransfer(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListTransfers_OrderAndPaging(t *testing.T) {
	store, _ := dbtest.NewStore(t)
	ctx := context.Background()

	for i, ts := range []*int64{ptr(int64(100)), ptr(int64(300)), nil, ptr(int64(200))} {
		p := sampleParams(string(rune('a' + i)))
		p.Timestamp = ts
		_, err := store.InsertTransfer(ctx, p)
		require.NoError(t, err)
	}

	page, err := store.ListTransfers(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Signature)
	assert.Equal(t, "d", page[1].Signature)

	page, err = store.ListTransfers(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].Signature)
	assert.Equal(t, "c", page[1].Signature, "rows without block time sort last")
}

func TestListAllTransfers_Empty(t *testing.T) {
	store, _ := dbtest.NewStore(t)

	all, err := store.ListAllTransfers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := dbtest.NewPool(t)
	require.NoError(t, db.Migrate(context.Background(), pool))
}

func TestStorageErrorOnClosedPool(t *testing.T) {
	pool := dbtest.NewPool(t)
	store := db.NewStore(pool, nil)
	pool.Close()

	_, err := store.TransferExists(context.Background(), "x")
	var se *db.StorageError
	assert.ErrorAs(t, err, &se)
}

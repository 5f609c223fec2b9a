package db

import (
	"context"
	"errors"
	"time"

	"github.com/brojonat/soltrack/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides transfer persistence over a pgx pool.
// Every method runs exactly one statement.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a Store on pool. m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Transfer is a persisted transfer record.
type Transfer struct {
	Signature     string
	Sender        string
	Receiver      string
	SolAmount     int64
	Fee           int64
	Timestamp     *int64 // block time in unix seconds, nil when the ledger did not report one
	PrevBlockhash string
	CreatedAt     time.Time
}

// InsertTransferParams contains the fields of a new transfer.
type InsertTransferParams struct {
	Signature     string
	Sender        string
	Receiver      string
	SolAmount     int64
	Fee           int64
	Timestamp     *int64
	PrevBlockhash string
}

const transferColumns = `signature, sender, receiver, sol_amount, fee, block_time, prev_blockhash, created_at`

// TransferExists reports whether a transfer with signature is stored.
func (s *Store) TransferExists(ctx context.Context, signature string) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transfers WHERE signature = $1)`, signature,
	).Scan(&exists)
	s.metrics.RecordDBQuery("transfer_exists", metrics.Since(start), err)
	if err != nil {
		return false, &StorageError{Op: "transfer exists", Err: err}
	}
	return exists, nil
}

// InsertTransfer stores a new transfer. It returns ErrConflict when the
// signature is already present; the existing row is left untouched.
func (s *Store) InsertTransfer(ctx context.Context, params InsertTransferParams) (*Transfer, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO transfers (signature, sender, receiver, sol_amount, fee, block_time, prev_blockhash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+transferColumns,
		params.Signature,
		params.Sender,
		params.Receiver,
		params.SolAmount,
		params.Fee,
		pgInt8FromPtr(params.Timestamp),
		params.PrevBlockhash,
	)
	t, err := scanTransfer(row)
	s.metrics.RecordDBQuery("insert_transfer", metrics.Since(start), err)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, &StorageError{Op: "insert transfer", Err: err}
	}
	return t, nil
}

// GetTransfer returns the transfer with signature or ErrNotFound.
func (s *Store) GetTransfer(ctx context.Context, signature string) (*Transfer, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE signature = $1`, signature)
	t, err := scanTransfer(row)
	s.metrics.RecordDBQuery("get_transfer", metrics.Since(start), err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get transfer", Err: err}
	}
	return t, nil
}

// ListAllTransfers returns every stored transfer, newest block first.
func (s *Store) ListAllTransfers(ctx context.Context) ([]*Transfer, error) {
	return s.list(ctx, "list_all_transfers", `SELECT `+transferColumns+` FROM transfers
		ORDER BY block_time DESC NULLS LAST, signature`)
}

// ListTransfers returns one page of transfers, newest block first.
func (s *Store) ListTransfers(ctx context.Context, limit, offset int32) ([]*Transfer, error) {
	return s.list(ctx, "list_transfers", `SELECT `+transferColumns+` FROM transfers
		ORDER BY block_time DESC NULLS LAST, signature
		LIMIT $1 OFFSET $2`, limit, offset)
}

// CountTransfers returns the number of stored transfers.
func (s *Store) CountTransfers(ctx context.Context) (int64, error) {
	start := time.Now()
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&n)
	s.metrics.RecordDBQuery("count_transfers", metrics.Since(start), err)
	if err != nil {
		return 0, &StorageError{Op: "count transfers", Err: err}
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]*Transfer, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.metrics.RecordDBQuery(op, metrics.Since(start), err)
		return nil, &StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	transfers := make([]*Transfer, 0)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			s.metrics.RecordDBQuery(op, metrics.Since(start), err)
			return nil, &StorageError{Op: op, Err: err}
		}
		transfers = append(transfers, t)
	}
	err = rows.Err()
	s.metrics.RecordDBQuery(op, metrics.Since(start), err)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return transfers, nil
}

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var (
		t         Transfer
		blockTime pgtype.Int8
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&t.Signature,
		&t.Sender,
		&t.Receiver,
		&t.SolAmount,
		&t.Fee,
		&blockTime,
		&t.PrevBlockhash,
		&createdAt,
	); err != nil {
		return nil, err
	}
	t.Timestamp = int64PtrFromPg(blockTime)
	t.CreatedAt = createdAt.Time
	return &t, nil
}

func pgInt8FromPtr(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func int64PtrFromPg(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// Package dbtest starts a disposable Postgres for tests that need the real
// store.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/soltrack/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// One container serves every test in the binary. Tests get isolation from
// Truncate, so they must not run in parallel. The testcontainers reaper
// removes the container when the test process exits.
var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// NewPool returns a migrated pool on an empty database. It uses
// TEST_DATABASE_URL when set and otherwise a postgres container shared by
// the whole test binary. The test is skipped when SKIP_DB_TESTS is set or
// Docker is unavailable.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("SKIP_DB_TESTS") != "" {
		t.Skip("Skipping database test (SKIP_DB_TESTS is set)")
	}
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = sharedContainer(t)
	}

	pool, err := db.NewPool(ctx, dsn, 10)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool), "failed to run migrations")
	Truncate(t, pool)
	return pool
}

// NewStore is NewPool wrapped in a Store without metrics.
func NewStore(t *testing.T) (*db.Store, *pgxpool.Pool) {
	t.Helper()
	pool := NewPool(t)
	return db.NewStore(pool, nil), pool
}

// Truncate removes every stored transfer.
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE TABLE transfers")
	require.NoError(t, err, "failed to truncate transfers")
}

func sharedContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		containerDSN, containerErr = startContainer(context.Background())
	})
	require.NoError(t, containerErr, "failed to start postgres container")
	return containerDSN
}

func startContainer(ctx context.Context) (string, error) {
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("soltrack_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", fmt.Errorf("run postgres: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", fmt.Errorf("connection string: %w", err)
	}
	return dsn, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "So11111111111111111111111111111111111111112"

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SERVER_ADDR", "METRICS_ADDR", "LOG_LEVEL", "DATABASE_URL", "DB_API_MAX_CONNS",
		"DB_POLLER_MAX_CONNS", "NATS_URL", "SOLANA_RPC_URL", "RPC_URL", "TRACKED_ACCOUNT",
		"ADDRESS", "RPC_COMMITMENT", "SIGNATURE_PAGE_SIZE", "POLL_INTERVAL", "SCHEDULER",
		"TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
	} {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("TRACKED_ACCOUNT", testAccount)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 25, cfg.SignaturePageSize)
	assert.Equal(t, "confirmed", cfg.RPCCommitment)
	assert.Equal(t, SchedulerLocal, cfg.Scheduler)
	assert.Equal(t, int32(5), cfg.DBAPIMaxConns)
	assert.Equal(t, int32(2), cfg.DBPollerMaxConns)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, testAccount, cfg.TrackedAccount)
}

func TestLoad_LegacyVariableNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("RPC_URL", "https://api.devnet.solana.com")
	t.Setenv("ADDRESS", testAccount)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, testAccount, cfg.TrackedAccount)
}

func TestLoad_AggregatesMissingRequired(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
	assert.Contains(t, err.Error(), "TRACKED_ACCOUNT is required")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad interval", "POLL_INTERVAL", "soon", "invalid duration"},
		{"interval too short", "POLL_INTERVAL", "100ms", "at least 1 second"},
		{"bad page size", "SIGNATURE_PAGE_SIZE", "many", "invalid integer"},
		{"page size too large", "SIGNATURE_PAGE_SIZE", "5000", "between 1 and 1000"},
		{"bad account", "TRACKED_ACCOUNT", "not-a-key", "not a valid public key"},
		{"bad commitment", "RPC_COMMITMENT", "processed", "confirmed or finalized"},
		{"bad scheduler", "SCHEDULER", "cronjob", "Scheduler must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("POLL_INTERVAL=30s\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")
	// godotenv only fills unset variables, so unset the blank one.
	require.NoError(t, os.Unsetenv("POLL_INTERVAL"))

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("POLL_INTERVAL") })

	assert.Equal(t, "30s", os.Getenv("POLL_INTERVAL"))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

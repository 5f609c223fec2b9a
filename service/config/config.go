package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Scheduler backends for the poll loop.
const (
	SchedulerLocal    = "local"
	SchedulerTemporal = "temporal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	// Database configuration. The API and the poller use separate pools.
	DatabaseURL      string
	DBAPIMaxConns    int32
	DBPollerMaxConns int32

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Solana configuration
	SolanaRPCURL      string
	TrackedAccount    string
	RPCCommitment     string
	SignaturePageSize int

	// Polling configuration
	PollInterval time.Duration
	Scheduler    string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables that are already set. Missing files are
// not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error listing every missing or invalid setting.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	if n, err := parseInt("DB_API_MAX_CONNS", 5); err != nil {
		errs = append(errs, err)
	} else {
		cfg.DBAPIMaxConns = int32(n)
	}
	if n, err := parseInt("DB_POLLER_MAX_CONNS", 2); err != nil {
		errs = append(errs, err)
	} else {
		cfg.DBPollerMaxConns = int32(n)
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	// RPC_URL and ADDRESS are accepted for existing .env files.
	cfg.SolanaRPCURL = firstEnv("SOLANA_RPC_URL", "RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.TrackedAccount = firstEnv("TRACKED_ACCOUNT", "ADDRESS")
	if cfg.TrackedAccount == "" {
		errs = append(errs, fmt.Errorf("TRACKED_ACCOUNT is required"))
	}
	cfg.RPCCommitment = getEnvOrDefault("RPC_COMMITMENT", "confirmed")
	if n, err := parseInt("SIGNATURE_PAGE_SIZE", 25); err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignaturePageSize = n
	}

	if d, err := parseDuration("POLL_INTERVAL", "10s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.PollInterval = d
	}
	cfg.Scheduler = getEnvOrDefault("SCHEDULER", SchedulerLocal)

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "soltrack-polling")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks value ranges and formats. Load calls it; tests can call it
// on a hand-built Config.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}
	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	if _, err := solana.PublicKeyFromBase58(c.TrackedAccount); err != nil {
		errs = append(errs, fmt.Errorf("TrackedAccount %q is not a valid public key: %w", c.TrackedAccount, err))
	}
	switch c.RPCCommitment {
	case "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("RPCCommitment must be confirmed or finalized, got %q", c.RPCCommitment))
	}
	if c.SignaturePageSize < 1 || c.SignaturePageSize > 1000 {
		errs = append(errs, fmt.Errorf("SignaturePageSize must be between 1 and 1000, got %d", c.SignaturePageSize))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("PollInterval must be at least 1 second"))
	}
	if c.DBAPIMaxConns < 1 || c.DBPollerMaxConns < 1 {
		errs = append(errs, fmt.Errorf("database pool sizes must be positive"))
	}
	switch c.Scheduler {
	case SchedulerLocal:
	case SchedulerTemporal:
		if c.TemporalHost == "" || c.TemporalNamespace == "" || c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("temporal scheduler requires TemporalHost, TemporalNamespace and TemporalTaskQueue"))
		}
	default:
		errs = append(errs, fmt.Errorf("Scheduler must be %q or %q, got %q", SchedulerLocal, SchedulerTemporal, c.Scheduler))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

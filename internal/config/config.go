package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Chain    ChainConfig
	Executor ExecutorConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port    int
	BaseURL string
	// SyncInterval is how often on-chain pool status is mirrored; zero disables the job
	SyncInterval time.Duration
}

// DatabaseConfig selects Postgres when PostgresURL is set, SQLite otherwise
type DatabaseConfig struct {
	PostgresURL string
	SQLitePath  string
}

// AuthConfig holds session and admin settings
type AuthConfig struct {
	JWTSecret      string
	AdminAddresses []string
	NonceTTL       time.Duration
}

// ChainConfig describes the network the pool contract lives on
type ChainConfig struct {
	Name           string
	RPCURL         string
	ChainID        string
	PoolContract   string
	TokenAddress   string
	TokenDecimals  uint8
	PaymasterURL   string
	HostPrivateKey string
}

// ExecutorConfig tunes confirmation polling
type ExecutorConfig struct {
	PollInterval        time.Duration
	MaxAttempts         int
	ConfirmationTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	decimals, err := getEnvInt("TOKEN_DECIMALS", 6)
	if err != nil {
		return nil, err
	}
	if decimals < 0 || decimals > 36 {
		return nil, fmt.Errorf("TOKEN_DECIMALS out of range: %d", decimals)
	}
	maxAttempts, err := getEnvInt("MAX_POLL_ATTEMPTS", 0)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:    port,
			BaseURL: getEnv("BASE_URL", ""),
		},
		Database: DatabaseConfig{
			PostgresURL: getEnv("POSTGRES_URL", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "./data/pool.db"),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AdminAddresses: splitList(getEnv("ADMIN_ADDRESSES", "")),
		},
		Chain: ChainConfig{
			Name:           getEnv("CHAIN_NAME", "base"),
			RPCURL:         getEnv("RPC_URL", "http://localhost:8545"),
			ChainID:        getEnv("CHAIN_ID", "31337"),
			PoolContract:   getEnv("POOL_CONTRACT_ADDRESS", ""),
			TokenAddress:   getEnv("TOKEN_ADDRESS", ""),
			TokenDecimals:  uint8(decimals),
			PaymasterURL:   getEnv("PAYMASTER_URL", ""),
			HostPrivateKey: getEnv("HOST_PRIVATE_KEY", ""),
		},
		Executor: ExecutorConfig{
			MaxAttempts: maxAttempts,
		},
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SYNC_INTERVAL", time.Minute, &config.Server.SyncInterval},
		{"NONCE_TTL", 10 * time.Minute, &config.Auth.NonceTTL},
		{"POLL_INTERVAL", 2 * time.Second, &config.Executor.PollInterval},
		{"CONFIRMATION_TIMEOUT", 10 * time.Minute, &config.Executor.ConfirmationTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

// IsAdmin reports whether address is listed in ADMIN_ADDRESSES
func (c *Config) IsAdmin(address string) bool {
	for _, admin := range c.Auth.AdminAddresses {
		if strings.EqualFold(admin, address) {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

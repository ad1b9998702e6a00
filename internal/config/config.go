package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Solana settings
	RPCUrl        string
	WSUrl         string
	RPCCommitment string
	PollInterval  time.Duration

	// Stream provider: "ws" for account subscriptions, "rpc" for polling
	StreamProvider string

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PriceTTL      time.Duration

	// ClickHouse settings
	ClickHouseEnabled  bool
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Relay settings
	CommandTimeout time.Duration
	RelayAddr      string

	// API settings
	APIAddr string
	DevMode bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		// Solana
		RPCUrl:        getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		WSUrl:         getEnv("SOLANA_WS_URL", ""),
		RPCCommitment: getEnv("RPC_COMMITMENT", "confirmed"),
		PollInterval:  getDurationEnv("POLL_INTERVAL", 2*time.Second),

		// Stream
		StreamProvider: getEnv("STREAM_PROVIDER", "ws"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		PriceTTL:      getDurationEnv("PRICE_TTL", 10*time.Minute),

		// ClickHouse
		ClickHouseEnabled:  getBoolEnv("CLICKHOUSE_ENABLED", false),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// Relay
		CommandTimeout: getDurationEnv("COMMAND_TIMEOUT", 30*time.Second),
		RelayAddr:      getEnv("RELAY_ADDR", ":8081"),

		// API
		APIAddr: getEnv("API_ADDR", ":8080"),
		DevMode: getBoolEnv("DEV_MODE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.RPCUrl == "" {
		errs = append(errs, errors.New("SOLANA_RPC_URL is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if _, err := c.Commitment(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.StreamProvider != "ws" && c.StreamProvider != "rpc" {
		errs = append(errs, fmt.Errorf("STREAM_PROVIDER: unknown provider %q", c.StreamProvider))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, errors.New("COMMAND_TIMEOUT must be positive"))
	}
	if c.ClickHouseEnabled && c.ClickHouseAddr == "" {
		errs = append(errs, errors.New("CLICKHOUSE_ADDR is required when CLICKHOUSE_ENABLED is set"))
	}
	return errors.Join(errs...)
}

// Commitment maps RPC_COMMITMENT onto the solana-go commitment levels.
func (c *Config) Commitment() (solanarpc.CommitmentType, error) {
	switch strings.ToLower(c.RPCCommitment) {
	case "", "confirmed":
		return solanarpc.CommitmentConfirmed, nil
	case "processed":
		return solanarpc.CommitmentProcessed, nil
	case "finalized":
		return solanarpc.CommitmentFinalized, nil
	}
	return "", fmt.Errorf("RPC_COMMITMENT: unknown commitment %q", c.RPCCommitment)
}

// WebsocketURL returns SOLANA_WS_URL, or the RPC URL with its scheme
// switched to ws/wss when unset.
func (c *Config) WebsocketURL() string {
	if c.WSUrl != "" {
		return c.WSUrl
	}
	switch {
	case strings.HasPrefix(c.RPCUrl, "https://"):
		return "wss://" + strings.TrimPrefix(c.RPCUrl, "https://")
	case strings.HasPrefix(c.RPCUrl, "http://"):
		return "ws://" + strings.TrimPrefix(c.RPCUrl, "http://")
	}
	return c.RPCUrl
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

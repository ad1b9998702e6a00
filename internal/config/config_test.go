package config

import (
	"testing"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("CLICKHOUSE_ENABLED", "")

	cfg := Load()
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCUrl)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.False(t, cfg.ClickHouseEnabled)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOLANA_WS_URL", "wss://example.invalid")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("CLICKHOUSE_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, "wss://example.invalid", cfg.WSUrl)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.ClickHouseEnabled)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Load()
	cfg.RPCUrl = ""
	cfg.RPCCommitment = "eventually"
	cfg.LogLevel = "loud"
	cfg.CommandTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"SOLANA_RPC_URL", "RPC_COMMITMENT", "LOG_LEVEL", "COMMAND_TIMEOUT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestCommitment(t *testing.T) {
	cases := map[string]solanarpc.CommitmentType{
		"":          solanarpc.CommitmentConfirmed,
		"Processed": solanarpc.CommitmentProcessed,
		"finalized": solanarpc.CommitmentFinalized,
	}
	for in, want := range cases {
		got, err := (&Config{RPCCommitment: in}).Commitment()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://rpc.example/abc", (&Config{RPCUrl: "https://rpc.example/abc"}).WebsocketURL())
	assert.Equal(t, "ws://localhost:8899", (&Config{RPCUrl: "http://localhost:8899"}).WebsocketURL())
	assert.Equal(t, "ws://custom", (&Config{RPCUrl: "https://x", WSUrl: "ws://custom"}).WebsocketURL())
}

func TestValidate_StreamProvider(t *testing.T) {
	cfg := Load()
	cfg.StreamProvider = "helius"
	assert.ErrorContains(t, cfg.Validate(), "STREAM_PROVIDER")
}

func TestLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, (&Config{LogLevel: "debug"}).Level())
	assert.Equal(t, logrus.InfoLevel, (&Config{LogLevel: "nope"}).Level())
}
